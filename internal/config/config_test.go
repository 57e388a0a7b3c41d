package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"speech-data-explorer/backend/internal/config"
	"speech-data-explorer/backend/internal/coreengine/tokenizer"
)

var envKeys = []string{
	"SERVER_PORT", "DB_DRIVER", "DB_DSN",
	"MINIO_ENDPOINT", "MINIO_ACCESS_KEY_ID", "MINIO_SECRET_ACCESS_KEY", "MINIO_BUCKET_NAME", "MINIO_USE_SSL",
	"ADMIN_USERNAME", "ADMIN_PASSWORD", "API_TOKEN", "LOG_LEVEL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sdx-engine.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, _, exists, err := config.Load("")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.False(t, cfg.ObjectStore.Enabled)
	assert.Equal(t, "none", cfg.Engine.Normalization)
	assert.Equal(t, tokenizer.Char, cfg.CharGranularity())
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
[server]
port = 9090

[database]
driver = "Postgres"
dsn = "postgres://sdx@localhost/sdx?sslmode=disable"

[engine]
workers = 4
cache_size = 0
char_granularity = "grapheme"
normalization = "standard"

[logging]
format = "json"
`)

	cfg, resolved, exists, err := config.Load(path)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, path, resolved)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 4, cfg.Engine.Workers)
	assert.Equal(t, 0, cfg.Engine.CacheSize)
	assert.Equal(t, tokenizer.Grapheme, cfg.CharGranularity())
	assert.Equal(t, "standard", cfg.Engine.Normalization)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
[server]
port = 9090

[auth]
admin_username = "file-admin"
`)
	t.Setenv("SERVER_PORT", "7000")
	t.Setenv("ADMIN_USERNAME", "env-admin")
	t.Setenv("ADMIN_PASSWORD", "secret")
	t.Setenv("API_TOKEN", "tok")
	t.Setenv("MINIO_ENDPOINT", "localhost:9000")
	t.Setenv("MINIO_ACCESS_KEY_ID", "key")
	t.Setenv("MINIO_SECRET_ACCESS_KEY", "secret")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, _, _, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "env-admin", cfg.Auth.AdminUsername)
	assert.Equal(t, "secret", cfg.Auth.AdminPassword)
	assert.Equal(t, "tok", cfg.Auth.APIToken)
	assert.True(t, cfg.ObjectStore.Enabled)
	assert.True(t, cfg.ObjectStore.UseSSL)
	assert.Equal(t, "asr-reports", cfg.ObjectStore.Bucket)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		env  map[string]string
	}{
		{name: "bad_driver", body: "[database]\ndriver = \"mysql\"\n"},
		{name: "empty_dsn", body: "[database]\ndsn = \" \"\n"},
		{name: "word_char_granularity", body: "[engine]\nchar_granularity = \"word\"\n"},
		{name: "unknown_normalization", body: "[engine]\nnormalization = \"stem\"\n"},
		{name: "negative_workers", body: "[engine]\nworkers = -1\n"},
		{name: "bad_log_format", body: "[logging]\nformat = \"xml\"\n"},
		{name: "object_store_without_keys", body: "[object_store]\nenabled = true\nendpoint = \"localhost:9000\"\n"},
		{name: "unknown_key", body: "[server]\nhost = \"x\"\n"},
		{name: "bad_port_env", body: "", env: map[string]string{"SERVER_PORT": "eighty"}},
		{name: "port_out_of_range", body: "[server]\nport = 70000\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, _, _, err := config.Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	clearEnv(t)
	_, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestEncodeRoundTrip(t *testing.T) {
	clearEnv(t)
	cfg := config.Default()
	cfg.Engine.Workers = 3
	data, err := cfg.Encode()
	require.NoError(t, err)

	loaded, _, _, err := config.Load(writeConfig(t, string(data)))
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Engine.Workers)
	assert.Equal(t, cfg.Database, loaded.Database)
}
