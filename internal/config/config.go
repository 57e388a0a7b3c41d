package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

// Server configures the HTTP listener.
type Server struct {
	Bind string `toml:"bind"`
	Port int    `toml:"port"`
}

// Addr returns the listen address.
func (s Server) Addr() string {
	return net.JoinHostPort(s.Bind, strconv.Itoa(s.Port))
}

// Auth holds the admin credentials and the optional API token accepted as a
// bearer token.
type Auth struct {
	AdminUsername   string `toml:"admin_username"`
	AdminPassword   string `toml:"admin_password"`
	APIToken        string `toml:"api_token"`
	SessionTTLHours int    `toml:"session_ttl_hours"`
}

// Database selects the job store backend.
type Database struct {
	Driver string `toml:"driver"`
	DSN    string `toml:"dsn"`
}

// ObjectStore configures the MinIO report archive.
type ObjectStore struct {
	Enabled         bool   `toml:"enabled"`
	Endpoint        string `toml:"endpoint"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
	Bucket          string `toml:"bucket"`
	UseSSL          bool   `toml:"use_ssl"`
}

// Engine tunes the evaluation engine.
type Engine struct {
	Workers            int    `toml:"workers"`
	CacheSize          int    `toml:"cache_size"`
	CharGranularity    string `toml:"char_granularity"`
	Normalization      string `toml:"normalization"`
	MaxBatchUtterances int    `toml:"max_batch_utterances"`
}

// Logging controls the zap logger.
type Logging struct {
	Level       string `toml:"level"`
	Format      string `toml:"format"`
	Development bool   `toml:"development"`
}

// Config is the whole service configuration.
type Config struct {
	Server      Server      `toml:"server"`
	Auth        Auth        `toml:"auth"`
	Database    Database    `toml:"database"`
	ObjectStore ObjectStore `toml:"object_store"`
	Engine      Engine      `toml:"engine"`
	Logging     Logging     `toml:"logging"`
}

// Load parses the TOML file at path (or sdx-engine.toml in the working
// directory when path is empty), applies environment overrides and
// validates the result. A missing default file is not an error; a missing
// explicit file is. The returned bool reports whether a file was read.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, "", false, err
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return "", false, fmt.Errorf("stat config %s: %w", path, err)
		}
		return path, true, nil
	}
	_, err := os.Stat(defaultConfigFileName)
	switch {
	case err == nil:
		return defaultConfigFileName, true, nil
	case errors.Is(err, os.ErrNotExist):
		return defaultConfigFileName, false, nil
	default:
		return "", false, fmt.Errorf("stat config %s: %w", defaultConfigFileName, err)
	}
}

// Encode writes cfg as TOML.
func (c *Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}
