package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func (c *Config) applyEnv() error {
	if v, ok := lookupEnv("SERVER_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SERVER_PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v, ok := lookupEnv("DB_DRIVER"); ok {
		c.Database.Driver = v
	}
	if v, ok := lookupEnv("DB_DSN"); ok {
		c.Database.DSN = v
	}
	if v, ok := lookupEnv("MINIO_ENDPOINT"); ok {
		c.ObjectStore.Endpoint = v
		c.ObjectStore.Enabled = true
	}
	if v, ok := lookupEnv("MINIO_ACCESS_KEY_ID"); ok {
		c.ObjectStore.AccessKeyID = v
	}
	if v, ok := lookupEnv("MINIO_SECRET_ACCESS_KEY"); ok {
		c.ObjectStore.SecretAccessKey = v
	}
	if v, ok := lookupEnv("MINIO_BUCKET_NAME"); ok {
		c.ObjectStore.Bucket = v
	}
	if v, ok := lookupEnv("MINIO_USE_SSL"); ok {
		useSSL, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("MINIO_USE_SSL: %w", err)
		}
		c.ObjectStore.UseSSL = useSSL
	}
	if v, ok := lookupEnv("ADMIN_USERNAME"); ok {
		c.Auth.AdminUsername = v
	}
	if v, ok := lookupEnv("ADMIN_PASSWORD"); ok {
		c.Auth.AdminPassword = v
	}
	if v, ok := lookupEnv("API_TOKEN"); ok {
		c.Auth.APIToken = v
	}
	if v, ok := lookupEnv("LOG_LEVEL"); ok {
		c.Logging.Level = v
	}
	return nil
}

func lookupEnv(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (c *Config) normalize() {
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	c.Engine.CharGranularity = strings.ToLower(strings.TrimSpace(c.Engine.CharGranularity))
	if c.Engine.CharGranularity == "" {
		c.Engine.CharGranularity = defaultEngineGranularity
	}
	c.Engine.Normalization = strings.ToLower(strings.TrimSpace(c.Engine.Normalization))
	if c.Engine.Normalization == "" {
		c.Engine.Normalization = defaultEngineNormalize
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	if c.Auth.SessionTTLHours <= 0 {
		c.Auth.SessionTTLHours = defaultSessionTTLHours
	}
}
