package config

import (
	"errors"
	"fmt"
	"strings"

	"speech-data-explorer/backend/internal/coreengine/tokenizer"
	"speech-data-explorer/backend/internal/textnorm"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateObjectStore(); err != nil {
		return err
	}
	if err := c.validateEngine(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	return nil
}

func (c *Config) validateDatabase() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("database.dsn must be set. Set DB_DSN env var or edit the config file")
	}
	return nil
}

func (c *Config) validateObjectStore() error {
	if !c.ObjectStore.Enabled {
		return nil
	}
	if strings.TrimSpace(c.ObjectStore.Endpoint) == "" {
		return errors.New("object_store.endpoint must be set when object_store.enabled is true")
	}
	if c.ObjectStore.AccessKeyID == "" || c.ObjectStore.SecretAccessKey == "" {
		return errors.New("object_store.access_key_id and object_store.secret_access_key must be set when object_store.enabled is true")
	}
	if strings.TrimSpace(c.ObjectStore.Bucket) == "" {
		return errors.New("object_store.bucket must be set when object_store.enabled is true")
	}
	return nil
}

func (c *Config) validateEngine() error {
	if c.Engine.Workers < 0 {
		return errors.New("engine.workers must be >= 0")
	}
	if c.Engine.CacheSize < 0 {
		return errors.New("engine.cache_size must be >= 0")
	}
	if c.Engine.MaxBatchUtterances <= 0 {
		return errors.New("engine.max_batch_utterances must be positive")
	}
	g, err := tokenizer.ParseGranularity(c.Engine.CharGranularity)
	if err != nil {
		return fmt.Errorf("engine.char_granularity: %w", err)
	}
	if g == tokenizer.Word {
		return errors.New("engine.char_granularity must be char or grapheme")
	}
	if _, err := textnorm.Lookup(c.Engine.Normalization); err != nil {
		return fmt.Errorf("engine.normalization: %w", err)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	return nil
}

// CharGranularity returns the parsed engine.char_granularity.
func (c *Config) CharGranularity() tokenizer.Granularity {
	g, err := tokenizer.ParseGranularity(c.Engine.CharGranularity)
	if err != nil || g == tokenizer.Word {
		return tokenizer.Char
	}
	return g
}
