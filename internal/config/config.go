package config

import (
	"fmt"
	"os"
	"time"
)

type Config struct {
	DBFile      string
	APIAddr     string
	TokenExpiry time.Duration
	SnapshotTTL time.Duration
}

func Load() (*Config, error) {
	tokenExpiry, err := time.ParseDuration(getEnv("TOKEN_EXPIRY", "24h"))
	if err != nil {
		return nil, err
	}
	snapshotTTL, err := time.ParseDuration(getEnv("SNAPSHOT_TTL", "30m"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DBFile:      getEnv("PARLOR_DB", "parlor.db"),
		APIAddr:     getEnv("API_ADDR", ":8080"),
		TokenExpiry: tokenExpiry,
		SnapshotTTL: snapshotTTL,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.TokenExpiry <= 0 {
		return fmt.Errorf("TOKEN_EXPIRY must be greater than 0")
	}
	if c.SnapshotTTL <= 0 {
		return fmt.Errorf("SNAPSHOT_TTL must be greater than 0")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
