// Package config loads engine configuration from the environment, with
// an optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds everything the engine needs to run.
type Config struct {
	// DatabaseDSN is the Postgres connection string.
	DatabaseDSN string
	// ListenAddr is the HTTP listen address of the ingestion server.
	ListenAddr string
	// Workers bounds the transform worker pool; 0 means one per CPU.
	Workers int
	// InputDir is the default directory for CLI directory-scan ingestion.
	InputDir string
	// RemoteFHIRBaseURL enables the remote bundle pull endpoint when set.
	RemoteFHIRBaseURL string
	// RemoteFetchCount is the page size requested per remote bundle.
	RemoteFetchCount int
}

// Load reads configuration from the environment. A missing .env file is
// not an error; a missing database DSN is.
func Load() (*Config, error) {
	// Values already exported in the environment win over .env.
	_ = godotenv.Load(".env")

	cfg := &Config{
		DatabaseDSN:       os.Getenv("FORNAX_DATABASE_DSN"),
		ListenAddr:        envOr("FORNAX_LISTEN_ADDR", ":8080"),
		InputDir:          os.Getenv("FORNAX_INPUT_DIR"),
		RemoteFHIRBaseURL: os.Getenv("FORNAX_REMOTE_FHIR_URL"),
	}

	if cfg.DatabaseDSN == "" {
		return nil, fmt.Errorf("FORNAX_DATABASE_DSN is required")
	}

	var err error
	if cfg.Workers, err = envInt("FORNAX_WORKERS", 0); err != nil {
		return nil, err
	}
	if cfg.RemoteFetchCount, err = envInt("FORNAX_REMOTE_FETCH_COUNT", 500); err != nil {
		return nil, err
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}
