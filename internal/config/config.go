// Package config loads service configuration from the environment. A
// .env file in the working directory is picked up when present, the way
// local development expects; real deployments set the variables directly.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is everything the binaries need to start.
type Config struct {
	Addr        string
	DatabaseURL string

	TokenSecret string
	TokenIssuer string
	TokenTTL    time.Duration

	LoginBurst     int
	LoginPerMinute int

	AuditQueueSize int
	MaxBodyBytes   int64

	Version string
}

// Load reads the environment, after merging an optional .env file.
// DATABASE_URL and JWT_SECRET are required; everything else has a
// working default.
func Load() (Config, error) {
	// Missing .env is the normal production case, not an error.
	_ = godotenv.Load()

	cfg := Config{
		Addr:           getString("SERVER_ADDR", ":8080"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		TokenSecret:    os.Getenv("JWT_SECRET"),
		TokenIssuer:    getString("JWT_ISSUER", "emprestimosdiario"),
		Version:        getString("VERSION", "dev"),
		LoginBurst:     5,
		LoginPerMinute: 10,
		AuditQueueSize: 1024,
		MaxBodyBytes:   1 << 20,
	}
	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("config: DATABASE_URL is required")
	}
	if cfg.TokenSecret == "" {
		return Config{}, errors.New("config: JWT_SECRET is required")
	}

	var err error
	if cfg.TokenTTL, err = getDuration("TOKEN_TTL", 0); err != nil {
		return Config{}, err
	}
	if cfg.LoginBurst, err = getInt("LOGIN_BURST", cfg.LoginBurst); err != nil {
		return Config{}, err
	}
	if cfg.LoginPerMinute, err = getInt("LOGIN_PER_MINUTE", cfg.LoginPerMinute); err != nil {
		return Config{}, err
	}
	if cfg.AuditQueueSize, err = getInt("AUDIT_QUEUE_SIZE", cfg.AuditQueueSize); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func getString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}
