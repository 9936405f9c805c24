// Package config loads the coordinator's configuration from
// environment variables, following the teacher's cmd/engine/main.go
// idiom (requireEnv / getEnvOrDefault) but centralized into a single
// struct with an explicit Validate step, so startup failure (spec.md
// §6 "Exit codes: nonzero on startup validation failure") happens in
// one place instead of scattered log.Fatalf calls.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds every tunable spec.md §6 lists.
type Config struct {
	Host string
	Port string

	APIKey string // shared secret required in the x-api-key header

	EntityThreshold    int
	TimeWindowSeconds  int
	CriticalThreshold  int
	HighThreshold      int
	MediumThreshold    int
	MaxGraphAgeSeconds int
	PruneIntervalSeconds int
	MaxAdvisories      int

	// Production gates the "missing API key" startup failure, mirroring
	// the teacher's GIN_MODE=release warning-then-fail posture.
	Production bool
}

// Load reads Config from the environment, applying spec.md §6's
// defaults for anything unset.
func Load() (Config, error) {
	cfg := Config{
		Host:   getEnvOrDefault("HOST", "0.0.0.0"),
		Port:   getEnvOrDefault("PORT", "8000"),
		APIKey: os.Getenv("API_KEY"),

		Production: getEnvOrDefault("GIN_MODE", "debug") == "release",
	}

	var err error
	if cfg.EntityThreshold, err = getEnvIntOrDefault("ENTITY_THRESHOLD", 2); err != nil {
		return Config{}, err
	}
	if cfg.TimeWindowSeconds, err = getEnvIntOrDefault("TIME_WINDOW_SECONDS", 300); err != nil {
		return Config{}, err
	}
	if cfg.CriticalThreshold, err = getEnvIntOrDefault("CRITICAL_THRESHOLD", 4); err != nil {
		return Config{}, err
	}
	if cfg.HighThreshold, err = getEnvIntOrDefault("HIGH_THRESHOLD", 3); err != nil {
		return Config{}, err
	}
	if cfg.MediumThreshold, err = getEnvIntOrDefault("MEDIUM_THRESHOLD", 2); err != nil {
		return Config{}, err
	}
	if cfg.MaxGraphAgeSeconds, err = getEnvIntOrDefault("MAX_GRAPH_AGE_SECONDS", 3600); err != nil {
		return Config{}, err
	}
	if cfg.PruneIntervalSeconds, err = getEnvIntOrDefault("PRUNE_INTERVAL_SECONDS", 300); err != nil {
		return Config{}, err
	}
	if cfg.MaxAdvisories, err = getEnvIntOrDefault("MAX_ADVISORIES", 1000); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate enforces spec.md §6's startup-failure conditions: missing
// API key in production mode, or invalid (non-monotonic) thresholds.
func (c Config) Validate() error {
	if c.Production && c.APIKey == "" {
		return fmt.Errorf("API_KEY is required when GIN_MODE=release")
	}
	if c.EntityThreshold < 2 {
		return fmt.Errorf("ENTITY_THRESHOLD must be >= 2, got %d", c.EntityThreshold)
	}
	if !(c.CriticalThreshold >= c.HighThreshold && c.HighThreshold >= c.MediumThreshold && c.MediumThreshold >= 2) {
		return fmt.Errorf("thresholds must satisfy CRITICAL(%d) >= HIGH(%d) >= MEDIUM(%d) >= 2",
			c.CriticalThreshold, c.HighThreshold, c.MediumThreshold)
	}
	if c.MaxAdvisories <= 0 {
		return fmt.Errorf("MAX_ADVISORIES must be positive, got %d", c.MaxAdvisories)
	}
	if c.MaxGraphAgeSeconds <= 0 || c.PruneIntervalSeconds <= 0 {
		return fmt.Errorf("MAX_GRAPH_AGE_SECONDS and PRUNE_INTERVAL_SECONDS must be positive")
	}
	return nil
}

func (c Config) TimeWindow() time.Duration     { return time.Duration(c.TimeWindowSeconds) * time.Second }
func (c Config) MaxGraphAge() time.Duration    { return time.Duration(c.MaxGraphAgeSeconds) * time.Second }
func (c Config) PruneInterval() time.Duration  { return time.Duration(c.PruneIntervalSeconds) * time.Second }

func getEnvOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvIntOrDefault(key string, fallback int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q: %w", key, val, err)
	}
	return n, nil
}
