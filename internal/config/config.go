// Package config reads runtime settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	APIAddr     string
	DatabaseURL string
	RedisURL    string // empty disables cache and pub/sub

	StartupSeed  bool
	SweepEnabled bool
	SweepEvery   time.Duration
	CacheEvery   time.Duration
}

// Load assembles the config. Only DATABASE_URL is mandatory.
func Load() (Config, error) {
	cfg := Config{
		APIAddr:      envDefault("MINEGRID_API_ADDR", ":"+envDefault("PORT", "8080")),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		RedisURL:     os.Getenv("REDIS_URL"),
		StartupSeed:  envBoolDefault("MINEGRID_STARTUP_SEED", true),
		SweepEnabled: envBoolDefault("MINEGRID_SWEEP_ENABLED", false),
		SweepEvery:   envDurationDefault("MINEGRID_SWEEP_EVERY", time.Minute),
		CacheEvery:   envDurationDefault("MINEGRID_CACHE_EVERY", 5*time.Minute),
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBoolDefault(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
