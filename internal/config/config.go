// Package config reads process settings from the environment, after loading
// any .env file found.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds settings for both the simulator and the keeper.
type Config struct {
	// Server
	Port        int
	DBPath      string
	Seed        int64
	CORSOrigins []string

	// Auth
	AdminKey string
	RelayKey string

	// Entropy
	RandomOrgAPIKey string

	// Engine
	Speed        float64
	TickInterval time.Duration

	LogLevel slog.Level

	// Keeper
	KeeperAPIURL   string
	KeeperInterval time.Duration
	KeeperBatch    int
}

// Load reads .env (or the given files) into the environment without
// overriding variables already set, then builds a Config with defaults.
func Load(files ...string) *Config {
	if err := godotenv.Load(files...); err != nil && len(files) > 0 {
		slog.Warn("env file not loaded", "files", files, "error", err)
	}

	return &Config{
		Port:            getEnvAsPositiveIntOrDefault("PORT", 8080),
		DBPath:          getEnvOrDefault("DB_PATH", "data/neurobank.db"),
		Seed:            int64(getEnvAsIntOrDefault("SEED", 42)),
		CORSOrigins:     splitList(os.Getenv("CORS_ORIGINS")),
		AdminKey:        os.Getenv("ADMIN_KEY"),
		RelayKey:        os.Getenv("RELAY_KEY"),
		RandomOrgAPIKey: os.Getenv("RANDOM_ORG_API_KEY"),
		Speed:           getEnvAsFloatOrDefault("SPEED", 1),
		TickInterval:    time.Duration(getEnvAsPositiveIntOrDefault("TICK_INTERVAL_MS", 1000)) * time.Millisecond,
		LogLevel:        ParseLevel(os.Getenv("LOG_LEVEL")),
		KeeperAPIURL:    getEnvOrDefault("KEEPER_API_URL", "http://localhost:8080"),
		KeeperInterval:  time.Duration(getEnvAsPositiveIntOrDefault("KEEPER_INTERVAL_SEC", 300)) * time.Second,
		KeeperBatch:     getEnvAsPositiveIntOrDefault("KEEPER_BATCH", 10),
	}
}

// ParseLevel maps debug|info|warn|error to a slog level. Anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		slog.Warn("ignoring non-integer setting", "key", key, "value", val)
		return defaultVal
	}
	return n
}

// getEnvAsPositiveIntOrDefault rejects zero and negative values, which would
// busy-loop the engine or panic a ticker.
func getEnvAsPositiveIntOrDefault(key string, defaultVal int) int {
	n := getEnvAsIntOrDefault(key, defaultVal)
	if n <= 0 {
		slog.Warn("ignoring non-positive setting", "key", key, "value", n, "default", defaultVal)
		return defaultVal
	}
	return n
}

func getEnvAsFloatOrDefault(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		slog.Warn("ignoring non-numeric setting", "key", key, "value", val)
		return defaultVal
	}
	return f
}
