// Package config loads client configuration from the environment. A .env file
// in the working directory is honored when present. No other package reads
// environment variables directly.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds all client configuration.
type Config struct {
	// APIURL is the base URL of the remote recipe API.
	APIURL string

	// Timeout bounds a single request to the remote API.
	Timeout time.Duration

	// Store selects where the session token is persisted.
	Store StoreConfig

	// MockAPI configures the bundled development server.
	MockAPI MockAPIConfig
}

// StoreConfig describes the token store backend.
type StoreConfig struct {
	// Type is one of "filesystem" (default), "sqlite", "redis" or "memory".
	Type string

	// Dir is the directory used by the filesystem backend.
	Dir string

	// DSN is the sqlite data source name.
	DSN string

	// RedisURL and RedisPrefix configure the redis backend.
	RedisURL    string
	RedisPrefix string
}

// MockAPIConfig configures `flavorai-client mockapi`.
type MockAPIConfig struct {
	JWTSecret string
}

// Load reads a .env file if one exists and then the environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found")
	}

	dir := getEnv("TOKEN_DIR", defaultTokenDir())

	return &Config{
		APIURL:  strings.TrimRight(getEnv("FLAVORAI_API_URL", "http://localhost:3000"), "/"),
		Timeout: getEnvDuration("HTTP_TIMEOUT", 15*time.Second),
		Store: StoreConfig{
			Type:        strings.ToLower(getEnv("TOKEN_STORE", "filesystem")),
			Dir:         dir,
			DSN:         getEnv("TOKEN_DSN", filepath.Join(dir, "session.db")),
			RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379"),
			RedisPrefix: getEnv("REDIS_PREFIX", "flavorai:"),
		},
		MockAPI: MockAPIConfig{
			JWTSecret: getEnv("MOCKAPI_JWT_SECRET", "dev-secret-do-not-use-in-production"),
		},
	}
}

// defaultTokenDir is the per-user config directory, or ./.flavorai when the
// platform has none.
func defaultTokenDir() string {
	if base, err := os.UserConfigDir(); err == nil {
		return filepath.Join(base, "flavorai")
	}
	return ".flavorai"
}

func getEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		logrus.WithField("key", key).Warn("Ignoring malformed duration")
	}
	return defaultVal
}
