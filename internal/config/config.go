package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration loaded from environment variables.
// Every field has a sensible default; only DATABASE_URL is required.
type Config struct {
	// Server
	HTTPPort        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// Database
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// Optional Redis fast path for daily counters. Empty disables it.
	RedisURL string

	// External provider gateway
	ProviderBaseURL string
	ProviderTimeout time.Duration

	// Processing
	BatchSize       int
	StaleAfter      time.Duration
	ProcessInterval time.Duration
	RetryInterval   time.Duration
	RetryBatchSize  int
}

func Load() (*Config, error) {
	// .env is a local-development convenience; absence is not an error.
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		ReadTimeout:     getDuration("READ_TIMEOUT", 5*time.Second),
		WriteTimeout:    getDuration("WRITE_TIMEOUT", 10*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		DatabaseURL: dbURL,
		DBMaxConns:  int32(getInt("DB_MAX_CONNS", 25)),
		DBMinConns:  int32(getInt("DB_MIN_CONNS", 5)),

		RedisURL: os.Getenv("REDIS_URL"),

		ProviderBaseURL: getEnv("PROVIDER_BASE_URL", "http://localhost:9090/send"),
		ProviderTimeout: getDuration("PROVIDER_TIMEOUT", 10*time.Second),

		BatchSize:       getInt("BATCH_SIZE", 50),
		StaleAfter:      getDuration("STALE_AFTER", 5*time.Minute),
		ProcessInterval: getDuration("PROCESS_INTERVAL", 15*time.Second),
		RetryInterval:   getDuration("RETRY_INTERVAL", time.Minute),
		RetryBatchSize:  getInt("RETRY_BATCH_SIZE", 100),
	}, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
