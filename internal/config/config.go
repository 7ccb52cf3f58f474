package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string

	EmailAPIURL string
	EmailAPIKey string
	PushAPIURL  string
	PushAPIKey  string

	AIAPIURL string
	AIAPIKey string
	AIModel  string

	// DispatchConcurrency bounds the per-campaign worker pool.
	DispatchConcurrency int
	// DeferredFlushHour is the local hour at which quiet-hours notifications
	// are flushed.
	DeferredFlushHour int
}

// Load reads configuration from the environment, with a .env file as
// fallback for local development.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbURL := getEnv("DATABASE_URL", "")
	redisURL := getEnv("REDIS_URL", "")

	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if redisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	flushHour := getEnvInt("DEFERRED_FLUSH_HOUR", 8)
	if flushHour < 0 || flushHour > 23 {
		return nil, fmt.Errorf("DEFERRED_FLUSH_HOUR must be between 0 and 23")
	}

	return &Config{
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: dbURL,
		RedisURL:    redisURL,

		EmailAPIURL: getEnv("EMAIL_API_URL", ""),
		EmailAPIKey: getEnv("EMAIL_API_KEY", ""),
		PushAPIURL:  getEnv("PUSH_API_URL", ""),
		PushAPIKey:  getEnv("PUSH_API_KEY", ""),

		AIAPIURL: getEnv("AI_API_URL", ""),
		AIAPIKey: getEnv("AI_API_KEY", ""),
		AIModel:  getEnv("AI_MODEL", "gpt-4o-mini"),

		DispatchConcurrency: getEnvInt("DISPATCH_CONCURRENCY", 10),
		DeferredFlushHour:   flushHour,
	}, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}
