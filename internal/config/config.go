package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv         string
	Port           string
	AllowedOrigins string

	DatabaseURL string
	RedisURL    string

	JWTSecret string
	JWTTTL    time.Duration

	// LoginDomain is appended to the lower-cased username to derive the
	// login handle stored in the identity store.
	LoginDomain string

	// StoreTimeout bounds every identity/relational store call made by
	// the provisioning pipeline.
	StoreTimeout    time.Duration
	BulkParallelism int

	HistoryLimit     int
	SubscriberBuffer int
	PublishRateLimit time.Duration

	SetupAdminUsername string
	SetupAdminPassword string
}

func Load() (*Config, error) {
	// Don't fail if .env doesn't exist (might be prod env vars)
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:         getEnv("APP_ENV", "development"),
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: getEnv("ALLOWED_ORIGINS", "http://localhost:3000"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),

		JWTSecret:   getEnv("JWT_SECRET", "change-me"),
		LoginDomain: getEnv("LOGIN_DOMAIN", "college.local"),

		SetupAdminUsername: os.Getenv("SETUP_ADMIN_USERNAME"),
		SetupAdminPassword: os.Getenv("SETUP_ADMIN_PASSWORD"),
	}

	var err error
	cfg.JWTTTL, err = parseDuration(getEnv("JWT_TTL", "1h"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_TTL: %w", err)
	}
	cfg.StoreTimeout, err = parseDuration(getEnv("STORE_TIMEOUT", "5s"))
	if err != nil {
		return nil, fmt.Errorf("invalid STORE_TIMEOUT: %w", err)
	}
	cfg.PublishRateLimit, err = parseDuration(getEnv("PUBLISH_RATE_LIMIT", "0s"))
	if err != nil {
		return nil, fmt.Errorf("invalid PUBLISH_RATE_LIMIT: %w", err)
	}

	cfg.BulkParallelism, err = parseInt(getEnv("BULK_PARALLELISM", "4"))
	if err != nil {
		return nil, fmt.Errorf("invalid BULK_PARALLELISM: %w", err)
	}
	cfg.HistoryLimit, err = parseInt(getEnv("HISTORY_LIMIT", "100"))
	if err != nil {
		return nil, fmt.Errorf("invalid HISTORY_LIMIT: %w", err)
	}
	cfg.SubscriberBuffer, err = parseInt(getEnv("SUBSCRIBER_BUFFER", "64"))
	if err != nil {
		return nil, fmt.Errorf("invalid SUBSCRIBER_BUFFER: %w", err)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func parseDuration(s string) (time.Duration, error) {
	return time.ParseDuration(s)
}

func parseInt(s string) (int, error) {
	return strconv.Atoi(s)
}
