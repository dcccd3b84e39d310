// Package config loads gateway settings from a .env file and the process
// environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/AurelionFutureForge/registration-gateway/internal/database"
	"github.com/AurelionFutureForge/registration-gateway/internal/handoff"
)

// Hand-off store backends.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

type Config struct {
	Port string

	BackendURL     string
	BackendTimeout time.Duration

	DB database.Config

	HandoffStore string
	HandoffTTL   time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Audit records go to Kafka when brokers are set, else to the log.
	KafkaBrokers []string
	KafkaTopic   string

	CORSOrigins []string

	// HomeURL receives payment returns that cannot be completed.
	HomeURL       string
	SecureCookies bool

	// SubmitRateLimit is an ulule/limiter formatted rate, e.g. "20-M".
	SubmitRateLimit string

	LogLevel slog.Level
}

// Load reads .env (if present) and then the environment. Missing values
// fall back to development defaults.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file, using environment variables")
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a variable lookup.
func FromEnv(getenv func(string) string) (*Config, error) {
	get := func(key, fallback string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return fallback
	}

	cfg := &Config{
		Port:       get("PORT", "8080"),
		BackendURL: get("BACKEND_URL", "http://localhost:5000"),
		DB: database.Config{
			Host:     get("DB_HOST", "localhost"),
			Port:     get("DB_PORT", "5432"),
			User:     get("DB_USER", "postgres"),
			Password: get("DB_PASSWORD", "postgres"),
			DBName:   get("DB_NAME", "registrations"),
			SSLMode:  get("DB_SSLMODE", "disable"),
		},
		HandoffStore:    strings.ToLower(get("HANDOFF_STORE", StoreMemory)),
		RedisAddr:       get("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   getenv("REDIS_PASSWORD"),
		KafkaBrokers:    list(getenv("KAFKA_BROKERS")),
		KafkaTopic:      get("KAFKA_TOPIC", "registration-audit"),
		CORSOrigins:     list(get("CORS_ORIGINS", "*")),
		SubmitRateLimit: get("SUBMIT_RATE_LIMIT", "20-M"),
		HomeURL:         get("HOME_URL", "/"),
	}

	var err error
	if cfg.BackendTimeout, err = time.ParseDuration(get("BACKEND_TIMEOUT", "15s")); err != nil {
		return nil, fmt.Errorf("BACKEND_TIMEOUT: %w", err)
	}
	if cfg.HandoffTTL, err = time.ParseDuration(get("HANDOFF_TTL", handoff.DefaultTTL.String())); err != nil {
		return nil, fmt.Errorf("HANDOFF_TTL: %w", err)
	}
	if cfg.RedisDB, err = strconv.Atoi(get("REDIS_DB", "0")); err != nil {
		return nil, fmt.Errorf("REDIS_DB: %w", err)
	}
	if err = cfg.LogLevel.UnmarshalText([]byte(get("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	if cfg.SecureCookies, err = strconv.ParseBool(get("SECURE_COOKIES", "false")); err != nil {
		return nil, fmt.Errorf("SECURE_COOKIES: %w", err)
	}

	switch cfg.HandoffStore {
	case StoreMemory, StoreRedis, StorePostgres:
	default:
		return nil, fmt.Errorf("HANDOFF_STORE: unknown store %q", cfg.HandoffStore)
	}
	return cfg, nil
}

func list(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
