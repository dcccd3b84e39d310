package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(envMap(nil))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 15*time.Second, cfg.BackendTimeout)
	assert.Equal(t, StoreMemory, cfg.HandoffStore)
	assert.Equal(t, 2*time.Hour, cfg.HandoffTTL)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, "disable", cfg.DB.SSLMode)
	assert.Equal(t, "/", cfg.HomeURL)
	assert.False(t, cfg.SecureCookies)
}

func TestFromEnvOverrides(t *testing.T) {
	cfg, err := FromEnv(envMap(map[string]string{
		"PORT":            "9000",
		"BACKEND_URL":     "https://api.example.com",
		"BACKEND_TIMEOUT": "3s",
		"HANDOFF_STORE":   "Redis",
		"HANDOFF_TTL":     "30m",
		"REDIS_DB":        "2",
		"KAFKA_BROKERS":   "k1:9092, k2:9092,",
		"CORS_ORIGINS":    "https://a.example.com,https://b.example.com",
		"LOG_LEVEL":       "debug",
		"DB_HOST":         "db",
	}))
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "https://api.example.com", cfg.BackendURL)
	assert.Equal(t, 3*time.Second, cfg.BackendTimeout)
	assert.Equal(t, StoreRedis, cfg.HandoffStore)
	assert.Equal(t, 30*time.Minute, cfg.HandoffTTL)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Len(t, cfg.CORSOrigins, 2)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "db", cfg.DB.Host)
}

func TestFromEnvRejectsBadValues(t *testing.T) {
	tests := map[string]map[string]string{
		"store":   {"HANDOFF_STORE": "etcd"},
		"timeout": {"BACKEND_TIMEOUT": "soon"},
		"ttl":     {"HANDOFF_TTL": "2"},
		"redis":   {"REDIS_DB": "one"},
		"level":   {"LOG_LEVEL": "loud"},
		"cookies": {"SECURE_COOKIES": "maybe"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := FromEnv(envMap(env))
			assert.Error(t, err)
		})
	}
}
