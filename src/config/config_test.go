package config

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(viper.New())
	require.Nil(t, err)

	assert.Equal(t, ":3001", cfg.Addr)
	assert.Equal(t, "http://localhost:3003", cfg.FrontendUrl)
	assert.Equal(t, int32(50), cfg.Postgres.MaxConn)
	assert.Equal(t, int32(5), cfg.Postgres.MinConn)
	assert.Equal(t, 10*time.Second, cfg.Postgres.AcquireTimeout)
	assert.Equal(t, time.Hour, cfg.Postgres.MaxConnLifetime)
	assert.Equal(t, int64(5*1024*1024), cfg.Uploads.MaxFileSize)
	assert.Equal(t, zerolog.InfoLevel, cfg.LogLevel)
	assert.False(t, cfg.RateLimit.Enabled())
	assert.False(t, cfg.Kafka.Enabled())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("FRONTEND_URL", "https://blog.example.com/")
	t.Setenv("CORS_ORIGINS", "https://a.example.com, https://b.example.com,")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(viper.New())
	require.Nil(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "https://blog.example.com", cfg.FrontendUrl)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CorsOrigins)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Kafka.Enabled())
	assert.Equal(t, zerolog.DebugLevel, cfg.LogLevel)
}

func TestLoadBadLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "loud")
	_, err := Load(viper.New())
	assert.NotNil(t, err)
}
