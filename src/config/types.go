package config

import (
	"strings"
	"time"

	"github.com/jackc/pgx/v5/tracelog"
	"github.com/rs/zerolog"
)

type Environment string

const (
	Production  Environment = "production"
	Staging     Environment = "staging"
	Development Environment = "development"
)

type FastblogConfig struct {
	Env         Environment
	Addr        string
	FrontendUrl string
	CorsOrigins []string
	LogLevel    zerolog.Level

	Postgres  PostgresConfig
	Auth      AuthConfig
	Uploads   UploadsConfig
	RateLimit RateLimitConfig
	Kafka     KafkaConfig

	// Cron spec for the counter reconciliation job. Empty disables it.
	ReconcileSchedule string
}

type PostgresConfig struct {
	Url             string
	LogLevel        tracelog.LogLevel
	MinConn         int32
	MaxConn         int32
	AcquireTimeout  time.Duration
	MaxConnIdle     time.Duration
	MaxConnLifetime time.Duration
}

func (info PostgresConfig) DSN() string {
	return info.Url
}

type AuthConfig struct {
	JwtSecret          string
	TokenLifetime      time.Duration
	RememberMeLifetime time.Duration
}

type UploadsConfig struct {
	MaxFileSize int64

	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3Key       string
	S3Secret    string
	S3PublicUrl string
}

func (c UploadsConfig) Enabled() bool {
	return c.S3Bucket != ""
}

type RateLimitConfig struct {
	RedisUrl    string
	MaxRequests int
	Window      time.Duration
}

func (c RateLimitConfig) Enabled() bool {
	return c.RedisUrl != ""
}

type KafkaConfig struct {
	Brokers   []string
	Topic     string
	QueueSize int
}

func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

func (c FastblogConfig) IsProduction() bool {
	return c.Env == Production
}

func splitList(s string) []string {
	var result []string
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			result = append(result, item)
		}
	}
	return result
}
