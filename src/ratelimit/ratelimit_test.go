package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/arsyadal/fastblog/src/config"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeys(t *testing.T) {
	l := New(nil, 100, time.Minute)
	now := time.Date(2024, 5, 1, 10, 30, 45, 0, time.UTC)

	start := l.windowStart(now)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC), start)
	assert.Equal(t, "ratelimit:203.0.113.7:1714559400", l.key("203.0.113.7", start))
}

func TestFailOpen(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	l := New(rdb, 5, time.Minute)
	l.now = func() time.Time { return time.Date(2024, 5, 1, 10, 30, 45, 0, time.UTC) }

	d := l.Allow(context.Background(), "203.0.113.7")
	assert.True(t, d.Allowed)
	assert.Equal(t, 5, d.Remaining)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 31, 0, 0, time.UTC), d.ResetAt)
}

func TestNewFromConfig(t *testing.T) {
	l, err := NewFromConfig(configWith(""))
	assert.Nil(t, err)
	assert.Nil(t, l)

	_, err = NewFromConfig(configWith("not a url"))
	assert.NotNil(t, err)

	l, err = NewFromConfig(configWith("redis://localhost:6379/0"))
	require.Nil(t, err)
	assert.Equal(t, 100, l.max)
}

func configWith(url string) config.RateLimitConfig {
	return config.RateLimitConfig{RedisUrl: url, MaxRequests: 100, Window: time.Minute}
}
