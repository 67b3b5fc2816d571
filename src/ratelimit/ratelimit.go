package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/arsyadal/fastblog/src/config"
	"github.com/arsyadal/fastblog/src/logging"
	"github.com/arsyadal/fastblog/src/oops"
	"github.com/redis/go-redis/v9"
)

/*
Limiter is a fixed-window request counter per client IP, stored in Redis so
every server instance shares the same windows. If Redis is unreachable,
requests are let through.
*/
type Limiter struct {
	rdb    redis.Cmdable
	max    int
	window time.Duration
	now    func() time.Time
}

type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

func New(rdb redis.Cmdable, max int, window time.Duration) *Limiter {
	return &Limiter{
		rdb:    rdb,
		max:    max,
		window: window,
		now:    time.Now,
	}
}

// Returns nil when rate limiting is switched off.
func NewFromConfig(cfg config.RateLimitConfig) (*Limiter, error) {
	if !cfg.Enabled() {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.RedisUrl)
	if err != nil {
		return nil, oops.New(err, "bad REDIS_URL")
	}
	opts.DialTimeout = 2 * time.Second
	opts.ReadTimeout = 500 * time.Millisecond
	opts.WriteTimeout = 500 * time.Millisecond

	return New(redis.NewClient(opts), cfg.MaxRequests, cfg.Window), nil
}

func (l *Limiter) windowStart(now time.Time) time.Time {
	return now.Truncate(l.window)
}

func (l *Limiter) key(ip string, windowStart time.Time) string {
	return fmt.Sprintf("ratelimit:%s:%d", ip, windowStart.Unix())
}

// Counts a request from ip against its current window.
func (l *Limiter) Allow(ctx context.Context, ip string) Decision {
	now := l.now()
	start := l.windowStart(now)
	decision := Decision{
		Allowed:   true,
		Limit:     l.max,
		Remaining: l.max,
		ResetAt:   start.Add(l.window),
	}

	count, err := l.hit(ctx, l.key(ip, start))
	if err != nil {
		logging.ExtractLogger(ctx).Warn().Err(err).Str("ip", ip).Msg("rate limiter unavailable, allowing request")
		return decision
	}

	decision.Allowed = count <= int64(l.max)
	decision.Remaining = max(0, l.max-int(count))
	return decision
}

func (l *Limiter) hit(ctx context.Context, key string) (int64, error) {
	count, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, oops.New(err, "failed to count request")
	}
	if count == 1 {
		// Outlive the window slightly so a slow clock can't reopen it.
		if err := l.rdb.Expire(ctx, key, l.window+time.Second).Err(); err != nil {
			return 0, oops.New(err, "failed to set window expiry")
		}
	}
	return count, nil
}
