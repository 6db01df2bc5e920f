package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds throttle tuning parameters.
type Config struct {
	MaxLoginAttempts int
	LockDuration     time.Duration
}

// Limiter tracks failed logins per (tenant, username) in Redis.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

func loginKey(tenantID, username string) string {
	return "loginAttempts:" + tenantID + ":" + username
}

// PreCheck returns [ErrRateLimited] when the pair has reached the maximum
// number of failures inside the current lock window.
func (l *Limiter) PreCheck(ctx context.Context, tenantID, username string) error {
	count, err := l.Attempts(ctx, tenantID, username)
	if err != nil {
		return err
	}
	if count >= l.config.MaxLoginAttempts {
		return ErrRateLimited
	}
	return nil
}

// RecordAttempt deletes the counter on success and increments it on
// failure. The first failure anchors the lock window.
func (l *Limiter) RecordAttempt(ctx context.Context, tenantID, username string, success bool) error {
	key := loginKey(tenantID, username)
	if success {
		if err := l.redis.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		return nil
	}

	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.LockDuration).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return nil
}

// Attempts returns the current failure count. Missing keys return zero
// and do not reveal account existence.
func (l *Limiter) Attempts(ctx context.Context, tenantID, username string) (int, error) {
	count, err := l.redis.Get(ctx, loginKey(tenantID, username)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

// Remaining returns how long until the current window expires. Zero means
// no window is open.
func (l *Limiter) Remaining(ctx context.Context, tenantID, username string) (time.Duration, error) {
	ttl, err := l.redis.TTL(ctx, loginKey(tenantID, username)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}
