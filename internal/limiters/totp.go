package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/storefront/internal/rate"
	"github.com/redis/go-redis/v9"
)

const (
	defaultTOTPMaxAttempts = 5
	defaultTOTPCooldown    = time.Minute
)

var ErrTOTPRateLimited = errors.New("totp rate limited")

// TOTPLimiterConfig holds configurable thresholds for the TOTP rate limiter.
type TOTPLimiterConfig struct {
	Prefix      string
	MaxAttempts int
	Cooldown    time.Duration
}

type TOTPLimiter struct {
	redis       redis.UniversalClient
	prefix      string
	maxAttempts int64
	cooldown    time.Duration
}

// NewTOTPLimiter creates a TOTP rate limiter. Zero-value fields in cfg
// fall back to defaults (5 attempts / 60s).
func NewTOTPLimiter(redisClient redis.UniversalClient, cfg TOTPLimiterConfig) *TOTPLimiter {
	max := cfg.MaxAttempts
	if max <= 0 {
		max = defaultTOTPMaxAttempts
	}
	cd := cfg.Cooldown
	if cd <= 0 {
		cd = defaultTOTPCooldown
	}
	return &TOTPLimiter{redis: redisClient, prefix: cfg.Prefix, maxAttempts: int64(max), cooldown: cd}
}

func (l *TOTPLimiter) key(userID string) string {
	return l.prefix + ":att:" + userID
}

func (l *TOTPLimiter) Check(ctx context.Context, userID string) error {
	if l == nil {
		return nil
	}
	count, err := rate.Count(ctx, l.redis, l.key(userID))
	if err != nil {
		return err
	}
	if count >= l.maxAttempts {
		return ErrTOTPRateLimited
	}
	return nil
}

func (l *TOTPLimiter) RecordFailure(ctx context.Context, userID string) error {
	if l == nil {
		return nil
	}
	count, err := rate.Hit(ctx, l.redis, l.key(userID), l.cooldown)
	if err != nil {
		return err
	}
	if count >= l.maxAttempts {
		return ErrTOTPRateLimited
	}
	return nil
}

func (l *TOTPLimiter) Reset(ctx context.Context, userID string) error {
	if l == nil {
		return nil
	}
	if err := l.redis.Del(ctx, l.key(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", rate.ErrRedisUnavailable, err)
	}
	return nil
}
