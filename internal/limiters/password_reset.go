package limiters

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/storefront/internal/rate"
	"github.com/redis/go-redis/v9"
)

var ErrResetRateLimited = errors.New("reset rate limited")

type PasswordResetConfig struct {
	Prefix                   string
	EnableIdentifierThrottle bool
	EnableIPThrottle         bool
	Window                   time.Duration
	MaxAttempts              int
}

type PasswordResetLimiter struct {
	redis  redis.UniversalClient
	config PasswordResetConfig
}

func NewPasswordResetLimiter(redisClient redis.UniversalClient, cfg PasswordResetConfig) *PasswordResetLimiter {
	return &PasswordResetLimiter{
		redis:  redisClient,
		config: cfg,
	}
}

// CheckRequest counts a forgot-password request.
func (l *PasswordResetLimiter) CheckRequest(ctx context.Context, email, ip string) error {
	if l == nil {
		return nil
	}
	if l.config.EnableIdentifierThrottle {
		if err := l.enforce(ctx, l.config.Prefix+":apri:"+strings.ToLower(email)); err != nil {
			return err
		}
	}
	if l.config.EnableIPThrottle && ip != "" {
		if err := l.enforce(ctx, l.config.Prefix+":aprip:"+ip); err != nil {
			return err
		}
	}
	return nil
}

// CheckConfirm counts a reset confirmation for one token ID.
func (l *PasswordResetLimiter) CheckConfirm(ctx context.Context, resetID, ip string) error {
	if l == nil {
		return nil
	}
	if l.config.EnableIdentifierThrottle {
		if err := l.enforce(ctx, l.config.Prefix+":aprc:"+resetID); err != nil {
			return err
		}
	}
	if l.config.EnableIPThrottle && ip != "" {
		if err := l.enforce(ctx, l.config.Prefix+":aprcip:"+ip); err != nil {
			return err
		}
	}
	return nil
}

func (l *PasswordResetLimiter) enforce(ctx context.Context, key string) error {
	return mapRateErr(rate.Enforce(ctx, l.redis, key, l.config.MaxAttempts, l.config.Window), ErrResetRateLimited)
}
