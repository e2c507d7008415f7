package limiters

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/storefront/internal/rate"
	"github.com/redis/go-redis/v9"
)

var ErrVerificationRateLimited = errors.New("verification rate limited")

type EmailVerificationConfig struct {
	Prefix                   string
	EnableIdentifierThrottle bool
	EnableIPThrottle         bool
	Window                   time.Duration
	MaxAttempts              int
}

type EmailVerificationLimiter struct {
	redis  redis.UniversalClient
	config EmailVerificationConfig
}

func NewEmailVerificationLimiter(redisClient redis.UniversalClient, cfg EmailVerificationConfig) *EmailVerificationLimiter {
	return &EmailVerificationLimiter{
		redis:  redisClient,
		config: cfg,
	}
}

func (l *EmailVerificationLimiter) CheckRequest(ctx context.Context, email, ip string) error {
	if l == nil {
		return nil
	}
	if l.config.EnableIdentifierThrottle {
		if err := l.enforce(ctx, l.config.Prefix+":avri:"+strings.ToLower(email)); err != nil {
			return err
		}
	}
	if l.config.EnableIPThrottle && ip != "" {
		if err := l.enforce(ctx, l.config.Prefix+":avrip:"+ip); err != nil {
			return err
		}
	}
	return nil
}

func (l *EmailVerificationLimiter) CheckConfirm(ctx context.Context, verificationID, ip string) error {
	if l == nil {
		return nil
	}
	if l.config.EnableIdentifierThrottle {
		if err := l.enforce(ctx, l.config.Prefix+":avrc:"+verificationID); err != nil {
			return err
		}
	}
	if l.config.EnableIPThrottle && ip != "" {
		if err := l.enforce(ctx, l.config.Prefix+":avrcip:"+ip); err != nil {
			return err
		}
	}
	return nil
}

func (l *EmailVerificationLimiter) enforce(ctx context.Context, key string) error {
	return mapRateErr(rate.Enforce(ctx, l.redis, key, l.config.MaxAttempts, l.config.Window), ErrVerificationRateLimited)
}
