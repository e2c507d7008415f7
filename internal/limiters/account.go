package limiters

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/storefront/internal/rate"
	"github.com/redis/go-redis/v9"
)

// ErrAccountRateLimited is returned when too many registrations were
// attempted for the same email or from the same IP.
var ErrAccountRateLimited = errors.New("account rate limited")

type AccountConfig struct {
	Prefix                   string
	EnableIdentifierThrottle bool
	EnableIPThrottle         bool
	MaxAttempts              int
	Cooldown                 time.Duration
}

type AccountCreationLimiter struct {
	redis  redis.UniversalClient
	config AccountConfig
}

func NewAccountCreationLimiter(redisClient redis.UniversalClient, cfg AccountConfig) *AccountCreationLimiter {
	return &AccountCreationLimiter{
		redis:  redisClient,
		config: cfg,
	}
}

func (l *AccountCreationLimiter) Enforce(ctx context.Context, email, ip string) error {
	if l == nil {
		return nil
	}
	if l.config.EnableIdentifierThrottle {
		if err := l.enforceKey(ctx, l.config.Prefix+":aca:"+strings.ToLower(email)); err != nil {
			return err
		}
	}
	if l.config.EnableIPThrottle && ip != "" {
		if err := l.enforceKey(ctx, l.config.Prefix+":acaip:"+ip); err != nil {
			return err
		}
	}
	return nil
}

func (l *AccountCreationLimiter) enforceKey(ctx context.Context, key string) error {
	return mapRateErr(rate.Enforce(ctx, l.redis, key, l.config.MaxAttempts, l.config.Cooldown), ErrAccountRateLimited)
}

// mapRateErr swaps rate.ErrRateLimited for a limiter-specific sentinel so
// callers can tell the flows apart.
func mapRateErr(err, limited error) error {
	if errors.Is(err, rate.ErrRateLimited) {
		return limited
	}
	return err
}
