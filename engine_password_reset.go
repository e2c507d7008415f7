package storefront

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/storefront/internal"
	"github.com/MrEthical07/storefront/internal/limiters"
	"github.com/MrEthical07/storefront/internal/stores"
)

// RequestPasswordReset emails a one-hour reset link when email belongs to
// an active account. Callers get the same answer, after at least
// MinResponseTime, whether or not the account exists.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	if !e.config.PasswordReset.Enabled {
		return ErrPasswordResetUnavailable
	}
	start := time.Now()
	defer e.padResponse(ctx, start)

	email = normalizeEmail(email)
	if err := e.resetLimiter.CheckRequest(ctx, email, clientIPFromContext(ctx)); err != nil {
		if errors.Is(err, limiters.ErrResetRateLimited) {
			e.emitAudit(ctx, auditEventPasswordResetRequest, false, "", "", ErrPasswordResetRateLimited, nil)
			return ErrPasswordResetRateLimited
		}
		return ErrPasswordResetUnavailable
	}

	e.metricInc(MetricPasswordResetRequest)

	user, err := e.userProvider.GetUserByEmail(ctx, email)
	if err != nil || !user.Active {
		return nil
	}

	id, err := internal.NewID()
	if err != nil {
		return nil
	}
	secret, err := internal.NewSecret()
	if err != nil {
		return nil
	}
	token, err := internal.EncodeToken(id.String(), secret)
	if err != nil {
		return nil
	}
	if err := e.resetStore.Save(ctx, id.String(), user.ID, user.Email, secret.Hash(), e.config.PasswordReset.ResetTTL); err != nil {
		e.emitAudit(ctx, auditEventPasswordResetRequest, false, user.ID, "", ErrPasswordResetUnavailable, nil)
		return nil
	}

	var sendErr error
	if e.notifier != nil {
		sendErr = e.notifier.SendPasswordReset(ctx, user.Email, user.Name, token)
	}
	e.emitAudit(ctx, auditEventPasswordResetRequest, sendErr == nil, user.ID, "", sendErr, nil)
	return nil
}

func (e *Engine) padResponse(ctx context.Context, start time.Time) {
	remaining := e.config.PasswordReset.MinResponseTime - time.Since(start)
	if remaining <= 0 {
		return
	}
	t := time.NewTimer(remaining)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// ConfirmPasswordReset sets a new password using a reset token and ends
// every session of the account.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if !e.config.PasswordReset.Enabled {
		return ErrPasswordResetUnavailable
	}

	id, secret, err := internal.DecodeToken(token)
	if err != nil {
		e.metricInc(MetricPasswordResetConfirmFailure)
		return ErrPasswordResetInvalid
	}
	if err := e.validatePassword(newPassword); err != nil {
		return err
	}

	if err := e.resetLimiter.CheckConfirm(ctx, id, clientIPFromContext(ctx)); err != nil {
		if errors.Is(err, limiters.ErrResetRateLimited) {
			return ErrPasswordResetRateLimited
		}
		return ErrPasswordResetUnavailable
	}

	record, err := e.resetStore.Consume(ctx, id, secret.Hash(), e.config.PasswordReset.MaxAttempts)
	if err != nil {
		e.metricInc(MetricPasswordResetConfirmFailure)
		if errors.Is(err, stores.ErrChallengeRedisUnavailable) {
			return ErrPasswordResetUnavailable
		}
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, "", "", ErrPasswordResetInvalid, nil)
		return ErrPasswordResetInvalid
	}

	hash, err := e.passwordHash.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := e.userProvider.UpdatePasswordHash(ctx, record.UserID, hash); err != nil {
		e.metricInc(MetricPasswordResetConfirmFailure)
		if errors.Is(err, ErrUserNotFound) {
			return ErrPasswordResetInvalid
		}
		return err
	}
	if err := e.resetStore.DeleteForUser(ctx, record.UserID); err != nil {
		return ErrPasswordResetUnavailable
	}
	if _, err := e.sessionStore.DeleteAllForUser(ctx, record.UserID); err != nil {
		return ErrSessionBackendUnavailable
	}
	_ = e.rateLimiter.ResetLogin(ctx, record.Email)

	e.metricInc(MetricPasswordResetConfirmSuccess)
	e.emitAudit(ctx, auditEventPasswordResetConfirm, true, record.UserID, "", nil, nil)
	return nil
}
