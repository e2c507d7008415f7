package storefront

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/storefront/internal/limiters"
)

// SetupTOTP issues a new pending 2FA secret for userID. 2FA stays off
// until ConfirmTOTPSetup sees a valid code for it.
func (e *Engine) SetupTOTP(ctx context.Context, userID string) (*TOTPSetup, error) {
	user, err := e.userProvider.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.TOTP.Enabled {
		return nil, ErrTOTPAlreadyEnabled
	}

	setup, err := e.totp.Generate(user.Email)
	if err != nil {
		return nil, ErrTOTPUnavailable
	}
	if err := e.userProvider.SetPendingTOTPSecret(ctx, userID, setup.Secret); err != nil {
		return nil, ErrTOTPUnavailable
	}

	e.emitAudit(ctx, auditEventTOTPSetupRequested, true, userID, "", nil, nil)
	return setup, nil
}

// ConfirmTOTPSetup enables 2FA once code matches the pending secret.
func (e *Engine) ConfirmTOTPSetup(ctx context.Context, userID, code string) error {
	user, err := e.userProvider.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.TOTP.Enabled {
		return ErrTOTPAlreadyEnabled
	}
	if user.TOTP.PendingSecret == "" {
		return ErrTOTPNotConfigured
	}

	counter, err := e.checkTOTP(ctx, user, user.TOTP.PendingSecret, code)
	if err != nil {
		e.emitAudit(ctx, auditEventTOTPFailure, false, userID, "", err, nil)
		return err
	}
	if err := e.userProvider.EnableTOTP(ctx, userID, user.TOTP.PendingSecret, counter); err != nil {
		return ErrTOTPUnavailable
	}

	e.metricInc(MetricTOTPSuccess)
	e.emitAudit(ctx, auditEventTOTPEnabled, true, userID, "", nil, nil)
	return nil
}

// DisableTOTP turns 2FA off. A valid current code is required.
func (e *Engine) DisableTOTP(ctx context.Context, userID, code string) error {
	user, err := e.userProvider.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.TOTP.Enabled {
		return ErrTOTPNotConfigured
	}
	if err := e.verifyUserTOTP(ctx, user, user.TOTP.Secret, code); err != nil {
		e.emitAudit(ctx, auditEventTOTPFailure, false, userID, "", err, nil)
		return err
	}
	if err := e.userProvider.DisableTOTP(ctx, userID); err != nil {
		return ErrTOTPUnavailable
	}

	e.emitAudit(ctx, auditEventTOTPDisabled, true, userID, "", nil, nil)
	return nil
}

// verifyUserTOTP checks code against an enabled secret and records the
// accepted counter.
func (e *Engine) verifyUserTOTP(ctx context.Context, user *User, secret, code string) error {
	counter, err := e.checkTOTP(ctx, user, secret, code)
	if err != nil {
		return err
	}
	// The store only advances the counter past its current value, so two
	// requests racing with the same code cannot both win.
	if err := e.userProvider.UpdateTOTPCounter(ctx, user.ID, counter); err != nil {
		if errors.Is(err, ErrTOTPInvalid) {
			e.metricInc(MetricTOTPFailure)
			return ErrTOTPInvalid
		}
		return ErrTOTPUnavailable
	}
	e.metricInc(MetricTOTPSuccess)
	return nil
}

// checkTOTP applies the per-user attempt limit and replay protection and
// returns the matched time-step counter.
func (e *Engine) checkTOTP(ctx context.Context, user *User, secret, code string) (int64, error) {
	if err := e.totpLimiter.Check(ctx, user.ID); err != nil {
		if errors.Is(err, limiters.ErrTOTPRateLimited) {
			return 0, ErrTOTPRateLimited
		}
		return 0, ErrTOTPUnavailable
	}

	ok, counter, err := e.totp.Verify(secret, code, time.Now())
	if err != nil {
		return 0, ErrTOTPUnavailable
	}
	if !ok || counter <= user.TOTP.LastCounter {
		e.metricInc(MetricTOTPFailure)
		if err := e.totpLimiter.RecordFailure(ctx, user.ID); errors.Is(err, limiters.ErrTOTPRateLimited) {
			return 0, ErrTOTPRateLimited
		}
		return 0, ErrTOTPInvalid
	}

	_ = e.totpLimiter.Reset(ctx, user.ID)
	return counter, nil
}
