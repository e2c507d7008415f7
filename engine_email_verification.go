package storefront

import (
	"context"
	"errors"

	"github.com/MrEthical07/storefront/internal"
	"github.com/MrEthical07/storefront/internal/limiters"
	"github.com/MrEthical07/storefront/internal/stores"
)

// issueVerification stores a fresh verification challenge for user and
// hands the link token to the notifier.
func (e *Engine) issueVerification(ctx context.Context, user *User) error {
	if e.verificationStore == nil {
		return ErrEmailVerificationUnavailable
	}
	id, err := internal.NewID()
	if err != nil {
		return ErrEmailVerificationUnavailable
	}
	secret, err := internal.NewSecret()
	if err != nil {
		return ErrEmailVerificationUnavailable
	}
	token, err := internal.EncodeToken(id.String(), secret)
	if err != nil {
		return ErrEmailVerificationUnavailable
	}

	if err := e.verificationStore.Save(ctx, id.String(), user.ID, user.Email, secret.Hash(), e.config.EmailVerification.VerificationTTL); err != nil {
		return ErrEmailVerificationUnavailable
	}

	e.metricInc(MetricEmailVerificationRequest)
	e.emitAudit(ctx, auditEventEmailVerificationRequest, true, user.ID, "", nil, nil)

	if e.notifier == nil {
		return nil
	}
	return e.notifier.SendVerification(ctx, user.Email, user.Name, token)
}

// RequestEmailVerification sends a new verification link. The result is
// the same for unknown and already verified emails.
func (e *Engine) RequestEmailVerification(ctx context.Context, email string) error {
	if !e.config.EmailVerification.Enabled {
		return ErrEmailVerificationUnavailable
	}
	email = normalizeEmail(email)

	if err := e.verificationLimiter.CheckRequest(ctx, email, clientIPFromContext(ctx)); err != nil {
		if errors.Is(err, limiters.ErrVerificationRateLimited) {
			return ErrEmailVerificationRateLimited
		}
		return ErrEmailVerificationUnavailable
	}

	user, err := e.userProvider.GetUserByEmail(ctx, email)
	if err != nil || user.Verified {
		return nil
	}
	if err := e.issueVerification(ctx, user); err != nil {
		e.emitAudit(ctx, auditEventEmailVerificationRequest, false, user.ID, "", err, nil)
	}
	return nil
}

// ConfirmEmailVerification consumes a verification token and marks its
// user verified. Tokens are single use.
func (e *Engine) ConfirmEmailVerification(ctx context.Context, token string) error {
	if !e.config.EmailVerification.Enabled {
		return ErrEmailVerificationUnavailable
	}

	id, secret, err := internal.DecodeToken(token)
	if err != nil {
		e.metricInc(MetricEmailVerificationFailure)
		return ErrEmailVerificationInvalid
	}

	if err := e.verificationLimiter.CheckConfirm(ctx, id, clientIPFromContext(ctx)); err != nil {
		if errors.Is(err, limiters.ErrVerificationRateLimited) {
			return ErrEmailVerificationRateLimited
		}
		return ErrEmailVerificationUnavailable
	}

	record, err := e.verificationStore.Consume(ctx, id, secret.Hash(), e.config.EmailVerification.MaxAttempts)
	if err != nil {
		e.metricInc(MetricEmailVerificationFailure)
		if errors.Is(err, stores.ErrChallengeRedisUnavailable) {
			return ErrEmailVerificationUnavailable
		}
		e.emitAudit(ctx, auditEventEmailVerificationConfirm, false, "", "", ErrEmailVerificationInvalid, nil)
		return ErrEmailVerificationInvalid
	}

	if err := e.userProvider.MarkVerified(ctx, record.UserID); err != nil {
		e.metricInc(MetricEmailVerificationFailure)
		if errors.Is(err, ErrUserNotFound) {
			return ErrEmailVerificationInvalid
		}
		return err
	}

	e.metricInc(MetricEmailVerificationSuccess)
	e.emitAudit(ctx, auditEventEmailVerificationConfirm, true, record.UserID, "", nil, nil)
	return nil
}
