package storefront

import (
	"context"
	"errors"
	"net/mail"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/MrEthical07/storefront/internal/limiters"
)

// Register creates an unverified account with the default role and sends
// a verification link. The returned view never carries credentials.
func (e *Engine) Register(ctx context.Context, in RegisterInput) (*PublicUser, error) {
	if e.passwordHash == nil || e.userProvider == nil {
		return nil, ErrEngineNotReady
	}

	name := strings.TrimSpace(in.Name)
	email := normalizeEmail(in.Email)
	if name == "" || !validEmail(email) {
		e.emitAudit(ctx, auditEventAccountCreationFailure, false, "", "", ErrInvalidInput, nil)
		return nil, ErrInvalidInput
	}
	if err := e.validatePassword(in.Password); err != nil {
		e.emitAudit(ctx, auditEventAccountCreationFailure, false, "", "", err, nil)
		return nil, err
	}

	if err := e.accountLimiter.Enforce(ctx, email, clientIPFromContext(ctx)); err != nil {
		if errors.Is(err, limiters.ErrAccountRateLimited) {
			e.metricInc(MetricAccountCreationRateLimited)
			e.emitAudit(ctx, auditEventAccountCreationRateLimited, false, "", "", ErrAccountCreationRateLimited, nil)
			return nil, ErrAccountCreationRateLimited
		}
		return nil, err
	}

	hash, err := e.passwordHash.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	user, err := e.userProvider.CreateUser(ctx, CreateUserInput{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         e.config.Account.DefaultRole,
		Verified:     !e.config.EmailVerification.Enabled,
	})
	if err != nil {
		if errors.Is(err, ErrUserExists) {
			e.metricInc(MetricAccountCreationDuplicate)
			e.emitAudit(ctx, auditEventAccountCreationFailure, false, "", "", ErrUserExists, nil)
			return nil, ErrUserExists
		}
		return nil, err
	}

	e.metricInc(MetricAccountCreationSuccess)
	e.emitAudit(ctx, auditEventAccountCreationSuccess, true, user.ID, "", nil, nil)

	if e.config.EmailVerification.Enabled {
		// The account exists either way; a failed send can be retried
		// through RequestEmailVerification.
		if err := e.issueVerification(ctx, user); err != nil {
			e.emitAudit(ctx, auditEventEmailVerificationRequest, false, user.ID, "", err, nil)
		}
	}

	view := user.Public()
	return &view, nil
}

// ProvisionAdmin creates or updates an administrator account: verified,
// role admin, password set, 2FA enabled with a fresh secret. It is used by
// the seed-admin command and returns the new 2FA enrolment.
func (e *Engine) ProvisionAdmin(ctx context.Context, name, email, pw string) (*PublicUser, *TOTPSetup, error) {
	email = normalizeEmail(email)
	if !validEmail(email) {
		return nil, nil, ErrInvalidInput
	}
	if err := e.validatePassword(pw); err != nil {
		return nil, nil, err
	}
	hash, err := e.passwordHash.Hash(pw)
	if err != nil {
		return nil, nil, err
	}

	user, err := e.userProvider.GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, ErrUserNotFound):
		user, err = e.userProvider.CreateUser(ctx, CreateUserInput{
			Name:         name,
			Email:        email,
			PasswordHash: hash,
			Role:         RoleAdmin,
			Verified:     true,
		})
		if err != nil {
			return nil, nil, err
		}
	case err != nil:
		return nil, nil, err
	default:
		if err := e.userProvider.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
			return nil, nil, err
		}
		if err := e.userProvider.SetRole(ctx, user.ID, RoleAdmin); err != nil {
			return nil, nil, err
		}
		if err := e.userProvider.MarkVerified(ctx, user.ID); err != nil {
			return nil, nil, err
		}
	}

	setup, err := e.totp.Generate(email)
	if err != nil {
		return nil, nil, ErrTOTPUnavailable
	}
	if err := e.userProvider.EnableTOTP(ctx, user.ID, setup.Secret, 0); err != nil {
		return nil, nil, err
	}
	// Existing tokens carry the old role.
	_, _ = e.sessionStore.DeleteAllForUser(ctx, user.ID)

	fresh, err := e.userProvider.GetUserByID(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	e.emitAudit(ctx, auditEventAdminProvisioned, true, user.ID, "", nil, nil)
	view := fresh.Public()
	return &view, setup, nil
}

// IssueSession opens a session for userID without a password check. It is
// meant for trusted local callers such as the seed-admin command.
func (e *Engine) IssueSession(ctx context.Context, userID string) (*TokenPair, error) {
	user, err := e.userProvider.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.Active {
		return nil, ErrAccountDisabled
	}
	pair, sid, err := e.issueSession(ctx, user)
	if err != nil {
		return nil, err
	}
	e.emitAudit(ctx, auditEventSessionIssued, true, user.ID, sid, nil, nil)
	return pair, nil
}

// SetAccountActive suspends or restores the account registered under
// email. Suspending ends every session; until the account is restored,
// login returns [ErrAccountDisabled] and refresh fails.
func (e *Engine) SetAccountActive(ctx context.Context, email string, active bool) (*PublicUser, error) {
	user, err := e.userProvider.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if err := e.userProvider.SetActive(ctx, user.ID, active); err != nil {
		return nil, err
	}
	if !active {
		if _, err := e.sessionStore.DeleteAllForUser(ctx, user.ID); err != nil {
			return nil, ErrSessionBackendUnavailable
		}
	}
	e.emitAudit(ctx, auditEventAccountStatusChange, true, user.ID, "", nil, func() map[string]string {
		return map[string]string{"active": strconv.FormatBool(active)}
	})

	user.Active = active
	view := user.Public()
	return &view, nil
}

// Profile returns the public view of userID.
func (e *Engine) Profile(ctx context.Context, userID string) (*PublicUser, error) {
	user, err := e.userProvider.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	view := user.Public()
	return &view, nil
}

// LoginHistory returns the user's recent logins, oldest first.
func (e *Engine) LoginHistory(ctx context.Context, userID string) ([]LoginRecord, error) {
	history, err := e.userProvider.LoginHistory(ctx, userID)
	if err != nil {
		return nil, err
	}
	if history == nil {
		history = []LoginRecord{}
	}
	return history, nil
}

// ChangePassword replaces the password after checking the old one, then
// ends every session of the user.
func (e *Engine) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	user, err := e.userProvider.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	ok, err := e.passwordHash.Verify(oldPassword, user.PasswordHash)
	if err != nil || !ok {
		e.metricInc(MetricPasswordChangeInvalidOld)
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, userID, "", ErrInvalidCredentials, nil)
		return ErrInvalidCredentials
	}
	if oldPassword == newPassword {
		e.metricInc(MetricPasswordChangeReuseRejected)
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, userID, "", ErrPasswordReuse, nil)
		return ErrPasswordReuse
	}
	if err := e.validatePassword(newPassword); err != nil {
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, userID, "", err, nil)
		return err
	}

	hash, err := e.passwordHash.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := e.userProvider.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return err
	}
	if e.resetStore != nil {
		if err := e.resetStore.DeleteForUser(ctx, userID); err != nil {
			return ErrPasswordResetUnavailable
		}
	}
	if _, err := e.sessionStore.DeleteAllForUser(ctx, userID); err != nil {
		return ErrSessionBackendUnavailable
	}
	_ = e.rateLimiter.ResetLogin(ctx, user.Email)

	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditEventPasswordChangeSuccess, true, userID, "", nil, nil)
	return nil
}

func (e *Engine) validatePassword(pw string) error {
	n := utf8.RuneCountInString(pw)
	if n < e.config.Password.MinLength || n > e.config.Password.MaxLength {
		return ErrPasswordPolicy
	}
	return nil
}

func validEmail(email string) bool {
	if email == "" || len(email) > 254 {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}
