package storefront

import (
	"context"
	"errors"
	"time"

	internalaudit "github.com/MrEthical07/storefront/internal/audit"
)

const (
	auditEventLoginSuccess               = "login_success"
	auditEventLoginFailure               = "login_failure"
	auditEventLoginRateLimited           = "login_rate_limited"
	auditEventRefreshSuccess             = "refresh_success"
	auditEventRefreshInvalid             = "refresh_invalid"
	auditEventRefreshRateLimited         = "refresh_rate_limited"
	auditEventRefreshReuseDetected       = "refresh_reuse_detected"
	auditEventPasswordChangeSuccess      = "password_change_success"
	auditEventPasswordChangeFailure      = "password_change_failure"
	auditEventPasswordResetRequest       = "password_reset_request"
	auditEventPasswordResetConfirm       = "password_reset_confirm"
	auditEventEmailVerificationRequest   = "email_verification_request"
	auditEventEmailVerificationConfirm   = "email_verification_confirm"
	auditEventAccountCreationSuccess     = "account_creation_success"
	auditEventAccountCreationFailure     = "account_creation_failure"
	auditEventAccountCreationRateLimited = "account_creation_rate_limited"
	auditEventAdminProvisioned           = "admin_provisioned"
	auditEventAccountStatusChange        = "account_status_change"
	auditEventSessionIssued              = "session_issued"
	auditEventLogoutSession              = "logout_session"
	auditEventLogoutAll                  = "logout_all"
	auditEventSessionRevoked             = "session_revoked"
	auditEventTOTPSetupRequested         = "totp_setup_requested"
	auditEventTOTPEnabled                = "totp_enabled"
	auditEventTOTPDisabled               = "totp_disabled"
	auditEventTOTPFailure                = "totp_failure"
)

// AuditErrorCode is the stable failure reason attached to audit events.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrRefreshReuse       AuditErrorCode = "refresh_reuse"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrSessionNotFound    AuditErrorCode = "session_not_found"
	auditErrUserNotFound       AuditErrorCode = "user_not_found"
	auditErrAccountDisabled    AuditErrorCode = "account_disabled"
	auditErrAccountUnverified  AuditErrorCode = "account_unverified"
	auditErrPasswordPolicy     AuditErrorCode = "password_policy"
	auditErrPasswordReuse      AuditErrorCode = "password_reuse"
	auditErrSessionLimit       AuditErrorCode = "session_limit_exceeded"
	auditErrTOTPRequired       AuditErrorCode = "totp_required"
	auditErrTOTPInvalid        AuditErrorCode = "totp_invalid"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *internalaudit.Dispatcher {
	return internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Enabled,
		BufferSize: cfg.BufferSize,
		DropIfFull: cfg.DropIfFull,
	}, sink)
}

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	sessionID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		UserID:    userID,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

// auditCodes is checked in order; the first entry with a matching
// sentinel wins.
var auditCodes = []struct {
	code AuditErrorCode
	errs []error
}{
	{auditErrInvalidCredentials, []error{ErrInvalidCredentials}},
	{auditErrRateLimited, []error{
		ErrLoginRateLimited, ErrRefreshRateLimited, ErrPasswordResetRateLimited,
		ErrEmailVerificationRateLimited, ErrAccountCreationRateLimited, ErrTOTPRateLimited,
	}},
	{auditErrRefreshReuse, []error{ErrRefreshReuse}},
	{auditErrInvalidToken, []error{
		ErrRefreshInvalid, ErrPasswordResetInvalid, ErrEmailVerificationInvalid, ErrTokenInvalid,
	}},
	{auditErrSessionNotFound, []error{ErrSessionNotFound}},
	{auditErrUserNotFound, []error{ErrUserNotFound}},
	{auditErrAccountDisabled, []error{ErrAccountDisabled}},
	{auditErrAccountUnverified, []error{ErrAccountUnverified}},
	{auditErrPasswordPolicy, []error{ErrPasswordPolicy}},
	{auditErrPasswordReuse, []error{ErrPasswordReuse}},
	{auditErrSessionLimit, []error{ErrSessionLimitExceeded}},
	{auditErrTOTPRequired, []error{ErrTOTPRequired}},
	{auditErrTOTPInvalid, []error{ErrTOTPInvalid, ErrTOTPNotConfigured}},
	{auditErrDuplicate, []error{ErrUserExists}},
	{auditErrUnavailable, []error{
		ErrPasswordResetUnavailable, ErrEmailVerificationUnavailable, ErrTOTPUnavailable,
		ErrSessionBackendUnavailable, ErrSessionCreationFailed,
	}},
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}
	for _, entry := range auditCodes {
		for _, target := range entry.errs {
			if errors.Is(err, target) {
				return entry.code
			}
		}
	}
	return auditErrInternal
}
