package storefront

import "errors"

var (
	// ErrUnauthorized is returned when no valid credentials accompany a request.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials covers both an unknown email and a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound is returned by a UserProvider for a missing user.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists is returned by a UserProvider when the email is taken.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidInput is returned for missing or malformed request fields.
	ErrInvalidInput = errors.New("invalid input")
	// ErrPasswordPolicy is returned when a password is too short or too long.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrPasswordReuse is returned when the new password equals the current one.
	ErrPasswordReuse = errors.New("new password must be different from current password")
	// ErrAccountDisabled is returned for deactivated accounts.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrAccountUnverified is returned at login before the email is confirmed.
	ErrAccountUnverified = errors.New("email not verified")

	ErrLoginRateLimited           = errors.New("login rate limited")
	ErrRefreshRateLimited         = errors.New("refresh rate limited")
	ErrAccountCreationRateLimited = errors.New("account creation rate limited")

	ErrEmailVerificationInvalid     = errors.New("invalid or expired verification token")
	ErrEmailVerificationRateLimited = errors.New("email verification rate limited")
	ErrEmailVerificationUnavailable = errors.New("email verification backend unavailable")

	ErrPasswordResetInvalid     = errors.New("invalid or expired reset token")
	ErrPasswordResetRateLimited = errors.New("password reset rate limited")
	ErrPasswordResetUnavailable = errors.New("password reset backend unavailable")

	// ErrTOTPRequired is returned at login when 2FA is on and no code was sent.
	ErrTOTPRequired = errors.New("2FA code required")
	// ErrTOTPInvalid is returned for a wrong, stale or replayed code.
	ErrTOTPInvalid        = errors.New("invalid 2FA code")
	ErrTOTPRateLimited    = errors.New("2FA attempts rate limited")
	ErrTOTPNotConfigured  = errors.New("2FA not set up")
	ErrTOTPAlreadyEnabled = errors.New("2FA already enabled")
	ErrTOTPUnavailable    = errors.New("2FA backend unavailable")

	ErrSessionNotFound       = errors.New("session not found")
	ErrSessionCreationFailed = errors.New("session creation failed")
	ErrSessionLimitExceeded  = errors.New("session limit exceeded")

	// ErrTokenInvalid is returned for a malformed, expired or forged access token.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrSessionBackendUnavailable is returned when the session store cannot
	// be reached during strict validation or refresh.
	ErrSessionBackendUnavailable = errors.New("session backend unavailable")
	// ErrRefreshInvalid is returned for an unknown, expired or malformed refresh token.
	ErrRefreshInvalid = errors.New("invalid refresh token")
	// ErrRefreshReuse means an already rotated refresh token was presented.
	// The session it belonged to has been revoked.
	ErrRefreshReuse = errors.New("refresh token reuse detected")

	ErrPermissionDenied = errors.New("permission denied")
	ErrEngineNotReady   = errors.New("engine not initialized")
)
