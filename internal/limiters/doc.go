// Package limiters provides the service's per-flow rate limiters built on
// the internal/rate fixed-window counter.
//
//   - [AccountCreationLimiter] throttles registration per email and per IP.
//   - [EmailVerificationLimiter] throttles verification requests and confirms.
//   - [PasswordResetLimiter] throttles reset requests and confirms.
//   - [TOTPLimiter] counts failed TOTP codes per user.
//
// All limiters are nil-safe: calling any method on a nil receiver returns nil.
// Each limiter owns its key namespace below the configured prefix.
package limiters
