package storefront

import (
	"errors"
	"strings"
	"time"
)

// ValidationMode selects how much work [Engine.Validate] does.
type ValidationMode int

const (
	// ModeJWTOnly checks signature and claims only.
	ModeJWTOnly ValidationMode = iota
	// ModeStrict also requires the session to still exist in Redis, so a
	// revoked session is rejected before its access token expires.
	ModeStrict
)

// Config is the engine configuration. Start from [DefaultConfig] and
// override fields; [Config.Validate] runs inside Build.
type Config struct {
	JWT               JWTConfig
	Session           SessionConfig
	Password          PasswordConfig
	PasswordReset     PasswordResetConfig
	EmailVerification EmailVerificationConfig
	Account           AccountConfig
	TOTP              TOTPConfig
	Security          SecurityConfig
	Audit             AuditConfig
	Metrics           MetricsConfig
	LoginHistoryLimit int
	ValidationMode    ValidationMode
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig controls access token signing and refresh lifetime.
type JWTConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls Redis session storage.
type SessionConfig struct {
	RedisPrefix        string
	MaxSessionsPerUser int // 0 = unlimited
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds Argon2id parameters and the length policy.
type PasswordConfig struct {
	Memory         uint32 // in KB
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	MinLength      int
	MaxLength      int
	UpgradeOnLogin bool
}

// PasswordResetConfig controls forgot/reset password links.
type PasswordResetConfig struct {
	Enabled                  bool
	ResetTTL                 time.Duration
	MaxAttempts              int
	EnableIPThrottle         bool
	EnableIdentifierThrottle bool
	// MinResponseTime pads RequestPasswordReset so known and unknown
	// emails take the same time.
	MinResponseTime time.Duration
}

// EmailVerificationConfig controls verification links.
type EmailVerificationConfig struct {
	Enabled                  bool
	VerificationTTL          time.Duration
	MaxAttempts              int
	RequireForLogin          bool
	EnableIPThrottle         bool
	EnableIdentifierThrottle bool
}

// AccountConfig controls self-registration.
type AccountConfig struct {
	EnableIPThrottle           bool
	EnableIdentifierThrottle   bool
	AccountCreationMaxAttempts int
	AccountCreationCooldown    time.Duration
	DefaultRole                string
}

// TOTPConfig controls 2FA enrolment and verification.
type TOTPConfig struct {
	Issuer      string
	SecretSize  uint
	Period      uint
	Skew        uint
	MaxAttempts int
	Cooldown    time.Duration
	QRSize      int
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig holds login and refresh throttling.
type SecurityConfig struct {
	EnableIPThrottle        bool
	EnableRefreshThrottle   bool
	MaxLoginAttempts        int
	LoginCooldownDuration   time.Duration
	MaxRefreshAttempts      int
	RefreshCooldownDuration time.Duration
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig toggles in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns production defaults: 15 minute access tokens,
// 7 day refresh tokens, 1 hour reset links, 24 hour verification links
// and a login history of 10 entries.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			SigningMethod: "hs256",
			Issuer:        "storefront",
			Leeway:        30 * time.Second,
		},
		Session: SessionConfig{
			RedisPrefix: "sf",
		},
		Password: PasswordConfig{
			Memory:         64 * 1024,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			MinLength:      8,
			MaxLength:      128,
			UpgradeOnLogin: true,
		},
		PasswordReset: PasswordResetConfig{
			Enabled:                  true,
			ResetTTL:                 time.Hour,
			MaxAttempts:              5,
			EnableIPThrottle:         true,
			EnableIdentifierThrottle: true,
			MinResponseTime:          250 * time.Millisecond,
		},
		EmailVerification: EmailVerificationConfig{
			Enabled:                  true,
			VerificationTTL:          24 * time.Hour,
			MaxAttempts:              5,
			RequireForLogin:          true,
			EnableIPThrottle:         true,
			EnableIdentifierThrottle: true,
		},
		Account: AccountConfig{
			EnableIPThrottle:           true,
			EnableIdentifierThrottle:   true,
			AccountCreationMaxAttempts: 5,
			AccountCreationCooldown:    15 * time.Minute,
			DefaultRole:                RoleUser,
		},
		TOTP: TOTPConfig{
			Issuer:      "Ecommerce",
			SecretSize:  20,
			Period:      30,
			Skew:        1,
			MaxAttempts: 5,
			Cooldown:    time.Minute,
			QRSize:      200,
		},
		Security: SecurityConfig{
			EnableIPThrottle:        true,
			EnableRefreshThrottle:   true,
			MaxLoginAttempts:        5,
			LoginCooldownDuration:   15 * time.Minute,
			MaxRefreshAttempts:      20,
			RefreshCooldownDuration: time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
		LoginHistoryLimit: 10,
		ValidationMode:    ModeJWTOnly,
	}
}

// Validate rejects configurations that cannot run safely.
func (c *Config) Validate() error {
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must exceed AccessTTL")
	}
	switch strings.ToLower(c.JWT.SigningMethod) {
	case "hs256":
		if len(c.JWT.PrivateKey) < 32 {
			return errors.New("hs256 signing key must be at least 32 bytes")
		}
	case "ed25519":
		if len(c.JWT.PrivateKey) == 0 && len(c.JWT.PublicKey) == 0 {
			return errors.New("ed25519 requires a key")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}

	if strings.TrimSpace(c.Session.RedisPrefix) == "" {
		return errors.New("Session RedisPrefix must not be empty")
	}
	if c.Session.MaxSessionsPerUser < 0 {
		return errors.New("Session MaxSessionsPerUser must be >= 0")
	}

	if c.Password.MinLength < 1 || c.Password.MaxLength < c.Password.MinLength {
		return errors.New("Password length policy invalid")
	}

	if c.PasswordReset.Enabled {
		if c.PasswordReset.ResetTTL <= 0 {
			return errors.New("PasswordReset ResetTTL must be > 0")
		}
		if c.PasswordReset.MaxAttempts <= 0 {
			return errors.New("PasswordReset MaxAttempts must be > 0")
		}
	}
	if c.EmailVerification.Enabled {
		if c.EmailVerification.VerificationTTL <= 0 {
			return errors.New("EmailVerification VerificationTTL must be > 0")
		}
		if c.EmailVerification.MaxAttempts <= 0 {
			return errors.New("EmailVerification MaxAttempts must be > 0")
		}
	}
	if c.EmailVerification.RequireForLogin && !c.EmailVerification.Enabled {
		return errors.New("EmailVerification RequireForLogin needs verification enabled")
	}

	if c.Account.AccountCreationMaxAttempts <= 0 || c.Account.AccountCreationCooldown <= 0 {
		return errors.New("Account creation throttle must be > 0")
	}
	if c.Account.DefaultRole == "" {
		return errors.New("Account DefaultRole must not be empty")
	}

	if c.TOTP.Issuer == "" {
		return errors.New("TOTP Issuer must not be empty")
	}
	if c.TOTP.SecretSize < 10 {
		return errors.New("TOTP SecretSize must be >= 10 bytes")
	}
	if c.TOTP.Period == 0 || c.TOTP.Skew > 3 {
		return errors.New("TOTP Period must be > 0 and Skew <= 3")
	}

	if c.Security.MaxLoginAttempts <= 0 || c.Security.LoginCooldownDuration <= 0 {
		return errors.New("Security login throttle must be > 0")
	}
	if c.Security.EnableRefreshThrottle &&
		(c.Security.MaxRefreshAttempts <= 0 || c.Security.RefreshCooldownDuration <= 0) {
		return errors.New("Security refresh throttle must be > 0")
	}

	if c.LoginHistoryLimit <= 0 {
		return errors.New("LoginHistoryLimit must be > 0")
	}
	if c.ValidationMode != ModeJWTOnly && c.ValidationMode != ModeStrict {
		return errors.New("invalid ValidationMode")
	}
	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(in []byte) []byte {
	if in == nil {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}
