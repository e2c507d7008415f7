package storefront

import (
	"errors"
	"strings"

	"github.com/MrEthical07/storefront/internal/limiters"
	"github.com/MrEthical07/storefront/internal/rate"
	"github.com/MrEthical07/storefront/internal/stores"
	"github.com/MrEthical07/storefront/jwt"
	"github.com/MrEthical07/storefront/password"
	"github.com/MrEthical07/storefront/permission"
	"github.com/MrEthical07/storefront/session"
	"github.com/redis/go-redis/v9"
)

// DefaultPermissions lists every permission the service checks.
func DefaultPermissions() []string {
	return []string{PermProductsWrite, PermOrdersReadAll, PermOrdersWriteAny}
}

// DefaultRoles maps the built-in roles to permissions. "*" grants all.
func DefaultRoles() map[string][]string {
	return map[string][]string{
		RoleUser:  {},
		RoleAdmin: {"*"},
	}
}

// Builder assembles an [Engine]. A Builder can be used once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	permissions []string
	roles       map[string][]string

	userProvider UserProvider
	notifier     Notifier
	auditSink    AuditSink

	built bool
}

// New returns a Builder seeded with [DefaultConfig], [DefaultPermissions]
// and [DefaultRoles].
func New() *Builder {
	return &Builder{
		config:      DefaultConfig(),
		permissions: DefaultPermissions(),
		roles:       DefaultRoles(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithPermissions(perms []string) *Builder {
	b.permissions = perms
	return b
}

func (b *Builder) WithRoles(r map[string][]string) *Builder {
	b.roles = r
	return b
}

func (b *Builder) WithUserProvider(up UserProvider) *Builder {
	b.userProvider = up
	return b
}

// WithNotifier sets the link sender. Without one, verification and reset
// challenges are still stored but nothing is sent.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and wires every component.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(b.roles) == 0 {
		return nil, errors.New("roles must be provided")
	}
	if b.userProvider == nil {
		return nil, errors.New("user provider required")
	}

	// -------- PERMISSION REGISTRY --------
	registry := permission.NewRegistry(true)
	for _, p := range b.permissions {
		if _, err := registry.Register(p); err != nil {
			return nil, err
		}
	}
	registry.Freeze()

	// -------- ROLE MANAGER --------
	roleManager := permission.NewRoleManager(registry)
	for roleName, permList := range b.roles {
		if err := roleManager.RegisterRole(roleName, permList); err != nil {
			return nil, err
		}
	}
	roleManager.Freeze()

	if _, ok := roleManager.GetMask(cfg.Account.DefaultRole); !ok {
		return nil, errors.New("Account DefaultRole does not exist in role manager")
	}

	prefix := cfg.Session.RedisPrefix

	engine := &Engine{
		config:       cfg,
		registry:     registry,
		roleManager:  roleManager,
		sessionStore: session.NewStore(b.redis, prefix),
		userProvider: b.userProvider,
		notifier:     b.notifier,
	}

	engine.rateLimiter = rate.New(b.redis, rate.Config{
		Prefix:                  prefix,
		EnableIPThrottle:        cfg.Security.EnableIPThrottle,
		EnableRefreshThrottle:   cfg.Security.EnableRefreshThrottle,
		MaxLoginAttempts:        cfg.Security.MaxLoginAttempts,
		LoginCooldownDuration:   cfg.Security.LoginCooldownDuration,
		MaxRefreshAttempts:      cfg.Security.MaxRefreshAttempts,
		RefreshCooldownDuration: cfg.Security.RefreshCooldownDuration,
	})
	engine.accountLimiter = limiters.NewAccountCreationLimiter(b.redis, limiters.AccountConfig{
		Prefix:                   prefix,
		EnableIdentifierThrottle: cfg.Account.EnableIdentifierThrottle,
		EnableIPThrottle:         cfg.Account.EnableIPThrottle,
		MaxAttempts:              cfg.Account.AccountCreationMaxAttempts,
		Cooldown:                 cfg.Account.AccountCreationCooldown,
	})
	if cfg.PasswordReset.Enabled {
		engine.resetStore = stores.NewChallengeStore(b.redis, prefix+":pr")
		engine.resetLimiter = limiters.NewPasswordResetLimiter(b.redis, limiters.PasswordResetConfig{
			Prefix:                   prefix,
			EnableIdentifierThrottle: cfg.PasswordReset.EnableIdentifierThrottle,
			EnableIPThrottle:         cfg.PasswordReset.EnableIPThrottle,
			Window:                   cfg.PasswordReset.ResetTTL,
			MaxAttempts:              cfg.PasswordReset.MaxAttempts,
		})
	}
	if cfg.EmailVerification.Enabled {
		engine.verificationStore = stores.NewChallengeStore(b.redis, prefix+":ev")
		engine.verificationLimiter = limiters.NewEmailVerificationLimiter(b.redis, limiters.EmailVerificationConfig{
			Prefix:                   prefix,
			EnableIdentifierThrottle: cfg.EmailVerification.EnableIdentifierThrottle,
			EnableIPThrottle:         cfg.EmailVerification.EnableIPThrottle,
			Window:                   cfg.EmailVerification.VerificationTTL,
			MaxAttempts:              cfg.EmailVerification.MaxAttempts,
		})
	}
	engine.totpLimiter = limiters.NewTOTPLimiter(b.redis, limiters.TOTPLimiterConfig{
		Prefix:      prefix,
		MaxAttempts: cfg.TOTP.MaxAttempts,
		Cooldown:    cfg.TOTP.Cooldown,
	})
	engine.metrics = NewMetrics(cfg.Metrics)
	engine.totp = newTOTPManager(cfg.TOTP)

	ph, err := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}
	engine.passwordHash = ph

	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		SigningMethod: jwt.SigningMethod(strings.ToLower(cfg.JWT.SigningMethod)),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
	})
	if err != nil {
		return nil, err
	}
	engine.jwtManager = jm

	// Started last so a failed build leaves no delivery goroutine behind.
	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink)

	b.built = true
	return engine, nil
}
