package storefront

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/storefront/internal"
	internalaudit "github.com/MrEthical07/storefront/internal/audit"
	"github.com/MrEthical07/storefront/internal/limiters"
	"github.com/MrEthical07/storefront/internal/rate"
	"github.com/MrEthical07/storefront/internal/stores"
	"github.com/MrEthical07/storefront/jwt"
	"github.com/MrEthical07/storefront/password"
	"github.com/MrEthical07/storefront/permission"
	"github.com/MrEthical07/storefront/session"
)

// Engine runs every account operation: registration, login, token
// rotation, sessions, 2FA and password recovery. Build one with [New];
// it is safe for concurrent use.
type Engine struct {
	config              Config
	registry            *permission.Registry
	roleManager         *permission.RoleManager
	sessionStore        *session.Store
	rateLimiter         *rate.Limiter
	accountLimiter      *limiters.AccountCreationLimiter
	resetStore          *stores.ChallengeStore
	resetLimiter        *limiters.PasswordResetLimiter
	verificationStore   *stores.ChallengeStore
	verificationLimiter *limiters.EmailVerificationLimiter
	totpLimiter         *limiters.TOTPLimiter
	audit               *internalaudit.Dispatcher
	metrics             *Metrics
	passwordHash        *password.Hasher
	totp                *totpManager
	jwtManager          *jwt.Manager
	userProvider        UserProvider
	notifier            Notifier
}

// Close drains the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Ping checks the session backend.
func (e *Engine) Ping(ctx context.Context) error {
	if e == nil || e.sessionStore == nil {
		return ErrEngineNotReady
	}
	_, err := e.sessionStore.Ping(ctx)
	return err
}

// Login authenticates by email and password, and by TOTP code when the
// account has 2FA. On success it opens a session, records the login in
// the user's history and returns a token pair.
func (e *Engine) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	if e.passwordHash == nil || e.userProvider == nil {
		return nil, ErrEngineNotReady
	}
	email := normalizeEmail(in.Email)
	ip := clientIPFromContext(ctx)

	if err := e.rateLimiter.CheckLogin(ctx, email, ip); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			e.metricInc(MetricLoginRateLimited)
			e.emitAudit(ctx, auditEventLoginRateLimited, false, "", "", ErrLoginRateLimited, func() map[string]string {
				return map[string]string{"email": email}
			})
			return nil, ErrLoginRateLimited
		}
		return nil, err
	}

	user, err := e.checkPassword(ctx, email, in.Password)
	if err != nil {
		return nil, err
	}

	if !user.Active {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, "", ErrAccountDisabled, nil)
		return nil, ErrAccountDisabled
	}
	if e.config.EmailVerification.RequireForLogin && !user.Verified {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, "", ErrAccountUnverified, nil)
		return nil, ErrAccountUnverified
	}

	if user.TOTP.Enabled {
		if strings.TrimSpace(in.TOTPCode) == "" {
			e.metricInc(MetricTOTPRequired)
			e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, "", ErrTOTPRequired, nil)
			return nil, ErrTOTPRequired
		}
		if err := e.verifyUserTOTP(ctx, user, user.TOTP.Secret, in.TOTPCode); err != nil {
			e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, "", err, nil)
			return nil, err
		}
	}

	_ = e.rateLimiter.ResetLogin(ctx, email)
	e.upgradeHashIfNeeded(ctx, user, in.Password)

	pair, sid, err := e.issueSession(ctx, user)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, "", err, nil)
		return nil, err
	}

	record := LoginRecord{
		IP:        ip,
		UserAgent: userAgentFromContext(ctx),
		Date:      time.Now().UTC(),
	}
	historyErr := e.userProvider.AppendLoginHistory(ctx, user.ID, record, e.config.LoginHistoryLimit)

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, user.ID, sid, nil, func() map[string]string {
		if historyErr != nil {
			return map[string]string{"history_error": historyErr.Error()}
		}
		return nil
	})

	return &LoginResult{TokenPair: *pair, User: user.Public()}, nil
}

// checkPassword resolves email and verifies password, counting failures
// against the login limiter. Unknown emails still pay for one hash
// verification.
func (e *Engine) checkPassword(ctx context.Context, email, pw string) (*User, error) {
	fail := func(userID string) (*User, error) {
		_ = e.rateLimiter.IncrementLogin(ctx, email, clientIPFromContext(ctx))
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, userID, "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{"email": email}
		})
		return nil, ErrInvalidCredentials
	}

	if email == "" || pw == "" {
		return fail("")
	}

	user, err := e.userProvider.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.burnHash(pw)
			return fail("")
		}
		return nil, err
	}

	ok, err := e.passwordHash.Verify(pw, user.PasswordHash)
	if err != nil || !ok {
		return fail(user.ID)
	}
	return user, nil
}

func (e *Engine) burnHash(pw string) {
	_, _ = e.passwordHash.Hash(pw)
}

func (e *Engine) upgradeHashIfNeeded(ctx context.Context, user *User, pw string) {
	if !e.config.Password.UpgradeOnLogin {
		return
	}
	needs, err := e.passwordHash.NeedsUpgrade(user.PasswordHash)
	if err != nil || !needs {
		return
	}
	hash, err := e.passwordHash.Hash(pw)
	if err != nil {
		return
	}
	if err := e.userProvider.UpdatePasswordHash(ctx, user.ID, hash); err == nil {
		e.metricInc(MetricPasswordHashUpgraded)
	}
}

// issueSession stores a new session for user and returns its token pair
// and session ID.
func (e *Engine) issueSession(ctx context.Context, user *User) (*TokenPair, string, error) {
	if limit := e.config.Session.MaxSessionsPerUser; limit > 0 {
		count, err := e.sessionStore.ActiveSessionCount(ctx, user.ID)
		if err != nil {
			return nil, "", ErrSessionCreationFailed
		}
		if count >= limit {
			return nil, "", ErrSessionLimitExceeded
		}
	}

	id, err := internal.NewID()
	if err != nil {
		return nil, "", ErrSessionCreationFailed
	}
	secret, err := internal.NewSecret()
	if err != nil {
		return nil, "", ErrSessionCreationFailed
	}

	sid := id.String()
	perms := e.roleMask(user.Role)
	now := time.Now()
	sess := &session.Session{
		SessionID:   sid,
		UserID:      user.ID,
		Role:        user.Role,
		Perms:       perms,
		RefreshHash: secret.Hash(),
		UserAgent:   userAgentFromContext(ctx),
		IP:          clientIPFromContext(ctx),
		CreatedAt:   now.Unix(),
		ExpiresAt:   now.Add(e.config.JWT.RefreshTTL).Unix(),
	}
	if err := e.sessionStore.Save(ctx, sess, e.config.JWT.RefreshTTL); err != nil {
		return nil, "", ErrSessionCreationFailed
	}

	pair, err := e.tokenPair(user.ID, sid, user.Role, perms, secret)
	if err != nil {
		_ = e.sessionStore.Delete(ctx, sid)
		return nil, "", err
	}

	e.metricInc(MetricSessionCreated)
	return pair, sid, nil
}

func (e *Engine) tokenPair(userID, sid, role string, perms uint64, secret internal.Secret) (*TokenPair, error) {
	access, err := e.jwtManager.CreateAccess(userID, sid, role, perms)
	if err != nil {
		return nil, ErrSessionCreationFailed
	}
	refresh, err := internal.EncodeToken(sid, secret)
	if err != nil {
		return nil, ErrSessionCreationFailed
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    e.jwtManager.AccessTTL(),
	}, nil
}

func (e *Engine) roleMask(role string) uint64 {
	mask, ok := e.roleManager.GetMask(role)
	if !ok {
		return 0
	}
	return mask.Raw()
}

// Refresh rotates a refresh token. Each refresh token works once; a second
// presentation revokes the whole session and returns [ErrRefreshReuse].
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	sid, presented, err := internal.DecodeToken(refreshToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", "", ErrRefreshInvalid, nil)
		return nil, ErrRefreshInvalid
	}

	if err := e.rateLimiter.CheckRefresh(ctx, sid); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			e.metricInc(MetricRefreshRateLimited)
			e.emitAudit(ctx, auditEventRefreshRateLimited, false, "", sid, ErrRefreshRateLimited, nil)
			return nil, ErrRefreshRateLimited
		}
		return nil, ErrSessionBackendUnavailable
	}

	next, err := internal.NewSecret()
	if err != nil {
		return nil, ErrSessionCreationFailed
	}

	sess, err := e.sessionStore.RotateRefreshHash(ctx, sid, presented.Hash(), next.Hash())
	if err != nil {
		switch {
		case errors.Is(err, session.ErrRefreshHashMismatch):
			e.metricInc(MetricRefreshReuseDetected)
			e.metricInc(MetricSessionInvalidated)
			e.emitAudit(ctx, auditEventRefreshReuseDetected, false, "", sid, ErrRefreshReuse, nil)
			return nil, ErrRefreshReuse
		case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrCorrupt):
			e.metricInc(MetricRefreshFailure)
			e.emitAudit(ctx, auditEventRefreshInvalid, false, "", sid, ErrRefreshInvalid, nil)
			return nil, ErrRefreshInvalid
		default:
			e.metricInc(MetricRefreshFailure)
			return nil, fmt.Errorf("%w: %v", ErrSessionBackendUnavailable, err)
		}
	}

	// Role changes and deactivation take effect at the next refresh.
	role, perms := sess.Role, sess.Perms
	if user, err := e.userProvider.GetUserByID(ctx, sess.UserID); err == nil {
		if !user.Active {
			_ = e.sessionStore.Delete(ctx, sid)
			e.metricInc(MetricRefreshFailure)
			e.emitAudit(ctx, auditEventRefreshInvalid, false, sess.UserID, sid, ErrAccountDisabled, nil)
			return nil, ErrRefreshInvalid
		}
		role, perms = user.Role, e.roleMask(user.Role)
	} else if errors.Is(err, ErrUserNotFound) {
		_ = e.sessionStore.Delete(ctx, sid)
		return nil, ErrRefreshInvalid
	}

	pair, err := e.tokenPair(sess.UserID, sid, role, perms, next)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, sess.UserID, sid, nil, nil)
	return pair, nil
}

// Validate verifies an access token. In [ModeStrict] the session named by
// the token must still exist.
func (e *Engine) Validate(ctx context.Context, accessToken string, mode ValidationMode) (*AuthResult, error) {
	start := time.Now()
	defer func() {
		if e.metrics != nil {
			e.metrics.Observe(MetricValidateLatency, time.Since(start))
		}
	}()

	claims, err := e.jwtManager.ParseAccess(accessToken)
	if err != nil || claims.UID == "" || claims.SID == "" {
		return nil, ErrTokenInvalid
	}

	if mode == ModeStrict {
		sess, err := e.sessionStore.Get(ctx, claims.SID)
		if err != nil {
			if errors.Is(err, session.ErrNotFound) || errors.Is(err, session.ErrCorrupt) {
				return nil, ErrSessionNotFound
			}
			return nil, ErrSessionBackendUnavailable
		}
		if sess.UserID != claims.UID {
			return nil, ErrTokenInvalid
		}
	}

	mask := permission.Mask64(claims.Perms)
	return &AuthResult{
		UserID:      claims.UID,
		SessionID:   claims.SID,
		Role:        claims.Role,
		Perms:       claims.Perms,
		Permissions: e.registry.Names(mask),
	}, nil
}

// HasPermission reports whether the validated caller holds perm.
func (e *Engine) HasPermission(result *AuthResult, perm string) bool {
	if result == nil {
		return false
	}
	return e.roleManager.Has(permission.Mask64(result.Perms), perm)
}

// Logout ends the session behind refreshToken. Unknown or malformed
// tokens are ignored.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	sid, secret, err := internal.DecodeToken(refreshToken)
	if err != nil {
		return nil
	}
	sess, err := e.sessionStore.Get(ctx, sid)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) || errors.Is(err, session.ErrCorrupt) {
			return nil
		}
		return ErrSessionBackendUnavailable
	}
	presented := secret.Hash()
	if subtle.ConstantTimeCompare(sess.RefreshHash[:], presented[:]) != 1 {
		return nil
	}
	if err := e.sessionStore.Delete(ctx, sid); err != nil {
		return ErrSessionBackendUnavailable
	}

	e.metricInc(MetricLogout)
	e.metricInc(MetricSessionInvalidated)
	e.emitAudit(ctx, auditEventLogoutSession, true, sess.UserID, sid, nil, nil)
	return nil
}

// LogoutAll ends every session of userID.
func (e *Engine) LogoutAll(ctx context.Context, userID string) error {
	n, err := e.sessionStore.DeleteAllForUser(ctx, userID)
	if err != nil {
		return ErrSessionBackendUnavailable
	}
	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, auditEventLogoutAll, true, userID, "", nil, func() map[string]string {
		return map[string]string{"sessions": fmt.Sprint(n)}
	})
	return nil
}

// ListSessions returns the user's live sessions, newest first. The one
// named by [WithSessionID] is flagged as current.
func (e *Engine) ListSessions(ctx context.Context, userID string) ([]SessionInfo, error) {
	sessions, err := e.sessionStore.ListForUser(ctx, userID)
	if err != nil {
		return nil, ErrSessionBackendUnavailable
	}
	current := sessionIDFromContext(ctx)

	out := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, SessionInfo{
			ID:        s.SessionID,
			UserAgent: s.UserAgent,
			IP:        s.IP,
			CreatedAt: time.Unix(s.CreatedAt, 0).UTC(),
			ExpiresAt: time.Unix(s.ExpiresAt, 0).UTC(),
			Current:   s.SessionID == current,
		})
	}
	return out, nil
}

// RevokeSession deletes one of the caller's sessions. Sessions owned by
// other users are reported as not found.
func (e *Engine) RevokeSession(ctx context.Context, userID, sessionID string) error {
	sess, err := e.sessionStore.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) || errors.Is(err, session.ErrCorrupt) {
			return ErrSessionNotFound
		}
		return ErrSessionBackendUnavailable
	}
	if sess.UserID != userID {
		return ErrSessionNotFound
	}
	if err := e.sessionStore.Delete(ctx, sessionID); err != nil {
		return ErrSessionBackendUnavailable
	}
	e.metricInc(MetricSessionInvalidated)
	e.emitAudit(ctx, auditEventSessionRevoked, true, userID, sessionID, nil, nil)
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
