package storefront

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/storefront/internal"
	"golang.org/x/crypto/bcrypt"
)

func TestLoginIssuesWorkingTokens(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.registerVerified(t, "alice@example.com", "correct-horse-1")

	ctx := WithUserAgent(WithClientIP(context.Background(), "10.0.0.1"), "test-agent")
	res, err := env.engine.Login(ctx, LoginInput{Email: " Alice@Example.com ", Password: "correct-horse-1"})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if res.AccessToken == "" || res.RefreshToken == "" {
		t.Fatal("expected both tokens")
	}
	if res.User.Email != "alice@example.com" || res.User.Role != RoleUser {
		t.Fatalf("unexpected user view: %+v", res.User)
	}

	auth, err := env.engine.Validate(ctx, res.AccessToken, ModeStrict)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if auth.UserID != res.User.ID || auth.Role != RoleUser {
		t.Fatalf("unexpected auth result: %+v", auth)
	}
	if env.engine.HasPermission(auth, PermProductsWrite) {
		t.Fatal("plain user must not write products")
	}

	history, err := env.engine.LoginHistory(ctx, res.User.ID)
	if err != nil {
		t.Fatalf("LoginHistory failed: %v", err)
	}
	if len(history) != 1 || history[0].IP != "10.0.0.1" || history[0].UserAgent != "test-agent" {
		t.Fatalf("unexpected history: %+v", history)
	}
}

func TestLoginRejectsBadCredentialsUniformly(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.registerVerified(t, "bob@example.com", "correct-horse-1")
	ctx := context.Background()

	_, errWrongPw := env.engine.Login(ctx, LoginInput{Email: "bob@example.com", Password: "wrong-password"})
	_, errNoUser := env.engine.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "wrong-password"})

	if !errors.Is(errWrongPw, ErrInvalidCredentials) || !errors.Is(errNoUser, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for both, got %v and %v", errWrongPw, errNoUser)
	}
}

func TestLoginRequiresVerifiedEmail(t *testing.T) {
	env := newTestEnv(t, testConfig())
	if _, err := env.engine.Register(context.Background(), RegisterInput{
		Name: "Carol", Email: "carol@example.com", Password: "correct-horse-1",
	}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	_, err := env.engine.Login(context.Background(), LoginInput{Email: "carol@example.com", Password: "correct-horse-1"})
	if !errors.Is(err, ErrAccountUnverified) {
		t.Fatalf("expected ErrAccountUnverified, got %v", err)
	}
}

func TestLoginRateLimitAfterRepeatedFailures(t *testing.T) {
	cfg := testConfig()
	cfg.Security.MaxLoginAttempts = 3
	env := newTestEnv(t, cfg)
	env.registerVerified(t, "dave@example.com", "correct-horse-1")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := env.engine.Login(ctx, LoginInput{Email: "dave@example.com", Password: "nope-nope-nope"})
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i, err)
		}
	}

	_, err := env.engine.Login(ctx, LoginInput{Email: "dave@example.com", Password: "correct-horse-1"})
	if !errors.Is(err, ErrLoginRateLimited) {
		t.Fatalf("expected ErrLoginRateLimited, got %v", err)
	}

	env.mr.FastForward(cfg.Security.LoginCooldownDuration + time.Second)
	if _, err := env.engine.Login(ctx, LoginInput{Email: "dave@example.com", Password: "correct-horse-1"}); err != nil {
		t.Fatalf("expected login after cooldown, got %v", err)
	}
}

func TestRefreshRotatesAndDetectsReuse(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.registerVerified(t, "erin@example.com", "correct-horse-1")
	ctx := context.Background()

	res, err := env.engine.Login(ctx, LoginInput{Email: "erin@example.com", Password: "correct-horse-1"})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	next, err := env.engine.Refresh(ctx, res.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if next.RefreshToken == res.RefreshToken {
		t.Fatal("refresh token must rotate")
	}

	if _, err := env.engine.Refresh(ctx, res.RefreshToken); !errors.Is(err, ErrRefreshReuse) {
		t.Fatalf("expected ErrRefreshReuse on replay, got %v", err)
	}
	// Reuse kills the session, so the legitimate successor is dead too.
	if _, err := env.engine.Refresh(ctx, next.RefreshToken); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("expected ErrRefreshInvalid after reuse, got %v", err)
	}
	if _, err := env.engine.Validate(ctx, next.AccessToken, ModeStrict); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound in strict mode, got %v", err)
	}
	if _, err := env.engine.Validate(ctx, next.AccessToken, ModeJWTOnly); err != nil {
		t.Fatalf("JWT-only validation should still pass, got %v", err)
	}
}

func TestRefreshRejectsGarbageAndExpired(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.registerVerified(t, "frank@example.com", "correct-horse-1")
	ctx := context.Background()

	if _, err := env.engine.Refresh(ctx, "not-a-token"); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("expected ErrRefreshInvalid, got %v", err)
	}

	res, err := env.engine.Login(ctx, LoginInput{Email: "frank@example.com", Password: "correct-horse-1"})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	env.mr.FastForward(env.engine.config.JWT.RefreshTTL + time.Second)
	if _, err := env.engine.Refresh(ctx, res.RefreshToken); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("expected ErrRefreshInvalid after expiry, got %v", err)
	}
}

func TestRefreshPicksUpRoleChange(t *testing.T) {
	env := newTestEnv(t, testConfig())
	user := env.registerVerified(t, "gina@example.com", "correct-horse-1")
	ctx := context.Background()

	res, err := env.engine.Login(ctx, LoginInput{Email: "gina@example.com", Password: "correct-horse-1"})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if err := env.users.SetRole(ctx, user.ID, RoleAdmin); err != nil {
		t.Fatalf("SetRole failed: %v", err)
	}

	next, err := env.engine.Refresh(ctx, res.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	auth, err := env.engine.Validate(ctx, next.AccessToken, ModeJWTOnly)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if auth.Role != RoleAdmin || !env.engine.HasPermission(auth, PermOrdersReadAll) {
		t.Fatalf("expected admin permissions after refresh, got %+v", auth)
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.registerVerified(t, "hank@example.com", "correct-horse-1")
	ctx := context.Background()

	res, err := env.engine.Login(ctx, LoginInput{Email: "hank@example.com", Password: "correct-horse-1"})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := env.engine.Logout(ctx, res.RefreshToken); err != nil {
			t.Fatalf("Logout %d failed: %v", i, err)
		}
	}
	if err := env.engine.Logout(ctx, "garbage"); err != nil {
		t.Fatalf("Logout with garbage should be a no-op, got %v", err)
	}
	if _, err := env.engine.Refresh(ctx, res.RefreshToken); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("expected ErrRefreshInvalid after logout, got %v", err)
	}
}

func TestLogoutIgnoresWrongSecret(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.registerVerified(t, "ivy@example.com", "correct-horse-1")
	ctx := context.Background()

	res, err := env.engine.Login(ctx, LoginInput{Email: "ivy@example.com", Password: "correct-horse-1"})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	sid, _, err := internal.DecodeToken(res.RefreshToken)
	if err != nil {
		t.Fatalf("DecodeToken failed: %v", err)
	}
	other, err := internal.NewSecret()
	if err != nil {
		t.Fatalf("NewSecret failed: %v", err)
	}
	forged, err := internal.EncodeToken(sid, other)
	if err != nil {
		t.Fatalf("EncodeToken failed: %v", err)
	}

	if err := env.engine.Logout(ctx, forged); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if _, err := env.engine.Validate(ctx, res.AccessToken, ModeStrict); err != nil {
		t.Fatalf("session should survive forged logout, got %v", err)
	}
}

func TestSessionsListRevokeAndLogoutAll(t *testing.T) {
	env := newTestEnv(t, testConfig())
	user := env.registerVerified(t, "jane@example.com", "correct-horse-1")
	ctx := context.Background()

	first, err := env.engine.Login(ctx, LoginInput{Email: "jane@example.com", Password: "correct-horse-1"})
	if err != nil {
		t.Fatalf("first Login failed: %v", err)
	}
	second, err := env.engine.Login(ctx, LoginInput{Email: "jane@example.com", Password: "correct-horse-1"})
	if err != nil {
		t.Fatalf("second Login failed: %v", err)
	}
	auth, err := env.engine.Validate(ctx, second.AccessToken, ModeStrict)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	sessions, err := env.engine.ListSessions(WithSessionID(ctx, auth.SessionID), user.ID)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	var current int
	for _, s := range sessions {
		if s.Current {
			current++
			if s.ID != auth.SessionID {
				t.Fatalf("wrong session flagged current: %s", s.ID)
			}
		}
	}
	if current != 1 {
		t.Fatalf("expected exactly one current session, got %d", current)
	}

	if err := env.engine.RevokeSession(ctx, "someone-else", auth.SessionID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound for foreign session, got %v", err)
	}
	if err := env.engine.RevokeSession(ctx, user.ID, auth.SessionID); err != nil {
		t.Fatalf("RevokeSession failed: %v", err)
	}
	if _, err := env.engine.Validate(ctx, second.AccessToken, ModeStrict); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected revoked session, got %v", err)
	}

	if err := env.engine.LogoutAll(ctx, user.ID); err != nil {
		t.Fatalf("LogoutAll failed: %v", err)
	}
	if _, err := env.engine.Refresh(ctx, first.RefreshToken); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("expected ErrRefreshInvalid after LogoutAll, got %v", err)
	}
}

func TestMaxSessionsPerUser(t *testing.T) {
	cfg := testConfig()
	cfg.Session.MaxSessionsPerUser = 1
	env := newTestEnv(t, cfg)
	env.registerVerified(t, "kim@example.com", "correct-horse-1")
	ctx := context.Background()

	if _, err := env.engine.Login(ctx, LoginInput{Email: "kim@example.com", Password: "correct-horse-1"}); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if _, err := env.engine.Login(ctx, LoginInput{Email: "kim@example.com", Password: "correct-horse-1"}); !errors.Is(err, ErrSessionLimitExceeded) {
		t.Fatalf("expected ErrSessionLimitExceeded, got %v", err)
	}
}

func TestValidateRejectsTamperedToken(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.registerVerified(t, "leo@example.com", "correct-horse-1")
	ctx := context.Background()

	res, err := env.engine.Login(ctx, LoginInput{Email: "leo@example.com", Password: "correct-horse-1"})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	tampered := res.AccessToken[:len(res.AccessToken)-2] + "xx"
	if _, err := env.engine.Validate(ctx, tampered, ModeJWTOnly); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
	if _, err := env.engine.Validate(ctx, "", ModeJWTOnly); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for empty token, got %v", err)
	}
}

func TestLoginUpgradesLegacyBcryptHash(t *testing.T) {
	env := newTestEnv(t, testConfig())
	user := env.registerVerified(t, "legacy@example.com", "correct-horse-1")
	ctx := context.Background()

	legacy, err := bcrypt.GenerateFromPassword([]byte("correct-horse-1"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	if err := env.users.update(user.ID, func(u *User) { u.PasswordHash = string(legacy) }); err != nil {
		t.Fatalf("seed legacy hash: %v", err)
	}

	if _, err := env.engine.Login(ctx, LoginInput{Email: "legacy@example.com", Password: "correct-horse-1"}); err != nil {
		t.Fatalf("Login with bcrypt hash failed: %v", err)
	}

	stored, err := env.users.GetUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if !strings.HasPrefix(stored.PasswordHash, "$argon2id$") {
		t.Fatalf("expected hash rewritten as argon2id, got %q", stored.PasswordHash)
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricPasswordHashUpgraded]; got != 1 {
		t.Fatalf("expected one hash upgrade, got %d", got)
	}

	// The upgraded hash still verifies and is not rewritten again.
	if _, err := env.engine.Login(ctx, LoginInput{Email: "legacy@example.com", Password: "correct-horse-1"}); err != nil {
		t.Fatalf("Login with upgraded hash failed: %v", err)
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricPasswordHashUpgraded]; got != 1 {
		t.Fatalf("expected no second upgrade, got %d", got)
	}
}
