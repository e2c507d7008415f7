package storefront

import (
	"context"
	"errors"
	"testing"
	"time"

	internalaudit "github.com/MrEthical07/storefront/internal/audit"
)

func TestEngineEmitsAuditEvents(t *testing.T) {
	cfg := testConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.DropIfFull = false

	_, rdb := newTestRedis(t)
	users := newMockUserProvider()
	notifier := &recordingNotifier{}
	sink := internalaudit.NewChannelSink(64)

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserProvider(users).
		WithNotifier(notifier).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	env := &testEnv{engine: engine, rdb: rdb, users: users, notifier: notifier}
	env.registerVerified(t, "audit@example.com", "correct-horse-1")

	ctx := WithUserAgent(WithClientIP(context.Background(), "203.0.113.9"), "audit-agent")
	if _, err := engine.Login(ctx, LoginInput{Email: "audit@example.com", Password: "bad-password-1"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	engine.Close()

	var failure *AuditEvent
	timeout := time.After(2 * time.Second)
	for failure == nil {
		select {
		case ev := <-sink.Events():
			if ev.EventType == auditEventLoginFailure {
				e := ev
				failure = &e
			}
		case <-timeout:
			t.Fatal("login_failure event not delivered")
		}
	}

	if failure.Success || failure.Error != string(auditErrInvalidCredentials) {
		t.Fatalf("unexpected failure event: %+v", failure)
	}
	if failure.IP != "203.0.113.9" || failure.UserAgent != "audit-agent" {
		t.Fatalf("request metadata missing: %+v", failure)
	}
}

func TestAuditErrorCodeMapping(t *testing.T) {
	cases := map[error]AuditErrorCode{
		nil:                          "",
		ErrInvalidCredentials:        auditErrInvalidCredentials,
		ErrTOTPRateLimited:           auditErrRateLimited,
		ErrRefreshReuse:              auditErrRefreshReuse,
		ErrPasswordResetInvalid:      auditErrInvalidToken,
		ErrUserExists:                auditErrDuplicate,
		ErrSessionBackendUnavailable: auditErrUnavailable,
		errors.New("something else"): auditErrInternal,
	}
	for err, want := range cases {
		if got := auditErrorCode(err); got != want {
			t.Fatalf("auditErrorCode(%v) = %q, want %q", err, got, want)
		}
	}
}
