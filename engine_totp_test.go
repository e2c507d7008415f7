package storefront

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

func codeAt(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	code, err := totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
		Period:    30,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		t.Fatalf("GenerateCodeCustom failed: %v", err)
	}
	return code
}

func wrongCode(code string) string {
	if code[0] == '0' {
		return "1" + code[1:]
	}
	return "0" + code[1:]
}

func enableTOTP(t *testing.T, env *testEnv, userID string) string {
	t.Helper()
	ctx := context.Background()

	setup, err := env.engine.SetupTOTP(ctx, userID)
	if err != nil {
		t.Fatalf("SetupTOTP failed: %v", err)
	}
	if err := env.engine.ConfirmTOTPSetup(ctx, userID, codeAt(t, setup.Secret, time.Now())); err != nil {
		t.Fatalf("ConfirmTOTPSetup failed: %v", err)
	}
	return setup.Secret
}

func TestSetupTOTPReturnsEnrolment(t *testing.T) {
	env := newTestEnv(t, testConfig())
	user := env.registerVerified(t, "totp1@example.com", "correct-horse-1")

	setup, err := env.engine.SetupTOTP(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("SetupTOTP failed: %v", err)
	}
	if !strings.HasPrefix(setup.URL, "otpauth://totp/") || !strings.Contains(setup.URL, "issuer=Ecommerce") {
		t.Fatalf("unexpected otpauth url: %s", setup.URL)
	}
	if !strings.HasPrefix(setup.QRCode, "data:image/png;base64,") {
		t.Fatal("expected PNG data url")
	}

	stored, _ := env.users.GetUserByID(context.Background(), user.ID)
	if stored.TOTP.Enabled || stored.TOTP.PendingSecret != setup.Secret {
		t.Fatalf("expected pending secret only, got %+v", stored.TOTP)
	}
}

func TestConfirmTOTPSetupRejectsWrongCode(t *testing.T) {
	env := newTestEnv(t, testConfig())
	user := env.registerVerified(t, "totp2@example.com", "correct-horse-1")
	ctx := context.Background()

	if err := env.engine.ConfirmTOTPSetup(ctx, user.ID, "123456"); !errors.Is(err, ErrTOTPNotConfigured) {
		t.Fatalf("expected ErrTOTPNotConfigured before setup, got %v", err)
	}

	setup, err := env.engine.SetupTOTP(ctx, user.ID)
	if err != nil {
		t.Fatalf("SetupTOTP failed: %v", err)
	}
	valid := codeAt(t, setup.Secret, time.Now())
	if err := env.engine.ConfirmTOTPSetup(ctx, user.ID, wrongCode(valid)); !errors.Is(err, ErrTOTPInvalid) {
		t.Fatalf("expected ErrTOTPInvalid, got %v", err)
	}
	if err := env.engine.ConfirmTOTPSetup(ctx, user.ID, valid); err != nil {
		t.Fatalf("ConfirmTOTPSetup failed: %v", err)
	}
	if _, err := env.engine.SetupTOTP(ctx, user.ID); !errors.Is(err, ErrTOTPAlreadyEnabled) {
		t.Fatalf("expected ErrTOTPAlreadyEnabled, got %v", err)
	}
}

func TestLoginWithTOTP(t *testing.T) {
	env := newTestEnv(t, testConfig())
	user := env.registerVerified(t, "totp3@example.com", "correct-horse-1")
	secret := enableTOTP(t, env, user.ID)
	ctx := context.Background()

	in := LoginInput{Email: "totp3@example.com", Password: "correct-horse-1"}
	if _, err := env.engine.Login(ctx, in); !errors.Is(err, ErrTOTPRequired) {
		t.Fatalf("expected ErrTOTPRequired, got %v", err)
	}

	// The setup code consumed the current step; the next one is still
	// inside the skew window.
	in.TOTPCode = codeAt(t, secret, time.Now())
	if _, err := env.engine.Login(ctx, in); !errors.Is(err, ErrTOTPInvalid) {
		t.Fatalf("expected replayed code to fail, got %v", err)
	}

	in.TOTPCode = codeAt(t, secret, time.Now().Add(30*time.Second))
	res, err := env.engine.Login(ctx, in)
	if err != nil {
		t.Fatalf("Login with next code failed: %v", err)
	}
	if !res.User.TwoFactorEnabled {
		t.Fatal("expected twoFactorEnabled in login result")
	}
}

func TestTOTPAttemptLimit(t *testing.T) {
	cfg := testConfig()
	cfg.TOTP.MaxAttempts = 2
	env := newTestEnv(t, cfg)
	user := env.registerVerified(t, "totp4@example.com", "correct-horse-1")
	secret := enableTOTP(t, env, user.ID)
	ctx := context.Background()

	bad := wrongCode(codeAt(t, secret, time.Now().Add(30*time.Second)))
	in := LoginInput{Email: "totp4@example.com", Password: "correct-horse-1", TOTPCode: bad}

	if _, err := env.engine.Login(ctx, in); !errors.Is(err, ErrTOTPInvalid) {
		t.Fatalf("first failure: expected ErrTOTPInvalid, got %v", err)
	}
	if _, err := env.engine.Login(ctx, in); !errors.Is(err, ErrTOTPRateLimited) {
		t.Fatalf("second failure: expected ErrTOTPRateLimited, got %v", err)
	}
	in.TOTPCode = codeAt(t, secret, time.Now().Add(30*time.Second))
	if _, err := env.engine.Login(ctx, in); !errors.Is(err, ErrTOTPRateLimited) {
		t.Fatalf("locked out: expected ErrTOTPRateLimited, got %v", err)
	}
}

func TestDisableTOTPNeedsValidCode(t *testing.T) {
	env := newTestEnv(t, testConfig())
	user := env.registerVerified(t, "totp5@example.com", "correct-horse-1")
	secret := enableTOTP(t, env, user.ID)
	ctx := context.Background()

	next := codeAt(t, secret, time.Now().Add(30*time.Second))
	if err := env.engine.DisableTOTP(ctx, user.ID, wrongCode(next)); !errors.Is(err, ErrTOTPInvalid) {
		t.Fatalf("expected ErrTOTPInvalid, got %v", err)
	}
	if err := env.engine.DisableTOTP(ctx, user.ID, next); err != nil {
		t.Fatalf("DisableTOTP failed: %v", err)
	}
	if err := env.engine.DisableTOTP(ctx, user.ID, next); !errors.Is(err, ErrTOTPNotConfigured) {
		t.Fatalf("expected ErrTOTPNotConfigured, got %v", err)
	}
	if _, err := env.engine.Login(ctx, LoginInput{Email: "totp5@example.com", Password: "correct-horse-1"}); err != nil {
		t.Fatalf("login without code should work after disable, got %v", err)
	}
}

func TestTOTPManagerVerifyRejectsMalformedCodes(t *testing.T) {
	m := newTOTPManager(testConfig().TOTP)
	setup, err := m.Generate("x@example.com")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	for _, code := range []string{"", "12345", "1234567", "abcdef"} {
		ok, _, err := m.Verify(setup.Secret, code, time.Now())
		if err != nil || ok {
			t.Fatalf("code %q: expected rejection, got ok=%v err=%v", code, ok, err)
		}
	}
}

func TestConcurrentLoginsCannotReuseTOTPCode(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()

	_, setup, err := env.engine.ProvisionAdmin(ctx, "Admin", "admin@example.com", "admin-password-9")
	if err != nil {
		t.Fatalf("ProvisionAdmin failed: %v", err)
	}
	in := LoginInput{
		Email:    "admin@example.com",
		Password: "admin-password-9",
		TOTPCode: codeAt(t, setup.Secret, time.Now()),
	}

	const n = 5
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		errs  = make(chan error, n)
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := env.engine.Login(ctx, in)
			errs <- err
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	won := 0
	for err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, ErrTOTPInvalid), errors.Is(err, ErrTOTPRateLimited):
		default:
			t.Fatalf("unexpected login error: %v", err)
		}
	}
	if won != 1 {
		t.Fatalf("expected exactly one login to accept the code, got %d", won)
	}
}
