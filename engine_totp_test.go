package linkauth_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/MrEthical07/linkauth"
)

func TestTwoFactorSetupAndConfirm(t *testing.T) {
	te := newTestEnv(t)
	ctx := context.Background()
	reg := te.register(t, "amy@example.com")

	setup, err := te.engine.Setup2FA(ctx, reg.ID)
	if err != nil {
		t.Fatalf("Setup2FA: %v", err)
	}
	if len(setup.Secret) != 32 {
		t.Fatalf("expected 32 base32 chars, got %d", len(setup.Secret))
	}
	if !strings.HasPrefix(setup.ProvisioningURI, "otpauth://totp/LinkAuth:amy@example.com?") {
		t.Fatalf("unexpected provisioning uri %q", setup.ProvisioningURI)
	}
	if strings.ReplaceAll(setup.ManualKey, " ", "") != setup.Secret {
		t.Fatalf("manual key %q does not match secret", setup.ManualKey)
	}

	already, err := te.engine.Confirm2FA(ctx, reg.ID, te.wrongCode(t, setup.Secret))
	if !errors.Is(err, linkauth.ErrInvalidOneTimeCode) || already {
		t.Fatalf("expected ErrInvalidOneTimeCode, got %v (already=%v)", err, already)
	}
	p, _ := te.engine.GetProfile(ctx, reg.ID)
	if p.TwoFactorEnabled {
		t.Fatal("wrong code must leave 2FA pending")
	}

	already, err = te.engine.Confirm2FA(ctx, reg.ID, te.code(t, setup.Secret, 0))
	if err != nil || already {
		t.Fatalf("Confirm2FA = %v, %v", already, err)
	}
	p, _ = te.engine.GetProfile(ctx, reg.ID)
	if !p.TwoFactorEnabled {
		t.Fatal("expected 2FA enabled")
	}

	already, err = te.engine.Confirm2FA(ctx, reg.ID, "garbage")
	if err != nil || !already {
		t.Fatalf("confirm on enabled account = %v, %v", already, err)
	}

	if _, err := te.engine.Setup2FA(ctx, reg.ID); !errors.Is(err, linkauth.ErrTwoFactorAlreadyEnabled) {
		t.Fatalf("expected ErrTwoFactorAlreadyEnabled, got %v", err)
	}
}

func TestTwoFactorSetupRepeatReplacesSecret(t *testing.T) {
	te := newTestEnv(t)
	ctx := context.Background()
	reg := te.register(t, "ben@example.com")

	first, err := te.engine.Setup2FA(ctx, reg.ID)
	if err != nil {
		t.Fatalf("Setup2FA: %v", err)
	}
	second, err := te.engine.Setup2FA(ctx, reg.ID)
	if err != nil {
		t.Fatalf("Setup2FA again: %v", err)
	}
	if first.Secret == second.Secret {
		t.Fatal("expected a fresh secret")
	}
	if _, err := te.engine.Confirm2FA(ctx, reg.ID, te.code(t, second.Secret, 0)); err != nil {
		t.Fatalf("Confirm2FA with latest secret: %v", err)
	}
}

func TestConfirmWithoutSetup(t *testing.T) {
	te := newTestEnv(t)
	reg := te.register(t, "cleo@example.com")

	_, err := te.engine.Confirm2FA(context.Background(), reg.ID, "123456")
	if !errors.Is(err, linkauth.ErrTwoFactorNotInitiated) {
		t.Fatalf("expected ErrTwoFactorNotInitiated, got %v", err)
	}
}

func TestTwoFactorSkewWindow(t *testing.T) {
	te := newTestEnv(t)
	ctx := context.Background()
	reg := te.register(t, "dina@example.com")
	secret := te.enable2FA(t, reg.ID)

	for _, off := range []int{-1, 0, 1} {
		if _, err := te.engine.Login(ctx, "dina@example.com", testPassword, te.code(t, secret, off)); err != nil {
			t.Fatalf("code at offset %d rejected: %v", off, err)
		}
	}
	for _, off := range []int{-2, 2} {
		code := te.code(t, secret, off)
		if code == te.code(t, secret, -1) || code == te.code(t, secret, 0) || code == te.code(t, secret, 1) {
			continue
		}
		if _, err := te.engine.Login(ctx, "dina@example.com", testPassword, code); !errors.Is(err, linkauth.ErrInvalidOneTimeCode) {
			t.Fatalf("code at offset %d accepted: %v", off, err)
		}
	}
}

func TestTwoFactorDisable(t *testing.T) {
	te := newTestEnv(t)
	ctx := context.Background()
	reg := te.register(t, "eli@example.com")

	if err := te.engine.Disable2FA(ctx, reg.ID, ""); err != nil {
		t.Fatalf("Disable2FA on disabled account: %v", err)
	}

	secret := te.enable2FA(t, reg.ID)
	if err := te.engine.Disable2FA(ctx, reg.ID, te.wrongCode(t, secret)); !errors.Is(err, linkauth.ErrInvalidOneTimeCode) {
		t.Fatalf("expected ErrInvalidOneTimeCode, got %v", err)
	}
	if err := te.engine.Disable2FA(ctx, reg.ID, te.code(t, secret, 0)); err != nil {
		t.Fatalf("Disable2FA: %v", err)
	}

	res, err := te.engine.Login(ctx, "eli@example.com", testPassword, "")
	if err != nil || res.RequiresTwoFactor || res.Token == "" {
		t.Fatalf("login after disable = %+v, %v", res, err)
	}

	// Setup is allowed again after disabling.
	if _, err := te.engine.Setup2FA(ctx, reg.ID); err != nil {
		t.Fatalf("Setup2FA after disable: %v", err)
	}
}

func TestPendingSetupDoesNotGateLogin(t *testing.T) {
	te := newTestEnv(t)
	ctx := context.Background()
	reg := te.register(t, "fay@example.com")

	if _, err := te.engine.Setup2FA(ctx, reg.ID); err != nil {
		t.Fatalf("Setup2FA: %v", err)
	}
	res, err := te.engine.Login(ctx, "fay@example.com", testPassword, "")
	if err != nil || res.RequiresTwoFactor {
		t.Fatalf("pending 2FA must not require a code: %+v, %v", res, err)
	}
}
