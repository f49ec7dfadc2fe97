package linkauth

import (
	"context"
	"time"
)

// TwoFactorManager drives the Disabled → PendingSetup → Enabled → Disabled
// lifecycle of an account's TOTP second factor.
type TwoFactorManager struct {
	users UserStore
	totp  *totpGenerator
	now   func() time.Time
}

func newTwoFactorManager(users UserStore, cfg TOTPConfig, now func() time.Time) *TwoFactorManager {
	return &TwoFactorManager{
		users: users,
		totp:  newTOTPGenerator(cfg),
		now:   now,
	}
}

// State derives the lifecycle state from a user snapshot.
func (m *TwoFactorManager) State(u User) TwoFactorState {
	switch {
	case u.TwoFactorEnabled && u.TwoFactorSecret != "":
		return TwoFactorActive
	case u.TwoFactorSecret != "":
		return TwoFactorPendingSetup
	default:
		return TwoFactorDisabled
	}
}

// BeginSetup stores a fresh secret with the flag off. Calling it again while
// pending replaces the secret.
func (m *TwoFactorManager) BeginSetup(ctx context.Context, userID int64) (TwoFactorSetup, error) {
	user, err := m.users.FindUserByID(ctx, userID)
	if err != nil {
		return TwoFactorSetup{}, storeErr(err, ErrUserNotFound)
	}
	if m.State(user) == TwoFactorActive {
		return TwoFactorSetup{}, ErrTwoFactorAlreadyEnabled
	}

	secret, err := m.totp.newSecret()
	if err != nil {
		return TwoFactorSetup{}, err
	}
	user.TwoFactorSecret = secret
	user.TwoFactorEnabled = false
	if err := m.users.UpdateUser(ctx, user); err != nil {
		return TwoFactorSetup{}, storeErr(err, ErrUserNotFound)
	}

	return TwoFactorSetup{
		Secret:          secret,
		ProvisioningURI: m.totp.provisioningURI(secret, user.Email),
		ManualKey:       manualEntryKey(secret),
	}, nil
}

// ConfirmSetup enables 2FA when code matches the pending secret. It reports
// true, without checking code, if 2FA was already enabled.
func (m *TwoFactorManager) ConfirmSetup(ctx context.Context, userID int64, code string) (bool, error) {
	user, err := m.users.FindUserByID(ctx, userID)
	if err != nil {
		return false, storeErr(err, ErrUserNotFound)
	}

	switch m.State(user) {
	case TwoFactorActive:
		return true, nil
	case TwoFactorDisabled:
		return false, ErrTwoFactorNotInitiated
	}

	if !m.VerifyCode(user.TwoFactorSecret, code) {
		return false, ErrInvalidOneTimeCode
	}

	user.TwoFactorEnabled = true
	if err := m.users.UpdateUser(ctx, user); err != nil {
		return false, storeErr(err, ErrUserNotFound)
	}
	return false, nil
}

// Disable clears the secret and flag after checking code. It is a no-op for
// accounts with no secret.
func (m *TwoFactorManager) Disable(ctx context.Context, userID int64, code string) error {
	user, err := m.users.FindUserByID(ctx, userID)
	if err != nil {
		return storeErr(err, ErrUserNotFound)
	}
	if user.TwoFactorSecret == "" {
		return nil
	}
	if !m.VerifyCode(user.TwoFactorSecret, code) {
		return ErrInvalidOneTimeCode
	}

	user.TwoFactorSecret = ""
	user.TwoFactorEnabled = false
	if err := m.users.UpdateUser(ctx, user); err != nil {
		return storeErr(err, ErrUserNotFound)
	}
	return nil
}

// VerifyCode checks code against secret at the current time.
func (m *TwoFactorManager) VerifyCode(secret, code string) bool {
	return m.totp.verify(secret, code, m.now())
}
