package linkauth_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/linkauth"
	"github.com/MrEthical07/linkauth/store/memory"
)

const testPassword = "correct horse battery"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testConfig() linkauth.Config {
	cfg := linkauth.DefaultConfig()
	cfg.JWT.SigningKey = strings.Repeat("s", 32)
	cfg.JWT.TokenTTL = time.Hour
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	return cfg
}

type testEnv struct {
	engine *linkauth.Engine
	store  *memory.Store
	clock  *testClock
}

type envOption func(*linkauth.Builder)

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	store := memory.New()
	clock := newTestClock()
	b := linkauth.New().
		WithConfig(testConfig()).
		WithStore(store).
		WithClock(clock.Now)
	for _, opt := range opts {
		opt(b)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEnv{engine: engine, store: store, clock: clock}
}

func (te *testEnv) register(t *testing.T, email string) linkauth.AuthResult {
	t.Helper()
	res, err := te.engine.Register(context.Background(), email, testPassword, linkauth.Profile{FirstName: "Test", LastName: "User"})
	if err != nil {
		t.Fatalf("Register(%s): %v", email, err)
	}
	return res
}

// enable2FA runs setup and confirmation and returns the secret.
func (te *testEnv) enable2FA(t *testing.T, userID int64) string {
	t.Helper()
	ctx := context.Background()

	setup, err := te.engine.Setup2FA(ctx, userID)
	if err != nil {
		t.Fatalf("Setup2FA: %v", err)
	}
	if _, err := te.engine.Confirm2FA(ctx, userID, te.code(t, setup.Secret, 0)); err != nil {
		t.Fatalf("Confirm2FA: %v", err)
	}
	return setup.Secret
}

// code returns the TOTP code for the step at offset steps from now.
func (te *testEnv) code(t *testing.T, secret string, offset int) string {
	t.Helper()
	c, err := te.engine.TOTPCodeAt(secret, te.clock.Now().Add(time.Duration(offset)*30*time.Second))
	if err != nil {
		t.Fatalf("TOTPCodeAt: %v", err)
	}
	return c
}

// wrongCode returns a six-digit code that matches no step in the accepted
// window around now.
func (te *testEnv) wrongCode(t *testing.T, secret string) string {
	t.Helper()
	valid := map[string]bool{}
	for off := -1; off <= 1; off++ {
		valid[te.code(t, secret, off)] = true
	}
	for _, candidate := range []string{"000000", "111111", "222222", "333333", "444444"} {
		if !valid[candidate] {
			return candidate
		}
	}
	t.Fatal("no wrong code candidate")
	return ""
}
