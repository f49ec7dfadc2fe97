package linkauth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/linkauth"
	"github.com/MrEthical07/linkauth/store/memory"
)

type pingingStore struct {
	*memory.Store
	err error
}

func (p pingingStore) Ping(context.Context) (time.Duration, error) {
	if p.err != nil {
		return 0, p.err
	}
	return time.Millisecond, nil
}

func TestHealthWithoutPinger(t *testing.T) {
	te := newTestEnv(t)
	h := te.engine.Health(context.Background())
	if !h.OK() || h.Users.Latency != 0 {
		t.Fatalf("memory store should report healthy, got %+v", h)
	}
}

func TestHealthReportsStoreFailure(t *testing.T) {
	users := pingingStore{Store: memory.New()}
	sessions := pingingStore{Store: memory.New(), err: errors.New("dial tcp: connection refused")}

	engine, err := linkauth.New().
		WithConfig(testConfig()).
		WithUserStore(users).
		WithSessionStore(sessions).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer engine.Close()

	h := engine.Health(context.Background())
	if h.OK() {
		t.Fatal("expected unhealthy status")
	}
	if !h.Users.Available || h.Users.Latency != time.Millisecond {
		t.Fatalf("unexpected user store health %+v", h.Users)
	}
	if h.Sessions.Available || h.Sessions.Error == "" {
		t.Fatalf("unexpected session store health %+v", h.Sessions)
	}

	engine.Close()
	if engine.Health(context.Background()).OK() {
		t.Fatal("closed engine must not report healthy")
	}
}

func TestActiveSessionCount(t *testing.T) {
	te := newTestEnv(t)
	ctx := context.Background()

	first := te.register(t, "count@example.com")
	if _, err := te.engine.Login(ctx, "count@example.com", testPassword, ""); err != nil {
		t.Fatalf("Login: %v", err)
	}

	n, err := te.engine.ActiveSessionCount(ctx, first.ID)
	if err != nil || n != 2 {
		t.Fatalf("ActiveSessionCount = %d, %v", n, err)
	}

	if err := te.engine.Logout(ctx, first.ID, first.Token); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	n, err = te.engine.ActiveSessionCount(ctx, first.ID)
	if err != nil || n != 1 {
		t.Fatalf("ActiveSessionCount after logout = %d, %v", n, err)
	}

	if n, err := te.engine.ActiveSessionCount(ctx, 424242); err != nil || n != 0 {
		t.Fatalf("unknown user = %d, %v", n, err)
	}
}
