package linkauth_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/MrEthical07/linkauth"
)

type fakeProvider struct {
	name     string
	identity linkauth.ProviderIdentity
	err      error

	mu        sync.Mutex
	exchanged []string
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) AuthCodeURL(state string) string {
	return "https://accounts.example.com/auth?state=" + state
}

func (p *fakeProvider) ExchangeCode(_ context.Context, code, redirectURI string) (string, error) {
	p.mu.Lock()
	p.exchanged = append(p.exchanged, code+"|"+redirectURI)
	p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	return "access-" + code, nil
}

func (p *fakeProvider) FetchProfile(_ context.Context, accessToken string) (linkauth.ProviderIdentity, error) {
	if accessToken == "" {
		return linkauth.ProviderIdentity{}, errors.New("no token")
	}
	return p.identity, nil
}

func TestOAuthLoginIsIdempotent(t *testing.T) {
	te := newTestEnv(t)
	ctx := context.Background()
	id := linkauth.ProviderIdentity{Provider: "google", Subject: "g-1", Email: "Gail@Example.com", FirstName: "Gail"}

	first, err := te.engine.LoginOAuth(ctx, id, "")
	if err != nil {
		t.Fatalf("LoginOAuth: %v", err)
	}
	if !first.IsNewUser || first.AuthProvider != linkauth.ProviderGoogle || first.Token == "" {
		t.Fatalf("unexpected first result %+v", first)
	}

	for i := 0; i < 3; i++ {
		again, err := te.engine.LoginOAuth(ctx, id, "")
		if err != nil {
			t.Fatalf("LoginOAuth #%d: %v", i+2, err)
		}
		if again.ID != first.ID || again.IsNewUser {
			t.Fatalf("expected same user, got %+v", again)
		}
	}

	users, _ := te.store.Len()
	if users != 1 {
		t.Fatalf("expected one user, got %d", users)
	}
	snap := te.engine.MetricsSnapshot()
	if snap.Counters[linkauth.MetricOAuthUserCreated] != 1 || snap.Counters[linkauth.MetricOAuthLogin] != 4 {
		t.Fatalf("unexpected oauth metrics %+v", snap.Counters)
	}
}

func TestOAuthMergesLocalAccount(t *testing.T) {
	te := newTestEnv(t)
	ctx := context.Background()
	reg, err := te.engine.Register(ctx, "hal@example.com", testPassword, linkauth.Profile{})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	res, err := te.engine.LoginOAuth(ctx, linkauth.ProviderIdentity{
		Provider:  "google",
		Email:     "hal@example.com",
		FirstName: "Hal",
		AvatarURL: "https://lh3.example.com/hal.png",
	}, "")
	if err != nil {
		t.Fatalf("LoginOAuth: %v", err)
	}
	if res.ID != reg.ID || res.IsNewUser {
		t.Fatalf("expected merge into existing account, got %+v", res)
	}
	if res.AuthProvider != linkauth.ProviderGoogle {
		t.Fatalf("expected provider switched to google, got %s", res.AuthProvider)
	}
	if res.FirstName != "Hal" || res.AvatarURL == "" {
		t.Fatalf("expected empty profile fields filled, got %+v", res)
	}
}

func TestOAuthRejections(t *testing.T) {
	te := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name string
		id   linkauth.ProviderIdentity
		want error
	}{
		{"missing email", linkauth.ProviderIdentity{Provider: "google"}, linkauth.ErrOAuthEmailMissing},
		{"local provider", linkauth.ProviderIdentity{Provider: "local", Email: "x@example.com"}, linkauth.ErrUnknownProvider},
		{"unknown provider", linkauth.ProviderIdentity{Provider: "myspace", Email: "x@example.com"}, linkauth.ErrUnknownProvider},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := te.engine.LoginOAuth(ctx, tt.id, ""); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestOAuthLoginHonorsTwoFactor(t *testing.T) {
	te := newTestEnv(t)
	ctx := context.Background()
	id := linkauth.ProviderIdentity{Provider: "github", Email: "iris@example.com"}

	first, err := te.engine.LoginOAuth(ctx, id, "")
	if err != nil {
		t.Fatalf("LoginOAuth: %v", err)
	}
	secret := te.enable2FA(t, first.ID)

	partial, err := te.engine.LoginOAuth(ctx, id, "")
	if err != nil || !partial.RequiresTwoFactor || partial.Token != "" {
		t.Fatalf("expected 2FA challenge, got %+v, %v", partial, err)
	}
	full, err := te.engine.LoginOAuth(ctx, id, te.code(t, secret, 0))
	if err != nil || full.Token == "" {
		t.Fatalf("expected token, got %+v, %v", full, err)
	}
}

func TestLoginWithProvider(t *testing.T) {
	google := &fakeProvider{
		name:     "google",
		identity: linkauth.ProviderIdentity{Subject: "g-42", Email: "jo@example.com", FirstName: "Jo"},
	}
	te := newTestEnv(t, func(b *linkauth.Builder) { b.WithIdentityProvider(google) })
	ctx := context.Background()

	url, err := te.engine.AuthorizationURL("", "xyz")
	if err != nil || url != "https://accounts.example.com/auth?state=xyz" {
		t.Fatalf("AuthorizationURL = %q, %v", url, err)
	}

	res, err := te.engine.LoginWithProvider(ctx, "Google", "code-1", "https://app.example.com/cb", "")
	if err != nil {
		t.Fatalf("LoginWithProvider: %v", err)
	}
	if res.AuthProvider != linkauth.ProviderGoogle || !res.IsNewUser || res.Token == "" {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(google.exchanged) != 1 || google.exchanged[0] != "code-1|https://app.example.com/cb" {
		t.Fatalf("unexpected exchanges %v", google.exchanged)
	}

	if _, err := te.engine.AuthorizationURL("github", "xyz"); !errors.Is(err, linkauth.ErrProviderNotConfigured) {
		t.Fatalf("expected ErrProviderNotConfigured, got %v", err)
	}
	if _, err := te.engine.AuthorizationURL("local", "xyz"); !errors.Is(err, linkauth.ErrUnknownProvider) {
		t.Fatalf("expected ErrUnknownProvider, got %v", err)
	}

	google.err = fmt.Errorf("oauth2: invalid_grant")
	_, err = te.engine.LoginWithProvider(ctx, "google", "code-2", "https://app.example.com/cb", "")
	if !errors.Is(err, linkauth.ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
	if linkauth.KindOf(err) != linkauth.KindUnavailable {
		t.Fatalf("expected unavailable kind, got %s", linkauth.KindOf(err))
	}
}
