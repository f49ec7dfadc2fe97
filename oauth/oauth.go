// Package oauth implements linkauth.ExternalIdentityProvider for Google and
// GitHub on top of golang.org/x/oauth2.
//
// Providers only perform the authorization-code exchange and the profile
// fetch. Account matching, merging and session issuance stay in the engine.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// Config holds the client registration for one provider.
type Config struct {
	ClientID     string   `env:"CLIENT_ID"`
	ClientSecret string   `env:"CLIENT_SECRET"`
	RedirectURL  string   `env:"REDIRECT_URL"`
	Scopes       []string `env:"SCOPES" envSeparator:","`
}

// Enabled reports whether a client id and secret are set.
func (c Config) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// Option customizes a provider.
type Option func(*base)

// WithHTTPClient sets the client used for the token exchange and profile
// requests. The default has a 10s timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(b *base) {
		if c != nil {
			b.http = c
		}
	}
}

// WithEndpoint overrides the authorization, token and profile URLs. Used
// against test servers and enterprise deployments.
func WithEndpoint(endpoint oauth2.Endpoint, profileURL string) Option {
	return func(b *base) {
		b.conf.Endpoint = endpoint
		if profileURL != "" {
			b.profileURL = profileURL
		}
	}
}

var errMissingClient = errors.New("oauth: client id and secret are required")

type base struct {
	name       string
	conf       oauth2.Config
	profileURL string
	http       *http.Client
}

func newBase(name string, cfg Config, endpoint oauth2.Endpoint, scopes []string, profileURL string, opts []Option) (base, error) {
	if !cfg.Enabled() {
		return base{}, errMissingClient
	}
	if len(cfg.Scopes) > 0 {
		scopes = cfg.Scopes
	}
	b := base{
		name: name,
		conf: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint:     endpoint,
		},
		profileURL: profileURL,
		http:       &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b, nil
}

func (b *base) Name() string {
	return b.name
}

// exchange trades code for an access token. A non-empty redirectURI replaces
// the configured one for this exchange only.
func (b *base) exchange(ctx context.Context, code, redirectURI string) (string, error) {
	if strings.TrimSpace(code) == "" {
		return "", fmt.Errorf("oauth: %s: empty authorization code", b.name)
	}
	conf := b.conf
	if redirectURI != "" {
		conf.RedirectURL = redirectURI
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, b.http)

	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("oauth: %s token exchange: %w", b.name, err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("oauth: %s token exchange: empty access token", b.name)
	}
	return tok.AccessToken, nil
}

// getJSON performs an authenticated GET and decodes the JSON body into out.
func (b *base) getJSON(ctx context.Context, url, accessToken string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := b.http.Do(req)
	if err != nil {
		return fmt.Errorf("oauth: %s profile: %w", b.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("oauth: %s profile: unexpected status %d", b.name, resp.StatusCode)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(out); err != nil {
		return fmt.Errorf("oauth: %s profile: decode: %w", b.name, err)
	}
	return nil
}

// splitName turns a single display name into first and last name.
func splitName(full string) (string, string) {
	full = strings.TrimSpace(full)
	first, last, _ := strings.Cut(full, " ")
	return first, strings.TrimSpace(last)
}
