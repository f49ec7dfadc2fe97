package oauth

import (
	"context"

	"github.com/MrEthical07/linkauth"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// GoogleUserInfoURL is the OpenID Connect userinfo endpoint.
const GoogleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

var _ linkauth.ExternalIdentityProvider = (*GoogleProvider)(nil)

// GoogleProvider signs users in with Google.
type GoogleProvider struct {
	base
}

// NewGoogle builds a Google provider requesting openid, email and profile
// unless cfg.Scopes says otherwise.
func NewGoogle(cfg Config, opts ...Option) (*GoogleProvider, error) {
	b, err := newBase("google", cfg, google.Endpoint, []string{"openid", "email", "profile"}, GoogleUserInfoURL, opts)
	if err != nil {
		return nil, err
	}
	return &GoogleProvider{base: b}, nil
}

// AuthCodeURL returns the consent-screen URL carrying state.
func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.conf.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
}

func (p *GoogleProvider) ExchangeCode(ctx context.Context, code, redirectURI string) (string, error) {
	return p.exchange(ctx, code, redirectURI)
}

type googleUserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Picture       string `json:"picture"`
}

// FetchProfile reads the userinfo document. An unverified address is
// dropped, which the engine rejects as a missing email.
func (p *GoogleProvider) FetchProfile(ctx context.Context, accessToken string) (linkauth.ProviderIdentity, error) {
	var info googleUserInfo
	if err := p.getJSON(ctx, p.profileURL, accessToken, &info); err != nil {
		return linkauth.ProviderIdentity{}, err
	}

	first, last := info.GivenName, info.FamilyName
	if first == "" && last == "" {
		first, last = splitName(info.Name)
	}
	email := info.Email
	if !info.EmailVerified {
		email = ""
	}
	return linkauth.ProviderIdentity{
		Provider:  p.name,
		Subject:   info.Sub,
		Email:     email,
		FirstName: first,
		LastName:  last,
		AvatarURL: info.Picture,
	}, nil
}
