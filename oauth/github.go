package oauth

import (
	"context"
	"strconv"
	"strings"

	"github.com/MrEthical07/linkauth"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

// GitHubAPIURL is the REST API root used for profile lookups.
const GitHubAPIURL = "https://api.github.com"

var _ linkauth.ExternalIdentityProvider = (*GitHubProvider)(nil)

// GitHubProvider signs users in with GitHub.
type GitHubProvider struct {
	base
}

// NewGitHub builds a GitHub provider requesting read:user and user:email
// unless cfg.Scopes says otherwise. With WithEndpoint the profile URL is the
// API root; /user and /user/emails are appended.
func NewGitHub(cfg Config, opts ...Option) (*GitHubProvider, error) {
	b, err := newBase("github", cfg, github.Endpoint, []string{"read:user", "user:email"}, GitHubAPIURL, opts)
	if err != nil {
		return nil, err
	}
	b.profileURL = strings.TrimRight(b.profileURL, "/")
	return &GitHubProvider{base: b}, nil
}

func (p *GitHubProvider) AuthCodeURL(state string) string {
	return p.conf.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

func (p *GitHubProvider) ExchangeCode(ctx context.Context, code, redirectURI string) (string, error) {
	return p.exchange(ctx, code, redirectURI)
}

type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// FetchProfile reads /user and, because the public profile email is often
// hidden, takes the primary verified address from /user/emails.
func (p *GitHubProvider) FetchProfile(ctx context.Context, accessToken string) (linkauth.ProviderIdentity, error) {
	var u githubUser
	if err := p.getJSON(ctx, p.profileURL+"/user", accessToken, &u); err != nil {
		return linkauth.ProviderIdentity{}, err
	}

	var emails []githubEmail
	if err := p.getJSON(ctx, p.profileURL+"/user/emails", accessToken, &emails); err != nil {
		return linkauth.ProviderIdentity{}, err
	}
	email := ""
	for _, e := range emails {
		if e.Primary && e.Verified {
			email = e.Email
			break
		}
	}

	name := u.Name
	if name == "" {
		name = u.Login
	}
	first, last := splitName(name)
	return linkauth.ProviderIdentity{
		Provider:  p.name,
		Subject:   strconv.FormatInt(u.ID, 10),
		Email:     email,
		FirstName: first,
		LastName:  last,
		AvatarURL: u.AvatarURL,
	}, nil
}
