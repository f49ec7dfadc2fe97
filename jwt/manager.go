package jwt

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// MinSecretBytes is the shortest accepted HMAC signing secret.
const MinSecretBytes = 32

var (
	// ErrSecretTooShort is returned by NewManager when the signing secret is shorter than MinSecretBytes.
	ErrSecretTooShort = errors.New("jwt: signing secret too short")
	// ErrUnknownKeyID is returned when a token names a kid with no verify secret.
	ErrUnknownKeyID = errors.New("jwt: unknown kid")
)

// Config controls issuance and verification of session tokens.
type Config struct {
	TTL    time.Duration
	Secret []byte
	// KeyID is written into the kid header of new tokens. When VerifySecrets is
	// set, tokens are verified with the secret registered under their kid, which
	// lets an old secret keep verifying during rotation.
	KeyID         string
	VerifySecrets map[string][]byte
	Issuer        string
	Audience      string
	// Leeway defaults to zero: a token is rejected the second it expires.
	Leeway time.Duration
	// Now overrides the clock. Tests only.
	Now func() time.Time
}

// Manager signs and parses HS256 session tokens. It is safe for concurrent use.
type Manager struct {
	cfg    Config
	parser *jwt.Parser
}

// SessionClaims is the JWT body of a session token.
type SessionClaims struct {
	UID      int64  `json:"uid"`
	Email    string `json:"email"`
	Device   string `json:"dev,omitempty"`
	IP       string `json:"ip,omitempty"`
	Location string `json:"loc,omitempty"`
	jwt.RegisteredClaims
}

// Subject is what a token asserts about its holder.
type Subject struct {
	UserID   int64
	Email    string
	Device   string
	IP       string
	Location string
}

// NewManager validates cfg and builds the parser once.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.TTL <= 0 {
		return nil, errors.New("jwt: invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("jwt: invalid leeway configuration")
	}
	if len(cfg.Secret) < MinSecretBytes {
		return nil, ErrSecretTooShort
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)
	for kid, secret := range cfg.VerifySecrets {
		if strings.TrimSpace(kid) == "" {
			return nil, errors.New("jwt: verify secret map contains empty kid")
		}
		if len(secret) < MinSecretBytes {
			return nil, fmt.Errorf("jwt: verify secret for kid %q: %w", kid, ErrSecretTooShort)
		}
	}
	if len(cfg.VerifySecrets) > 0 {
		if cfg.KeyID == "" {
			return nil, errors.New("jwt: KeyID is required with VerifySecrets")
		}
		if _, ok := cfg.VerifySecrets[cfg.KeyID]; !ok {
			return nil, errors.New("jwt: KeyID is not present in VerifySecrets")
		}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(cfg.Now),
	}
	if cfg.Leeway > 0 {
		options = append(options, jwt.WithLeeway(cfg.Leeway))
	}
	if cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		options = append(options, jwt.WithAudience(cfg.Audience))
	}

	return &Manager{cfg: cfg, parser: jwt.NewParser(options...)}, nil
}

// TTL returns the configured token lifetime.
func (m *Manager) TTL() time.Duration {
	return m.cfg.TTL
}

// Issue signs a new token for s. Every call yields a distinct token because
// jti is a fresh UUID.
func (m *Manager) Issue(s Subject) (string, time.Time, error) {
	now := m.cfg.Now().Truncate(time.Second)
	expiresAt := now.Add(m.cfg.TTL)

	claims := SessionClaims{
		UID:      s.UserID,
		Email:    s.Email,
		Device:   s.Device,
		IP:       s.IP,
		Location: s.Location,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(s.UserID, 10),
			Issuer:    m.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	if m.cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.cfg.Audience}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	if m.cfg.KeyID != "" {
		token.Header["kid"] = m.cfg.KeyID
	}

	signed, err := token.SignedString(m.cfg.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Parse verifies signature, algorithm, issuer, audience and time claims.
func (m *Manager) Parse(tokenStr string) (*SessionClaims, error) {
	token, err := m.parser.ParseWithClaims(tokenStr, &SessionClaims{}, m.keyFunc)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.UID <= 0 {
		return nil, fmt.Errorf("%w: missing uid", jwt.ErrTokenInvalidClaims)
	}
	return claims, nil
}

func (m *Manager) keyFunc(t *jwt.Token) (any, error) {
	if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
		return nil, fmt.Errorf("jwt: unexpected signing algorithm: %s", t.Method.Alg())
	}

	kid, _ := t.Header["kid"].(string)
	if len(m.cfg.VerifySecrets) > 0 {
		secret, ok := m.cfg.VerifySecrets[kid]
		if !ok {
			return nil, ErrUnknownKeyID
		}
		return secret, nil
	}
	if m.cfg.KeyID != "" && kid != m.cfg.KeyID {
		return nil, ErrUnknownKeyID
	}
	return m.cfg.Secret, nil
}
