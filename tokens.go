package linkauth

import (
	"time"

	"github.com/MrEthical07/linkauth/jwt"
)

// TokenIssuer issues and validates session tokens. Validation is pure: it
// never touches the store.
type TokenIssuer struct {
	manager *jwt.Manager
}

func newTokenIssuer(manager *jwt.Manager) *TokenIssuer {
	return &TokenIssuer{manager: manager}
}

// Issue signs a token for user bound to the client described by req.
func (t *TokenIssuer) Issue(user User, req RequestInfo) (string, time.Time, error) {
	return t.manager.Issue(jwt.Subject{
		UserID:   user.ID,
		Email:    user.Email,
		Device:   req.DeviceInfo,
		IP:       req.IPAddress,
		Location: req.Location,
	})
}

// Validate returns the token's claims, or nil if the signature, algorithm,
// issuer, audience or expiry check fails.
func (t *TokenIssuer) Validate(token string) *Claims {
	if token == "" {
		return nil
	}
	sc, err := t.manager.Parse(token)
	if err != nil {
		return nil
	}

	c := &Claims{
		TokenID:    sc.ID,
		UserID:     sc.UID,
		Email:      sc.Email,
		DeviceInfo: sc.Device,
		IPAddress:  sc.IP,
		Location:   sc.Location,
	}
	if sc.IssuedAt != nil {
		c.IssuedAt = sc.IssuedAt.Time
	}
	if sc.ExpiresAt != nil {
		c.ExpiresAt = sc.ExpiresAt.Time
	}
	return c
}

// ExtractUserID returns the user id of a valid token.
func (t *TokenIssuer) ExtractUserID(token string) (int64, bool) {
	c := t.Validate(token)
	if c == nil {
		return 0, false
	}
	return c.UserID, true
}

// ExtractEmail returns the email of a valid token.
func (t *TokenIssuer) ExtractEmail(token string) (string, bool) {
	c := t.Validate(token)
	if c == nil {
		return "", false
	}
	return c.Email, true
}
