package linkauth

import "time"

// WithClock pins the clock of every component.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// TOTPCodeAt computes the code a correct authenticator shows at t.
func (e *Engine) TOTPCodeAt(secret string, t time.Time) (string, error) {
	return e.twoFactor.totp.codeAt(secret, t)
}
