package linkauth

import (
	"slices"
	"time"
)

// SecurityReport summarizes the security-relevant settings an engine runs
// with. It never includes key material.
type SecurityReport struct {
	SigningAlgorithm  string
	KeyRotationActive bool
	TokenTTL          time.Duration
	Leeway            time.Duration
	Argon2            PasswordConfigReport
	MinPasswordLength int
	TOTPDigits        int
	TOTPPeriod        int
	TOTPSkew          int
	ActivityInterval  time.Duration
	AuditEnabled      bool
	IdentityProviders []string
	Warnings          []string
}

// PasswordConfigReport is the Argon2id cost in effect.
type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Warning codes reported in [SecurityReport.Warnings].
const (
	WarnTokenTTLLong      = "token_ttl_long"
	WarnLeewayLarge       = "leeway_large"
	WarnArgon2MemoryLow   = "argon2_memory_low"
	WarnPasswordShort     = "password_min_length_low"
	WarnTOTPSkewWide      = "totp_skew_wide"
	WarnAuditDisabled     = "audit_disabled"
	WarnActivityThrottled = "activity_interval_long"
)

// SecurityReport describes the running configuration and flags settings
// weaker than the defaults recommend.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}
	c := e.config

	providers := make([]string, 0, len(e.providers))
	for name := range e.providers {
		providers = append(providers, name)
	}
	slices.Sort(providers)

	r := SecurityReport{
		SigningAlgorithm:  "HS256",
		KeyRotationActive: c.JWT.PreviousSigningKey != "",
		TokenTTL:          c.JWT.TokenTTL,
		Leeway:            c.JWT.Leeway,
		Argon2: PasswordConfigReport{
			Memory:      c.Password.Memory,
			Time:        c.Password.Time,
			Parallelism: c.Password.Parallelism,
			SaltLength:  c.Password.SaltLength,
			KeyLength:   c.Password.KeyLength,
		},
		MinPasswordLength: c.Password.MinLength,
		TOTPDigits:        c.TOTP.Digits,
		TOTPPeriod:        c.TOTP.Period,
		TOTPSkew:          c.TOTP.Skew,
		ActivityInterval:  c.Session.ActivityInterval,
		AuditEnabled:      c.Audit.Enabled,
		IdentityProviders: providers,
	}
	r.Warnings = securityWarnings(c)
	return r
}

func securityWarnings(c Config) []string {
	var ws []string
	if c.JWT.TokenTTL > 30*24*time.Hour {
		ws = append(ws, WarnTokenTTLLong)
	}
	if c.JWT.Leeway > time.Minute {
		ws = append(ws, WarnLeewayLarge)
	}
	if c.Password.Memory < 19*1024 {
		ws = append(ws, WarnArgon2MemoryLow)
	}
	if c.Password.MinLength < 8 {
		ws = append(ws, WarnPasswordShort)
	}
	if c.TOTP.Skew > 1 {
		ws = append(ws, WarnTOTPSkewWide)
	}
	if !c.Audit.Enabled {
		ws = append(ws, WarnAuditDisabled)
	}
	if c.Session.ActivityInterval > time.Hour {
		ws = append(ws, WarnActivityThrottled)
	}
	return ws
}
