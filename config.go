package linkauth

import (
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/linkauth/jwt"
	"github.com/MrEthical07/linkauth/password"
	"github.com/caarlos0/env/v11"
)

// EnvPrefix is prepended to every variable read by [LoadConfigFromEnv].
const EnvPrefix = "LINKAUTH_"

// Config is the full engine configuration. Start from [DefaultConfig] and
// override fields, or load it with [LoadConfigFromEnv].
type Config struct {
	JWT      JWTConfig      `envPrefix:"JWT_"`
	Password PasswordConfig `envPrefix:"PASSWORD_"`
	TOTP     TOTPConfig     `envPrefix:"TOTP_"`
	Session  SessionConfig  `envPrefix:"SESSION_"`
	Account  AccountConfig  `envPrefix:"ACCOUNT_"`
	Audit    AuditConfig    `envPrefix:"AUDIT_"`
	Metrics  MetricsConfig  `envPrefix:"METRICS_"`
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig controls session token signing.
type JWTConfig struct {
	// SigningKey is the HMAC secret; at least 32 bytes.
	SigningKey string `env:"SIGNING_KEY"`
	// PreviousSigningKey keeps verifying tokens signed before a rotation.
	// It requires KeyID and PreviousKeyID.
	PreviousSigningKey string        `env:"PREVIOUS_SIGNING_KEY"`
	KeyID              string        `env:"KEY_ID"`
	PreviousKeyID      string        `env:"PREVIOUS_KEY_ID"`
	Issuer             string        `env:"ISSUER"`
	Audience           string        `env:"AUDIENCE"`
	TokenTTL           time.Duration `env:"TOKEN_TTL"`
	Leeway             time.Duration `env:"LEEWAY"`
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds argon2id parameters and the length policy.
type PasswordConfig struct {
	Memory      uint32 `env:"MEMORY_KB"`
	Time        uint32 `env:"TIME"`
	Parallelism uint8  `env:"PARALLELISM"`
	SaltLength  uint32 `env:"SALT_LENGTH"`
	KeyLength   uint32 `env:"KEY_LENGTH"`
	MinLength   int    `env:"MIN_LENGTH"`
}

/*
====================================
TOTP CONFIG
====================================
*/

// TOTPConfig controls second-factor codes. Authenticator apps expect the
// defaults; change them only with clients that honor the provisioning URI.
type TOTPConfig struct {
	Issuer    string `env:"ISSUER"`
	Digits    int    `env:"DIGITS"`
	Period    int    `env:"PERIOD"`
	Algorithm string `env:"ALGORITHM"`
	// Skew is the number of adjacent time steps accepted on either side.
	Skew int `env:"SKEW"`
}

/*
====================================
SESSION / ACCOUNT CONFIG
====================================
*/

// SessionConfig controls session record maintenance.
type SessionConfig struct {
	// ActivityInterval throttles LastActivityAt writes. Zero writes on every
	// authorized request.
	ActivityInterval time.Duration `env:"ACTIVITY_INTERVAL"`
}

// AccountConfig controls profile rules.
type AccountConfig struct {
	MaxNameLength int `env:"MAX_NAME_LENGTH"`
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool `env:"ENABLED"`
	BufferSize int  `env:"BUFFER_SIZE"`
	DropIfFull bool `env:"DROP_IF_FULL"`
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool `env:"ENABLED"`
	EnableLatencyHistograms bool `env:"LATENCY_HISTOGRAMS"`
}

// DefaultConfig returns production defaults. SigningKey is left empty and
// must be supplied.
func DefaultConfig() Config {
	pw := password.DefaultConfig()
	return Config{
		JWT: JWTConfig{
			Issuer:   "linkauth",
			Audience: "linkauth-clients",
			TokenTTL: 7 * 24 * time.Hour,
		},
		Password: PasswordConfig{
			Memory:      pw.Memory,
			Time:        pw.Time,
			Parallelism: pw.Parallelism,
			SaltLength:  pw.SaltLength,
			KeyLength:   pw.KeyLength,
			MinLength:   pw.MinLength,
		},
		TOTP: TOTPConfig{
			Issuer:    "LinkAuth",
			Digits:    6,
			Period:    30,
			Algorithm: "SHA1",
			Skew:      1,
		},
		Account: AccountConfig{
			MaxNameLength: 50,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
	}
}

// LoadConfigFromEnv overlays LINKAUTH_* environment variables on
// [DefaultConfig] and validates the result.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, configError("parse environment: " + err.Error())
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func configError(msg string) error {
	return newError(KindConfiguration, "linkauth config: "+msg)
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting. A missing or short signing key
// yields [ErrSigningKeyMissing].
func (c *Config) Validate() error {
	// JWT
	if len(c.JWT.SigningKey) < jwt.MinSecretBytes {
		return ErrSigningKeyMissing
	}
	if c.JWT.TokenTTL <= 0 {
		return configError("JWT TokenTTL must be > 0")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return configError("JWT Leeway must be within [0, 2m]")
	}
	if c.JWT.PreviousSigningKey != "" {
		if c.JWT.KeyID == "" || c.JWT.PreviousKeyID == "" {
			return configError("JWT key rotation requires KeyID and PreviousKeyID")
		}
		if c.JWT.KeyID == c.JWT.PreviousKeyID {
			return configError("JWT KeyID and PreviousKeyID must differ")
		}
		if len(c.JWT.PreviousSigningKey) < jwt.MinSecretBytes {
			return configError(fmt.Sprintf("JWT PreviousSigningKey must be >= %d bytes", jwt.MinSecretBytes))
		}
	}

	// Password
	if c.Password.MinLength < 8 {
		return configError("Password MinLength must be >= 8")
	}
	if c.Password.Memory < 8*1024 {
		return configError("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 || c.Password.Parallelism < 1 {
		return configError("Password Time and Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 || c.Password.KeyLength < 16 {
		return configError("Password SaltLength and KeyLength must be >= 16")
	}

	// TOTP
	if strings.TrimSpace(c.TOTP.Issuer) == "" {
		return configError("TOTP Issuer must not be empty")
	}
	if strings.Contains(c.TOTP.Issuer, ":") {
		return configError("TOTP Issuer must not contain ':'")
	}
	if c.TOTP.Digits < 6 || c.TOTP.Digits > 8 {
		return configError("TOTP Digits must be between 6 and 8")
	}
	if c.TOTP.Period <= 0 {
		return configError("TOTP Period must be > 0")
	}
	if c.TOTP.Skew < 0 || c.TOTP.Skew > 2 {
		return configError("TOTP Skew must be between 0 and 2")
	}
	if _, err := hmacFunc(c.TOTP.Algorithm); err != nil {
		return configError("TOTP Algorithm must be SHA1, SHA256 or SHA512")
	}

	// Session
	if c.Session.ActivityInterval < 0 {
		return configError("Session ActivityInterval must be >= 0")
	}

	// Account
	if c.Account.MaxNameLength <= 0 {
		return configError("Account MaxNameLength must be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return configError("Audit BufferSize must be > 0 when enabled")
	}

	return nil
}

func (c JWTConfig) managerConfig() jwt.Config {
	cfg := jwt.Config{
		TTL:      c.TokenTTL,
		Secret:   []byte(c.SigningKey),
		KeyID:    c.KeyID,
		Issuer:   c.Issuer,
		Audience: c.Audience,
		Leeway:   c.Leeway,
	}
	if c.PreviousSigningKey != "" {
		cfg.VerifySecrets = map[string][]byte{
			c.KeyID:         []byte(c.SigningKey),
			c.PreviousKeyID: []byte(c.PreviousSigningKey),
		}
	}
	return cfg
}

func (c PasswordConfig) hasherConfig() password.Config {
	return password.Config{
		Memory:      c.Memory,
		Time:        c.Time,
		Parallelism: c.Parallelism,
		SaltLength:  c.SaltLength,
		KeyLength:   c.KeyLength,
		MinLength:   c.MinLength,
	}
}
