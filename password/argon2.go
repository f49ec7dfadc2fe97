package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/argon2"
)

const (
	floorMemoryKB    uint32 = 8 * 1024
	floorTime        uint32 = 1
	floorParallelism uint8  = 1
	floorSaltLength  uint32 = 16
	floorKeyLength   uint32 = 16
	floorMinLength          = 8
	maxPasswordBytes        = 1024
	algorithmID             = "argon2id"
)

var (
	// ErrTooShort is returned by Hash and CheckPolicy for passwords below MinLength.
	ErrTooShort = errors.New("password is too short")
	// ErrTooLong is returned for passwords above the hashing input cap.
	ErrTooLong = errors.New("password is too long")
	// ErrMalformedHash is returned by Verify for strings that are not argon2id PHC hashes.
	ErrMalformedHash = errors.New("malformed password hash")
)

// Config holds argon2id cost parameters and the password length policy.
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	// MinLength is counted in runes.
	MinLength int
}

// DefaultConfig returns interactive-login parameters (64 MiB, t=3, p=2).
func DefaultConfig() Config {
	return Config{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
		MinLength:   floorMinLength,
	}
}

// Argon2 is safe for concurrent use.
type Argon2 struct {
	cfg   Config
	dummy string
}

type phc struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

// NewArgon2 validates cfg and precomputes the dummy hash used to equalize
// work for unknown accounts.
func NewArgon2(cfg Config) (*Argon2, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	a := &Argon2{cfg: cfg}
	dummy, err := a.Unusable()
	if err != nil {
		return nil, err
	}
	a.dummy = dummy
	return a, nil
}

// CheckPolicy reports whether password satisfies the length policy.
func (a *Argon2) CheckPolicy(password string) error {
	if utf8.RuneCountInString(password) < a.cfg.MinLength {
		return ErrTooShort
	}
	if len(password) > maxPasswordBytes {
		return ErrTooLong
	}
	return nil
}

// Hash derives a PHC-encoded argon2id hash with a fresh random salt.
// Password bytes are used exactly as provided.
func (a *Argon2) Hash(password string) (string, error) {
	if err := a.CheckPolicy(password); err != nil {
		return "", err
	}
	return a.hash([]byte(password))
}

// Unusable returns a well-formed hash of 32 random bytes. No password
// verifies against it; accounts created through an identity provider get one.
func (a *Argon2) Unusable() (string, error) {
	secret := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, secret); err != nil {
		return "", err
	}
	return a.hash(secret)
}

func (a *Argon2) hash(secret []byte) (string, error) {
	salt := make([]byte, a.cfg.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := argon2.IDKey(secret, salt, a.cfg.Time, a.cfg.Memory, a.cfg.Parallelism, a.cfg.KeyLength)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		a.cfg.Memory,
		a.cfg.Time,
		a.cfg.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify compares password against encoded in constant time.
func (a *Argon2) Verify(password, encoded string) (bool, error) {
	p, err := decodePHC(encoded)
	if err != nil {
		return false, err
	}

	key := argon2.IDKey([]byte(password), p.salt, p.time, p.memory, p.parallelism, uint32(len(p.key)))
	return subtle.ConstantTimeCompare(key, p.key) == 1, nil
}

// VerifyDummy burns one verification against the precomputed dummy hash.
// Callers use it when the account does not exist so the response time does
// not reveal that.
func (a *Argon2) VerifyDummy(password string) {
	_, _ = a.Verify(password, a.dummy)
}

// NeedsRehash reports whether encoded was produced with weaker parameters
// than the current configuration.
func (a *Argon2) NeedsRehash(encoded string) (bool, error) {
	p, err := decodePHC(encoded)
	if err != nil {
		return false, err
	}

	weaker := p.memory < a.cfg.Memory ||
		p.time < a.cfg.Time ||
		p.parallelism < a.cfg.Parallelism ||
		uint32(len(p.key)) != a.cfg.KeyLength
	return weaker, nil
}

func decodePHC(encoded string) (*phc, error) {
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" || fields[1] != algorithmID {
		return nil, ErrMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(fields[2], "v=%d", &version); err != nil || version != argon2.Version {
		return nil, fmt.Errorf("%w: unsupported version", ErrMalformedHash)
	}

	p := &phc{}
	if err := p.decodeParams(fields[3]); err != nil {
		return nil, err
	}

	var err error
	if p.salt, err = decodeB64(fields[4]); err != nil || len(p.salt) < int(floorSaltLength) {
		return nil, fmt.Errorf("%w: bad salt", ErrMalformedHash)
	}
	if p.key, err = decodeB64(fields[5]); err != nil || len(p.key) == 0 {
		return nil, fmt.Errorf("%w: bad key", ErrMalformedHash)
	}

	return p, nil
}

// decodeB64 accepts padded and unpadded standard encoding.
func decodeB64(s string) ([]byte, error) {
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}

func (p *phc) decodeParams(field string) error {
	seen := map[string]bool{}
	for _, pair := range strings.Split(field, ",") {
		name, raw, ok := strings.Cut(pair, "=")
		if !ok || seen[name] {
			return fmt.Errorf("%w: bad parameter %q", ErrMalformedHash, pair)
		}
		seen[name] = true

		switch name {
		case "m":
			v, err := strconv.ParseUint(raw, 10, 32)
			if err != nil || uint32(v) < floorMemoryKB {
				return fmt.Errorf("%w: bad memory", ErrMalformedHash)
			}
			p.memory = uint32(v)
		case "t":
			v, err := strconv.ParseUint(raw, 10, 32)
			if err != nil || uint32(v) < floorTime {
				return fmt.Errorf("%w: bad time", ErrMalformedHash)
			}
			p.time = uint32(v)
		case "p":
			v, err := strconv.ParseUint(raw, 10, 8)
			if err != nil || uint8(v) < floorParallelism {
				return fmt.Errorf("%w: bad parallelism", ErrMalformedHash)
			}
			p.parallelism = uint8(v)
		default:
			return fmt.Errorf("%w: unknown parameter %q", ErrMalformedHash, name)
		}
	}

	if len(seen) != 3 {
		return fmt.Errorf("%w: missing parameters", ErrMalformedHash)
	}
	return nil
}

func validateConfig(cfg Config) error {
	switch {
	case cfg.Memory < floorMemoryKB:
		return fmt.Errorf("password memory must be >= %d KB", floorMemoryKB)
	case cfg.Time < floorTime:
		return errors.New("password time must be >= 1")
	case cfg.Parallelism < floorParallelism:
		return errors.New("password parallelism must be >= 1")
	case cfg.SaltLength < floorSaltLength:
		return fmt.Errorf("password salt length must be >= %d", floorSaltLength)
	case cfg.KeyLength < floorKeyLength:
		return fmt.Errorf("password key length must be >= %d", floorKeyLength)
	case cfg.MinLength < floorMinLength:
		return fmt.Errorf("password minimum length must be >= %d", floorMinLength)
	}
	return nil
}
