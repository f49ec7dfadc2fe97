package linkauth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const totpSecretBytes = 20

var totpEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

type totpGenerator struct {
	cfg TOTPConfig
}

func newTOTPGenerator(cfg TOTPConfig) *totpGenerator {
	if cfg.Algorithm == "" {
		cfg.Algorithm = "SHA1"
	}
	return &totpGenerator{cfg: cfg}
}

// newSecret returns a base32 (unpadded) encoding of 20 random bytes.
func (g *totpGenerator) newSecret() (string, error) {
	raw := make([]byte, totpSecretBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return totpEncoding.EncodeToString(raw), nil
}

func (g *totpGenerator) provisioningURI(secret, account string) string {
	issuer := g.cfg.Issuer
	label := url.PathEscape(issuer) + ":" + url.PathEscape(account)

	q := url.Values{}
	q.Set("secret", secret)
	q.Set("issuer", issuer)
	q.Set("algorithm", strings.ToUpper(g.cfg.Algorithm))
	q.Set("digits", strconv.Itoa(g.cfg.Digits))
	q.Set("period", strconv.Itoa(g.cfg.Period))

	return "otpauth://totp/" + label + "?" + q.Encode()
}

// verify strips spaces and dashes from code and accepts it for the current
// step or any step within the configured skew.
func (g *totpGenerator) verify(secret, code string, now time.Time) bool {
	code = normalizeOneTimeCode(code)
	if len(code) != g.cfg.Digits || !isASCIIDigits(code) {
		return false
	}

	key, err := decodeTOTPSecret(secret)
	if err != nil || len(key) == 0 {
		return false
	}

	base := now.Unix() / int64(g.cfg.Period)
	ok := 0
	for step := -g.cfg.Skew; step <= g.cfg.Skew; step++ {
		counter := base + int64(step)
		if counter < 0 {
			continue
		}
		generated, err := hotpCode(key, counter, g.cfg.Digits, g.cfg.Algorithm)
		if err != nil {
			return false
		}
		// keep scanning after a match so every step costs the same
		ok |= subtle.ConstantTimeCompare([]byte(generated), []byte(code))
	}
	return ok == 1
}

// codeAt generates the code for the step containing t.
func (g *totpGenerator) codeAt(secret string, t time.Time) (string, error) {
	key, err := decodeTOTPSecret(secret)
	if err != nil {
		return "", err
	}
	return hotpCode(key, t.Unix()/int64(g.cfg.Period), g.cfg.Digits, g.cfg.Algorithm)
}

func decodeTOTPSecret(secret string) ([]byte, error) {
	secret = strings.ToUpper(strings.TrimRight(strings.ReplaceAll(secret, " ", ""), "="))
	return totpEncoding.DecodeString(secret)
}

func normalizeOneTimeCode(code string) string {
	return strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(code))
}

func isASCIIDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

// manualEntryKey groups secret into blocks of four for display.
func manualEntryKey(secret string) string {
	var b strings.Builder
	for i, r := range secret {
		if i > 0 && i%4 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func hotpCode(key []byte, counter int64, digits int, algorithm string) (string, error) {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(counter))

	hf, err := hmacFunc(algorithm)
	if err != nil {
		return "", err
	}
	mac := hmac.New(hf, key)
	_, _ = mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	truncated := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff

	mod := uint32(1)
	for i := 0; i < digits; i++ {
		mod *= 10
	}
	return fmt.Sprintf("%0*d", digits, truncated%mod), nil
}

func hmacFunc(algorithm string) (func() hash.Hash, error) {
	switch strings.ToUpper(algorithm) {
	case "", "SHA1":
		return sha1.New, nil
	case "SHA256":
		return sha256.New, nil
	case "SHA512":
		return sha512.New, nil
	default:
		return nil, errors.New("unsupported totp algorithm")
	}
}
