package security

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"unicode"
)

const (
	passwordAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz23456789"
	suffixAlphabet   = "abcdefghijklmnopqrstuvwxyz0123456789"
	maxUsernameStem  = 20
)

// GenerateTempPassword produces a random password without look-alike characters.
func GenerateTempPassword(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("length must be positive")
	}
	return randomString(passwordAlphabet, length)
}

// GenerateUsername derives a login name from a display name plus a random
// suffix, e.g. "Acme Supplies Ltd" -> "acme.supplies.ltd.k3f9".
func GenerateUsername(name string) (string, error) {
	stem := slug(name)
	if stem == "" {
		stem = "vendor"
	}
	if len(stem) > maxUsernameStem {
		stem = strings.TrimRight(stem[:maxUsernameStem], ".")
	}
	suffix, err := randomString(suffixAlphabet, 4)
	if err != nil {
		return "", err
	}
	return stem + "." + suffix, nil
}

func slug(name string) string {
	var b strings.Builder
	lastDot := true
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			lastDot = false
		case !lastDot:
			b.WriteByte('.')
			lastDot = true
		}
	}
	return strings.TrimRight(b.String(), ".")
}

func randomString(alphabet string, length int) (string, error) {
	max := big.NewInt(int64(len(alphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("random: %w", err)
		}
		out[i] = alphabet[n.Int64()]
	}
	return string(out), nil
}
