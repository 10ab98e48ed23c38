// Package token issues opaque secrets (password-reset tokens, OTP codes) and
// the one-way digests that are stored in their place.
package token

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
)

// Size is the number of random bytes behind every generated token.
const Size = 32

// Generate returns a hex-encoded token carrying Size bytes of entropy.
func Generate() (string, error) {
	b := make([]byte, Size)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Hash returns the hex-encoded SHA-256 digest of t.
func Hash(t string) string {
	sum := sha256.Sum256([]byte(t))
	return hex.EncodeToString(sum[:])
}

// Verify re-hashes t and compares it against digest in constant time.
func Verify(t, digest string) bool {
	return subtle.ConstantTimeCompare([]byte(Hash(t)), []byte(digest)) == 1
}

// NumericCode returns a uniformly random code of exactly digits decimal
// digits with no leading zero.
func NumericCode(digits int) (string, error) {
	if digits < 1 || digits > 18 {
		return "", fmt.Errorf("numeric code: unsupported length %d", digits)
	}
	low := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits-1)), nil)
	span := new(big.Int).Sub(new(big.Int).Mul(low, big.NewInt(10)), low)
	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return "", fmt.Errorf("numeric code: %w", err)
	}
	return n.Add(n, low).String(), nil
}
