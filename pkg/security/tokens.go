package security

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

const (
	alnumCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	upperCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// RecoveryTokenLength matches the length of links already in customers' inboxes.
	RecoveryTokenLength = 20
	couponSuffixLength  = 6
)

// NewRecoveryToken returns a random alphanumeric token for a recovery link.
func NewRecoveryToken() (string, error) {
	return randomString(alnumCharset, RecoveryTokenLength)
}

// NewCouponCode returns prefix followed by six uppercase alphanumerics.
func NewCouponCode(prefix string) (string, error) {
	suffix, err := randomString(upperCharset, couponSuffixLength)
	if err != nil {
		return "", err
	}
	return strings.ToUpper(strings.TrimSpace(prefix)) + suffix, nil
}

// NewSessionID mints an opaque storefront session identifier.
func NewSessionID() (string, error) {
	return randomString(alnumCharset, 32)
}

func randomString(charset string, length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("length must be positive")
	}
	max := big.NewInt(int64(len(charset)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		out[i] = charset[n.Int64()]
	}
	return string(out), nil
}
