package utils

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math/big"
)

// RefreshTokenBytes is the entropy of an opaque refresh token.
const RefreshTokenBytes = 64

// VerificationTokenBytes is the entropy of email-verification and
// password-reset tokens.
const VerificationTokenBytes = 32

// GenerateOpaqueToken returns n cryptographically random bytes encoded as
// URL-safe text without padding.
func GenerateOpaqueToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// GenerateOTPCode returns a uniformly distributed 6-digit numeric code in
// [100000, 999999].
func GenerateOTPCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("failed to generate otp code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
