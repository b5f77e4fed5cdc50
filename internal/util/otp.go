package util

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"math/big"
	"strings"
)

const (
	defaultOTPDigits      = 6
	defaultResetTokenSize = 32
	resetTokenAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
)

func GenerateNumericOTP(digits int) (string, error) {
	if digits <= 0 {
		digits = defaultOTPDigits
	}
	var builder strings.Builder
	builder.Grow(digits)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		builder.WriteByte(byte('0' + n.Int64()))
	}
	return builder.String(), nil
}

// GenerateResetToken returns an opaque token drawn uniformly from upper and
// lower case letters. A non-positive length falls back to 32 characters.
func GenerateResetToken(length int) (string, error) {
	if length <= 0 {
		length = defaultResetTokenSize
	}
	max := big.NewInt(int64(len(resetTokenAlphabet)))
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = resetTokenAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// HashToken is the lookup key persisted for reset tokens.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
