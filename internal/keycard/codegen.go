package keycard

import (
	"crypto/rand"
	"fmt"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// GenerateCode draws length random bytes and maps each one onto the
// 62-symbol alphabet. The mod mapping is slightly biased towards the
// first symbols, which is acceptable for redemption codes. Uniqueness
// is not guaranteed here; the store's unique index on code is the
// authority and a collision is handled by regenerating.
func GenerateCode(length int) (string, error) {
	if length < 1 {
		return "", fmt.Errorf("code length must be positive, got %d", length)
	}
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("random source: %w", err)
	}
	code := make([]byte, length)
	for i, b := range buf {
		code[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(code), nil
}
