package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HMACSHA256Hex signs message with key and returns the lowercase hex digest.
func HMACSHA256Hex(key, message string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

// EqualHexDigest compares two hex digests in constant time, ignoring case.
func EqualHexDigest(a, b string) bool {
	left, err := hex.DecodeString(strings.ToLower(strings.TrimSpace(a)))
	if err != nil {
		return false
	}
	right, err := hex.DecodeString(strings.ToLower(strings.TrimSpace(b)))
	if err != nil {
		return false
	}
	return hmac.Equal(left, right)
}
