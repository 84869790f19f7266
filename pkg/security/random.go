package security

import (
	"crypto/rand"
	"errors"
	"math/big"
)

// LowerAlphanumeric is the alphabet used for promo pool codes.
const LowerAlphanumeric = "abcdefghijklmnopqrstuvwxyz0123456789"

// RandomString draws length characters uniformly from charset using crypto/rand.
func RandomString(length int, charset string) (string, error) {
	if length <= 0 {
		return "", errors.New("length must be positive")
	}
	if charset == "" {
		return "", errors.New("charset is required")
	}
	max := big.NewInt(int64(len(charset)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = charset[n.Int64()]
	}
	return string(out), nil
}
