package hitpay

import (
	"net/url"
	"sort"
	"strings"

	"github.com/angelmondragon/bakehouse-backend/pkg/security"
)

const signatureField = "hmac"

// Sign computes the HitPay signature: the fields sorted by key, concatenated as
// key+value (excluding hmac), signed with HMAC-SHA256 using the salt.
func Sign(salt string, values url.Values) string {
	keys := make([]string, 0, len(values))
	for key := range values {
		if key == signatureField {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		b.WriteString(key)
		b.WriteString(values.Get(key))
	}
	return security.HMACSHA256Hex(salt, b.String())
}

// VerifySignature reports whether the hmac field matches the payload.
func VerifySignature(salt string, values url.Values) bool {
	provided := values.Get(signatureField)
	if provided == "" || salt == "" {
		return false
	}
	return security.EqualHexDigest(provided, Sign(salt, values))
}
