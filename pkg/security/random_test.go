package security_test

import (
	"strings"
	"testing"

	"github.com/angelmondragon/bakehouse-backend/pkg/security"
)

func TestRandomString(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		code, err := security.RandomString(20, security.LowerAlphanumeric)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(code) != 20 {
			t.Fatalf("expected 20 chars, got %d", len(code))
		}
		for _, r := range code {
			if !strings.ContainsRune(security.LowerAlphanumeric, r) {
				t.Fatalf("unexpected rune %q in %s", r, code)
			}
		}
		if seen[code] {
			t.Fatalf("duplicate code %s", code)
		}
		seen[code] = true
	}
	if _, err := security.RandomString(0, security.LowerAlphanumeric); err == nil {
		t.Fatal("expected error for zero length")
	}
}

func TestHMACSHA256Hex(t *testing.T) {
	// RFC 4231 test case 2.
	got := security.HMACSHA256Hex("Jefe", "what do ya want for nothing?")
	want := "5bdcc146bf60754e6a042426089575c75a003f089d2739839dec58b964ec3843"
	if got != want {
		t.Fatalf("unexpected digest %s", got)
	}
	if !security.EqualHexDigest(strings.ToUpper(want), got) {
		t.Fatal("expected case-insensitive match")
	}
	if security.EqualHexDigest("zz", got) {
		t.Fatal("malformed digest must not match")
	}
}
