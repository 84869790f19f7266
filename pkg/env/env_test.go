package env

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetFallsBackOnBlank(t *testing.T) {
	t.Setenv("BAKEHOUSE_TEST_VALUE", "   ")
	if got := Get("BAKEHOUSE_TEST_VALUE", "json"); got != "json" {
		t.Fatalf("expected fallback, got %q", got)
	}
	t.Setenv("BAKEHOUSE_TEST_VALUE", "console")
	if got := Get("BAKEHOUSE_TEST_VALUE", "json"); got != "console" {
		t.Fatalf("expected console, got %q", got)
	}
}

func TestBool(t *testing.T) {
	t.Setenv("BAKEHOUSE_TEST_FLAG", "true")
	if !Bool("BAKEHOUSE_TEST_FLAG", false) {
		t.Fatalf("expected true")
	}
	t.Setenv("BAKEHOUSE_TEST_FLAG", "nope")
	if !Bool("BAKEHOUSE_TEST_FLAG", true) {
		t.Fatalf("malformed value should return fallback")
	}
}

func TestLoadDotenv(t *testing.T) {
	if err := LoadDotenv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("missing file should be ignored: %v", err)
	}

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("BAKEHOUSE_DOTENV_PROBE=loaded\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("BAKEHOUSE_DOTENV_PROBE") })
	if err := LoadDotenv(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := os.Getenv("BAKEHOUSE_DOTENV_PROBE"); got != "loaded" {
		t.Fatalf("expected loaded, got %q", got)
	}
}
