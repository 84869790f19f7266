package instance

import "testing"

func TestIDPrefersEnvironment(t *testing.T) {
	t.Setenv("BAKEHOUSE_INSTANCE_ID", " cron-a ")
	if got := ID(); got != "cron-a" {
		t.Fatalf("expected cron-a, got %q", got)
	}
}

func TestIDFallsBack(t *testing.T) {
	t.Setenv("BAKEHOUSE_INSTANCE_ID", "")
	if ID() == "" {
		t.Fatal("expected a non-empty id")
	}
}
