package orders

import (
	"testing"
	"time"

	pkgerrors "github.com/angelmondragon/bakehouse-backend/pkg/errors"
)

func TestNextNumber(t *testing.T) {
	got, err := nextNumber("")
	if err != nil || got != FirstOrderNumber {
		t.Fatalf("expected %s, got %q (%v)", FirstOrderNumber, got, err)
	}
	got, err = nextNumber("210999")
	if err != nil || got != "211000" {
		t.Fatalf("expected 211000, got %q (%v)", got, err)
	}
	if _, err := nextNumber("A-1"); !pkgerrors.IsCode(err, pkgerrors.CodeInternal) {
		t.Fatalf("expected internal error for non numeric number, got %v", err)
	}
}

func TestBackoffDoubles(t *testing.T) {
	base := 20 * time.Millisecond
	for attempt, want := range []time.Duration{20 * time.Millisecond, 40 * time.Millisecond, 80 * time.Millisecond} {
		if got := backoff(base, attempt); got != want {
			t.Fatalf("attempt %d: expected %s, got %s", attempt, want, got)
		}
	}
	if got := backoff(0, 3); got != 0 {
		t.Fatalf("expected no wait without a base, got %s", got)
	}
}
