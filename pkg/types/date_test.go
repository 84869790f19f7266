package types

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDateOfUsesLocation(t *testing.T) {
	sgt, err := time.LoadLocation("Asia/Singapore")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	instant := time.Date(2024, 5, 1, 17, 30, 0, 0, time.UTC)
	if got := DateOf(instant, sgt).String(); got != "2024-05-02" {
		t.Fatalf("expected 2024-05-02 in Singapore, got %s", got)
	}
	if got := DateOf(instant, time.UTC).String(); got != "2024-05-01" {
		t.Fatalf("expected 2024-05-01 in UTC, got %s", got)
	}
}

func TestParseDateAcceptsTimestamps(t *testing.T) {
	d, err := ParseDate("2024-05-02T16:00:00.000Z")
	if err != nil || d.String() != "2024-05-02" {
		t.Fatalf("unexpected %s err=%v", d, err)
	}
	if _, err := ParseDate("02/05/2024"); err == nil {
		t.Fatalf("expected error for unsupported layout")
	}
}

func TestDateArithmetic(t *testing.T) {
	d := MustParseDate("2024-02-28")
	if got := d.AddDays(2).String(); got != "2024-03-01" {
		t.Fatalf("unexpected %s", got)
	}
	if got := d.DaysUntil(MustParseDate("2024-03-01")); got != 2 {
		t.Fatalf("expected 2 days, got %d", got)
	}
	if d.Weekday() != time.Wednesday {
		t.Fatalf("expected Wednesday, got %s", d.Weekday())
	}
}

func TestDateScanAndJSON(t *testing.T) {
	var d Date
	if err := d.Scan(time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("scan time: %v", err)
	}
	raw, err := json.Marshal(d)
	if err != nil || string(raw) != `"2024-05-02"` {
		t.Fatalf("unexpected json %s err=%v", raw, err)
	}
	var back Date
	if err := json.Unmarshal(raw, &back); err != nil || !back.Equal(d) {
		t.Fatalf("roundtrip failed: %v", err)
	}
	if err := back.Scan([]byte("2024-06-01")); err != nil || back.String() != "2024-06-01" {
		t.Fatalf("scan bytes failed: %v", err)
	}
}
