package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestCursorRoundTrip(t *testing.T) {
	want := Cursor{CreatedAt: time.Date(2024, 5, 1, 9, 30, 0, 123, time.UTC), ID: uuid.New()}
	got, err := ParseCursor(EncodeCursor(want))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) || got.ID != want.ID {
		t.Fatalf("got %+v want %+v", got, want)
	}
	if c, err := ParseCursor(" "); err != nil || c != nil {
		t.Fatalf("expected nil cursor for blank input")
	}
	if _, err := ParseCursor("bm90LWEtY3Vyc29y"); err == nil {
		t.Fatalf("expected format error")
	}
}

func TestBuildTrimsBufferRow(t *testing.T) {
	type row struct {
		id      uuid.UUID
		created time.Time
	}
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	rows := []row{
		{uuid.New(), base.Add(3 * time.Minute)},
		{uuid.New(), base.Add(2 * time.Minute)},
		{uuid.New(), base.Add(time.Minute)},
	}
	cursorOf := func(r row) Cursor { return Cursor{CreatedAt: r.created, ID: r.id} }

	page := Build(rows, 2, cursorOf)
	if len(page.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(page.Items))
	}
	next, err := ParseCursor(page.NextCursor)
	if err != nil || next.ID != rows[1].id {
		t.Fatalf("expected cursor at second row, got %+v err=%v", next, err)
	}

	last := Build(rows[:1], 2, cursorOf)
	if last.NextCursor != "" {
		t.Fatalf("expected no next cursor on final page")
	}
	empty := Build[row](nil, 2, cursorOf)
	if empty.Items == nil {
		t.Fatalf("expected empty slice, not nil")
	}
}

func TestNormalizeLimit(t *testing.T) {
	if NormalizeLimit(0) != DefaultLimit || NormalizeLimit(500) != MaxLimit || NormalizeLimit(7) != 7 {
		t.Fatalf("unexpected normalization")
	}
	if _, err := Scope("orders", Params{Cursor: "%%%"}); err == nil {
		t.Fatalf("expected bad cursor to fail")
	}
}
