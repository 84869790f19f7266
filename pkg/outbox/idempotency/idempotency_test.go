package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

type fakeStore struct {
	keys    map[string]bool
	setErr  error
	lastTTL time.Duration
	deleted []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{keys: map[string]bool{}}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if f.keys[key] {
		return "1", nil
	}
	return "", nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, _ any, ttl time.Duration) (bool, error) {
	if f.setErr != nil {
		return false, f.setErr
	}
	f.lastTTL = ttl
	if f.keys[key] {
		return false, nil
	}
	f.keys[key] = true
	return true, nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return "bh:idempotency:" + scope + ":" + id
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.keys, key)
		f.deleted = append(f.deleted, key)
	}
	return nil
}

func TestOnceRunsOnlyFirstDelivery(t *testing.T) {
	store := newFakeStore()
	mgr, err := NewManager(store, time.Hour)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	eventID := uuid.New()
	calls := 0
	fn := func(context.Context) error { calls++; return nil }

	if err := mgr.Once(context.Background(), "mailer", eventID, fn); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if err := mgr.Once(context.Background(), "mailer", eventID, fn); !errors.Is(err, ErrAlreadyProcessed) {
		t.Fatalf("expected ErrAlreadyProcessed, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected one call, got %d", calls)
	}
	if store.lastTTL != time.Hour {
		t.Fatalf("unexpected ttl %s", store.lastTTL)
	}
	if err := mgr.Once(context.Background(), "analytics", eventID, fn); err != nil {
		t.Fatalf("other consumer should run: %v", err)
	}
}

func TestOnceReleasesClaimOnFailure(t *testing.T) {
	store := newFakeStore()
	mgr, _ := NewManager(store, time.Minute)
	eventID := uuid.New()
	boom := errors.New("smtp down")

	if err := mgr.Once(context.Background(), "mailer", eventID, func(context.Context) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected handler error, got %v", err)
	}
	if len(store.deleted) != 1 {
		t.Fatalf("expected claim to be released")
	}
	if err := mgr.Once(context.Background(), "mailer", eventID, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("retry should run: %v", err)
	}
}

func TestOnceValidatesInput(t *testing.T) {
	mgr, _ := NewManager(newFakeStore(), time.Minute)
	noop := func(context.Context) error { return nil }
	if err := mgr.Once(context.Background(), "", uuid.New(), noop); err == nil {
		t.Fatalf("expected error for empty consumer")
	}
	if err := mgr.Once(context.Background(), "mailer", uuid.Nil, noop); err == nil {
		t.Fatalf("expected error for nil event id")
	}
	if _, err := NewManager(nil, time.Minute); err == nil {
		t.Fatalf("expected error for nil store")
	}
}
