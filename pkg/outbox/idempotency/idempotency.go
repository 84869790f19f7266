package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrAlreadyProcessed is returned by Once when the consumer already handled the event.
var ErrAlreadyProcessed = errors.New("event already processed")

// Store is the redis surface the manager needs.
type Store interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// Manager remembers which events a consumer has handled.
// Keys look like `bh:idempotency:evt:<consumer>:<event_id>`.
type Manager struct {
	store Store
	ttl   time.Duration
}

func NewManager(store Store, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Manager{store: store, ttl: ttl}, nil
}

// Once runs fn unless eventID was already claimed by consumer. A failing fn
// releases the claim so redelivery can try again.
func (m *Manager) Once(ctx context.Context, consumer string, eventID uuid.UUID, fn func(context.Context) error) error {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return err
	}
	claimed, err := m.store.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), m.ttl)
	if err != nil {
		return fmt.Errorf("claim %s: %w", key, err)
	}
	if !claimed {
		return ErrAlreadyProcessed
	}
	if err := fn(ctx); err != nil {
		if delErr := m.store.Del(ctx, key); delErr != nil {
			return errors.Join(err, fmt.Errorf("release %s: %w", key, delErr))
		}
		return err
	}
	return nil
}

func (m *Manager) key(consumer string, eventID uuid.UUID) (string, error) {
	if consumer == "" {
		return "", errors.New("consumer name is required")
	}
	if eventID == uuid.Nil {
		return "", errors.New("event id is required")
	}
	return m.store.IdempotencyKey("evt:"+consumer, eventID.String()), nil
}
