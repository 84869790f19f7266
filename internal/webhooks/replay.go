package webhooks

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ReplayStore is the redis surface the guard needs.
type ReplayStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	WebhookKey(gateway, eventID string) string
}

// ReplayGuard drops gateway deliveries that were already accepted. It is a
// first line only; the order payment log dedupes by gateway reference too.
type ReplayGuard struct {
	store   ReplayStore
	ttl     time.Duration
	gateway string
}

func NewReplayGuard(store ReplayStore, ttl time.Duration, gateway string) (*ReplayGuard, error) {
	if store == nil {
		return nil, errors.New("replay store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if gateway == "" {
		return nil, errors.New("gateway is required")
	}
	return &ReplayGuard{store: store, ttl: ttl, gateway: gateway}, nil
}

// CheckAndMark reports whether eventID was seen before and marks it otherwise.
func (g *ReplayGuard) CheckAndMark(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, errors.New("event id is required")
	}
	set, err := g.store.SetNX(ctx, g.store.WebhookKey(g.gateway, eventID), "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set webhook key: %w", err)
	}
	return !set, nil
}

// Delete forgets eventID so a failed delivery can be retried by the gateway.
func (g *ReplayGuard) Delete(ctx context.Context, eventID string) error {
	if eventID == "" {
		return errors.New("event id is required")
	}
	return g.store.Del(ctx, g.store.WebhookKey(g.gateway, eventID))
}
