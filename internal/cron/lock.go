package cron

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/bakehouse-backend/pkg/instance"
)

const defaultClaimTTL = 25 * time.Hour

// Claims make sure a job runs once per day across cron instances.
type Claims interface {
	Claim(ctx context.Context, job, day string) (bool, error)
	Release(ctx context.Context, job, day string) error
}

// redisStore defines the operations used by RedisClaims.
type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	CompareAndDelete(ctx context.Context, key, expected string) (bool, error)
	LockKey(parts ...string) string
}

// RedisClaims implements Claims using Redis SETNX + TTL. A claim is kept after
// a successful run so later ticks and other instances skip the job until the
// key expires.
type RedisClaims struct {
	client redisStore
	ttl    time.Duration

	mu     sync.Mutex
	owners map[string]string
}

// NewRedisClaims constructs a Redis-backed claim store.
func NewRedisClaims(client redisStore, ttl time.Duration) (*RedisClaims, error) {
	if client == nil {
		return nil, errors.New("redis client required for cron claims")
	}
	if ttl <= 0 {
		ttl = defaultClaimTTL
	}
	return &RedisClaims{client: client, ttl: ttl, owners: map[string]string{}}, nil
}

func (c *RedisClaims) key(job, day string) string {
	return c.client.LockKey("cron", job, day)
}

// Claim tries to own the job for day.
func (c *RedisClaims) Claim(ctx context.Context, job, day string) (bool, error) {
	key := c.key(job, day)
	owner := instance.ID() + ":" + uuid.NewString()
	ok, err := c.client.SetNX(ctx, key, owner, c.ttl)
	if err != nil {
		return false, fmt.Errorf("setnx: %w", err)
	}
	if ok {
		c.mu.Lock()
		c.owners[key] = owner
		c.mu.Unlock()
	}
	return ok, nil
}

// Release frees the claim only if this instance still owns it.
func (c *RedisClaims) Release(ctx context.Context, job, day string) error {
	key := c.key(job, day)
	c.mu.Lock()
	owner, ok := c.owners[key]
	delete(c.owners, key)
	c.mu.Unlock()
	if !ok {
		return nil
	}
	if _, err := c.client.CompareAndDelete(ctx, key, owner); err != nil {
		return fmt.Errorf("release claim: %w", err)
	}
	return nil
}
