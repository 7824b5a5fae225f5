package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lucalabs/luca-backend/pkg/redis"
)

// RedisGuard is the SetNX-based delivery dedupe. It only short-circuits
// repeat deliveries; the financial_events unique index is the real guarantee.
type RedisGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	scope string
}

// NewRedisGuard builds the guard. Keys expire after ttl so a crashed worker
// cannot block a redelivery forever.
func NewRedisGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*RedisGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &RedisGuard{store: store, ttl: ttl, scope: scope}, nil
}

// CheckAndMark returns true when the event was already seen.
func (g *RedisGuard) CheckAndMark(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, errors.New("event id is required")
	}
	key := g.store.IdempotencyKey(g.scope, eventID)
	set, err := g.store.SetNX(ctx, key, "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set idempotency key: %w", err)
	}
	return !set, nil
}

// Delete removes the mark so a failed delivery can be retried by the provider.
func (g *RedisGuard) Delete(ctx context.Context, eventID string) error {
	if eventID == "" {
		return errors.New("event id is required")
	}
	key := g.store.IdempotencyKey(g.scope, eventID)
	return g.store.Del(ctx, key)
}
