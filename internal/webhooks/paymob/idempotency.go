package paymobwebhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/karimfahmy/nilecart-backend/pkg/redis"
)

// IdempotencyGuard is a Redis fast path that drops callback replays before
// they reach the database. The unique transaction reference constraint is the
// real authority; losing a Redis key only costs a duplicate no-op.
type IdempotencyGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	scope string
}

func NewIdempotencyGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &IdempotencyGuard{
		store: store,
		ttl:   ttl,
		scope: scope,
	}, nil
}

func (g *IdempotencyGuard) CheckAndMark(ctx context.Context, txnRef string) (bool, error) {
	if txnRef == "" {
		return false, errors.New("transaction ref is required")
	}
	key := g.store.IdempotencyKey(g.scope, txnRef)
	set, err := g.store.SetNX(ctx, key, "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set idempotency key: %w", err)
	}
	return !set, nil
}

func (g *IdempotencyGuard) Delete(ctx context.Context, txnRef string) error {
	if txnRef == "" {
		return errors.New("transaction ref is required")
	}
	key := g.store.IdempotencyKey(g.scope, txnRef)
	return g.store.Del(ctx, key)
}
