package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jhoicas/Beras-api/internal/application/ports"
)

const defaultIdempotencyTTL = 72 * time.Hour

var _ ports.IdempotencyGuard = (*IdempotencyGuard)(nil)

// IdempotencyGuard marca IDs de evento con SETNX + TTL.
type IdempotencyGuard struct {
	client redis.Cmdable
	scope  string
	ttl    time.Duration
}

// NewIdempotencyGuard ttl <= 0 usa 72 h (ventana de reintentos del emisor).
func NewIdempotencyGuard(client redis.Cmdable, scope string, ttl time.Duration) (*IdempotencyGuard, error) {
	if client == nil {
		return nil, errors.New("redis client required for idempotency guard")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return &IdempotencyGuard{client: client, scope: scope, ttl: ttl}, nil
}

func (g *IdempotencyGuard) CheckAndMark(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, errors.New("event id is required")
	}
	set, err := g.client.SetNX(ctx, key("idempotency", g.scope, eventID), "1", g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("set idempotency key: %w", err)
	}
	return !set, nil
}

func (g *IdempotencyGuard) Delete(ctx context.Context, eventID string) error {
	if eventID == "" {
		return errors.New("event id is required")
	}
	if err := g.client.Del(ctx, key("idempotency", g.scope, eventID)).Err(); err != nil {
		return fmt.Errorf("delete idempotency key: %w", err)
	}
	return nil
}
