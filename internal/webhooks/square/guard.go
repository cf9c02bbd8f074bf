package squarewebhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/fabshop-backend/pkg/redis"
)

// GuardScope namespaces delivered Square event ids in redis.
const GuardScope = "square-webhook"

// Guard drops redeliveries of an event id before any work is queued. It is an
// optimization only: the state machine's own idempotency key is authoritative.
type Guard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	scope string
}

func NewGuard(store redis.IdempotencyStore, ttl time.Duration) (*Guard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Guard{store: store, ttl: ttl, scope: GuardScope}, nil
}

// CheckAndMark reports whether eventID was already seen, marking it if not.
func (g *Guard) CheckAndMark(ctx context.Context, eventID string) (bool, error) {
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

// Forget clears the mark so a gateway redelivery is processed again.
func (g *Guard) Forget(ctx context.Context, eventID string) error {
	if eventID == "" {
		return errors.New("event id is required")
	}
	return g.store.Del(ctx, g.store.IdempotencyKey(g.scope, eventID))
}
