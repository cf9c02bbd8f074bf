package orders

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/fabshop-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/fabshop-backend/pkg/errors"
)

// MemoryStore keeps orders in process memory. It is only suitable for a
// single-instance deployment and for tests; orders are lost on restart.
type MemoryStore struct {
	keys keyedMutex

	mu      sync.RWMutex
	orders  map[string]*models.Order
	intents map[string]string
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders:  make(map[string]*models.Order),
		intents: make(map[string]string),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Create(ctx context.Context, order *models.Order) error {
	if order == nil || strings.TrimSpace(order.JobID) == "" {
		return pkgerrors.Field("jobId", "is required")
	}
	unlock := s.keys.Lock(order.JobID)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.orders[order.JobID]; exists {
		return pkgerrors.New(pkgerrors.CodeConflict, "order already exists").
			WithDetails(map[string]any{"jobId": order.JobID})
	}
	if intent := order.IntentID(); intent != "" {
		if _, taken := s.intents[intent]; taken {
			return pkgerrors.New(pkgerrors.CodeConflict, "payment intent already attached to another order")
		}
	}

	now := s.now()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now
	s.orders[order.JobID] = order.Clone()
	if intent := order.IntentID(); intent != "" {
		s.intents[intent] = order.JobID
	}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, jobID string) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	order, ok := s.orders[jobID]
	if !ok {
		return nil, errOrderNotFound(jobID)
	}
	return order.Clone(), nil
}

func (s *MemoryStore) JobIDForIntent(ctx context.Context, intentID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	jobID, ok := s.intents[intentID]
	if !ok {
		return "", pkgerrors.New(pkgerrors.CodeNotFound, "payment intent not found")
	}
	return jobID, nil
}

func (s *MemoryStore) Mutate(ctx context.Context, jobID string, fn MutateFunc) (*models.Order, error) {
	unlock := s.keys.Lock(jobID)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	current, err := s.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	next := current.Clone()
	if err := fn(next); err != nil {
		if errors.Is(err, ErrNoChange) {
			return current, nil
		}
		return nil, err
	}
	next.JobID = jobID

	s.mu.Lock()
	defer s.mu.Unlock()
	oldIntent, newIntent := current.IntentID(), next.IntentID()
	if newIntent != oldIntent {
		if owner, taken := s.intents[newIntent]; newIntent != "" && taken && owner != jobID {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment intent already attached to another order")
		}
		if oldIntent != "" {
			delete(s.intents, oldIntent)
		}
		if newIntent != "" {
			s.intents[newIntent] = jobID
		}
	}
	next.UpdatedAt = s.now()
	s.orders[jobID] = next.Clone()
	return next, nil
}

func errOrderNotFound(jobID string) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "order not found").
		WithDetails(map[string]any{"jobId": jobID})
}
