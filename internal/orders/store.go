package orders

import (
	"context"
	"errors"
	"sync"

	"github.com/angelmondragon/fabshop-backend/pkg/db/models"
)

// ErrNoChange is returned by a MutateFunc to leave the stored order untouched.
var ErrNoChange = errors.New("orders: no change")

// MutateFunc inspects the current order and edits it in place.
type MutateFunc func(order *models.Order) error

// Store owns every Order. Mutate is the single serialization point per job id:
// the read, the decision made by fn and the write happen inside one exclusive
// section, so concurrent callers for the same key observe each other's writes.
type Store interface {
	Create(ctx context.Context, order *models.Order) error
	Get(ctx context.Context, jobID string) (*models.Order, error)
	JobIDForIntent(ctx context.Context, intentID string) (string, error)
	Mutate(ctx context.Context, jobID string, fn MutateFunc) (*models.Order, error)
}

// keyedMutex hands out one mutex per key and forgets keys nobody holds.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
