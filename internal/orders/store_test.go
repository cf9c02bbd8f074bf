package orders

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/fabshop-backend/pkg/db/models"
	"github.com/angelmondragon/fabshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fabshop-backend/pkg/errors"
)

func storeFactories() map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemoryStore() },
		"gorm":   func(t *testing.T) Store { return NewGormStore(setupOrdersTestDB(t)) },
	}
}

func TestStoreCreateAndGet(t *testing.T) {
	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := newStore(t)

			order := newTestOrder("job-1", "pi_1", enums.PaymentStatusPending)
			require.NoError(t, store.Create(ctx, order))

			got, err := store.Get(ctx, "job-1")
			require.NoError(t, err)
			assert.Equal(t, "job-1", got.JobID)
			assert.Equal(t, enums.PaymentStatusPending, got.PaymentStatus)
			assert.Equal(t, "pi_1", got.IntentID())
			require.Len(t, got.Items, 1)
			assert.Equal(t, order.Items[0].Title, got.Items[0].Title)
			assert.True(t, order.Items[0].WeightLbs.Equal(got.Items[0].WeightLbs))
			assert.Equal(t, order.TotalCents, got.TotalCents)

			jobID, err := store.JobIDForIntent(ctx, "pi_1")
			require.NoError(t, err)
			assert.Equal(t, "job-1", jobID)

			_, err = store.Get(ctx, "missing")
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

			_, err = store.JobIDForIntent(ctx, "pi_missing")
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
		})
	}
}

func TestStoreCreateRejectsDuplicates(t *testing.T) {
	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := newStore(t)
			require.NoError(t, store.Create(ctx, newTestOrder("job-1", "pi_1", enums.PaymentStatusPending)))

			err := store.Create(ctx, newTestOrder("job-1", "", enums.PaymentStatusUnpaid))
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

			err = store.Create(ctx, newTestOrder("job-2", "pi_1", enums.PaymentStatusPending))
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

			err = store.Create(ctx, newTestOrder("", "", enums.PaymentStatusUnpaid))
			assert.Equal(t, "jobId", pkgerrors.FieldOf(err))
		})
	}
}

func TestStoreMutate(t *testing.T) {
	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := newStore(t)
			require.NoError(t, store.Create(ctx, newTestOrder("job-1", "", enums.PaymentStatusUnpaid)))

			updated, err := store.Mutate(ctx, "job-1", func(o *models.Order) error {
				intent := "pi_new"
				o.PaymentIntentID = &intent
				o.PaymentStatus = enums.PaymentStatusPending
				return nil
			})
			require.NoError(t, err)
			assert.Equal(t, enums.PaymentStatusPending, updated.PaymentStatus)

			jobID, err := store.JobIDForIntent(ctx, "pi_new")
			require.NoError(t, err)
			assert.Equal(t, "job-1", jobID)

			unchanged, err := store.Mutate(ctx, "job-1", func(o *models.Order) error {
				o.PaymentStatus = enums.PaymentStatusPaid
				return ErrNoChange
			})
			require.NoError(t, err)
			assert.Equal(t, enums.PaymentStatusPending, unchanged.PaymentStatus)

			got, err := store.Get(ctx, "job-1")
			require.NoError(t, err)
			assert.Equal(t, enums.PaymentStatusPending, got.PaymentStatus)

			_, err = store.Mutate(ctx, "missing", func(o *models.Order) error { return nil })
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
		})
	}
}

func TestStoreMutateRejectsIntentOwnedByAnotherOrder(t *testing.T) {
	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := newStore(t)
			require.NoError(t, store.Create(ctx, newTestOrder("job-1", "pi_1", enums.PaymentStatusPending)))
			require.NoError(t, store.Create(ctx, newTestOrder("job-2", "", enums.PaymentStatusUnpaid)))

			_, err := store.Mutate(ctx, "job-2", func(o *models.Order) error {
				intent := "pi_1"
				o.PaymentIntentID = &intent
				return nil
			})
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

			jobID, err := store.JobIDForIntent(ctx, "pi_1")
			require.NoError(t, err)
			assert.Equal(t, "job-1", jobID)
		})
	}
}

func TestStoreMutateSerializesPerKey(t *testing.T) {
	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := newStore(t)
			require.NoError(t, store.Create(ctx, newTestOrder("job-1", "pi_1", enums.PaymentStatusPending)))

			const workers = 20
			var wg sync.WaitGroup
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := store.Mutate(ctx, "job-1", func(o *models.Order) error {
						o.AppliedEvents = append(o.AppliedEvents, "tick")
						return nil
					})
					assert.NoError(t, err)
				}()
			}
			wg.Wait()

			got, err := store.Get(ctx, "job-1")
			require.NoError(t, err)
			assert.Len(t, got.AppliedEvents, workers)
		})
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	order := newTestOrder("job-1", "pi_1", enums.PaymentStatusPending)
	require.NoError(t, store.Create(ctx, order))

	order.PaymentStatus = enums.PaymentStatusPaid
	got, err := store.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPending, got.PaymentStatus)

	got.Items[0].Lines[0] = "mutated"
	again, err := store.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, "Style: solid", again.Items[0].Lines[0])
}
