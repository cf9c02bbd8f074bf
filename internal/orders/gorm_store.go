package orders

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/fabshop-backend/pkg/db"
	"github.com/angelmondragon/fabshop-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/fabshop-backend/pkg/errors"
)

// GormStore persists orders in the orders table. Mutate runs inside a
// transaction that row-locks the order; the in-process key lock additionally
// serializes callers sharing one connection pool, which is all SQLite offers.
type GormStore struct {
	db       *gorm.DB
	keys     keyedMutex
	lockRows bool
}

func NewGormStore(conn *gorm.DB) *GormStore {
	return &GormStore{
		db:       conn,
		lockRows: conn.Dialector.Name() != "sqlite",
	}
}

func (s *GormStore) Create(ctx context.Context, order *models.Order) error {
	if order == nil || strings.TrimSpace(order.JobID) == "" {
		return pkgerrors.Field("jobId", "is required")
	}
	if err := s.db.WithContext(ctx).Create(order).Error; err != nil {
		return mapWriteError(err, order.JobID)
	}
	return nil
}

func (s *GormStore) Get(ctx context.Context, jobID string) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).Where("job_id = ?", jobID).Take(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errOrderNotFound(jobID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return &order, nil
}

func (s *GormStore) JobIDForIntent(ctx context.Context, intentID string) (string, error) {
	var order models.Order
	err := s.db.WithContext(ctx).
		Select("job_id").
		Where("payment_intent_id = ?", intentID).
		Take(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", pkgerrors.New(pkgerrors.CodeNotFound, "payment intent not found")
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup payment intent")
	}
	return order.JobID, nil
}

func (s *GormStore) Mutate(ctx context.Context, jobID string, fn MutateFunc) (*models.Order, error) {
	unlock := s.keys.Lock(jobID)
	defer unlock()

	var result *models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx
		if s.lockRows {
			query = query.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var current models.Order
		if err := query.Where("job_id = ?", jobID).Take(&current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errOrderNotFound(jobID)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock order")
		}

		next := current.Clone()
		if err := fn(next); err != nil {
			if errors.Is(err, ErrNoChange) {
				result = &current
				return nil
			}
			return err
		}
		next.JobID = jobID
		if err := tx.Save(next).Error; err != nil {
			return mapWriteError(err, jobID)
		}
		result = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func mapWriteError(err error, jobID string) error {
	switch {
	case db.IsUniqueViolation(err, "payment_intent_id"):
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "payment intent already attached to another order")
	case db.IsUniqueViolation(err, ""):
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "order already exists").
			WithDetails(map[string]any{"jobId": jobID})
	default:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write order")
	}
}
