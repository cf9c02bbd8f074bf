package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/fabshop-backend/pkg/db/models"
	"github.com/angelmondragon/fabshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fabshop-backend/pkg/errors"
	"github.com/angelmondragon/fabshop-backend/pkg/logger"
	"github.com/angelmondragon/fabshop-backend/pkg/metrics"
)

// PaymentEvent is a gateway notification translated into domain terms.
type PaymentEvent struct {
	EventID    string
	Type       enums.PaymentEventType
	IntentID   string
	Reason     string
	OccurredAt time.Time
}

// IdempotencyKey identifies the effect of an event independently of how many
// times, or under which gateway event id, it is delivered.
func (e PaymentEvent) IdempotencyKey() string {
	return e.IntentID + ":" + string(e.Type)
}

// Outcome describes what Apply did with an event.
type Outcome string

const (
	OutcomeApplied       Outcome = "applied"
	OutcomeDuplicate     Outcome = "duplicate"
	OutcomeNotApplicable Outcome = "not_applicable"
	OutcomeUnknownIntent Outcome = "unknown_intent"
	OutcomeUnknownType   Outcome = "unknown_type"
)

type ApplyResult struct {
	Outcome Outcome
	JobID   string
	Status  enums.PaymentStatus
}

// PaidHook runs after an order really transitions to paid.
type PaidHook func(ctx context.Context, order *models.Order)

type StateMachineParams struct {
	Store   Store
	Logger  *logger.Logger
	Metrics *metrics.PaymentEventMetrics
	OnPaid  PaidHook
}

// StateMachine applies payment events to orders.
type StateMachine struct {
	store   Store
	logg    *logger.Logger
	metrics *metrics.PaymentEventMetrics
	onPaid  PaidHook
	now     func() time.Time
}

func NewStateMachine(params StateMachineParams) (*StateMachine, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("order store required")
	}
	return &StateMachine{
		store:   params.Store,
		logg:    params.Logger,
		metrics: params.Metrics,
		onPaid:  params.OnPaid,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// Apply routes the event to its order by payment intent and performs the
// transition, if any. Duplicate, late and unknown events are absorbed and
// reported through the outcome; only storage failures are returned as errors.
func (m *StateMachine) Apply(ctx context.Context, event PaymentEvent) (result ApplyResult, err error) {
	defer func() {
		outcome := string(result.Outcome)
		if err != nil {
			outcome = "error"
		}
		m.metrics.IncEvent(string(event.Type), outcome)
	}()

	ctx = m.withEventFields(ctx, event)

	if !event.Type.IsValid() {
		m.warn(ctx, "payment_event.unknown_type")
		return ApplyResult{Outcome: OutcomeUnknownType}, nil
	}
	if strings.TrimSpace(event.IntentID) == "" {
		return ApplyResult{}, pkgerrors.Field("intentId", "is required")
	}

	jobID, err := m.store.JobIDForIntent(ctx, event.IntentID)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			m.warn(ctx, "payment_event.unknown_intent")
			return ApplyResult{Outcome: OutcomeUnknownIntent}, nil
		}
		return ApplyResult{}, err
	}
	if m.logg != nil {
		ctx = m.logg.WithJobID(ctx, jobID)
	}

	key := event.IdempotencyKey()
	outcome := OutcomeNotApplicable
	order, err := m.store.Mutate(ctx, jobID, func(o *models.Order) error {
		if o.AppliedEvents.Has(key) {
			outcome = OutcomeDuplicate
			return ErrNoChange
		}
		next, ok := NextStatus(o.PaymentStatus, event.Type)
		if !ok {
			outcome = OutcomeNotApplicable
			return ErrNoChange
		}
		m.transition(o, next, event)
		o.AppliedEvents = o.AppliedEvents.Add(key)
		outcome = OutcomeApplied
		return nil
	})
	if err != nil {
		return ApplyResult{}, err
	}

	result = ApplyResult{Outcome: outcome, JobID: jobID, Status: order.PaymentStatus}
	switch outcome {
	case OutcomeApplied:
		if m.logg != nil {
			m.logg.Info(m.logg.WithField(ctx, "payment_status", string(order.PaymentStatus)), "payment_event.applied")
		}
		if order.PaymentStatus == enums.PaymentStatusPaid && m.onPaid != nil {
			m.onPaid(ctx, order)
		}
	default:
		if m.logg != nil {
			m.logg.Info(m.logg.WithField(ctx, "outcome", string(outcome)), "payment_event.ignored")
		}
	}
	return result, nil
}

func (m *StateMachine) transition(o *models.Order, next enums.PaymentStatus, event PaymentEvent) {
	at := event.OccurredAt
	if at.IsZero() {
		at = m.now()
	}
	o.PaymentStatus = next
	switch next {
	case enums.PaymentStatusPaid:
		o.PaidAt = &at
	case enums.PaymentStatusFailed:
		o.FailedAt = &at
		if event.Reason != "" {
			reason := event.Reason
			o.FailureReason = &reason
		}
	case enums.PaymentStatusRefunded:
		o.RefundedAt = &at
	}
}

func (m *StateMachine) withEventFields(ctx context.Context, event PaymentEvent) context.Context {
	if m.logg == nil {
		return ctx
	}
	return m.logg.WithFields(ctx, map[string]any{
		"event_id":   event.EventID,
		"event_type": string(event.Type),
		"intent_id":  event.IntentID,
	})
}

func (m *StateMachine) warn(ctx context.Context, msg string) {
	if m.logg != nil {
		m.logg.Warn(ctx, msg)
	}
}
