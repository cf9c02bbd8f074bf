package squarewebhook

import (
	"context"
	"errors"

	"github.com/angelmondragon/fabshop-backend/internal/dispatch"
	"github.com/angelmondragon/fabshop-backend/internal/orders"
	pkgerrors "github.com/angelmondragon/fabshop-backend/pkg/errors"
	"github.com/angelmondragon/fabshop-backend/pkg/logger"
	"github.com/angelmondragon/fabshop-backend/pkg/metrics"
)

type verifier interface {
	Verify(body []byte, header string) error
}

// Applier is the order state machine.
type Applier interface {
	Apply(ctx context.Context, event orders.PaymentEvent) (orders.ApplyResult, error)
}

// Queue runs work asynchronously, ordered per key.
type Queue interface {
	Submit(key, id string, job dispatch.Job) error
}

type ServiceParams struct {
	// Verifier is nil when no signature key is configured; every delivery is
	// then refused.
	Verifier verifier
	Applier  Applier
	Guard    *Guard
	// Queue is optional. Without it events are applied before responding.
	Queue   Queue
	Metrics *metrics.PaymentEventMetrics
	Logger  *logger.Logger
}

type Service struct {
	verifier verifier
	applier  Applier
	guard    *Guard
	queue    Queue
	metrics  *metrics.PaymentEventMetrics
	logg     *logger.Logger
}

// Receipt describes what happened to an accepted delivery.
type Receipt struct {
	EventID    string
	Duplicate  bool
	Recognized bool
	Queued     bool
	Outcome    orders.Outcome
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Applier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment event applier required")
	}
	return &Service{
		verifier: params.Verifier,
		applier:  params.Applier,
		guard:    params.Guard,
		queue:    params.Queue,
		metrics:  params.Metrics,
		logg:     params.Logger,
	}, nil
}

// Receive authenticates, decodes and routes one webhook delivery. The
// signature is checked before the body is parsed or any order is looked up.
func (s *Service) Receive(ctx context.Context, body []byte, signature string) (*Receipt, error) {
	if s.verifier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "webhook signature key not configured")
	}
	if err := s.verifier.Verify(body, signature); err != nil {
		s.metrics.IncRejected("signature")
		if s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "security_event", "webhook_signature_rejected"), "square_webhook.signature_rejected")
		}
		return nil, err
	}

	event, err := ParseEvent(body)
	if err != nil {
		s.metrics.IncRejected("malformed")
		return nil, err
	}
	if s.logg != nil {
		ctx = s.logg.WithFields(ctx, map[string]any{
			"event_id":          event.EventID,
			"square_event_type": event.Type,
		})
	}
	receipt := &Receipt{EventID: event.EventID}

	if s.guard != nil {
		duplicate, err := s.guard.CheckAndMark(ctx, event.EventID)
		switch {
		case err != nil:
			// The state machine still deduplicates; carry on without the guard.
			if s.logg != nil {
				s.logg.Error(ctx, "square_webhook.guard_unavailable", err)
			}
		case duplicate:
			if s.logg != nil {
				s.logg.Info(ctx, "square_webhook.duplicate_delivery")
			}
			receipt.Duplicate = true
			return receipt, nil
		}
	}

	payment, ok := Translate(event)
	if !ok {
		s.metrics.IncEvent(event.Type, "unrecognized")
		if s.logg != nil {
			s.logg.Info(ctx, "square_webhook.ignored")
		}
		return receipt, nil
	}
	receipt.Recognized = true

	if s.queue != nil {
		err := s.queue.Submit(payment.IntentID, event.EventID, func(jobCtx context.Context) error {
			_, err := s.applier.Apply(jobCtx, payment)
			return err
		})
		if err != nil {
			s.forget(ctx, event.EventID)
			if errors.Is(err, dispatch.ErrQueueFull) || errors.Is(err, dispatch.ErrStopped) {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "webhook queue unavailable")
			}
			return nil, err
		}
		receipt.Queued = true
		return receipt, nil
	}

	result, err := s.applier.Apply(ctx, payment)
	if err != nil {
		s.forget(ctx, event.EventID)
		return nil, err
	}
	receipt.Outcome = result.Outcome
	return receipt, nil
}

// Dropped is the dispatcher's drop callback. The event id is released so a
// manual or gateway redelivery is processed.
func (s *Service) Dropped(_ string, eventID string, err error) {
	ctx := context.Background()
	if s.logg != nil {
		s.logg.Error(s.logg.WithEventID(ctx, eventID), "square_webhook.event_dropped", err)
	}
	s.forget(ctx, eventID)
}

func (s *Service) forget(ctx context.Context, eventID string) {
	if s.guard == nil || eventID == "" {
		return
	}
	if err := s.guard.Forget(ctx, eventID); err != nil && s.logg != nil {
		s.logg.Error(ctx, "square_webhook.guard_release_failed", err)
	}
}
