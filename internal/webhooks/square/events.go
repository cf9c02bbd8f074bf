package squarewebhook

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/angelmondragon/fabshop-backend/internal/orders"
	"github.com/angelmondragon/fabshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fabshop-backend/pkg/errors"
)

// Event is the Square webhook envelope. Only the payment and refund objects
// are decoded; other object types pass through as unrecognized.
type Event struct {
	MerchantID string    `json:"merchant_id"`
	Type       string    `json:"type"`
	EventID    string    `json:"event_id"`
	CreatedAt  time.Time `json:"created_at"`
	Data       EventData `json:"data"`
}

type EventData struct {
	Type   string      `json:"type"`
	ID     string      `json:"id"`
	Object EventObject `json:"object"`
}

type EventObject struct {
	Payment *Payment `json:"payment,omitempty"`
	Refund  *Refund  `json:"refund,omitempty"`
}

type Payment struct {
	ID          string       `json:"id"`
	Status      string       `json:"status"`
	ReferenceID string       `json:"reference_id,omitempty"`
	UpdatedAt   time.Time    `json:"updated_at"`
	CardDetails *CardDetails `json:"card_details,omitempty"`
}

type CardDetails struct {
	Status string        `json:"status"`
	Errors []SquareError `json:"errors,omitempty"`
}

type SquareError struct {
	Category string `json:"category"`
	Code     string `json:"code"`
	Detail   string `json:"detail,omitempty"`
}

type Refund struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	PaymentID string    `json:"payment_id"`
	Reason    string    `json:"reason,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ParseEvent decodes a verified webhook body.
func ParseEvent(body []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed webhook payload")
	}
	if strings.TrimSpace(event.EventID) == "" {
		return nil, pkgerrors.Field("event_id", "is required")
	}
	if strings.TrimSpace(event.Type) == "" {
		return nil, pkgerrors.Field("type", "is required")
	}
	return &event, nil
}

// Translate maps a Square event onto the order state machine's vocabulary.
// ok is false for events that carry no payment outcome, such as a payment
// update that is still APPROVED.
func Translate(event *Event) (orders.PaymentEvent, bool) {
	if event == nil {
		return orders.PaymentEvent{}, false
	}
	out := orders.PaymentEvent{EventID: event.EventID, OccurredAt: event.CreatedAt}

	switch strings.ToLower(event.Type) {
	case "payment.created", "payment.updated":
		payment := event.Data.Object.Payment
		if payment == nil {
			return orders.PaymentEvent{}, false
		}
		out.IntentID = paymentID(payment.ID, event.Data.ID)
		if !payment.UpdatedAt.IsZero() {
			out.OccurredAt = payment.UpdatedAt
		}
		switch strings.ToUpper(payment.Status) {
		case "COMPLETED":
			out.Type = enums.PaymentEventSucceeded
		case "FAILED", "CANCELED":
			out.Type = enums.PaymentEventFailed
			out.Reason = failureReason(payment)
		default:
			return orders.PaymentEvent{}, false
		}
		return out, true

	case "refund.created", "refund.updated":
		refund := event.Data.Object.Refund
		if refund == nil || strings.ToUpper(refund.Status) != "COMPLETED" {
			return orders.PaymentEvent{}, false
		}
		out.IntentID = strings.TrimSpace(refund.PaymentID)
		out.Type = enums.PaymentEventRefunded
		out.Reason = refund.Reason
		if !refund.UpdatedAt.IsZero() {
			out.OccurredAt = refund.UpdatedAt
		}
		return out, true
	}
	return orders.PaymentEvent{}, false
}

func paymentID(objectID, dataID string) string {
	if id := strings.TrimSpace(objectID); id != "" {
		return id
	}
	return strings.TrimSpace(dataID)
}

func failureReason(payment *Payment) string {
	if payment.CardDetails != nil && len(payment.CardDetails.Errors) > 0 {
		if code := payment.CardDetails.Errors[0].Code; code != "" {
			return code
		}
	}
	if strings.EqualFold(payment.Status, "CANCELED") {
		return "payment_canceled"
	}
	return "payment_failed"
}
