package squarewebhook

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/fabshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fabshop-backend/pkg/errors"
)

func TestTranslate(t *testing.T) {
	updated := time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC)
	tests := []struct {
		name       string
		event      *Event
		ok         bool
		wantType   enums.PaymentEventType
		wantIntent string
		wantReason string
	}{
		{
			name: "completed payment",
			event: &Event{EventID: "e1", Type: "payment.updated", Data: EventData{
				Object: EventObject{Payment: &Payment{ID: "pay_1", Status: "COMPLETED", UpdatedAt: updated}},
			}},
			ok: true, wantType: enums.PaymentEventSucceeded, wantIntent: "pay_1",
		},
		{
			name: "failed payment carries card error",
			event: &Event{EventID: "e2", Type: "payment.updated", Data: EventData{
				Object: EventObject{Payment: &Payment{ID: "pay_2", Status: "FAILED", CardDetails: &CardDetails{
					Status: "FAILED", Errors: []SquareError{{Category: "PAYMENT_METHOD_ERROR", Code: "CARD_DECLINED"}},
				}}},
			}},
			ok: true, wantType: enums.PaymentEventFailed, wantIntent: "pay_2", wantReason: "CARD_DECLINED",
		},
		{
			name: "canceled payment",
			event: &Event{EventID: "e3", Type: "payment.updated", Data: EventData{
				ID:     "pay_3",
				Object: EventObject{Payment: &Payment{Status: "CANCELED"}},
			}},
			ok: true, wantType: enums.PaymentEventFailed, wantIntent: "pay_3", wantReason: "payment_canceled",
		},
		{
			name: "approved payment has no outcome yet",
			event: &Event{EventID: "e4", Type: "payment.created", Data: EventData{
				Object: EventObject{Payment: &Payment{ID: "pay_4", Status: "APPROVED"}},
			}},
		},
		{
			name: "completed refund keyed by payment",
			event: &Event{EventID: "e5", Type: "refund.updated", Data: EventData{
				Object: EventObject{Refund: &Refund{ID: "ref_1", PaymentID: "pay_5", Status: "COMPLETED", Reason: "damaged"}},
			}},
			ok: true, wantType: enums.PaymentEventRefunded, wantIntent: "pay_5", wantReason: "damaged",
		},
		{
			name: "pending refund",
			event: &Event{EventID: "e6", Type: "refund.created", Data: EventData{
				Object: EventObject{Refund: &Refund{ID: "ref_2", PaymentID: "pay_6", Status: "PENDING"}},
			}},
		},
		{
			name:  "payment event without object",
			event: &Event{EventID: "e7", Type: "payment.updated"},
		},
		{
			name:  "unrelated event",
			event: &Event{EventID: "e8", Type: "invoice.paid"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Translate(tc.event)
			require.Equal(t, tc.ok, ok)
			if !tc.ok {
				return
			}
			require.Equal(t, tc.wantType, got.Type)
			require.Equal(t, tc.wantIntent, got.IntentID)
			require.Equal(t, tc.wantReason, got.Reason)
			require.Equal(t, tc.event.EventID, got.EventID)
		})
	}

	_, ok := Translate(nil)
	require.False(t, ok)
}

func TestTranslateUsesPaymentUpdateTime(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	updated := created.Add(time.Minute)
	got, ok := Translate(&Event{EventID: "e1", Type: "payment.updated", CreatedAt: created, Data: EventData{
		Object: EventObject{Payment: &Payment{ID: "pay_1", Status: "COMPLETED", UpdatedAt: updated}},
	}})
	require.True(t, ok)
	require.Equal(t, updated, got.OccurredAt)
}

func TestParseEvent(t *testing.T) {
	event, err := ParseEvent(paymentBody("evt-1", "pay_1", "COMPLETED"))
	require.NoError(t, err)
	require.Equal(t, "evt-1", event.EventID)
	require.Equal(t, "payment.updated", event.Type)
	require.NotNil(t, event.Data.Object.Payment)
	require.Equal(t, "JOB-1", event.Data.Object.Payment.ReferenceID)

	_, err = ParseEvent([]byte(`{"type":"payment.updated"}`))
	require.Equal(t, "event_id", pkgerrors.FieldOf(err))

	_, err = ParseEvent([]byte(`{"event_id":"e"}`))
	require.Equal(t, "type", pkgerrors.FieldOf(err))

	_, err = ParseEvent([]byte(`[`))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
