package orders

import "github.com/angelmondragon/fabshop-backend/pkg/enums"

// NextStatus returns the status an event moves an order into. ok is false when
// the event does not apply to the current status; callers treat that as a
// no-op, never as an error.
//
//	pending  --payment_succeeded--> paid
//	pending  --payment_failed-----> failed
//	paid     --charge_refunded----> refunded
func NextStatus(current enums.PaymentStatus, event enums.PaymentEventType) (next enums.PaymentStatus, ok bool) {
	switch event {
	case enums.PaymentEventSucceeded:
		if current == enums.PaymentStatusPending {
			return enums.PaymentStatusPaid, true
		}
	case enums.PaymentEventFailed:
		if current == enums.PaymentStatusPending {
			return enums.PaymentStatusFailed, true
		}
	case enums.PaymentEventRefunded:
		if current == enums.PaymentStatusPaid {
			return enums.PaymentStatusRefunded, true
		}
	}
	return current, false
}
