package enums

import "fmt"

// PaymentEventType names the gateway events the order state machine understands.
type PaymentEventType string

const (
	PaymentEventSucceeded PaymentEventType = "payment_succeeded"
	PaymentEventFailed    PaymentEventType = "payment_failed"
	PaymentEventRefunded  PaymentEventType = "charge_refunded"
)

var validPaymentEventTypes = []PaymentEventType{
	PaymentEventSucceeded,
	PaymentEventFailed,
	PaymentEventRefunded,
}

// String implements fmt.Stringer.
func (p PaymentEventType) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentEventType.
func (p PaymentEventType) IsValid() bool {
	for _, candidate := range validPaymentEventTypes {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentEventType converts raw input into a PaymentEventType.
func ParsePaymentEventType(value string) (PaymentEventType, error) {
	for _, candidate := range validPaymentEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment event type %q", value)
}
