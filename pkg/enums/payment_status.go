package enums

import (
	"fmt"
	"strings"
)

// PaymentStatus tracks where an order sits in the payment lifecycle.
type PaymentStatus string

const (
	PaymentStatusUnpaid   PaymentStatus = "unpaid"
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// phases names each status the way the storefront describes the lifecycle:
// created, awaiting_payment, then paid, failed or refunded.
var phases = map[PaymentStatus]string{
	PaymentStatusUnpaid:   "created",
	PaymentStatusPending:  "awaiting_payment",
	PaymentStatusPaid:     "paid",
	PaymentStatusFailed:   "failed",
	PaymentStatusRefunded: "refunded",
}

func (p PaymentStatus) String() string {
	return string(p)
}

func (p PaymentStatus) IsValid() bool {
	_, ok := phases[p]
	return ok
}

// Phase returns the lifecycle name of the status, or "" when unknown.
func (p PaymentStatus) Phase() string {
	return phases[p]
}

// IsTerminal reports whether no payment event can move the order to a new
// payment state except a refund of a paid order.
func (p PaymentStatus) IsTerminal() bool {
	switch p {
	case PaymentStatusPaid, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

// ParsePaymentStatus accepts either the stored value or its phase name.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	for status, phase := range phases {
		if string(status) == v || phase == v {
			return status, nil
		}
	}
	return "", fmt.Errorf("invalid payment status %q", value)
}
