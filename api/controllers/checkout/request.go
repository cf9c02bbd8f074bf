package checkout

import (
	"github.com/angelmondragon/fabshop-backend/api/controllers/quotes"
	checkoutsvc "github.com/angelmondragon/fabshop-backend/internal/checkout"
	"github.com/angelmondragon/fabshop-backend/pkg/types"
)

// CheckoutRequest is an accepted quote plus contact details. SourceID is the
// tokenized card; without it the order is created unpaid.
type CheckoutRequest struct {
	quotes.QuoteRequest
	JobID    string         `json:"jobId,omitempty" validate:"omitempty,max=64"`
	Customer types.Customer `json:"customer"`
	SourceID string         `json:"sourceId,omitempty"`
}

func (r CheckoutRequest) Input() checkoutsvc.Input {
	return checkoutsvc.Input{
		JobID:    r.JobID,
		Quote:    r.QuoteRequest.Input(),
		Customer: r.Customer,
		SourceID: r.SourceID,
	}
}

type PaymentIntentRequest struct {
	SourceID string `json:"sourceId" validate:"required"`
}

type RetryRequest struct {
	JobID    string `json:"jobId,omitempty" validate:"omitempty,max=64"`
	SourceID string `json:"sourceId,omitempty"`
}
