package checkout

import (
	"github.com/angelmondragon/fabshop-backend/internal/cart"
	checkoutsvc "github.com/angelmondragon/fabshop-backend/internal/checkout"
	"github.com/angelmondragon/fabshop-backend/pkg/db/models"
	"github.com/angelmondragon/fabshop-backend/pkg/enums"
)

type CheckoutResponse struct {
	JobID           string              `json:"jobId"`
	PaymentStatus   enums.PaymentStatus `json:"paymentStatus"`
	Phase           string              `json:"phase"`
	PaymentIntentID string              `json:"paymentIntentId,omitempty"`
	RetryOf         string              `json:"retryOf,omitempty"`
	Order           *models.Order       `json:"order"`
	Quote           *cart.Quote         `json:"quote,omitempty"`
}

func newCheckoutResponse(result *checkoutsvc.Result) CheckoutResponse {
	resp := newOrderResponse(result.Order)
	resp.Quote = result.Quote
	return resp
}

func newOrderResponse(order *models.Order) CheckoutResponse {
	resp := CheckoutResponse{
		JobID:           order.JobID,
		PaymentStatus:   order.PaymentStatus,
		Phase:           order.PaymentStatus.Phase(),
		PaymentIntentID: order.IntentID(),
		Order:           order,
	}
	if order.RetryOf != nil {
		resp.RetryOf = *order.RetryOf
	}
	return resp
}
