package quotes

import (
	"github.com/angelmondragon/fabshop-backend/internal/cart"
	"github.com/angelmondragon/fabshop-backend/internal/catalog"
	"github.com/angelmondragon/fabshop-backend/internal/shipping"
	"github.com/angelmondragon/fabshop-backend/internal/tax"
	"github.com/angelmondragon/fabshop-backend/pkg/money"
)

type QuoteResponse struct {
	Success  bool                       `json:"success"`
	Subtotal money.Cents                `json:"subtotal"`
	Tax      tax.Result                 `json:"tax"`
	Shipping shipping.Result            `json:"shipping"`
	Total    money.Cents                `json:"total"`
	Lines    []catalog.NormalizedConfig `json:"lines"`
}

func newQuoteResponse(q *cart.Quote) QuoteResponse {
	return QuoteResponse{
		Success:  true,
		Subtotal: q.Subtotal,
		Tax:      q.Tax,
		Shipping: q.Shipping,
		Total:    q.Total,
		Lines:    q.Lines,
	}
}
