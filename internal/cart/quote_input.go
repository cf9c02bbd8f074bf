package cart

import (
	"github.com/angelmondragon/fabshop-backend/internal/catalog"
	"github.com/angelmondragon/fabshop-backend/internal/shipping"
	"github.com/angelmondragon/fabshop-backend/internal/tax"
	"github.com/angelmondragon/fabshop-backend/pkg/enums"
	"github.com/angelmondragon/fabshop-backend/pkg/money"
	"github.com/angelmondragon/fabshop-backend/pkg/types"
)

// QuoteInput is everything the server needs to price a cart. Client totals
// are deliberately absent.
type QuoteInput struct {
	Items                   []catalog.LineItemConfig
	Address                 types.Address
	IsTaxExempt             bool
	IsCustomFabrication     bool
	PreferredShippingMethod enums.ShippingMethod
}

// Quote is the authoritative price for a cart. Total is the only amount
// ever charged.
type Quote struct {
	Lines    []catalog.NormalizedConfig `json:"lines"`
	Subtotal money.Cents                `json:"subtotal"`
	Shipping shipping.Result            `json:"shipping"`
	Tax      tax.Result                 `json:"tax"`
	Total    money.Cents                `json:"total"`
}

// CustomFabrication reports whether any line is custom work.
func (q *Quote) CustomFabrication() bool {
	for _, line := range q.Lines {
		if line.IsCustomFabrication {
			return true
		}
	}
	return false
}
