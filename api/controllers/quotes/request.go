package quotes

import (
	"github.com/angelmondragon/fabshop-backend/internal/cart"
	"github.com/angelmondragon/fabshop-backend/internal/catalog"
	"github.com/angelmondragon/fabshop-backend/pkg/enums"
	"github.com/angelmondragon/fabshop-backend/pkg/types"
)

// QuoteRequest is the storefront cart. Prices sent by the client are ignored.
type QuoteRequest struct {
	Items                   []catalog.LineItemConfig `json:"items"`
	Address                 types.Address            `json:"address"`
	PreferredShippingMethod enums.ShippingMethod     `json:"preferredShippingMethod,omitempty"`
	IsTaxExempt             bool                     `json:"isTaxExempt"`
	IsCustomFabrication     bool                     `json:"isCustomFabrication"`
}

func (r QuoteRequest) Input() cart.QuoteInput {
	return cart.QuoteInput{
		Items:                   r.Items,
		Address:                 r.Address,
		IsTaxExempt:             r.IsTaxExempt,
		IsCustomFabrication:     r.IsCustomFabrication,
		PreferredShippingMethod: r.PreferredShippingMethod,
	}
}
