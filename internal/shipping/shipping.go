// Package shipping prices freight options for a validated cart.
package shipping

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/fabshop-backend/internal/catalog"
	"github.com/angelmondragon/fabshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fabshop-backend/pkg/errors"
	"github.com/angelmondragon/fabshop-backend/pkg/money"
	"github.com/angelmondragon/fabshop-backend/pkg/types"
)

// Option is one mutually exclusive way to deliver the order.
type Option struct {
	Method        enums.ShippingMethod `json:"method"`
	Name          string               `json:"name"`
	Description   string               `json:"description"`
	EstimatedDays string               `json:"estimatedDays"`
	Cost          money.Cents          `json:"cost"`
}

// Result lists every offered option and the one selected for the quote.
type Result struct {
	Options        []Option             `json:"options"`
	SelectedMethod enums.ShippingMethod `json:"selectedMethod"`
	SelectedCost   money.Cents          `json:"cost"`
	Zone           int                  `json:"zone"`
	WeightLbs      decimal.Decimal      `json:"weightLbs"`
}

type Engine struct {
	table  Table
	zones  map[string]int
	pickup map[string]struct{}
}

func NewEngine(table Table) *Engine {
	e := &Engine{
		table:  table,
		zones:  make(map[string]int, len(table.Zones)),
		pickup: make(map[string]struct{}, len(table.PickupStates)),
	}
	for state, zone := range table.Zones {
		e.zones[normalizeState(state)] = zone
	}
	for _, state := range table.PickupStates {
		e.pickup[normalizeState(state)] = struct{}{}
	}
	return e
}

// Calculate prices each method for items shipped to address. A preferred
// method that is not offered falls back to the default selection.
func (e *Engine) Calculate(items []catalog.NormalizedConfig, address types.Address, preferred enums.ShippingMethod) (Result, error) {
	if len(items) == 0 {
		return Result{}, pkgerrors.Field("items", "must contain at least one line item")
	}
	if missing := address.MissingJurisdictionFields(); len(missing) > 0 {
		return Result{}, pkgerrors.New(pkgerrors.CodeMissingAddress, "address is missing "+strings.Join(missing, ", ")).
			WithDetails(map[string]any{"fields": missing})
	}

	state := address.StateCode()
	zone := e.zoneFor(state)
	rate, ok := e.table.Rates[zone]
	if !ok {
		return Result{}, pkgerrors.New(pkgerrors.CodeInternal, "shipping table has no rate for destination zone")
	}

	weight, longest := aggregate(items)

	standard := rate.Base.Add(rate.PerLb.Mul(weight))
	if standard.LessThan(e.table.Minimum) {
		standard = e.table.Minimum
	}
	if e.table.OversizeInches.IsPositive() && longest.GreaterThan(e.table.OversizeInches) {
		standard = standard.Add(e.table.OversizeSurcharge)
	}
	expedited := standard.Mul(e.table.ExpeditedMultiplier).Add(e.table.ExpeditedFee)

	costs := map[enums.ShippingMethod]decimal.Decimal{
		enums.ShippingMethodStandardFreight:  standard,
		enums.ShippingMethodExpeditedFreight: expedited,
	}
	if _, ok := e.pickup[state]; ok {
		costs[enums.ShippingMethodLocalPickup] = decimal.Zero
	}

	result := Result{Zone: zone, WeightLbs: weight}
	for _, method := range enums.ShippingMethods() {
		cost, offered := costs[method]
		if !offered {
			continue
		}
		info := e.table.Methods[method]
		result.Options = append(result.Options, Option{
			Method:        method,
			Name:          info.Name,
			Description:   info.Description,
			EstimatedDays: info.EstimatedDays,
			Cost:          money.FromDecimal(cost),
		})
	}

	selected := e.selectOption(result.Options, preferred)
	result.SelectedMethod = selected.Method
	result.SelectedCost = selected.Cost
	return result, nil
}

// selectOption prefers the caller's method, then the table default, then the
// cheapest option. Options are in declaration order so the first minimum wins.
func (e *Engine) selectOption(options []Option, preferred enums.ShippingMethod) Option {
	for _, want := range []enums.ShippingMethod{preferred, e.table.DefaultMethod} {
		if want == "" {
			continue
		}
		for _, opt := range options {
			if opt.Method == want {
				return opt
			}
		}
	}
	best := options[0]
	for _, opt := range options[1:] {
		if opt.Cost < best.Cost {
			best = opt
		}
	}
	return best
}

func (e *Engine) zoneFor(state string) int {
	if zone, ok := e.zones[state]; ok {
		return zone
	}
	return e.table.DefaultZone
}

// aggregate sums unit weight × quantity, rounded up to the pound, and finds
// the longest single piece.
func aggregate(items []catalog.NormalizedConfig) (decimal.Decimal, decimal.Decimal) {
	weight := decimal.Zero
	longest := decimal.Zero
	for _, item := range items {
		weight = weight.Add(item.Profile.WeightLbs.Mul(decimal.NewFromInt(int64(item.Quantity))))
		longest = decimal.Max(longest, item.Profile.LongestInches)
	}
	return weight.Ceil(), longest
}

func normalizeState(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
