package shipping

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/fabshop-backend/pkg/enums"
)

// ZoneRate is the freight rate card for one destination zone.
type ZoneRate struct {
	Base  decimal.Decimal `json:"base"`
	PerLb decimal.Decimal `json:"perLb"`
}

// MethodInfo is the customer-facing copy for a method.
type MethodInfo struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	EstimatedDays string `json:"estimatedDays"`
}

// Table is the injected carrier/zone configuration.
type Table struct {
	OriginState string           `json:"originState"`
	Zones       map[string]int   `json:"zones"`
	DefaultZone int              `json:"defaultZone"`
	Rates       map[int]ZoneRate `json:"rates"`
	Minimum     decimal.Decimal  `json:"minimumCharge"`
	// Loads longer than OversizeInches pay OversizeSurcharge.
	OversizeInches      decimal.Decimal `json:"oversizeInches"`
	OversizeSurcharge   decimal.Decimal `json:"oversizeSurcharge"`
	ExpeditedMultiplier decimal.Decimal `json:"expeditedMultiplier"`
	ExpeditedFee        decimal.Decimal `json:"expeditedFee"`
	PickupStates        []string        `json:"pickupStates"`
	// DefaultMethod is selected when the caller has no offered preference.
	DefaultMethod enums.ShippingMethod                `json:"defaultMethod"`
	Methods       map[enums.ShippingMethod]MethodInfo `json:"methods"`
}

func d(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

// DefaultTable ships from the Salt Lake City shop.
func DefaultTable() Table {
	zones := map[string]int{"UT": 1}
	for _, s := range []string{"ID", "NV", "AZ", "CO", "WY"} {
		zones[s] = 2
	}
	for _, s := range []string{"NM", "MT", "OR", "WA", "CA", "NE", "SD", "ND", "KS", "OK", "TX"} {
		zones[s] = 3
	}
	return Table{
		OriginState: "UT",
		Zones:       zones,
		DefaultZone: 4,
		Rates: map[int]ZoneRate{
			1: {Base: d("45.00"), PerLb: d("0.18")},
			2: {Base: d("75.00"), PerLb: d("0.32")},
			3: {Base: d("110.00"), PerLb: d("0.48")},
			4: {Base: d("145.00"), PerLb: d("0.62")},
		},
		Minimum:             d("45.00"),
		OversizeInches:      d("96"),
		OversizeSurcharge:   d("85.00"),
		ExpeditedMultiplier: d("1.6"),
		ExpeditedFee:        d("35.00"),
		PickupStates:        []string{"UT"},
		DefaultMethod:       enums.ShippingMethodStandardFreight,
		Methods: map[enums.ShippingMethod]MethodInfo{
			enums.ShippingMethodStandardFreight: {
				Name:          "Standard Freight",
				Description:   "LTL freight, curbside delivery",
				EstimatedDays: "5-10",
			},
			enums.ShippingMethodExpeditedFreight: {
				Name:          "Expedited Freight",
				Description:   "Guaranteed LTL freight with priority dispatch",
				EstimatedDays: "2-4",
			},
			enums.ShippingMethodLocalPickup: {
				Name:          "Local Pickup",
				Description:   "Pick up at the shop dock",
				EstimatedDays: "0-1",
			},
		},
	}
}

// LoadTable reads a JSON table; an empty path yields DefaultTable.
func LoadTable(path string) (Table, error) {
	if path == "" {
		return DefaultTable(), nil
	}
	payload, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("read shipping table: %w", err)
	}
	var table Table
	if err := json.Unmarshal(payload, &table); err != nil {
		return Table{}, fmt.Errorf("decode shipping table: %w", err)
	}
	if _, ok := table.Rates[table.DefaultZone]; !ok {
		return Table{}, fmt.Errorf("shipping table %s has no rate for default zone %d", path, table.DefaultZone)
	}
	return table, nil
}
