package catalog

import (
	"fmt"

	"github.com/angelmondragon/fabshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fabshop-backend/pkg/errors"
	"github.com/angelmondragon/fabshop-backend/pkg/money"
)

// Validator turns raw configurations into normalized, priced line items.
// It has no side effects and is safe for concurrent use.
type Validator struct {
	registry *Registry
	table    PricingTable
}

func NewValidator(table PricingTable, registry *Registry) *Validator {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Validator{registry: registry, table: table}
}

// Table returns the pricing table in use.
func (v *Validator) Table() PricingTable {
	return v.table
}

// Validate checks cfg structurally and prices it. Errors are VALIDATION_ERROR
// with details naming the offending field.
func (v *Validator) Validate(cfg LineItemConfig) (*NormalizedConfig, error) {
	variant, ok := v.registry.Lookup(cfg.ProductType)
	if !ok {
		return nil, pkgerrors.Field("productType", fmt.Sprintf("%q is not a known product", cfg.ProductType))
	}
	if cfg.Quantity < 1 {
		return nil, pkgerrors.Field("quantity", "must be at least 1")
	}
	if limit := v.table.QuantityLimit(); cfg.Quantity > limit {
		return nil, pkgerrors.Field("quantity", fmt.Sprintf("must be at most %d", limit))
	}

	leadTime := cfg.LeadTime
	if leadTime == "" {
		leadTime = enums.LeadTimeStandard
	}
	multiplier, ok := v.table.Multiplier(leadTime)
	if !ok {
		return nil, pkgerrors.Field("leadTime", fmt.Sprintf("%q is not offered", leadTime))
	}

	spec, err := variant.Decode(cfg.Body())
	if err != nil {
		return nil, err
	}
	if err := spec.Validate(v.table); err != nil {
		return nil, err
	}

	base, err := spec.Price(v.table)
	if err != nil {
		return nil, err
	}
	unit := money.FromDecimal(base.Mul(multiplier))
	if unit <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("pricing table produced a non-positive price for %s", cfg.ProductType))
	}
	lineTotal, err := unit.Times(cfg.Quantity)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "quantity is too large to price").
			WithDetails(map[string]any{"field": "quantity"})
	}

	return &NormalizedConfig{
		ID:                  cfg.ID,
		ProductType:         cfg.ProductType,
		Quantity:            cfg.Quantity,
		IsCustomFabrication: cfg.IsCustomFabrication,
		LeadTime:            leadTime,
		UnitPrice:           unit,
		LineTotal:           lineTotal,
		Description:         spec.Describe(),
		Profile:             spec.Profile(v.table),
		Spec:                spec,
		Config:              cfg,
	}, nil
}
