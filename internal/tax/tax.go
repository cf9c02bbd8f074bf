// Package tax maps a taxable amount and jurisdiction to a tax amount.
//
// Unknown jurisdictions are charged a zero rate. Under-collecting is treated
// as less harmful than blocking checkout; deployments that need a stricter
// stance supply their own rate table.
package tax

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/fabshop-backend/pkg/errors"
	"github.com/angelmondragon/fabshop-backend/pkg/money"
	"github.com/angelmondragon/fabshop-backend/pkg/types"
)

// CustomFabricationPolicy controls how the custom-fabrication flag affects
// the rate in manufacturing-exempt jurisdictions.
type CustomFabricationPolicy string

const (
	// PolicyNone keeps the jurisdiction rate unchanged.
	PolicyNone CustomFabricationPolicy = "none"
	// PolicyExempt zeroes the rate for custom work in listed states.
	PolicyExempt CustomFabricationPolicy = "exempt"
	// PolicyReview keeps the rate and flags the order for certificate review.
	PolicyReview CustomFabricationPolicy = "review"
)

func ParsePolicy(value string) (CustomFabricationPolicy, error) {
	switch p := CustomFabricationPolicy(strings.ToLower(strings.TrimSpace(value))); p {
	case "":
		return PolicyNone, nil
	case PolicyNone, PolicyExempt, PolicyReview:
		return p, nil
	default:
		return "", fmt.Errorf("invalid custom fabrication policy %q", value)
	}
}

// Result is the outcome of one tax calculation.
type Result struct {
	TaxRate       decimal.Decimal `json:"taxRate"`
	TaxAmount     money.Cents     `json:"taxAmount"`
	TaxableAmount money.Cents     `json:"taxableAmount"`
	IsExempt      bool            `json:"isExempt"`
	Jurisdiction  string          `json:"jurisdiction,omitempty"`
	// KnownJurisdiction is false when the rate table had no entry.
	KnownJurisdiction bool `json:"-"`
	// ExemptionReview marks custom work that needs a certificate check.
	ExemptionReview bool `json:"exemptionReview,omitempty"`
}

// Engine computes tax from an injected rate table.
type Engine struct {
	rates               map[string]decimal.Decimal
	policy              CustomFabricationPolicy
	manufacturingStates map[string]struct{}
}

type Options struct {
	Rates               map[string]decimal.Decimal
	Policy              CustomFabricationPolicy
	ManufacturingStates []string
}

func NewEngine(opts Options) (*Engine, error) {
	policy := opts.Policy
	if policy == "" {
		policy = PolicyNone
	}
	if _, err := ParsePolicy(string(policy)); err != nil {
		return nil, err
	}
	rates := opts.Rates
	if rates == nil {
		rates = DefaultRates()
	}
	e := &Engine{
		rates:               make(map[string]decimal.Decimal, len(rates)),
		policy:              policy,
		manufacturingStates: map[string]struct{}{},
	}
	for code, rate := range rates {
		if rate.IsNegative() {
			return nil, fmt.Errorf("negative tax rate for %s", code)
		}
		e.rates[normalizeState(code)] = rate
	}
	for _, code := range opts.ManufacturingStates {
		if code = normalizeState(code); code != "" {
			e.manufacturingStates[code] = struct{}{}
		}
	}
	return e, nil
}

// Policy returns the configured custom-fabrication policy.
func (e *Engine) Policy() CustomFabricationPolicy {
	return e.policy
}

// Calculate returns the tax owed on subtotal. Shipping is never part of the
// taxable amount.
func (e *Engine) Calculate(subtotal money.Cents, address types.Address, isExempt, isCustomFabrication bool) (Result, error) {
	if subtotal < 0 {
		return Result{}, pkgerrors.Field("subtotal", "must not be negative")
	}
	if isExempt {
		return Result{
			TaxRate:       decimal.Zero,
			TaxableAmount: subtotal,
			IsExempt:      true,
			Jurisdiction:  address.StateCode(),
		}, nil
	}

	state := address.StateCode()
	if state == "" {
		return Result{}, pkgerrors.New(pkgerrors.CodeMissingAddress, "state is required to calculate tax").
			WithDetails(map[string]any{"fields": []string{"state"}})
	}

	rate, known := e.rates[state]
	if !known {
		rate = decimal.Zero
	}
	result := Result{
		TaxableAmount:     subtotal,
		Jurisdiction:      state,
		KnownJurisdiction: known,
	}

	if isCustomFabrication && e.appliesToManufacturing(state) {
		switch e.policy {
		case PolicyExempt:
			rate = decimal.Zero
		case PolicyReview:
			result.ExemptionReview = true
		}
	}

	result.TaxRate = rate
	result.TaxAmount = subtotal.MulRate(rate)
	return result, nil
}

func (e *Engine) appliesToManufacturing(state string) bool {
	_, ok := e.manufacturingStates[state]
	return ok
}

func normalizeState(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// LoadRates reads a JSON object of state code to decimal rate. An empty path
// yields DefaultRates.
func LoadRates(path string) (map[string]decimal.Decimal, error) {
	if path == "" {
		return DefaultRates(), nil
	}
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tax table: %w", err)
	}
	rates := map[string]decimal.Decimal{}
	if err := json.Unmarshal(payload, &rates); err != nil {
		return nil, fmt.Errorf("decode tax table: %w", err)
	}
	return rates, nil
}
