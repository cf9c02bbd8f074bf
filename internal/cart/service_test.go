package cart

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/fabshop-backend/internal/catalog"
	"github.com/angelmondragon/fabshop-backend/internal/shipping"
	"github.com/angelmondragon/fabshop-backend/internal/tax"
	"github.com/angelmondragon/fabshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fabshop-backend/pkg/errors"
	"github.com/angelmondragon/fabshop-backend/pkg/money"
	"github.com/angelmondragon/fabshop-backend/pkg/types"
)

// flatGateTable prices every gate at exactly 1000.00.
func flatGateTable() catalog.PricingTable {
	table := catalog.DefaultPricingTable()
	table.Gate.BaseFee = decimal.NewFromInt(1000)
	table.Gate.RatePerSquareFoot = decimal.Zero
	for k := range table.Gate.Finishes {
		table.Gate.Finishes[k] = decimal.Zero
	}
	for k := range table.Gate.Mountings {
		table.Gate.Mountings[k] = decimal.Zero
	}
	return table
}

func newTestService(t *testing.T, table catalog.PricingTable, taxOpts tax.Options) Service {
	t.Helper()
	taxEngine, err := tax.NewEngine(taxOpts)
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{
		Validator: catalog.NewValidator(table, nil),
		Tax:       taxEngine,
		Shipping:  shipping.NewEngine(shipping.DefaultTable()),
	})
	require.NoError(t, err)
	return svc
}

func configs(t *testing.T, raws ...string) []catalog.LineItemConfig {
	t.Helper()
	out := make([]catalog.LineItemConfig, 0, len(raws))
	for _, raw := range raws {
		var cfg catalog.LineItemConfig
		require.NoError(t, json.Unmarshal([]byte(raw), &cfg))
		out = append(out, cfg)
	}
	return out
}

const gate8x6 = `{"productType":"dumpster_gate","quantity":1,"size":"8x6","style":"solid","finish":"powder_coat","mounting":"bollard"}`

var utah = types.Address{Street: "1 Foundry Way", City: "Salt Lake City", State: "UT", Zip: "84101", Country: "US"}

func TestBuildQuoteUtah(t *testing.T) {
	svc := newTestService(t, flatGateTable(), tax.Options{})

	quote, err := svc.BuildQuote(context.Background(), QuoteInput{
		Items:   configs(t, gate8x6),
		Address: utah,
	})
	require.NoError(t, err)

	require.Equal(t, money.Cents(100000), quote.Subtotal)
	require.Equal(t, money.Cents(6100), quote.Tax.TaxAmount)
	require.Equal(t, money.Cents(100000), quote.Tax.TaxableAmount, "shipping is not taxed")
	// 45 + 0.18 × 312 lb
	require.Equal(t, money.Cents(10116), quote.Shipping.SelectedCost)
	require.Equal(t, money.Cents(116216), quote.Total)
	require.Len(t, quote.Lines, 1)
}

func TestBuildQuoteIsReproducible(t *testing.T) {
	svc := newTestService(t, catalog.DefaultPricingTable(), tax.Options{})
	input := QuoteInput{
		Items: configs(t,
			gate8x6,
			`{"productType":"steel_plate_embed","quantity":12,"leadTime":"rush","length":10,"width":10,"thickness":0.375,"material":"a572_gr50","finish":"primer","studs":[{"diameter":0.625,"length":5,"x":1,"y":1},{"diameter":0.625,"length":5,"x":9,"y":9}]}`,
		),
		Address:                 types.Address{State: "co", Zip: "80202"},
		PreferredShippingMethod: enums.ShippingMethodExpeditedFreight,
	}

	first, err := svc.BuildQuote(context.Background(), input)
	require.NoError(t, err)
	second, err := svc.BuildQuote(context.Background(), input)
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	require.Equal(t, string(a), string(b))
	total, err := money.Sum(first.Subtotal, first.Tax.TaxAmount, first.Shipping.SelectedCost)
	require.NoError(t, err)
	require.Equal(t, first.Total, total)
	require.Equal(t, enums.ShippingMethodExpeditedFreight, first.Shipping.SelectedMethod)
}

func TestBuildQuoteFailsFastOnFirstInvalidLine(t *testing.T) {
	svc := newTestService(t, catalog.DefaultPricingTable(), tax.Options{})

	_, err := svc.BuildQuote(context.Background(), QuoteInput{
		Items: configs(t,
			gate8x6,
			`{"productType":"steel_plate_embed","quantity":1,"length":6,"width":6,"thickness":0,"material":"a36"}`,
			`{"productType":"steel_plate_embed","quantity":0,"length":6,"width":6,"thickness":1,"material":"a36"}`,
		),
		Address: utah,
	})
	require.Error(t, err)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	require.Equal(t, "items[1].thickness", pkgerrors.FieldOf(err))
}

func TestBuildQuoteRejectsRunawayQuantity(t *testing.T) {
	svc := newTestService(t, flatGateTable(), tax.Options{})

	quote, err := svc.BuildQuote(context.Background(), QuoteInput{
		Items:   configs(t, `{"productType":"dumpster_gate","quantity":184467440737096,"size":"8x6","style":"solid","finish":"primer","mounting":"wall"}`),
		Address: utah,
	})
	require.Nil(t, quote)
	require.Error(t, err)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	require.Equal(t, "items[0].quantity", pkgerrors.FieldOf(err))
}

func TestBuildQuoteSubtotalOverflowIsRejected(t *testing.T) {
	table := flatGateTable()
	// 100 gates at 5e14 dollars each is 5e18 cents per line.
	table.Gate.BaseFee = decimal.RequireFromString("500000000000000")
	svc := newTestService(t, table, tax.Options{})

	line := `{"productType":"dumpster_gate","quantity":100,"size":"8x6","style":"solid","finish":"primer","mounting":"wall"}`
	_, err := svc.BuildQuote(context.Background(), QuoteInput{
		Items:   configs(t, line, line),
		Address: utah,
	})
	require.Error(t, err)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	require.Equal(t, "subtotal", pkgerrors.FieldOf(err))
	require.ErrorIs(t, err, money.ErrOverflow)
}

func TestBuildQuoteRequiresItems(t *testing.T) {
	svc := newTestService(t, catalog.DefaultPricingTable(), tax.Options{})
	_, err := svc.BuildQuote(context.Background(), QuoteInput{Address: utah})
	require.Error(t, err)
	require.Equal(t, "items", pkgerrors.FieldOf(err))
}

func TestBuildQuoteMissingZip(t *testing.T) {
	svc := newTestService(t, catalog.DefaultPricingTable(), tax.Options{})
	_, err := svc.BuildQuote(context.Background(), QuoteInput{
		Items:   configs(t, gate8x6),
		Address: types.Address{State: "UT"},
	})
	require.Error(t, err)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeMissingAddress))
}

func TestBuildQuoteTaxExempt(t *testing.T) {
	svc := newTestService(t, flatGateTable(), tax.Options{})
	quote, err := svc.BuildQuote(context.Background(), QuoteInput{
		Items:       configs(t, gate8x6),
		Address:     utah,
		IsTaxExempt: true,
	})
	require.NoError(t, err)
	require.True(t, quote.Tax.IsExempt)
	require.Equal(t, money.Cents(0), quote.Tax.TaxAmount)
	require.Equal(t, money.Cents(110116), quote.Total)
}

func TestBuildQuoteLineCustomFabricationReachesTaxPolicy(t *testing.T) {
	svc := newTestService(t, flatGateTable(), tax.Options{Policy: tax.PolicyExempt, ManufacturingStates: []string{"UT"}})

	plain, err := svc.BuildQuote(context.Background(), QuoteInput{Items: configs(t, gate8x6), Address: utah})
	require.NoError(t, err)
	require.Equal(t, money.Cents(6100), plain.Tax.TaxAmount)

	custom, err := svc.BuildQuote(context.Background(), QuoteInput{
		Items:   configs(t, `{"productType":"dumpster_gate","quantity":1,"isCustomFabrication":true,"size":"8x6","style":"solid","finish":"powder_coat","mounting":"bollard"}`),
		Address: utah,
	})
	require.NoError(t, err)
	require.Equal(t, money.Cents(0), custom.Tax.TaxAmount)
	require.True(t, custom.CustomFabrication())

	flagged, err := svc.BuildQuote(context.Background(), QuoteInput{Items: configs(t, gate8x6), Address: utah, IsCustomFabrication: true})
	require.NoError(t, err)
	require.Equal(t, money.Cents(0), flagged.Tax.TaxAmount)
}

func TestNewServiceRequiresEngines(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}
