package catalog

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/fabshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fabshop-backend/pkg/errors"
	"github.com/angelmondragon/fabshop-backend/pkg/money"
)

const embedJSON = `{
	"id": "line-1",
	"productType": "steel_plate_embed",
	"quantity": 3,
	"isCustomFabrication": true,
	"length": 12, "width": 8, "thickness": 0.5,
	"material": "A36", "finish": "galvanized",
	"studs": [
		{"diameter": 0.5, "length": 4, "x": 2, "y": 2},
		{"diameter": 0.5, "length": 4, "x": 10, "y": 2},
		{"diameter": 0.5, "length": 4, "x": 2, "y": 6},
		{"diameter": 0.5, "length": 4, "x": 10, "y": 6}
	]
}`

func mustConfig(t *testing.T, raw string) LineItemConfig {
	t.Helper()
	var cfg LineItemConfig
	require.NoError(t, json.Unmarshal([]byte(raw), &cfg))
	return cfg
}

func newTestValidator() *Validator {
	return NewValidator(DefaultPricingTable(), nil)
}

func TestValidateEmbedPricesFromTable(t *testing.T) {
	v := newTestValidator()

	got, err := v.Validate(mustConfig(t, embedJSON))
	require.NoError(t, err)

	// 15.00 handling + 48in³ × 0.30 + 96in² × 0.06 + 4 × (2.75 + 4 × 0.35)
	require.Equal(t, money.Cents(5176), got.UnitPrice)
	require.Equal(t, money.Cents(15528), got.LineTotal)
	require.Equal(t, enums.LeadTimeStandard, got.LeadTime)
	require.True(t, got.IsCustomFabrication)
	require.Equal(t, "line-1", got.ID)
	require.True(t, got.Profile.WeightLbs.Equal(decimal.RequireFromString("14.50")))
	require.True(t, got.Profile.LongestInches.Equal(decimal.NewFromInt(12)))
	require.Contains(t, got.Description.Title, "Steel plate embed")
	require.Len(t, got.Description.Lines, 7)
}

func TestValidateEmbedIsPure(t *testing.T) {
	v := newTestValidator()
	first, err := v.Validate(mustConfig(t, embedJSON))
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := v.Validate(mustConfig(t, embedJSON))
		require.NoError(t, err)
		require.Equal(t, first.UnitPrice, again.UnitPrice)
		require.True(t, again.UnitPrice > 0)
	}
}

func TestValidateRushAppliesMultiplier(t *testing.T) {
	v := newTestValidator()
	cfg := mustConfig(t, embedJSON)
	cfg.LeadTime = enums.LeadTimeRush

	got, err := v.Validate(cfg)
	require.NoError(t, err)
	require.Equal(t, money.Cents(6470), got.UnitPrice)
	require.Equal(t, money.Cents(6470*3), got.LineTotal)
}

func TestValidateIgnoresClientUnitPrice(t *testing.T) {
	v := newTestValidator()
	cfg := mustConfig(t, `{"productType":"dumpster_gate","quantity":1,"unitPrice":"0.01","size":"8x6","style":"solid","finish":"powder_coat","mounting":"bollard"}`)
	require.NotNil(t, cfg.UnitPrice)

	got, err := v.Validate(cfg)
	require.NoError(t, err)
	require.Equal(t, money.Cents(135000), got.UnitPrice)
}

func TestValidateEmbedWithoutStuds(t *testing.T) {
	v := newTestValidator()
	got, err := v.Validate(mustConfig(t, `{"productType":"steel_plate_embed","quantity":1,"length":6,"width":6,"thickness":0.25,"material":"a36"}`))
	require.NoError(t, err)
	// 15.00 + 9in³ × 0.30, mill finish
	require.Equal(t, money.Cents(1770), got.UnitPrice)
}

func TestValidateReportsOffendingField(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		field string
	}{
		{"zero thickness", `{"productType":"steel_plate_embed","quantity":1,"length":6,"width":6,"thickness":0,"material":"a36"}`, "thickness"},
		{"missing length", `{"productType":"steel_plate_embed","quantity":1,"width":6,"thickness":0.5,"material":"a36"}`, "length"},
		{"zero quantity", `{"productType":"steel_plate_embed","quantity":0,"length":6,"width":6,"thickness":0.5,"material":"a36"}`, "quantity"},
		{"quantity above limit", `{"productType":"dumpster_gate","quantity":10001,"size":"8x6","style":"solid","finish":"primer","mounting":"wall"}`, "quantity"},
		{"negative gate quantity", `{"productType":"dumpster_gate","quantity":-2,"size":"8x6","style":"solid","finish":"primer","mounting":"wall"}`, "quantity"},
		{"stud outside length", `{"productType":"steel_plate_embed","quantity":1,"length":6,"width":6,"thickness":0.5,"material":"a36","studs":[{"diameter":0.5,"length":3,"x":7,"y":1}]}`, "studs[0].x"},
		{"stud outside width", `{"productType":"steel_plate_embed","quantity":1,"length":6,"width":6,"thickness":0.5,"material":"a36","studs":[{"diameter":0.5,"length":3,"x":1,"y":1},{"diameter":0.5,"length":3,"x":1,"y":-1}]}`, "studs[1].y"},
		{"stud without diameter", `{"productType":"steel_plate_embed","quantity":1,"length":6,"width":6,"thickness":0.5,"material":"a36","studs":[{"length":3,"x":1,"y":1}]}`, "studs[0].diameter"},
		{"unknown material", `{"productType":"steel_plate_embed","quantity":1,"length":6,"width":6,"thickness":0.5,"material":"unobtainium"}`, "material"},
		{"missing material", `{"productType":"steel_plate_embed","quantity":1,"length":6,"width":6,"thickness":0.5}`, "material"},
		{"unknown finish", `{"productType":"steel_plate_embed","quantity":1,"length":6,"width":6,"thickness":0.5,"material":"a36","finish":"gold_leaf"}`, "finish"},
		{"unknown product", `{"productType":"bike_rack","quantity":1}`, "productType"},
		{"unknown lead time", `{"productType":"steel_plate_embed","quantity":1,"leadTime":"overnight","length":6,"width":6,"thickness":0.5,"material":"a36"}`, "leadTime"},
		{"gate size and dims", `{"productType":"dumpster_gate","quantity":1,"size":"8x6","width":8,"style":"solid","finish":"primer","mounting":"wall"}`, "size"},
		{"gate unknown size", `{"productType":"dumpster_gate","quantity":1,"size":"40x2","style":"solid","finish":"primer","mounting":"wall"}`, "size"},
		{"gate missing height", `{"productType":"dumpster_gate","quantity":1,"width":8,"style":"solid","finish":"primer","mounting":"wall"}`, "height"},
		{"gate missing style", `{"productType":"dumpster_gate","quantity":1,"size":"8x6","finish":"primer","mounting":"wall"}`, "style"},
		{"gate unknown mounting", `{"productType":"dumpster_gate","quantity":1,"size":"8x6","style":"solid","finish":"primer","mounting":"ceiling"}`, "mounting"},
		{"non-numeric length", `{"productType":"steel_plate_embed","quantity":1,"length":"abc","width":6,"thickness":0.5,"material":"a36"}`, "length"},
		{"non-numeric stud offset", `{"productType":"steel_plate_embed","quantity":1,"length":6,"width":6,"thickness":0.5,"material":"a36","studs":[{"diameter":0.5,"length":3,"x":1,"y":1},{"diameter":0.5,"length":3,"x":"abc","y":1}]}`, "studs[1].x"},
		{"non-numeric gate height", `{"productType":"dumpster_gate","quantity":1,"width":8,"height":"six","style":"solid","finish":"primer","mounting":"wall"}`, "height"},
		{"studs not a list", `{"productType":"steel_plate_embed","quantity":1,"length":6,"width":6,"thickness":0.5,"material":"a36","studs":{"x":1}}`, "studs"},
		{"wrong type", `{"productType":"dumpster_gate","quantity":1,"size":"8x6","style":7,"finish":"primer","mounting":"wall"}`, "style"},
	}

	v := newTestValidator()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := v.Validate(mustConfig(t, tc.raw))
			require.Error(t, err)
			require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "unexpected error %v", err)
			require.Equal(t, tc.field, pkgerrors.FieldOf(err))
		})
	}
}

func TestValidateQuantityOverflowIsRejected(t *testing.T) {
	table := DefaultPricingTable()
	table.MaxQuantity = math.MaxInt
	v := NewValidator(table, nil)

	raw := fmt.Sprintf(`{"productType":"dumpster_gate","quantity":%d,"size":"8x6","style":"solid","finish":"primer","mounting":"wall"}`, int64(1)<<62)
	got, err := v.Validate(mustConfig(t, raw))
	require.Nil(t, got)
	require.Error(t, err)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	require.Equal(t, "quantity", pkgerrors.FieldOf(err))
	require.ErrorIs(t, err, money.ErrOverflow)
}

func TestValidateQuantityLimitDefaultsWhenUnset(t *testing.T) {
	table := DefaultPricingTable()
	table.MaxQuantity = 0
	require.Equal(t, DefaultMaxQuantity, table.QuantityLimit())

	v := NewValidator(table, nil)
	_, err := v.Validate(mustConfig(t, fmt.Sprintf(`{"productType":"dumpster_gate","quantity":%d,"size":"8x6","style":"solid","finish":"primer","mounting":"wall"}`, DefaultMaxQuantity)))
	require.NoError(t, err)
	_, err = v.Validate(mustConfig(t, `{"productType":"dumpster_gate","quantity":184467440737096,"size":"8x6","style":"solid","finish":"primer","mounting":"wall"}`))
	require.Error(t, err)
	require.Equal(t, "quantity", pkgerrors.FieldOf(err))
}

func TestValidateGateExplicitDimensions(t *testing.T) {
	v := newTestValidator()
	got, err := v.Validate(mustConfig(t, `{"productType":"dumpster_gate","quantity":2,"width":10,"height":7,"style":"louvered","finish":"galvanized","mounting":"wall"}`))
	require.NoError(t, err)
	// 150 + 70ft² × 18 × 1.15 + 70 × 6 + 60
	require.Equal(t, money.Cents(207900), got.UnitPrice)
	require.Equal(t, money.Cents(415800), got.LineTotal)
	require.True(t, got.Profile.LongestInches.Equal(decimal.NewFromInt(120)))
	require.True(t, got.Profile.WeightLbs.Equal(decimal.RequireFromString("385")))
}

type bollardVariant struct{}

type bollardSpec struct {
	Height decimal.Decimal `json:"height"`
}

func (bollardVariant) Type() enums.ProductType { return "pipe_bollard" }

func (bollardVariant) Decode(body json.RawMessage) (Spec, error) {
	var spec bollardSpec
	if err := decodeBody(body, &spec); err != nil {
		return nil, err
	}
	return &spec, nil
}

func (b *bollardSpec) Validate(PricingTable) error {
	if !b.Height.IsPositive() {
		return pkgerrors.Field("height", "must be greater than zero")
	}
	return nil
}

func (b *bollardSpec) Price(PricingTable) (decimal.Decimal, error) {
	return b.Height.Mul(decimal.NewFromInt(10)), nil
}

func (b *bollardSpec) Describe() Description { return Description{Title: "Pipe bollard"} }

func (b *bollardSpec) Profile(PricingTable) ShippingProfile {
	return ShippingProfile{WeightLbs: b.Height.Mul(decimal.NewFromInt(5)), LongestInches: b.Height}
}

func TestRegistryAcceptsNewVariants(t *testing.T) {
	registry := DefaultRegistry()
	require.NoError(t, registry.Register(bollardVariant{}))
	require.Error(t, registry.Register(bollardVariant{}))
	require.Len(t, registry.Types(), 3)

	v := NewValidator(DefaultPricingTable(), registry)
	got, err := v.Validate(mustConfig(t, `{"productType":"pipe_bollard","quantity":4,"height":48}`))
	require.NoError(t, err)
	require.Equal(t, money.Cents(48000), got.UnitPrice)
}

func TestLineItemConfigKeepsBodyAcrossQuantityChange(t *testing.T) {
	cfg := mustConfig(t, embedJSON)
	cfg.Quantity = 5

	payload, err := json.Marshal(cfg)
	require.NoError(t, err)

	decoded := mustConfig(t, string(payload))
	require.Equal(t, 5, decoded.Quantity)

	got, err := newTestValidator().Validate(decoded)
	require.NoError(t, err)
	require.Equal(t, money.Cents(5176*5), got.LineTotal)
}

func TestNewLineItemConfig(t *testing.T) {
	cfg, err := NewLineItemConfig(LineItemConfig{ProductType: enums.ProductTypeDumpsterGate, Quantity: 1}, DumpsterGate{
		Size: "6x6", Style: "chain_link", Finish: "primer", Mounting: "post",
	})
	require.NoError(t, err)

	got, err := newTestValidator().Validate(cfg)
	require.NoError(t, err)
	// 150 + 36 × 18 × 0.75 + 36 × 1.5 + 90
	require.Equal(t, money.Cents(78000), got.UnitPrice)
}

func TestLoadPricingTable(t *testing.T) {
	table, err := LoadPricingTable("")
	require.NoError(t, err)
	require.Contains(t, table.Embed.Materials, "a36")

	custom := DefaultPricingTable()
	custom.LeadTimeMultipliers[enums.LeadTimeRush] = decimal.RequireFromString("1.5")
	payload, err := json.Marshal(custom)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "pricing.json")
	require.NoError(t, os.WriteFile(path, payload, 0o600))

	loaded, err := LoadPricingTable(path)
	require.NoError(t, err)
	m, ok := loaded.Multiplier(enums.LeadTimeRush)
	require.True(t, ok)
	require.True(t, m.Equal(decimal.RequireFromString("1.5")))

	_, err = LoadPricingTable(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
