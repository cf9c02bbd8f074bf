package catalog

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/fabshop-backend/pkg/enums"
)

// PricingTable is the business data every variant prices against. It is
// injected so deployments and tests can swap rates without touching the
// pipeline.
type PricingTable struct {
	Embed               EmbedPricing                       `json:"embed"`
	Gate                GatePricing                        `json:"gate"`
	LeadTimeMultipliers map[enums.LeadTime]decimal.Decimal `json:"leadTimeMultipliers"`
	// MaxQuantity caps a single line; zero means DefaultMaxQuantity.
	MaxQuantity int `json:"maxQuantity,omitempty"`
}

// DefaultMaxQuantity is the largest line quantity the shop quotes online.
const DefaultMaxQuantity = 10000

// QuantityLimit returns the effective per-line quantity cap.
func (t PricingTable) QuantityLimit() int {
	if t.MaxQuantity > 0 {
		return t.MaxQuantity
	}
	return DefaultMaxQuantity
}

type EmbedPricing struct {
	HandlingFee decimal.Decimal `json:"handlingFee"`
	// Materials is dollars per cubic inch of plate, keyed by grade.
	Materials     map[string]decimal.Decimal `json:"materials"`
	DefaultFinish string                     `json:"defaultFinish"`
	// Finishes is dollars per square inch of plate face.
	Finishes map[string]decimal.Decimal `json:"finishes"`
	// StudPrices is keyed by the canonical decimal diameter, e.g. "0.5".
	StudPrices       map[string]decimal.Decimal `json:"studPrices"`
	DefaultStudPrice decimal.Decimal            `json:"defaultStudPrice"`
	StudPricePerInch decimal.Decimal            `json:"studPricePerInch"`
	DensityLbsPerIn3 decimal.Decimal            `json:"densityLbsPerCubicInch"`
}

type GateSize struct {
	WidthFeet  decimal.Decimal `json:"widthFeet"`
	HeightFeet decimal.Decimal `json:"heightFeet"`
}

type GateStyle struct {
	Multiplier    decimal.Decimal `json:"multiplier"`
	WeightPerSqFt decimal.Decimal `json:"weightLbsPerSquareFoot"`
}

type GatePricing struct {
	BaseFee           decimal.Decimal      `json:"baseFee"`
	RatePerSquareFoot decimal.Decimal      `json:"ratePerSquareFoot"`
	Sizes             map[string]GateSize  `json:"sizes"`
	Styles            map[string]GateStyle `json:"styles"`
	// Finishes is dollars per square foot of gate face.
	Finishes map[string]decimal.Decimal `json:"finishes"`
	// Mountings is a flat adder per gate.
	Mountings map[string]decimal.Decimal `json:"mountings"`
}

// Multiplier returns the lead-time multiplier; standard defaults to one.
func (t PricingTable) Multiplier(lt enums.LeadTime) (decimal.Decimal, bool) {
	if m, ok := t.LeadTimeMultipliers[lt]; ok {
		return m, true
	}
	if lt == enums.LeadTimeStandard {
		return decimal.NewFromInt(1), true
	}
	return decimal.Decimal{}, false
}

func d(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

// DefaultPricingTable returns the shop's published rates.
func DefaultPricingTable() PricingTable {
	return PricingTable{
		Embed: EmbedPricing{
			HandlingFee: d("15.00"),
			Materials: map[string]decimal.Decimal{
				"a36":           d("0.30"),
				"a572_gr50":     d("0.36"),
				"304_stainless": d("1.45"),
			},
			DefaultFinish: "mill",
			Finishes: map[string]decimal.Decimal{
				"mill":        d("0"),
				"primer":      d("0.02"),
				"powder_coat": d("0.05"),
				"galvanized":  d("0.06"),
			},
			StudPrices: map[string]decimal.Decimal{
				"0.375": d("2.25"),
				"0.5":   d("2.75"),
				"0.625": d("3.50"),
				"0.75":  d("4.25"),
			},
			DefaultStudPrice: d("3.00"),
			StudPricePerInch: d("0.35"),
			DensityLbsPerIn3: d("0.2836"),
		},
		Gate: GatePricing{
			BaseFee:           d("150.00"),
			RatePerSquareFoot: d("18.00"),
			Sizes: map[string]GateSize{
				"6x6":  {WidthFeet: d("6"), HeightFeet: d("6")},
				"8x6":  {WidthFeet: d("8"), HeightFeet: d("6")},
				"10x6": {WidthFeet: d("10"), HeightFeet: d("6")},
				"12x6": {WidthFeet: d("12"), HeightFeet: d("6")},
				"12x8": {WidthFeet: d("12"), HeightFeet: d("8")},
			},
			Styles: map[string]GateStyle{
				"solid":      {Multiplier: d("1.00"), WeightPerSqFt: d("6.5")},
				"louvered":   {Multiplier: d("1.15"), WeightPerSqFt: d("5.5")},
				"chain_link": {Multiplier: d("0.75"), WeightPerSqFt: d("3.0")},
			},
			Finishes: map[string]decimal.Decimal{
				"primer":      d("1.50"),
				"painted":     d("3.00"),
				"powder_coat": d("4.50"),
				"galvanized":  d("6.00"),
			},
			Mountings: map[string]decimal.Decimal{
				"wall":    d("60.00"),
				"post":    d("90.00"),
				"bollard": d("120.00"),
			},
		},
		LeadTimeMultipliers: map[enums.LeadTime]decimal.Decimal{
			enums.LeadTimeStandard: d("1"),
			enums.LeadTimeRush:     d("1.25"),
		},
		MaxQuantity: DefaultMaxQuantity,
	}
}

// LoadPricingTable reads a JSON table from path. An empty path yields the
// default table.
func LoadPricingTable(path string) (PricingTable, error) {
	if path == "" {
		return DefaultPricingTable(), nil
	}
	payload, err := os.ReadFile(path)
	if err != nil {
		return PricingTable{}, fmt.Errorf("read pricing table: %w", err)
	}
	var table PricingTable
	if err := json.Unmarshal(payload, &table); err != nil {
		return PricingTable{}, fmt.Errorf("decode pricing table: %w", err)
	}
	if len(table.Embed.Materials) == 0 && len(table.Gate.Sizes) == 0 {
		return PricingTable{}, fmt.Errorf("pricing table %s defines no products", path)
	}
	return table, nil
}
