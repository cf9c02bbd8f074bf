package catalog

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/fabshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fabshop-backend/pkg/errors"
)

var inchesPerFoot = decimal.NewFromInt(12)

// GateVariant decodes dumpster enclosure gates.
type GateVariant struct{}

func (GateVariant) Type() enums.ProductType { return enums.ProductTypeDumpsterGate }

func (GateVariant) Decode(body json.RawMessage) (Spec, error) {
	var spec DumpsterGate
	if err := decodeBody(body, &spec); err != nil {
		return nil, err
	}
	spec.Size = strings.ToLower(strings.TrimSpace(spec.Size))
	spec.Style = strings.ToLower(strings.TrimSpace(spec.Style))
	spec.Finish = strings.ToLower(strings.TrimSpace(spec.Finish))
	spec.Mounting = strings.ToLower(strings.TrimSpace(spec.Mounting))
	return &spec, nil
}

// DumpsterGate is either a named catalog size or explicit feet dimensions.
type DumpsterGate struct {
	Size     string          `json:"size,omitempty"`
	Width    decimal.Decimal `json:"width,omitempty"`
	Height   decimal.Decimal `json:"height,omitempty"`
	Style    string          `json:"style"`
	Finish   string          `json:"finish"`
	Mounting string          `json:"mounting"`
}

func (g *DumpsterGate) dimensions(table PricingTable) (decimal.Decimal, decimal.Decimal) {
	if g.Size != "" {
		size := table.Gate.Sizes[g.Size]
		return size.WidthFeet, size.HeightFeet
	}
	return g.Width, g.Height
}

func (g *DumpsterGate) Validate(table PricingTable) error {
	explicit := !g.Width.IsZero() || !g.Height.IsZero()
	switch {
	case g.Size != "" && explicit:
		return pkgerrors.Field("size", "cannot be combined with width/height")
	case g.Size != "":
		if _, ok := table.Gate.Sizes[g.Size]; !ok {
			return pkgerrors.Field("size", fmt.Sprintf("%q is not a catalog size", g.Size))
		}
	default:
		if !g.Width.IsPositive() {
			return pkgerrors.Field("width", "must be greater than zero")
		}
		if !g.Height.IsPositive() {
			return pkgerrors.Field("height", "must be greater than zero")
		}
	}

	if g.Style == "" {
		return pkgerrors.Field("style", "is required")
	}
	if _, ok := table.Gate.Styles[g.Style]; !ok {
		return pkgerrors.Field("style", fmt.Sprintf("%q is not offered", g.Style))
	}
	if g.Finish == "" {
		return pkgerrors.Field("finish", "is required")
	}
	if _, ok := table.Gate.Finishes[g.Finish]; !ok {
		return pkgerrors.Field("finish", fmt.Sprintf("%q is not offered", g.Finish))
	}
	if g.Mounting == "" {
		return pkgerrors.Field("mounting", "is required")
	}
	if _, ok := table.Gate.Mountings[g.Mounting]; !ok {
		return pkgerrors.Field("mounting", fmt.Sprintf("%q is not offered", g.Mounting))
	}
	return nil
}

func (g *DumpsterGate) Price(table PricingTable) (decimal.Decimal, error) {
	style, ok := table.Gate.Styles[g.Style]
	if !ok {
		return decimal.Zero, pkgerrors.Field("style", "has no rate")
	}
	w, h := g.dimensions(table)
	area := w.Mul(h)
	return table.Gate.BaseFee.
		Add(area.Mul(table.Gate.RatePerSquareFoot).Mul(style.Multiplier)).
		Add(area.Mul(table.Gate.Finishes[g.Finish])).
		Add(table.Gate.Mountings[g.Mounting]), nil
}

func (g *DumpsterGate) Describe() Description {
	size := g.Size
	if size == "" {
		size = fmt.Sprintf("%sx%s", g.Width, g.Height)
	}
	return Description{
		Title: fmt.Sprintf("Dumpster gate %s ft", size),
		Lines: []string{
			"Style: " + g.Style,
			"Finish: " + g.Finish,
			"Mounting: " + g.Mounting,
		},
	}
}

func (g *DumpsterGate) Profile(table PricingTable) ShippingProfile {
	w, h := g.dimensions(table)
	perSqFt := table.Gate.Styles[g.Style].WeightPerSqFt
	return ShippingProfile{
		WeightLbs:     w.Mul(h).Mul(perSqFt).Round(2),
		LongestInches: decimal.Max(w, h).Mul(inchesPerFoot),
	}
}
