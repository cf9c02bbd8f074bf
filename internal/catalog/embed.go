package catalog

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/fabshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fabshop-backend/pkg/errors"
)

var piApprox = decimal.RequireFromString("3.14159")

// EmbedVariant decodes steel plate embeds.
type EmbedVariant struct{}

func (EmbedVariant) Type() enums.ProductType { return enums.ProductTypeSteelPlateEmbed }

func (EmbedVariant) Decode(body json.RawMessage) (Spec, error) {
	var spec SteelPlateEmbed
	if err := decodeBody(body, &spec); err != nil {
		return nil, err
	}
	spec.Material = strings.ToLower(strings.TrimSpace(spec.Material))
	spec.Finish = strings.ToLower(strings.TrimSpace(spec.Finish))
	return &spec, nil
}

// SteelPlateEmbed is a cast-in plate with welded studs. Dimensions are inches.
type SteelPlateEmbed struct {
	Length    decimal.Decimal `json:"length"`
	Width     decimal.Decimal `json:"width"`
	Thickness decimal.Decimal `json:"thickness"`
	Material  string          `json:"material"`
	Finish    string          `json:"finish,omitempty"`
	Studs     []Stud          `json:"studs,omitempty"`
}

// Stud is one headed anchor; X and Y are offsets from the plate corner.
type Stud struct {
	Diameter decimal.Decimal `json:"diameter"`
	Length   decimal.Decimal `json:"length"`
	X        decimal.Decimal `json:"x"`
	Y        decimal.Decimal `json:"y"`
}

func (e *SteelPlateEmbed) finish(table PricingTable) string {
	if e.Finish == "" {
		return table.Embed.DefaultFinish
	}
	return e.Finish
}

func (e *SteelPlateEmbed) Validate(table PricingTable) error {
	for _, dim := range []struct {
		field string
		value decimal.Decimal
	}{
		{"length", e.Length},
		{"width", e.Width},
		{"thickness", e.Thickness},
	} {
		if !dim.value.IsPositive() {
			return pkgerrors.Field(dim.field, "must be greater than zero")
		}
	}
	if e.Material == "" {
		return pkgerrors.Field("material", "is required")
	}
	if _, ok := table.Embed.Materials[e.Material]; !ok {
		return pkgerrors.Field("material", fmt.Sprintf("%q is not offered", e.Material))
	}
	if _, ok := table.Embed.Finishes[e.finish(table)]; !ok {
		return pkgerrors.Field("finish", fmt.Sprintf("%q is not offered", e.finish(table)))
	}
	for i, stud := range e.Studs {
		field := fmt.Sprintf("studs[%d]", i)
		switch {
		case !stud.Diameter.IsPositive():
			return pkgerrors.Field(field+".diameter", "must be greater than zero")
		case !stud.Length.IsPositive():
			return pkgerrors.Field(field+".length", "must be greater than zero")
		case stud.X.IsNegative() || stud.X.GreaterThan(e.Length):
			return pkgerrors.Field(field+".x", "must fall within the plate length")
		case stud.Y.IsNegative() || stud.Y.GreaterThan(e.Width):
			return pkgerrors.Field(field+".y", "must fall within the plate width")
		}
	}
	return nil
}

func (e *SteelPlateEmbed) Price(table PricingTable) (decimal.Decimal, error) {
	rate, ok := table.Embed.Materials[e.Material]
	if !ok {
		return decimal.Zero, pkgerrors.Field("material", "has no rate")
	}
	finishRate := table.Embed.Finishes[e.finish(table)]

	area := e.Length.Mul(e.Width)
	price := table.Embed.HandlingFee.
		Add(area.Mul(e.Thickness).Mul(rate)).
		Add(area.Mul(finishRate))
	for _, stud := range e.Studs {
		price = price.Add(studPrice(table.Embed, stud))
	}
	return price, nil
}

func studPrice(p EmbedPricing, stud Stud) decimal.Decimal {
	base, ok := p.StudPrices[stud.Diameter.String()]
	if !ok {
		base = p.DefaultStudPrice
	}
	return base.Add(stud.Length.Mul(p.StudPricePerInch))
}

func (e *SteelPlateEmbed) Describe() Description {
	desc := Description{
		Title: fmt.Sprintf("Steel plate embed %s\" x %s\" x %s\"", e.Length, e.Width, e.Thickness),
		Lines: []string{
			"Material: " + e.Material,
			"Finish: " + nonEmpty(e.Finish, "default"),
			fmt.Sprintf("Studs: %d", len(e.Studs)),
		},
	}
	for i, stud := range e.Studs {
		desc.Lines = append(desc.Lines, fmt.Sprintf("  #%d dia %s\" x %s\" at (%s, %s)", i+1, stud.Diameter, stud.Length, stud.X, stud.Y))
	}
	return desc
}

func (e *SteelPlateEmbed) Profile(table PricingTable) ShippingProfile {
	density := table.Embed.DensityLbsPerIn3
	weight := e.Length.Mul(e.Width).Mul(e.Thickness).Mul(density)
	two := decimal.NewFromInt(2)
	for _, stud := range e.Studs {
		r := stud.Diameter.Div(two)
		weight = weight.Add(piApprox.Mul(r).Mul(r).Mul(stud.Length).Mul(density))
	}
	return ShippingProfile{
		WeightLbs:     weight.Round(2),
		LongestInches: decimal.Max(e.Length, e.Width),
	}
}

func nonEmpty(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
