package enums

import "fmt"

// ProductType tags the configurable product variants.
type ProductType string

const (
	ProductTypeSteelPlateEmbed ProductType = "steel_plate_embed"
	ProductTypeDumpsterGate    ProductType = "dumpster_gate"
)

var validProductTypes = []ProductType{
	ProductTypeSteelPlateEmbed,
	ProductTypeDumpsterGate,
}

// String implements fmt.Stringer.
func (p ProductType) String() string {
	return string(p)
}

// IsValid reports whether the value is a known ProductType.
func (p ProductType) IsValid() bool {
	for _, candidate := range validProductTypes {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseProductType converts raw input into a ProductType.
func ParseProductType(value string) (ProductType, error) {
	for _, candidate := range validProductTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid product type %q", value)
}
