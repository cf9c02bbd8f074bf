package enums

import "fmt"

// ShippingMethod identifies a delivery option. Declaration order is the tie-break order for quotes.
type ShippingMethod string

const (
	ShippingMethodStandardFreight  ShippingMethod = "standard_freight"
	ShippingMethodExpeditedFreight ShippingMethod = "expedited_freight"
	ShippingMethodLocalPickup      ShippingMethod = "local_pickup"
)

var validShippingMethods = []ShippingMethod{
	ShippingMethodStandardFreight,
	ShippingMethodExpeditedFreight,
	ShippingMethodLocalPickup,
}

// ShippingMethods returns the known values in declaration order.
func ShippingMethods() []ShippingMethod {
	out := make([]ShippingMethod, len(validShippingMethods))
	copy(out, validShippingMethods)
	return out
}

// String implements fmt.Stringer.
func (s ShippingMethod) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ShippingMethod.
func (s ShippingMethod) IsValid() bool {
	for _, candidate := range validShippingMethods {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseShippingMethod converts raw input into a ShippingMethod.
func ParseShippingMethod(value string) (ShippingMethod, error) {
	for _, candidate := range validShippingMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid shipping method %q", value)
}
