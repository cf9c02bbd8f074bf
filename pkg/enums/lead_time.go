package enums

import "fmt"

// LeadTime selects the fabrication schedule.
type LeadTime string

const (
	LeadTimeStandard LeadTime = "standard"
	LeadTimeRush     LeadTime = "rush"
)

var validLeadTimes = []LeadTime{
	LeadTimeStandard,
	LeadTimeRush,
}

// String implements fmt.Stringer.
func (l LeadTime) String() string {
	return string(l)
}

// IsValid reports whether the value is a known LeadTime.
func (l LeadTime) IsValid() bool {
	for _, candidate := range validLeadTimes {
		if candidate == l {
			return true
		}
	}
	return false
}

// ParseLeadTime converts raw input into a LeadTime.
func ParseLeadTime(value string) (LeadTime, error) {
	for _, candidate := range validLeadTimes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid lead time %q", value)
}
