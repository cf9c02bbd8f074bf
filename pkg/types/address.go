package types

import "strings"

// Address is the destination used for both tax and shipping lookups.
type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
	Country string `json:"country,omitempty"`
}

// StateCode returns the uppercased two-letter region code.
func (a Address) StateCode() string {
	return strings.ToUpper(strings.TrimSpace(a.State))
}

// ZipCode returns the trimmed postal code.
func (a Address) ZipCode() string {
	return strings.TrimSpace(a.Zip)
}

// MissingJurisdictionFields lists the json names of absent state/zip fields.
func (a Address) MissingJurisdictionFields() []string {
	var missing []string
	if a.ZipCode() == "" {
		missing = append(missing, "zip")
	}
	if a.StateCode() == "" {
		missing = append(missing, "state")
	}
	return missing
}
