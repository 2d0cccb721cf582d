package types

import "strings"

// Address is the delivery destination captured during the delivery step.
// Stored as JSONB on the checkout session.
type Address struct {
	Line1      string  `json:"line1"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city"`
	State      string  `json:"state"`
	PostalCode string  `json:"postal_code"`
	Country    string  `json:"country"`
}

// Validate reports the first missing required field, or "" when complete.
func (a Address) Validate() string {
	switch {
	case strings.TrimSpace(a.Line1) == "":
		return "line1"
	case strings.TrimSpace(a.City) == "":
		return "city"
	case strings.TrimSpace(a.State) == "":
		return "state"
	case strings.TrimSpace(a.PostalCode) == "":
		return "postal_code"
	}
	return ""
}

// NormalizedCountry returns the country code, defaulting to US.
func (a Address) NormalizedCountry() string {
	country := strings.TrimSpace(strings.ToUpper(a.Country))
	if country == "" {
		return "US"
	}
	return country
}
