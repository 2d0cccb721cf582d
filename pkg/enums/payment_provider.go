package enums

import "fmt"

// PaymentProviderID names a configured payment gateway.
type PaymentProviderID string

const (
	PaymentProviderSquare PaymentProviderID = "square"
	PaymentProviderStripe PaymentProviderID = "stripe"
)

var validPaymentProviderIDs = []PaymentProviderID{
	PaymentProviderSquare,
	PaymentProviderStripe,
}

// String implements fmt.Stringer.
func (p PaymentProviderID) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentProviderID.
func (p PaymentProviderID) IsValid() bool {
	for _, candidate := range validPaymentProviderIDs {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentProviderID converts raw input into a PaymentProviderID.
func ParsePaymentProviderID(value string) (PaymentProviderID, error) {
	for _, candidate := range validPaymentProviderIDs {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment provider %q", value)
}
