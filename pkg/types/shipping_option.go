package types

// ShippingOption is the delivery method chosen during the delivery step.
// Stored as JSONB on the checkout session.
type ShippingOption struct {
	Code          string `json:"code"`
	Title         string `json:"title"`
	PriceCents    int    `json:"price_cents"`
	EstimatedDays *int   `json:"estimated_days,omitempty"`
}
