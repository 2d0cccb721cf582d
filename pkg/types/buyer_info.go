package types

// BuyerInfo captures the contact details submitted on the first checkout step.
// Stored as JSONB on the checkout session.
type BuyerInfo struct {
	FullName string  `json:"full_name"`
	Email    string  `json:"email"`
	Phone    *string `json:"phone,omitempty"`
}
