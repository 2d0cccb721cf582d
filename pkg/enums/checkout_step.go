package enums

import "fmt"

// CheckoutStep identifies one stage of the checkout flow.
type CheckoutStep string

const (
	StepBuyerInfo    CheckoutStep = "buyer_info"
	StepDelivery     CheckoutStep = "delivery"
	StepPayment      CheckoutStep = "payment"
	StepReview       CheckoutStep = "review"
	StepConfirmation CheckoutStep = "confirmation"
)

// orderedSteps lists every step in flow order. Sequence numbers derive from
// position here, so the slice is the single source of truth for ordering.
var orderedSteps = []CheckoutStep{
	StepBuyerInfo,
	StepDelivery,
	StepPayment,
	StepReview,
	StepConfirmation,
}

// String implements fmt.Stringer.
func (s CheckoutStep) String() string {
	return string(s)
}

// IsValid reports whether the value is a known CheckoutStep.
func (s CheckoutStep) IsValid() bool {
	for _, candidate := range orderedSteps {
		if candidate == s {
			return true
		}
	}
	return false
}

// Sequence returns the 1-based position of the step in the flow, or 0 for an
// unknown step.
func (s CheckoutStep) Sequence() int {
	for i, candidate := range orderedSteps {
		if candidate == s {
			return i + 1
		}
	}
	return 0
}

// Before reports whether s comes strictly earlier in the flow than other.
// Unknown steps sort before everything.
func (s CheckoutStep) Before(other CheckoutStep) bool {
	return s.Sequence() < other.Sequence()
}

// OrderedCheckoutSteps returns the steps in flow order.
func OrderedCheckoutSteps() []CheckoutStep {
	out := make([]CheckoutStep, len(orderedSteps))
	copy(out, orderedSteps)
	return out
}

// ParseCheckoutStep converts raw input into a CheckoutStep.
func ParseCheckoutStep(value string) (CheckoutStep, error) {
	for _, candidate := range orderedSteps {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid checkout step %q", value)
}
