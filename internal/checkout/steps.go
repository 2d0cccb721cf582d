package checkout

import (
	"github.com/storefrontlab/storefront-backend/pkg/db/models"
	"github.com/storefrontlab/storefront-backend/pkg/enums"
)

// stepPrerequisites maps each step to the steps that must already be completed
// before it may be entered. Confirmation is absent on purpose: it is gated on
// session status, not on completed steps.
var stepPrerequisites = map[enums.CheckoutStep][]enums.CheckoutStep{
	enums.StepBuyerInfo: {},
	enums.StepDelivery:  {enums.StepBuyerInfo},
	enums.StepPayment:   {enums.StepBuyerInfo, enums.StepDelivery},
	enums.StepReview:    {enums.StepBuyerInfo, enums.StepDelivery, enums.StepPayment},
}

// PrerequisitesMet reports whether every prerequisite of the step is in the
// session's completed set.
func PrerequisitesMet(session *models.CheckoutSession, step enums.CheckoutStep) bool {
	for _, required := range stepPrerequisites[step] {
		if !session.HasCompletedStep(required) {
			return false
		}
	}
	return true
}

// NextStep returns the step after current, or current when it is the last one.
func NextStep(current enums.CheckoutStep) enums.CheckoutStep {
	ordered := enums.OrderedCheckoutSteps()
	for i, step := range ordered {
		if step == current && i+1 < len(ordered) {
			return ordered[i+1]
		}
	}
	return current
}

// advanceAfter moves the session's current step forward when the submitted
// step is the one the session is sitting on. Submitting an earlier, already
// completed step never rewinds progress.
func advanceAfter(session *models.CheckoutSession, submitted enums.CheckoutStep) {
	session.MarkStepCompleted(submitted)
	if session.CurrentStep == submitted {
		session.CurrentStep = NextStep(submitted)
	}
}
