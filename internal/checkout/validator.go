package checkout

import (
	"github.com/storefrontlab/storefront-backend/pkg/db/models"
	"github.com/storefrontlab/storefront-backend/pkg/enums"
)

// AccessDecision is the step validator's verdict: allow the step, send the
// buyer to another step, or send them back to the cart entirely.
type AccessDecision struct {
	Allowed    bool
	ToCart     bool
	RedirectTo enums.CheckoutStep
}

func allowStep() AccessDecision {
	return AccessDecision{Allowed: true}
}

func redirectToStep(step enums.CheckoutStep) AccessDecision {
	return AccessDecision{RedirectTo: step}
}

func redirectToCart() AccessDecision {
	return AccessDecision{ToCart: true}
}

// CanAccess decides whether the target step is reachable for the session.
// Rules are evaluated in priority order; the first match wins.
func CanAccess(session *models.CheckoutSession, target enums.CheckoutStep) AccessDecision {
	if session == nil {
		return redirectToCart()
	}

	switch session.Status {
	case enums.SessionStatusAbandoned, enums.SessionStatusExpired:
		return redirectToCart()
	case enums.SessionStatusCompleted, enums.SessionStatusConfirmed:
		if target == enums.StepConfirmation {
			return allowStep()
		}
		return redirectToStep(enums.StepConfirmation)
	}

	if target == enums.StepConfirmation {
		// Only a confirmed or completed session may see the confirmation page.
		return redirectToStep(session.CurrentStep)
	}

	if session.CurrentStep.Before(target) || !PrerequisitesMet(session, target) {
		return redirectToStep(session.CurrentStep)
	}

	return allowStep()
}
