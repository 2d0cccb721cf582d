package checkout

import (
	"github.com/storefrontlab/storefront-backend/pkg/db/models"
)

// SessionList is one page of a customer's session history.
type SessionList struct {
	Sessions   []models.CheckoutSession
	NextCursor string
}
