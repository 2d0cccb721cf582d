package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/storefrontlab/storefront-backend/pkg/enums"
)

// CartChangedEvent is emitted whenever a cart's contents change. Consumers
// treat it as a hint, not a delta: the synchronizer re-reads the cart.
type CartChangedEvent struct {
	CartID     uuid.UUID `json:"cart_id"`
	CustomerID uuid.UUID `json:"customer_id"`
	ChangedAt  time.Time `json:"changed_at"`
}

// SessionConfirmedEvent is emitted after a payment was initiated successfully
// and the session moved to confirmed.
type SessionConfirmedEvent struct {
	SessionID   uuid.UUID               `json:"session_id"`
	CartID      uuid.UUID               `json:"cart_id"`
	CustomerID  uuid.UUID               `json:"customer_id"`
	Provider    enums.PaymentProviderID `json:"provider"`
	PaymentRef  string                  `json:"payment_ref"`
	TotalCents  int                     `json:"total_cents"`
	Currency    enums.Currency          `json:"currency"`
	ConfirmedAt time.Time               `json:"confirmed_at"`
}

// SessionCompletedEvent is emitted when the post-confirmation work finished
// and the session reached its final completed state.
type SessionCompletedEvent struct {
	SessionID   uuid.UUID `json:"session_id"`
	CartID      uuid.UUID `json:"cart_id"`
	CustomerID  uuid.UUID `json:"customer_id"`
	CompletedAt time.Time `json:"completed_at"`
}

// SessionExpiredEvent is emitted by the TTL sweep for sessions past their deadline.
type SessionExpiredEvent struct {
	SessionID  uuid.UUID `json:"session_id"`
	CartID     uuid.UUID `json:"cart_id"`
	CustomerID uuid.UUID `json:"customer_id"`
	ExpiredAt  time.Time `json:"expired_at"`
}

// SessionAbandonedEvent is emitted when the buyer cancels an active session.
type SessionAbandonedEvent struct {
	SessionID   uuid.UUID `json:"session_id"`
	CartID      uuid.UUID `json:"cart_id"`
	CustomerID  uuid.UUID `json:"customer_id"`
	AbandonedAt time.Time `json:"abandoned_at"`
}
