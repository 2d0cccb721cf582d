package payments

import (
	"context"

	"github.com/google/uuid"

	"github.com/storefrontlab/storefront-backend/pkg/enums"
)

// Request carries everything a gateway needs to charge one checkout session.
type Request struct {
	SessionID      uuid.UUID
	CustomerID     uuid.UUID
	AmountCents    int
	Currency       enums.Currency
	SourceToken    string
	IdempotencyKey string
}

// Provider is the gateway contract the checkout orchestrator calls. Initiate
// performs the charge and returns the gateway reference; both configured
// gateways settle on initiation, so Confirm is a no-op for them.
type Provider interface {
	ID() enums.PaymentProviderID
	IsAvailable(ctx context.Context) bool
	Initiate(ctx context.Context, req Request) (string, error)
	Confirm(ctx context.Context, ref string) error
	Cancel(ctx context.Context, ref string) error
}
