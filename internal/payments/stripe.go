package payments

import (
	"context"
	"fmt"

	"github.com/storefrontlab/storefront-backend/pkg/enums"
	pkgerrors "github.com/storefrontlab/storefront-backend/pkg/errors"
	"github.com/storefrontlab/storefront-backend/pkg/stripe"
)

type stripePayments interface {
	Environment() string
	CreatePaymentIntent(ctx context.Context, params stripe.PaymentIntentParams) (stripeIntentResult, error)
}

type stripeIntentResult struct {
	ID     string
	Status string
}

type stripeClientAdapter struct {
	client *stripe.Client
}

func (a stripeClientAdapter) Environment() string {
	return a.client.Environment()
}

func (a stripeClientAdapter) CreatePaymentIntent(ctx context.Context, params stripe.PaymentIntentParams) (stripeIntentResult, error) {
	intent, err := a.client.CreatePaymentIntent(ctx, params)
	if err != nil {
		return stripeIntentResult{}, err
	}
	result := stripeIntentResult{}
	if intent != nil {
		result.ID = intent.ID
		result.Status = string(intent.Status)
	}
	return result, nil
}

// StripeProvider charges checkout sessions through Stripe payment intents
// created with confirm=true.
type StripeProvider struct {
	api stripePayments
}

// NewStripeProvider wraps the configured Stripe client.
func NewStripeProvider(client *stripe.Client) (*StripeProvider, error) {
	if client == nil {
		return nil, fmt.Errorf("stripe client required")
	}
	return &StripeProvider{api: stripeClientAdapter{client: client}}, nil
}

// ID implements Provider.
func (p *StripeProvider) ID() enums.PaymentProviderID {
	return enums.PaymentProviderStripe
}

// IsAvailable implements Provider. A client that reports no environment was
// never initialized with credentials.
func (p *StripeProvider) IsAvailable(ctx context.Context) bool {
	return p != nil && p.api != nil && p.api.Environment() != ""
}

// Initiate implements Provider.
func (p *StripeProvider) Initiate(ctx context.Context, req Request) (string, error) {
	if req.SourceToken == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "payment method required")
	}
	result, err := p.api.CreatePaymentIntent(ctx, stripe.PaymentIntentParams{
		AmountCents:    int64(req.AmountCents),
		Currency:       string(req.Currency),
		PaymentMethod:  req.SourceToken,
		Description:    fmt.Sprintf("checkout session %s", req.SessionID),
		ReferenceID:    req.SessionID.String(),
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", pkgerrors.New(pkgerrors.CodePayment, "stripe returned no intent id")
	}
	return result.ID, nil
}

// Confirm implements Provider. The intent is confirmed at creation.
func (p *StripeProvider) Confirm(ctx context.Context, ref string) error {
	return nil
}

// Cancel implements Provider.
func (p *StripeProvider) Cancel(ctx context.Context, ref string) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "stripe intents are confirmed on initiation and cannot be canceled")
}
