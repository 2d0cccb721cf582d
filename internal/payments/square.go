package payments

import (
	"context"
	"fmt"

	"github.com/storefrontlab/storefront-backend/pkg/enums"
	pkgerrors "github.com/storefrontlab/storefront-backend/pkg/errors"
	"github.com/storefrontlab/storefront-backend/pkg/square"
)

type squarePayments interface {
	LocationID() string
	CreatePayment(ctx context.Context, params square.PaymentCreateParams) (squarePaymentResult, error)
}

type squarePaymentResult struct {
	ID     string
	Status string
}

// squareClientAdapter narrows pkg/square.Client to what the provider needs.
type squareClientAdapter struct {
	client *square.Client
}

func (a squareClientAdapter) LocationID() string {
	return a.client.LocationID()
}

func (a squareClientAdapter) CreatePayment(ctx context.Context, params square.PaymentCreateParams) (squarePaymentResult, error) {
	payment, err := a.client.CreatePayment(ctx, params)
	if err != nil {
		return squarePaymentResult{}, err
	}
	result := squarePaymentResult{}
	if payment != nil {
		if id := payment.GetID(); id != nil {
			result.ID = *id
		}
		if status := payment.GetStatus(); status != nil {
			result.Status = *status
		}
	}
	return result, nil
}

// SquareProvider charges checkout sessions through Square. Square captures on
// create, so a successful Initiate is a settled payment.
type SquareProvider struct {
	api squarePayments
}

// NewSquareProvider wraps the configured Square client.
func NewSquareProvider(client *square.Client) (*SquareProvider, error) {
	if client == nil {
		return nil, fmt.Errorf("square client required")
	}
	return &SquareProvider{api: squareClientAdapter{client: client}}, nil
}

// ID implements Provider.
func (p *SquareProvider) ID() enums.PaymentProviderID {
	return enums.PaymentProviderSquare
}

// IsAvailable implements Provider. A client without a location cannot take
// payments, so it is reported as unavailable rather than failing at charge
// time.
func (p *SquareProvider) IsAvailable(ctx context.Context) bool {
	return p != nil && p.api != nil && p.api.LocationID() != ""
}

// Initiate implements Provider.
func (p *SquareProvider) Initiate(ctx context.Context, req Request) (string, error) {
	if req.SourceToken == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "payment source token required")
	}
	result, err := p.api.CreatePayment(ctx, square.PaymentCreateParams{
		AmountCents:    int64(req.AmountCents),
		Currency:       string(req.Currency),
		LocationID:     p.api.LocationID(),
		SourceID:       req.SourceToken,
		IdempotencyKey: req.IdempotencyKey,
		ReferenceID:    req.SessionID.String(),
	})
	if err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", pkgerrors.New(pkgerrors.CodePayment, "square returned no payment id")
	}
	return result.ID, nil
}

// Confirm implements Provider. Square settles at create time.
func (p *SquareProvider) Confirm(ctx context.Context, ref string) error {
	return nil
}

// Cancel implements Provider.
func (p *SquareProvider) Cancel(ctx context.Context, ref string) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "square payments settle on initiation and cannot be canceled")
}
