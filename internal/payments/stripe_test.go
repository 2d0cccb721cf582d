package payments

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/storefrontlab/storefront-backend/pkg/enums"
	pkgerrors "github.com/storefrontlab/storefront-backend/pkg/errors"
	"github.com/storefrontlab/storefront-backend/pkg/stripe"
)

type fakeStripeAPI struct {
	environment string
	result      stripeIntentResult
	err         error
	gotParams   stripe.PaymentIntentParams
	calls       int
}

func (f *fakeStripeAPI) Environment() string { return f.environment }

func (f *fakeStripeAPI) CreatePaymentIntent(ctx context.Context, params stripe.PaymentIntentParams) (stripeIntentResult, error) {
	f.calls++
	f.gotParams = params
	return f.result, f.err
}

func TestStripeInitiateForwardsIdempotencyKey(t *testing.T) {
	api := &fakeStripeAPI{
		environment: "test",
		result:      stripeIntentResult{ID: "pi_123", Status: "succeeded"},
	}
	provider := &StripeProvider{api: api}

	sessionID := uuid.New()
	ref, err := provider.Initiate(context.Background(), Request{
		SessionID:      sessionID,
		AmountCents:    2499,
		Currency:       enums.CurrencyUSD,
		SourceToken:    "pm_card_visa",
		IdempotencyKey: "checkout-" + sessionID.String(),
	})
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if ref != "pi_123" {
		t.Fatalf("unexpected reference %s", ref)
	}
	if api.gotParams.IdempotencyKey != "checkout-"+sessionID.String() {
		t.Fatalf("idempotency key not forwarded, got %q", api.gotParams.IdempotencyKey)
	}
	if api.gotParams.AmountCents != 2499 {
		t.Fatalf("unexpected amount %d", api.gotParams.AmountCents)
	}
	if api.gotParams.ReferenceID != sessionID.String() {
		t.Fatalf("unexpected reference id %s", api.gotParams.ReferenceID)
	}
}

func TestStripeInitiateRequiresSourceToken(t *testing.T) {
	api := &fakeStripeAPI{environment: "test"}
	provider := &StripeProvider{api: api}

	_, err := provider.Initiate(context.Background(), Request{SessionID: uuid.New()})
	if err == nil {
		t.Fatal("expected error for missing payment method")
	}
	if pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
		t.Fatalf("expected validation code, got %s", pkgerrors.CodeOf(err))
	}
	if api.calls != 0 {
		t.Fatalf("gateway should not be called, got %d calls", api.calls)
	}
}

func TestStripeInitiateRejectsEmptyIntentID(t *testing.T) {
	api := &fakeStripeAPI{environment: "test"}
	provider := &StripeProvider{api: api}

	_, err := provider.Initiate(context.Background(), Request{
		SessionID:   uuid.New(),
		SourceToken: "pm_card_visa",
	})
	if err == nil {
		t.Fatal("expected error for empty intent id")
	}
	if pkgerrors.CodeOf(err) != pkgerrors.CodePayment {
		t.Fatalf("expected payment code, got %s", pkgerrors.CodeOf(err))
	}
}

func TestStripeAvailability(t *testing.T) {
	configured := &StripeProvider{api: &fakeStripeAPI{environment: "live"}}
	if !configured.IsAvailable(context.Background()) {
		t.Fatal("configured provider should be available")
	}

	uninitialized := &StripeProvider{api: &fakeStripeAPI{}}
	if uninitialized.IsAvailable(context.Background()) {
		t.Fatal("provider without an environment should be unavailable")
	}
}
