package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/storefrontlab/storefront-backend/pkg/config"
	pkgerrors "github.com/storefrontlab/storefront-backend/pkg/errors"
	"github.com/storefrontlab/storefront-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"
)

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
)

// Client wraps Stripe's API client plus env-specific metadata.
type Client struct {
	api         *stripe.Client
	environment string
	logger      *logger.Logger
}

// PaymentIntentParams carries the inputs for a confirmed payment intent.
// IdempotencyKey makes retried creates return the original intent instead of
// charging twice.
type PaymentIntentParams struct {
	AmountCents    int64
	Currency       string
	PaymentMethod  string
	Description    string
	ReferenceID    string
	IdempotencyKey string
}

// NewClient initializes Stripe once with the configured secrets and env.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}

	if err := validateAPIKey(env, apiKey); err != nil {
		return nil, err
	}

	api := stripe.NewClient(apiKey)
	stripe.Key = apiKey

	if logg != nil {
		logg.Info(ctx, fmt.Sprintf("stripe client initialized (%s)", env))
	}

	return &Client{
		api:         api,
		environment: env,
		logger:      logg,
	}, nil
}

// API returns the underlying Stripe API client.
func (c *Client) API() *stripe.Client {
	if c == nil {
		return nil
	}
	return c.api
}

// Environment reports the normalized Stripe environment in use.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// CreatePaymentIntent creates and confirms a payment intent in one call.
func (c *Client) CreatePaymentIntent(ctx context.Context, params PaymentIntentParams) (*stripe.PaymentIntent, error) {
	req := &stripe.PaymentIntentCreateParams{
		Amount:        stripe.Int64(params.AmountCents),
		Currency:      stripe.String(strings.ToLower(params.Currency)),
		PaymentMethod: stripe.String(params.PaymentMethod),
		Confirm:       stripe.Bool(true),
	}
	if trimmed := strings.TrimSpace(params.Description); trimmed != "" {
		req.Description = stripe.String(trimmed)
	}
	if trimmed := strings.TrimSpace(params.ReferenceID); trimmed != "" {
		req.Metadata = map[string]string{"reference_id": trimmed}
	}
	if trimmed := strings.TrimSpace(params.IdempotencyKey); trimmed != "" {
		req.IdempotencyKey = stripe.String(trimmed)
	}

	intent, err := c.api.V1PaymentIntents.Create(ctx, req)
	if err != nil {
		if c.logger != nil {
			c.logger.Error(ctx, "stripe create payment intent", err)
		}
		return nil, mapStripeError(err)
	}
	if c.logger != nil {
		fields := map[string]any{
			"intent_id": intent.ID,
			"status":    string(intent.Status),
		}
		c.logger.Info(c.logger.WithFields(ctx, fields), "stripe payment intent created")
	}
	return intent, nil
}

func mapStripeError(err error) error {
	if err == nil {
		return nil
	}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		switch stripeErr.Type {
		case stripe.ErrorTypeCard:
			return pkgerrors.Wrap(pkgerrors.CodePayment, err, "stripe payment declined")
		case stripe.ErrorTypeInvalidRequest:
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "stripe rejected the request")
		case stripe.ErrorType("authentication_error"):
			return pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "stripe authentication failed")
		}
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stripe request failed")
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = testEnv
	}
	switch env {
	case testEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidStripeEnv
	}
}

func validateAPIKey(env, key string) error {
	switch env {
	case testEnv:
		if strings.HasPrefix(key, "sk_test") || strings.HasPrefix(key, "rk_test") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a test secret key (sk_test/rk_test)", testEnv)
	case liveEnv:
		if strings.HasPrefix(key, "sk_live") || strings.HasPrefix(key, "rk_live") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a live secret key (sk_live/rk_live)", liveEnv)
	default:
		return errInvalidStripeEnv
	}
}
