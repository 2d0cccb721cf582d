package payments

import (
	"context"
	"fmt"
	"strings"

	"github.com/storefrontlab/storefront-backend/pkg/config"
	"github.com/storefrontlab/storefront-backend/pkg/enums"
	pkgerrors "github.com/storefrontlab/storefront-backend/pkg/errors"
	"github.com/storefrontlab/storefront-backend/pkg/logger"
	"github.com/storefrontlab/storefront-backend/pkg/square"
	"github.com/storefrontlab/storefront-backend/pkg/stripe"
)

// Registry resolves payment providers by id.
type Registry struct {
	providers map[enums.PaymentProviderID]Provider
}

// NewRegistry builds a registry from the configured providers.
func NewRegistry(providers ...Provider) (*Registry, error) {
	entries := make(map[enums.PaymentProviderID]Provider, len(providers))
	for _, p := range providers {
		if p == nil {
			continue
		}
		id := p.ID()
		if !id.IsValid() {
			return nil, fmt.Errorf("provider has invalid id %q", id)
		}
		if _, dup := entries[id]; dup {
			return nil, fmt.Errorf("provider %s registered twice", id)
		}
		entries[id] = p
	}
	return &Registry{providers: entries}, nil
}

// NewRegistryFromConfig registers every provider whose credentials are set.
// Unconfigured providers are skipped; resolving them later yields NotFound.
func NewRegistryFromConfig(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*Registry, error) {
	var providers []Provider

	if strings.TrimSpace(cfg.Square.AccessToken) != "" {
		client, err := square.NewClient(ctx, cfg.Square, logg)
		if err != nil {
			return nil, fmt.Errorf("square client: %w", err)
		}
		provider, err := NewSquareProvider(client)
		if err != nil {
			return nil, fmt.Errorf("square provider: %w", err)
		}
		providers = append(providers, provider)
	}

	if strings.TrimSpace(cfg.Stripe.APIKey) != "" {
		client, err := stripe.NewClient(ctx, cfg.Stripe, logg)
		if err != nil {
			return nil, fmt.Errorf("stripe client: %w", err)
		}
		provider, err := NewStripeProvider(client)
		if err != nil {
			return nil, fmt.Errorf("stripe provider: %w", err)
		}
		providers = append(providers, provider)
	}

	return NewRegistry(providers...)
}

// FindByID returns the provider for the id or NotFound when unregistered.
func (r *Registry) FindByID(id enums.PaymentProviderID) (Provider, error) {
	p, ok := r.providers[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("payment provider %s is not configured", id))
	}
	return p, nil
}

// FindAvailable returns the providers currently accepting payments.
func (r *Registry) FindAvailable(ctx context.Context) []Provider {
	out := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		if p.IsAvailable(ctx) {
			out = append(out, p)
		}
	}
	return out
}
