package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storefrontlab/storefront-backend/pkg/db/models"
	pkgerrors "github.com/storefrontlab/storefront-backend/pkg/errors"
	"github.com/storefrontlab/storefront-backend/pkg/logger"
)

// SyncOutcome tells the event-consuming boundary what a sync call did.
type SyncOutcome string

const (
	SyncApplied          SyncOutcome = "applied"
	SyncNoSession        SyncOutcome = "no_session"
	SyncSkippedEmptyCart SyncOutcome = "skipped_empty"
	SyncFailed           SyncOutcome = "failed"
)

// Synchronizer rebuilds an active session's line items from the live cart.
// Every run replaces the full list from a fresh cart read, so duplicate and
// out-of-order notifications converge on the cart's current contents.
type Synchronizer struct {
	repo     Repository
	carts    CartSource
	products ProductNames
	tx       txRunner
	logg     *logger.Logger
}

// NewSynchronizer builds the cart synchronizer.
func NewSynchronizer(repo Repository, carts CartSource, products ProductNames, tx txRunner, logg *logger.Logger) (*Synchronizer, error) {
	if repo == nil {
		return nil, fmt.Errorf("checkout repository required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart source required")
	}
	if products == nil {
		return nil, fmt.Errorf("product names required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	return &Synchronizer{
		repo:     repo,
		carts:    carts,
		products: products,
		tx:       tx,
		logg:     logg,
	}, nil
}

// Sync reconciles the active session for the cart, if one exists. Most carts
// have no session, so that case is a silent no-op rather than an error.
func (s *Synchronizer) Sync(ctx context.Context, cartID uuid.UUID) (SyncOutcome, error) {
	if cartID == uuid.Nil {
		return SyncFailed, pkgerrors.New(pkgerrors.CodeValidation, "cart id required")
	}

	session, err := s.repo.FindActiveByCartID(ctx, cartID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return SyncNoSession, nil
		}
		return SyncFailed, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active session")
	}

	cart, err := s.carts.FindByID(ctx, cartID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return SyncFailed, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		return SyncFailed, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart snapshot")
	}

	if cart.IsEmpty() {
		// An emptied cart under an active session cannot be represented as a
		// session with zero lines. The flow surfaces it at confirmation time.
		if s.logg != nil {
			ctx := s.logg.WithCartID(ctx, cartID.String())
			s.logg.Warn(ctx, "cart emptied while checkout session active, sync skipped")
		}
		return SyncSkippedEmptyCart, nil
	}

	items, subtotal, err := buildLineItems(ctx, s.products, session.ID, cart)
	if err != nil {
		return SyncFailed, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.ReplaceLineItems(ctx, session.ID, items); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "replace session line items")
		}
		session.SubtotalCents = subtotal
		session.TotalCents = subtotal + session.ShippingCents
		return repo.Save(ctx, session)
	})
	if err != nil {
		return SyncFailed, err
	}
	return SyncApplied, nil
}

// buildLineItems snapshots cart lines into session line items. Line-item ids
// are generated fresh each sync; identity is not observed across renders.
func buildLineItems(ctx context.Context, products ProductNames, sessionID uuid.UUID, cart *models.CartRecord) ([]models.SessionLineItem, int, error) {
	items := make([]models.SessionLineItem, 0, len(cart.Items))
	subtotal := 0
	position := 0
	for _, line := range cart.Items {
		if line.Quantity <= 0 {
			continue
		}
		name, err := products.GetName(ctx, line.ProductID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, 0, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %s not found", line.ProductID))
			}
			return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve product name")
		}
		items = append(items, models.SessionLineItem{
			ID:             uuid.New(),
			SessionID:      sessionID,
			ProductID:      line.ProductID,
			ProductName:    name,
			UnitPriceCents: line.UnitPriceCents,
			Quantity:       line.Quantity,
			Position:       position,
		})
		subtotal += line.UnitPriceCents * line.Quantity
		position++
	}
	return items, subtotal, nil
}
