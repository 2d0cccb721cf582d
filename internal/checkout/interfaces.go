package checkout

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storefrontlab/storefront-backend/pkg/db/models"
	"github.com/storefrontlab/storefront-backend/pkg/pagination"
)

// Repository defines persistence operations for checkout sessions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, session *models.CheckoutSession) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.CheckoutSession, error)
	FindByCartID(ctx context.Context, cartID uuid.UUID) (*models.CheckoutSession, error)
	FindActiveByCartID(ctx context.Context, cartID uuid.UUID) (*models.CheckoutSession, error)
	FindActiveByCustomerID(ctx context.Context, customerID uuid.UUID) (*models.CheckoutSession, error)
	FindExpired(ctx context.Context, cutoff time.Time, limit int) ([]models.CheckoutSession, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) (*SessionList, error)
	Save(ctx context.Context, session *models.CheckoutSession) error
	DeleteByID(ctx context.Context, id uuid.UUID) error
	ReplaceLineItems(ctx context.Context, sessionID uuid.UUID, items []models.SessionLineItem) error
}

// CartSource exposes the cart snapshot operations the checkout consumes. The
// checkout never edits cart contents, it only reads snapshots and flips status.
type CartSource interface {
	FindByID(ctx context.Context, cartID uuid.UUID) (*models.CartRecord, error)
	MarkCheckedOut(ctx context.Context, cartID uuid.UUID) error
	MarkConsumed(ctx context.Context, cartID uuid.UUID) error
}

// ProductNames resolves display names for line-item snapshots.
type ProductNames interface {
	GetName(ctx context.Context, productID uuid.UUID) (string, error)
}
