package carts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storefrontlab/storefront-backend/internal/products"
	"github.com/storefrontlab/storefront-backend/pkg/db/models"
	"github.com/storefrontlab/storefront-backend/pkg/enums"
	pkgerrors "github.com/storefrontlab/storefront-backend/pkg/errors"
	"github.com/storefrontlab/storefront-backend/pkg/outbox"
	"github.com/storefrontlab/storefront-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service exposes cart reads and mutations. Every mutation lands a
// cart_changed event in the same transaction so downstream checkout sessions
// converge on the new contents.
type Service interface {
	GetOrCreateOpenCart(ctx context.Context, customerID uuid.UUID) (*models.CartRecord, error)
	GetCart(ctx context.Context, cartID, customerID uuid.UUID) (*models.CartRecord, error)
	SetItem(ctx context.Context, input SetItemInput) (*models.CartRecord, error)
	RemoveItem(ctx context.Context, cartID, customerID, productID uuid.UUID) (*models.CartRecord, error)
	Clear(ctx context.Context, cartID, customerID uuid.UUID) (*models.CartRecord, error)

	FindByID(ctx context.Context, cartID uuid.UUID) (*models.CartRecord, error)
	MarkCheckedOut(ctx context.Context, cartID uuid.UUID) error
	MarkConsumed(ctx context.Context, cartID uuid.UUID) error
}

// SetItemInput adds a product line or overwrites its quantity.
type SetItemInput struct {
	CartID     uuid.UUID
	CustomerID uuid.UUID
	ProductID  uuid.UUID
	Quantity   int
}

type service struct {
	repo    Repository
	catalog products.Repository
	tx      txRunner
	outbox  outboxPublisher
}

// NewService builds the cart service with its required collaborators.
func NewService(repo Repository, catalog products.Repository, tx txRunner, publisher outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("product catalog required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, catalog: catalog, tx: tx, outbox: publisher}, nil
}

func (s *service) GetOrCreateOpenCart(ctx context.Context, customerID uuid.UUID) (*models.CartRecord, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer identity missing")
	}
	cart, err := s.repo.FindOpenByCustomer(ctx, customerID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load open cart")
	}

	cart = &models.CartRecord{
		ID:         uuid.New(),
		CustomerID: customerID,
		Status:     enums.CartStatusActive,
		Currency:   "USD",
	}
	if err := s.repo.Create(ctx, cart); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
	}
	return cart, nil
}

func (s *service) GetCart(ctx context.Context, cartID, customerID uuid.UUID) (*models.CartRecord, error) {
	return s.loadOwnedCart(ctx, cartID, customerID)
}

// SetItem writes the line for the product: quantity zero clears it, anything
// else overwrites it with a fresh price snapshot from the catalog.
func (s *service) SetItem(ctx context.Context, input SetItemInput) (*models.CartRecord, error) {
	if input.Quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity cannot be negative")
	}
	if input.Quantity == 0 {
		return s.RemoveItem(ctx, input.CartID, input.CustomerID, input.ProductID)
	}

	cart, err := s.loadOwnedCart(ctx, input.CartID, input.CustomerID)
	if err != nil {
		return nil, err
	}
	if err := guardEditable(cart); err != nil {
		return nil, err
	}

	product, err := s.catalog.FindByID(ctx, input.ProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %s not found", input.ProductID))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}

	item := &models.CartItem{
		ID:             uuid.New(),
		CartID:         cart.ID,
		ProductID:      product.ID,
		Quantity:       input.Quantity,
		UnitPriceCents: product.PriceCents,
		Position:       len(cart.Items),
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).UpsertItem(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write cart item")
		}
		return s.emitCartChanged(ctx, tx, cart)
	})
	if err != nil {
		return nil, err
	}
	return s.FindByID(ctx, cart.ID)
}

func (s *service) RemoveItem(ctx context.Context, cartID, customerID, productID uuid.UUID) (*models.CartRecord, error) {
	cart, err := s.loadOwnedCart(ctx, cartID, customerID)
	if err != nil {
		return nil, err
	}
	if err := guardEditable(cart); err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).DeleteItem(ctx, cart.ID, productID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart item")
		}
		return s.emitCartChanged(ctx, tx, cart)
	})
	if err != nil {
		return nil, err
	}
	return s.FindByID(ctx, cart.ID)
}

// Clear drops every line. The cart_changed event still fires so an attached
// session can converge, though the synchronizer skips empty carts.
func (s *service) Clear(ctx context.Context, cartID, customerID uuid.UUID) (*models.CartRecord, error) {
	cart, err := s.loadOwnedCart(ctx, cartID, customerID)
	if err != nil {
		return nil, err
	}
	if err := guardEditable(cart); err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).DeleteItems(ctx, cart.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart items")
		}
		return s.emitCartChanged(ctx, tx, cart)
	})
	if err != nil {
		return nil, err
	}
	return s.FindByID(ctx, cart.ID)
}

func (s *service) FindByID(ctx context.Context, cartID uuid.UUID) (*models.CartRecord, error) {
	return s.repo.FindByID(ctx, cartID)
}

func (s *service) MarkCheckedOut(ctx context.Context, cartID uuid.UUID) error {
	return s.repo.SetStatus(ctx, cartID, enums.CartStatusActive, enums.CartStatusCheckout)
}

func (s *service) MarkConsumed(ctx context.Context, cartID uuid.UUID) error {
	return s.repo.MarkConsumed(ctx, cartID, time.Now().UTC())
}

func (s *service) emitCartChanged(ctx context.Context, tx *gorm.DB, cart *models.CartRecord) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventCartChanged,
		AggregateType: enums.AggregateCart,
		AggregateID:   cart.ID,
		Version:       1,
		Actor:         &outbox.ActorRef{CustomerID: cart.CustomerID},
		Data: payloads.CartChangedEvent{
			CartID:     cart.ID,
			CustomerID: cart.CustomerID,
			ChangedAt:  time.Now().UTC(),
		},
	})
}

func (s *service) loadOwnedCart(ctx context.Context, cartID, customerID uuid.UUID) (*models.CartRecord, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer identity missing")
	}
	cart, err := s.repo.FindByID(ctx, cartID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if cart.CustomerID != customerID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
	}
	return cart, nil
}

func guardEditable(cart *models.CartRecord) error {
	if cart.Status == enums.CartStatusConsumed {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "cart was already consumed by a completed checkout")
	}
	return nil
}
