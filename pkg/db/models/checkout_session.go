package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/storefrontlab/storefront-backend/pkg/enums"
	"github.com/storefrontlab/storefront-backend/pkg/types"
)

// CheckoutSession is the single aggregate of the checkout flow. One active
// session exists per cart; step payloads accumulate as the buyer advances.
// Version backs optimistic locking: every save compares and bumps it.
type CheckoutSession struct {
	ID               uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	CartID           uuid.UUID               `gorm:"column:cart_id;type:uuid;not null"`
	CustomerID       uuid.UUID               `gorm:"column:customer_id;type:uuid;not null"`
	Status           enums.SessionStatus     `gorm:"column:status;type:session_status;not null;default:'active'"`
	CurrentStep      enums.CheckoutStep      `gorm:"column:current_step;type:checkout_step;not null;default:'buyer_info'"`
	CompletedSteps   pq.StringArray          `gorm:"column:completed_steps;type:text[]"`
	BuyerInfo        *types.BuyerInfo        `gorm:"column:buyer_info;type:jsonb;serializer:json"`
	DeliveryAddress  *types.Address          `gorm:"column:delivery_address;type:jsonb;serializer:json"`
	ShippingOption   *types.ShippingOption   `gorm:"column:shipping_option;type:jsonb;serializer:json"`
	PaymentSelection *types.PaymentSelection `gorm:"column:payment_selection;type:jsonb;serializer:json"`
	PaymentRef       *string                 `gorm:"column:payment_ref"`
	Currency         enums.Currency          `gorm:"column:currency;type:text;not null;default:'USD'"`
	SubtotalCents    int                     `gorm:"column:subtotal_cents;not null;default:0"`
	ShippingCents    int                     `gorm:"column:shipping_cents;not null;default:0"`
	TotalCents       int                     `gorm:"column:total_cents;not null;default:0"`
	Version          int64                   `gorm:"column:version;not null;default:1"`
	Items            []SessionLineItem       `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"`
	ExpiresAt        time.Time               `gorm:"column:expires_at;not null"`
	ConfirmedAt      *time.Time              `gorm:"column:confirmed_at"`
	CompletedAt      *time.Time              `gorm:"column:completed_at"`
	CreatedAt        time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

// HasCompletedStep reports whether the step is in the completed set.
func (s *CheckoutSession) HasCompletedStep(step enums.CheckoutStep) bool {
	for _, done := range s.CompletedSteps {
		if done == string(step) {
			return true
		}
	}
	return false
}

// MarkStepCompleted adds the step to the completed set. Idempotent.
func (s *CheckoutSession) MarkStepCompleted(step enums.CheckoutStep) {
	if s.HasCompletedStep(step) {
		return
	}
	s.CompletedSteps = append(s.CompletedSteps, string(step))
}
