package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/storefrontlab/storefront-backend/pkg/enums"
)

// CartRecord is the customer-scoped cart the checkout flow reads from. The
// checkout never mutates cart contents; it only flips the status as the
// session progresses.
type CartRecord struct {
	ID         uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	CustomerID uuid.UUID        `gorm:"column:customer_id;type:uuid;not null"`
	Status     enums.CartStatus `gorm:"column:status;type:cart_status;not null;default:'active'"`
	Currency   enums.Currency   `gorm:"column:currency;type:text;not null;default:'USD'"`
	Items      []CartItem       `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	ConsumedAt *time.Time       `gorm:"column:consumed_at"`
	CreatedAt  time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// IsEmpty reports whether the cart holds no purchasable lines.
func (c *CartRecord) IsEmpty() bool {
	for _, item := range c.Items {
		if item.Quantity > 0 {
			return false
		}
	}
	return true
}
