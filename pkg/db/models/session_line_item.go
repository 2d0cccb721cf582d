package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionLineItem is a denormalized snapshot of one cart line at sync time.
// The whole set is replaced on every cart sync.
type SessionLineItem struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	SessionID      uuid.UUID `gorm:"column:session_id;type:uuid;not null"`
	ProductID      uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	ProductName    string    `gorm:"column:product_name;not null"`
	UnitPriceCents int       `gorm:"column:unit_price_cents;not null"`
	Quantity       int       `gorm:"column:quantity;not null"`
	Position       int       `gorm:"column:position;not null;default:0"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// LineTotalCents returns the extended price of the line.
func (i SessionLineItem) LineTotalCents() int {
	return i.UnitPriceCents * i.Quantity
}
