package products

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storefrontlab/storefront-backend/pkg/db/models"
)

// Repository reads the catalog rows the cart and checkout flows depend on.
// Only active products are visible through it.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	GetName(ctx context.Context, id uuid.UUID) (string, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a catalog reader bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Where("id = ? AND is_active = ?", id, true).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) GetName(ctx context.Context, id uuid.UUID) (string, error) {
	product, err := r.FindByID(ctx, id)
	if err != nil {
		return "", err
	}
	return product.Name, nil
}
