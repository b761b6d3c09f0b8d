package repo

import (
	"context"

	"github.com/google/uuid"

	"github.com/avdeev/shop_orders/internal/models"
)

// ResolveItem looks a product up in the catalog reference data.
func (r *GormRepo) ResolveItem(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.DB.WithContext(ctx).Where("id = ?", productID).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}
