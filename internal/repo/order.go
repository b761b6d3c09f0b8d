package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avdeev/shop_orders/internal/models"
)

func sortedItems(db *gorm.DB) *gorm.DB {
	return db.Order("order_items.id ASC")
}

// GetCart returns the user's unpaid order, creating an empty one if none
// exists. A concurrent first access loses the insert against the partial
// unique index and falls back to the winner's row.
func (r *GormRepo) GetCart(ctx context.Context, userID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.DB.WithContext(ctx).
		Preload("Items", sortedItems).
		Where("user_id = ? AND is_paid = ?", userID, false).
		First(&order).Error
	if err == nil {
		return &order, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	order = models.Order{UserID: userID, Items: []models.OrderItem{}}
	createErr := r.DB.WithContext(ctx).Create(&order).Error
	if createErr == nil {
		return &order, nil
	}

	var winner models.Order
	if err := r.DB.WithContext(ctx).
		Preload("Items", sortedItems).
		Where("user_id = ? AND is_paid = ?", userID, false).
		First(&winner).Error; err == nil {
		return &winner, nil
	}
	return nil, createErr
}

func (r *GormRepo) GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.DB.WithContext(ctx).
		Preload("Items", sortedItems).
		Where("id = ?", orderID).
		First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// ListPaid returns the user's paid orders, most recently updated first.
func (r *GormRepo) ListPaid(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	var orders []models.Order
	if err := r.DB.WithContext(ctx).
		Preload("Items", sortedItems).
		Where("user_id = ? AND is_paid = ?", userID, true).
		Order("updated_at DESC").
		Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// touchOpenOrder bumps the version of an unpaid order inside tx. It is the
// guard every line-item mutation runs first: a zero-row update means the
// order is either gone or already paid.
func touchOpenOrder(tx *gorm.DB, orderID uuid.UUID) error {
	res := tx.Model(&models.Order{}).
		Where("id = ? AND is_paid = ?", orderID, false).
		Updates(map[string]any{
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var order models.Order
	if err := tx.Select("is_paid").Where("id = ?", orderID).First(&order).Error; err != nil {
		return err
	}
	return ErrOrderPaid
}

// AddItem increments the line for productID by one, appending a fresh line
// with quantity 1 if the product is not in the order yet.
func (r *GormRepo) AddItem(ctx context.Context, orderID, productID uuid.UUID) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := touchOpenOrder(tx, orderID); err != nil {
			return err
		}

		res := tx.Model(&models.OrderItem{}).
			Where("order_id = ? AND product_id = ?", orderID, productID).
			UpdateColumn("quantity", gorm.Expr("quantity + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}

		return tx.Create(&models.OrderItem{
			OrderID:   orderID,
			ProductID: productID,
			Quantity:  1,
		}).Error
	})
}

// SetItemQty overwrites the quantity of an existing line. A missing line is
// reported as gorm.ErrRecordNotFound; use RemoveItem for quantity zero.
func (r *GormRepo) SetItemQty(ctx context.Context, orderID, productID uuid.UUID, qty uint) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := touchOpenOrder(tx, orderID); err != nil {
			return err
		}

		res := tx.Model(&models.OrderItem{}).
			Where("order_id = ? AND product_id = ?", orderID, productID).
			UpdateColumn("quantity", qty)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// RemoveItem deletes the line for productID. Deleting an absent line is a
// no-op, not an error.
func (r *GormRepo) RemoveItem(ctx context.Context, orderID, productID uuid.UUID) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := touchOpenOrder(tx, orderID); err != nil {
			return err
		}
		return tx.Where("order_id = ? AND product_id = ?", orderID, productID).
			Delete(&models.OrderItem{}).Error
	})
}

// FinalizeOrder flips the order to paid, assigns the display code and
// snapshots the given unit prices, all in one transaction. The version check
// makes the flip a no-op when the cart changed after the caller read it; that
// surfaces as ErrStaleOrder (or ErrOrderPaid if a concurrent checkout won).
func (r *GormRepo) FinalizeOrder(ctx context.Context, order *models.Order, code string, prices map[uuid.UUID]float64) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Order{}).
			Where("id = ? AND is_paid = ? AND version = ?", order.ID, false, order.Version).
			Updates(map[string]any{
				"is_paid":    true,
				"order_code": code,
				"version":    gorm.Expr("version + 1"),
				"updated_at": time.Now().UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var current models.Order
			if err := tx.Select("is_paid").Where("id = ?", order.ID).First(&current).Error; err != nil {
				return err
			}
			if current.IsPaid {
				return ErrOrderPaid
			}
			return ErrStaleOrder
		}

		for productID, price := range prices {
			if err := tx.Model(&models.OrderItem{}).
				Where("order_id = ? AND product_id = ?", order.ID, productID).
				UpdateColumn("unit_price", price).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
