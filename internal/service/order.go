package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avdeev/shop_orders/internal/models"
	"github.com/avdeev/shop_orders/internal/repo"
	"github.com/avdeev/shop_orders/internal/transport"
)

// Catalog is the read-only product collaborator used for existence checks
// and live pricing.
type Catalog interface {
	ResolveItem(ctx context.Context, productID uuid.UUID) (*models.Product, error)
}

type OrderService struct {
	Repo    *repo.GormRepo
	Catalog Catalog
}

// GetCart returns the user's current cart, creating an empty one on first
// access.
func (s *OrderService) GetCart(ctx context.Context, userID uuid.UUID) (*models.Order, error) {
	return s.Repo.GetCart(ctx, userID)
}

// AddItem puts one unit of the product into the user's cart: an existing
// line is incremented, otherwise a new line with quantity 1 is appended.
func (s *OrderService) AddItem(ctx context.Context, userID, productID uuid.UUID) (*models.Order, error) {
	if productID == uuid.Nil {
		return nil, fmt.Errorf("%w: product id required", ErrValidation)
	}

	if _, err := s.Catalog.ResolveItem(ctx, productID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: product %s", ErrNotFound, productID)
		}
		return nil, err
	}

	cart, err := s.Repo.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.Repo.AddItem(ctx, cart.ID, productID); err != nil {
		return nil, mapStoreErr(err)
	}

	return s.Repo.GetOrder(ctx, cart.ID)
}

// SetItemQty overwrites a line's quantity. Zero removes the line (a missing
// line is a no-op then); a negative quantity is invalid. Setting a positive
// quantity on a product that was never added fails with not-found rather
// than upserting: AddItem is the only append path, so the catalog existence
// check lives in exactly one place.
func (s *OrderService) SetItemQty(ctx context.Context, userID, productID uuid.UUID, newQty int) (*models.Order, error) {
	if productID == uuid.Nil {
		return nil, fmt.Errorf("%w: product id required", ErrValidation)
	}
	if newQty < 0 {
		return nil, fmt.Errorf("%w: quantity must be >= 0", ErrValidation)
	}

	cart, err := s.Repo.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	if newQty == 0 {
		err = s.Repo.RemoveItem(ctx, cart.ID, productID)
	} else {
		err = s.Repo.SetItemQty(ctx, cart.ID, productID, uint(newQty))
	}
	if err != nil {
		return nil, mapStoreErr(err)
	}

	return s.Repo.GetOrder(ctx, cart.ID)
}

// ListPaid returns the user's order history, most recent first.
func (s *OrderService) ListPaid(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	return s.Repo.ListPaid(ctx, userID)
}

// View serializes an order with its derived totals. Open carts are priced
// from the live catalog; paid orders from the unit-price snapshot taken at
// checkout, so catalog changes never move a paid total.
func (s *OrderService) View(ctx context.Context, order *models.Order) (*transport.OrderView, error) {
	items := make([]transport.LineItemView, 0, len(order.Items))
	var totalQty uint
	var total float64

	for _, it := range order.Items {
		price := it.UnitPrice
		name := ""
		if !order.IsPaid {
			p, err := s.Catalog.ResolveItem(ctx, it.ProductID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return nil, fmt.Errorf("%w: product %s no longer in catalog", ErrNotFound, it.ProductID)
				}
				return nil, err
			}
			price = p.Price
			name = p.Name
		}

		lineTotal := float64(it.Quantity) * price
		totalQty += it.Quantity
		total += lineTotal
		items = append(items, transport.LineItemView{
			ProductID: it.ProductID,
			Name:      name,
			Quantity:  it.Quantity,
			UnitPrice: price,
			LineTotal: lineTotal,
		})
	}

	return &transport.OrderView{
		ID:         order.ID,
		IsPaid:     order.IsPaid,
		OrderCode:  order.OrderCode,
		Items:      items,
		TotalQty:   totalQty,
		OrderTotal: total,
		CreatedAt:  order.CreatedAt,
		UpdatedAt:  order.UpdatedAt,
	}, nil
}

// ViewAll serializes a slice of orders in place.
func (s *OrderService) ViewAll(ctx context.Context, orders []models.Order) ([]transport.OrderView, error) {
	views := make([]transport.OrderView, 0, len(orders))
	for i := range orders {
		v, err := s.View(ctx, &orders[i])
		if err != nil {
			return nil, err
		}
		views = append(views, *v)
	}
	return views, nil
}

func mapStoreErr(err error) error {
	switch {
	case errors.Is(err, repo.ErrOrderPaid):
		return fmt.Errorf("%w: order already paid", ErrInvalidState)
	case errors.Is(err, repo.ErrStaleOrder):
		return ErrStaleWrite
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: item not in cart", ErrNotFound)
	default:
		return err
	}
}
