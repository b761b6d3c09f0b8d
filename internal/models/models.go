package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Product is read-only catalog reference data. This service never writes it.
type Product struct {
	ID          uuid.UUID `gorm:"primaryKey"  json:"id"`
	Name        string    `gorm:"not null"    json:"name"`
	Description string    `json:"description"`
	Price       float64   `gorm:"not null"    json:"price"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

func (Product) TableName() string { return "products" }

// Order doubles as the cart: the cart is simply the user's unpaid order.
// The partial unique index keeps at most one unpaid order per user, so a
// losing concurrent creator can fall back to the winner's row.
type Order struct {
	ID        uuid.UUID   `gorm:"primaryKey"                                            json:"id"`
	UserID    uuid.UUID   `gorm:"not null;uniqueIndex:idx_user_open,where:is_paid = false" json:"user_id"`
	IsPaid    bool        `gorm:"not null;default:false"                                json:"is_paid"`
	OrderCode string      `gorm:"default:''"                                            json:"order_id,omitempty"`
	Version   int64       `gorm:"not null;default:0"                                    json:"-"`
	Items     []OrderItem `gorm:"foreignKey:OrderID"                                    json:"line_items"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

func (Order) TableName() string { return "orders" }

// OrderItem rows are unique per (order, product); quantity is always >= 1,
// a zero quantity deletes the row instead. UnitPrice stays zero while the
// order is open and is snapshotted from the catalog when the order is paid.
type OrderItem struct {
	ID        uint      `gorm:"primaryKey"                                  json:"id"`
	OrderID   uuid.UUID `gorm:"not null;uniqueIndex:idx_order_product"      json:"order_id"`
	ProductID uuid.UUID `gorm:"not null;uniqueIndex:idx_order_product"      json:"product_id"`
	Quantity  uint      `gorm:"not null;default:1;check:quantity > 0"       json:"quantity"`
	UnitPrice float64   `gorm:"not null;default:0"                          json:"unit_price"`
}

func (OrderItem) TableName() string { return "order_items" }
