package transport

import (
	"time"

	"github.com/google/uuid"
)

type LineItemView struct {
	ProductID uuid.UUID `json:"product_id"`
	Name      string    `json:"name,omitempty"`
	Quantity  uint      `json:"quantity"`
	UnitPrice float64   `json:"unit_price"`
	LineTotal float64   `json:"line_total"`
}

type OrderView struct {
	ID         uuid.UUID      `json:"id"`
	IsPaid     bool           `json:"is_paid"`
	OrderCode  string         `json:"order_id,omitempty"`
	Items      []LineItemView `json:"line_items"`
	TotalQty   uint           `json:"total_qty"`
	OrderTotal float64        `json:"order_total"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

type SetItemQtyRequest struct {
	ItemID uuid.UUID `json:"item_id"`
	NewQty int       `json:"new_qty"`
}

type CheckoutRequest struct {
	PaymentMethod  string `json:"payment_method"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}
