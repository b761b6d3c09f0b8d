package repo

import (
	"errors"

	"gorm.io/gorm"
)

var (
	// ErrOrderPaid is returned when a mutation targets an order that has
	// already been finalized.
	ErrOrderPaid = errors.New("order already paid")
	// ErrStaleOrder is returned when an optimistic write lost against a
	// concurrent mutation of the same order.
	ErrStaleOrder = errors.New("stale order version")
)

type GormRepo struct {
	DB *gorm.DB
}
