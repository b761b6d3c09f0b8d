package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avdeev/shop_orders/internal/logging"
	"github.com/avdeev/shop_orders/internal/models"
	"github.com/avdeev/shop_orders/internal/payment"
	"github.com/avdeev/shop_orders/internal/repo"
)

// Gateway is the external payment collaborator.
type Gateway interface {
	ConfirmPayment(ctx context.Context, req payment.ConfirmRequest) (*payment.Confirmation, error)
}

type CheckoutService struct {
	Repo     *repo.GormRepo
	Catalog  Catalog
	Gateway  Gateway
	Currency string
	// GatewayTimeout bounds the confirm call; zero means 10s.
	GatewayTimeout time.Duration

	locks sync.Map // order id -> *sync.Mutex
}

// Checkout charges the user's current cart and finalizes it into a paid
// order. The charge amount is always recomputed here from the cart and the
// catalog; nothing client-supplied is trusted.
//
// The gateway call itself is not idempotent: callers that may retry after a
// timeout must supply an idempotencyKey, and must use a fresh key after a
// ReconciliationError, or they risk charging twice.
func (s *CheckoutService) Checkout(ctx context.Context, userID uuid.UUID, instrumentRef, idempotencyKey string) (*models.Order, error) {
	if instrumentRef == "" {
		return nil, fmt.Errorf("%w: payment method required", ErrValidation)
	}

	cart, err := s.Repo.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.checkoutOrder(ctx, cart.ID, instrumentRef, idempotencyKey)
}

// checkoutOrder serializes concurrent checkouts of the same order: the loser
// of the lock re-reads the row, sees it paid and fails with ErrAlreadyPaid
// before any gateway traffic.
func (s *CheckoutService) checkoutOrder(ctx context.Context, orderID uuid.UUID, instrumentRef, idempotencyKey string) (*models.Order, error) {
	mu := s.orderLock(orderID)
	mu.Lock()
	defer mu.Unlock()

	order, err := s.Repo.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: order %s", ErrNotFound, orderID)
		}
		return nil, err
	}
	if order.IsPaid {
		return nil, ErrAlreadyPaid
	}
	if len(order.Items) == 0 {
		return nil, fmt.Errorf("%w: cart is empty", ErrInvalidState)
	}

	prices := make(map[uuid.UUID]float64, len(order.Items))
	var total float64
	for _, it := range order.Items {
		p, err := s.Catalog.ResolveItem(ctx, it.ProductID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("%w: product %s no longer in catalog", ErrNotFound, it.ProductID)
			}
			return nil, err
		}
		prices[it.ProductID] = p.Price
		total += float64(it.Quantity) * p.Price
	}
	amountMinor := AmountMinor(total)
	code := OrderCode(order.ID)

	gwCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout())
	defer cancel()
	confirmation, err := s.Gateway.ConfirmPayment(gwCtx, payment.ConfirmRequest{
		AmountMinor:    amountMinor,
		Currency:       s.Currency,
		InstrumentRef:  instrumentRef,
		Description:    "Order# " + code,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		var decline *payment.DeclineError
		switch {
		case errors.As(err, &decline):
			return nil, &PaymentFailedError{Reason: decline.Reason, Err: err}
		case errors.Is(err, payment.ErrOutcomeUnknown):
			return nil, &PaymentFailedError{Reason: "gateway timed out", OutcomeUnknown: true, Err: err}
		default:
			return nil, &PaymentFailedError{Reason: "gateway unavailable", Err: err}
		}
	}

	// Money is captured past this point. Any failure to mark the order paid
	// (storage down, or the cart mutated while the gateway call was in
	// flight) is escalated, never silently retried.
	if err := s.Repo.FinalizeOrder(ctx, order, code, prices); err != nil {
		recErr := &ReconciliationError{
			OrderID:       order.ID,
			TransactionID: confirmation.TransactionID,
			AmountMinor:   amountMinor,
			Err:           err,
		}
		logging.FromContext(ctx).Error("reconciliation required",
			"order_id", order.ID,
			"transaction_id", confirmation.TransactionID,
			"amount_minor", amountMinor,
			"currency", s.Currency,
			"error", err,
		)
		return nil, recErr
	}
	s.locks.Delete(orderID)

	return s.Repo.GetOrder(ctx, orderID)
}

func (s *CheckoutService) orderLock(orderID uuid.UUID) *sync.Mutex {
	v, _ := s.locks.LoadOrStore(orderID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

func (s *CheckoutService) gatewayTimeout() time.Duration {
	if s.GatewayTimeout > 0 {
		return s.GatewayTimeout
	}
	return 10 * time.Second
}

// AmountMinor converts a catalog-currency total to the smallest currency
// unit for the gateway.
func AmountMinor(total float64) int64 {
	return int64(math.Round(total * 100))
}

// OrderCode derives the display order id: the last six hex digits of the
// order UUID, uppercased.
func OrderCode(id uuid.UUID) string {
	s := strings.ReplaceAll(id.String(), "-", "")
	return strings.ToUpper(s[len(s)-6:])
}
