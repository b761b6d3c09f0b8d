package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/avdeev/shop_orders/internal/events"
	"github.com/avdeev/shop_orders/internal/logging"
	"github.com/avdeev/shop_orders/internal/models"
	"github.com/avdeev/shop_orders/internal/service"
	"github.com/avdeev/shop_orders/internal/transport"
)

type OrderHTTP struct {
	Svc      *service.OrderService
	Checkout *service.CheckoutService
	Producer *events.Producer
}

func (h *OrderHTTP) userID(c echo.Context) (uuid.UUID, error) {
	v := c.Get("user_id")
	s, ok := v.(string)
	if !ok || s == "" {
		return uuid.Nil, errors.New("unauthorized")
	}
	return uuid.Parse(s)
}

// GetCart returns the user's cart, creating it on first access.
func (h *OrderHTTP) GetCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "get.cart")

	userID, err := h.userID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, "unauthorized")
	}

	cart, err := h.Svc.GetCart(ctx, userID)
	if err != nil {
		return h.writeErr(c, l, err)
	}
	return h.respondOrder(c, l, http.StatusOK, cart)
}

// AddToCart adds one unit of the product in the path to the cart.
func (h *OrderHTTP) AddToCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "add.to.cart")

	userID, err := h.userID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, "unauthorized")
	}

	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		l.Warn("add_to_cart_error", "status", 400, "error", err)
		return c.JSON(http.StatusBadRequest, "invalid product id")
	}

	cart, err := h.Svc.AddItem(ctx, userID, productID)
	if err != nil {
		return h.writeErr(c, l, err)
	}

	h.publish(c, userID, map[string]any{
		"type":       "cart_item_added",
		"user_id":    userID,
		"order_id":   cart.ID,
		"product_id": productID,
	})
	return h.respondOrder(c, l, http.StatusOK, cart)
}

// SetItemQty overwrites a line quantity; zero removes the line.
func (h *OrderHTTP) SetItemQty(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "set.item.qty")

	userID, err := h.userID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, "unauthorized")
	}

	var req transport.SetItemQtyRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("set_item_qty_error", "status", 400, "error", err)
		return c.JSON(http.StatusBadRequest, "invalid body")
	}

	cart, err := h.Svc.SetItemQty(ctx, userID, req.ItemID, req.NewQty)
	if err != nil {
		return h.writeErr(c, l, err)
	}

	h.publish(c, userID, map[string]any{
		"type":       "cart_qty_set",
		"user_id":    userID,
		"order_id":   cart.ID,
		"product_id": req.ItemID,
		"new_qty":    req.NewQty,
	})
	return h.respondOrder(c, l, http.StatusOK, cart)
}

// DoCheckout charges the cart and finalizes it into a paid order.
func (h *OrderHTTP) DoCheckout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "checkout")

	userID, err := h.userID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, "unauthorized")
	}

	var req transport.CheckoutRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("checkout_error", "status", 400, "error", err)
		return c.JSON(http.StatusBadRequest, "invalid body")
	}

	order, err := h.Checkout.Checkout(ctx, userID, req.PaymentMethod, req.IdempotencyKey)
	if err != nil {
		return h.writeErr(c, l, err)
	}

	h.publish(c, userID, map[string]any{
		"type":     "order_paid",
		"user_id":  userID,
		"order_id": order.ID,
		"code":     order.OrderCode,
	})
	l.Info("order paid", "order_id", order.ID, "code", order.OrderCode)
	return h.respondOrder(c, l, http.StatusOK, order)
}

// ListPaid returns the user's paid orders, most recent first.
func (h *OrderHTTP) ListPaid(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "list.paid")

	userID, err := h.userID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, "unauthorized")
	}

	orders, err := h.Svc.ListPaid(ctx, userID)
	if err != nil {
		return h.writeErr(c, l, err)
	}

	views, err := h.Svc.ViewAll(ctx, orders)
	if err != nil {
		return h.writeErr(c, l, err)
	}
	return c.JSON(http.StatusOK, views)
}

func (h *OrderHTTP) respondOrder(c echo.Context, l *slog.Logger, status int, order *models.Order) error {
	view, err := h.Svc.View(c.Request().Context(), order)
	if err != nil {
		return h.writeErr(c, l, err)
	}
	return c.JSON(status, view)
}

func (h *OrderHTTP) writeErr(c echo.Context, l *slog.Logger, err error) error {
	var paymentErr *service.PaymentFailedError
	var recErr *service.ReconciliationError

	switch {
	case errors.Is(err, service.ErrValidation):
		l.Warn("request rejected", "status", 400, "error", err)
		return c.JSON(http.StatusBadRequest, map[string]string{"message": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		l.Warn("request rejected", "status", 404, "error", err)
		return c.JSON(http.StatusNotFound, map[string]string{"message": err.Error()})
	case errors.Is(err, service.ErrAlreadyPaid),
		errors.Is(err, service.ErrInvalidState),
		errors.Is(err, service.ErrStaleWrite):
		l.Warn("request rejected", "status", 409, "error", err)
		return c.JSON(http.StatusConflict, map[string]string{"message": err.Error()})
	case errors.As(err, &paymentErr):
		l.Warn("payment failed", "status", 402, "reason", paymentErr.Reason, "outcome_unknown", paymentErr.OutcomeUnknown)
		return c.JSON(http.StatusPaymentRequired, map[string]any{
			"message":         "Payment failed!",
			"reason":          paymentErr.Reason,
			"outcome_unknown": paymentErr.OutcomeUnknown,
		})
	case errors.As(err, &recErr):
		// already escalated in the orchestrator; the distinct body tells
		// clients this must not be retried like a decline
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"message":        "payment captured but order not finalized, do not retry",
			"order_id":       recErr.OrderID,
			"transaction_id": recErr.TransactionID,
		})
	default:
		l.Error("internal error", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "internal server error"})
	}
}

func (h *OrderHTTP) publish(c echo.Context, userID uuid.UUID, event map[string]any) {
	if h.Producer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, events.TopicOrderEvents, userID.String(), event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka publish error", "error", err)
	}
}
