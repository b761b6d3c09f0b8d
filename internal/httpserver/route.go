package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	authmw "github.com/avdeev/shop_orders/internal/middleware/auth"
)

type Deps struct {
	OrderHandler *OrderHTTP
	JWTSecret    []byte
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	orders := e.Group("/api/orders", authmw.RequireLogin(d.JWTSecret))

	orders.GET("", d.OrderHandler.ListPaid)
	orders.GET("/cart", d.OrderHandler.GetCart)
	orders.POST("/cart/items/:id", d.OrderHandler.AddToCart)
	orders.PUT("/cart/qty", d.OrderHandler.SetItemQty)
	orders.POST("/cart/checkout", d.OrderHandler.DoCheckout)
}
