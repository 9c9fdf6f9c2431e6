package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/train-station/internal/handler"
	"github.com/iliyamo/train-station/internal/middleware"
)

// RegisterCustomer registers the order endpoints under /v1.  All routes
// require a valid JWT with the CUSTOMER or ADMIN role; handlers scope
// every order to the token subject.  limit guards order placement only,
// since that is the call that takes locks on contested seats.
func RegisterCustomer(e *echo.Echo, h *handler.OrderHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(middleware.RoleCustomer, middleware.RoleAdmin),
	)
	g.POST("/orders", h.PlaceOrder, limit)
	g.GET("/orders", h.ListOrders)
	g.GET("/orders/:id", h.GetOrder)
	g.DELETE("/orders/:id", h.CancelOrder)
}
