package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/train-station/internal/middleware"
	"github.com/iliyamo/train-station/internal/model"
	"github.com/iliyamo/train-station/internal/repository"
	"github.com/iliyamo/train-station/internal/reservation"
)

// Order listing page sizes.
const (
	defaultPageSize = 3
	maxPageSize     = 20
)

// OrderService is the part of reservation.Service used by OrderHandler.
type OrderService interface {
	PlaceOrder(ctx context.Context, req reservation.Request) (*model.Order, error)
	CancelOrder(ctx context.Context, ownerID, orderID uint64) error
}

// OrderReader reads committed orders; *repository.OrderRepo satisfies it.
type OrderReader interface {
	GetForOwner(ctx context.Context, ownerID, orderID uint64) (*model.Order, error)
	ListByOwner(ctx context.Context, ownerID uint64, limit, offset int) ([]model.Order, int, error)
}

// OrderHandler serves the customer order endpoints.  All methods assume
// JWTAuth has run and answer 401 when no owner is in the context.  A
// customer only ever sees and cancels their own orders.
type OrderHandler struct {
	Service OrderService
	Orders  OrderReader
}

// NewOrderHandler constructs an OrderHandler.  Both dependencies must be
// non-nil.
func NewOrderHandler(svc OrderService, orders OrderReader) *OrderHandler {
	if svc == nil || orders == nil {
		panic("nil dependency passed to NewOrderHandler")
	}
	return &OrderHandler{Service: svc, Orders: orders}
}

type placeOrderRequest struct {
	Tickets []reservation.SeatRequest `json:"tickets"`
}

// PlaceOrder handles POST /v1/orders.  The body lists the wanted seats:
//
//	{"tickets": [{"journey": 3, "cargo": 2, "seat": 14}, ...]}
//
// Either every seat is booked and 201 returns the order with its tickets
// in request order, or nothing is booked.  A seat sold to someone else
// yields 409 naming that seat; the client must choose again.
func (h *OrderHandler) PlaceOrder(c echo.Context) error {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body placeOrderRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body", "code": "invalid_body"})
	}
	order, err := h.Service.PlaceOrder(c.Request().Context(), reservation.Request{OwnerID: ownerID, Tickets: body.Tickets})
	if err != nil {
		return reservationError(c, err)
	}
	return c.JSON(http.StatusCreated, order)
}

// ListOrders handles GET /v1/orders?page=&page_size=.  Orders come newest
// first; page_size defaults to 3 and is capped at 20.
func (h *OrderHandler) ListOrders(c echo.Context) error {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	page, size, ok := pagination(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "page and page_size must be positive integers"})
	}
	orders, total, err := h.Orders.ListByOwner(c.Request().Context(), ownerID, size, (page-1)*size)
	if err != nil {
		c.Logger().Errorf("list orders: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"count":     total,
		"page":      page,
		"page_size": size,
		"items":     orders,
	})
}

// GetOrder handles GET /v1/orders/:id.
func (h *OrderHandler) GetOrder(c echo.Context) error {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid order id"})
	}
	order, err := h.Orders.GetForOwner(c.Request().Context(), ownerID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "order not found", "code": "order_not_found"})
		}
		c.Logger().Errorf("get order %d: %v", id, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, order)
}

// CancelOrder handles DELETE /v1/orders/:id.  The order and its tickets
// are removed together and the seats become available again.
func (h *OrderHandler) CancelOrder(c echo.Context) error {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid order id"})
	}
	if err := h.Service.CancelOrder(c.Request().Context(), ownerID, id); err != nil {
		return reservationError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// pagination reads page and page_size from the query string.
func pagination(c echo.Context) (page, size int, ok bool) {
	page, size = 1, defaultPageSize
	if s := c.QueryParam("page"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return 0, 0, false
		}
		page = n
	}
	if s := c.QueryParam("page_size"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return 0, 0, false
		}
		size = n
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size, true
}
