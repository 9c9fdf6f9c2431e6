package handler // handler defines http handlers

import (
    "errors"   // errors provides sentinel values and errors.As
    "net/http" // HTTP status codes
    "strconv"  // strconv converts strings to numeric types

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/train-station/internal/reservation"
)

// parseID reads a positive numeric path parameter.
func parseID(c echo.Context, name string) (uint64, bool) {
    id, err := strconv.ParseUint(c.Param(name), 10, 64)
    if err != nil || id == 0 {
        return 0, false
    }
    return id, true
}

// reservationError writes the HTTP answer for an error returned by the
// reservation service.  Every body carries "error" (human readable) and
// "code" (stable, machine readable); ticket failures add the offending
// ticket index and field, seat collisions add the contested seat.
func reservationError(c echo.Context, err error) error {
    body := echo.Map{"error": err.Error()}
    var te *reservation.TicketError
    if errors.As(err, &te) {
        body["ticket"] = te.Index
        body["field"] = te.Field
    }
    var taken *reservation.SeatTakenError
    switch {
    case errors.As(err, &taken):
        body["code"] = "seat_taken"
        body["journey"] = taken.JourneyID
        body["cargo"] = taken.Cargo
        body["seat"] = taken.Seat
        return c.JSON(http.StatusConflict, body)
    case errors.Is(err, reservation.ErrEmptyOrder):
        body["code"] = "empty_order"
        return c.JSON(http.StatusBadRequest, body)
    case errors.Is(err, reservation.ErrInvalidCargo):
        body["code"] = "invalid_cargo"
        return c.JSON(http.StatusBadRequest, body)
    case errors.Is(err, reservation.ErrInvalidSeat):
        body["code"] = "invalid_seat"
        return c.JSON(http.StatusBadRequest, body)
    case errors.Is(err, reservation.ErrDuplicateSeat):
        body["code"] = "duplicate_seat"
        return c.JSON(http.StatusBadRequest, body)
    case errors.Is(err, reservation.ErrJourneyNotFound):
        body["code"] = "journey_not_found"
        if te != nil {
            return c.JSON(http.StatusBadRequest, body)
        }
        return c.JSON(http.StatusNotFound, body)
    case errors.Is(err, reservation.ErrOrderNotFound):
        body["code"] = "order_not_found"
        return c.JSON(http.StatusNotFound, body)
    case errors.Is(err, reservation.ErrStorageUnavailable):
        c.Logger().Errorf("reservation storage failure: %v", err)
        return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "storage unavailable, retry later", "code": "storage_unavailable"})
    }
    c.Logger().Errorf("unexpected reservation error: %v", err)
    return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error", "code": "internal"})
}
