package handler

import (
    "context"
    "errors"
    "net/http"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/train-station/internal/model"
    "github.com/iliyamo/train-station/internal/repository"
    "github.com/iliyamo/train-station/internal/reservation"
)

// JourneyStore is implemented by *repository.JourneyRepo.
type JourneyStore interface {
    Create(ctx context.Context, j *model.Journey) error
    GetDetail(ctx context.Context, id uint64) (*repository.JourneyDetail, error)
    List(ctx context.Context, trainID uint64) ([]repository.JourneySummary, error)
    Delete(ctx context.Context, id uint64) error
}

// SeatMap is the part of reservation.Service used for journey reads.
type SeatMap interface {
    Availability(ctx context.Context, journeyID uint64) (*reservation.Availability, error)
    ForgetJourney(ctx context.Context, journeyID uint64)
}

// JourneyHandler serves journeys and their seat maps.  Reads are public;
// Create and Delete are mounted behind the ADMIN role.
type JourneyHandler struct {
    Journeys JourneyStore
    Seats    SeatMap
}

// NewJourneyHandler constructs a JourneyHandler and panics on nil
// dependencies.
func NewJourneyHandler(journeys JourneyStore, seats SeatMap) *JourneyHandler {
    if journeys == nil || seats == nil {
        panic("nil dependency passed to NewJourneyHandler")
    }
    return &JourneyHandler{Journeys: journeys, Seats: seats}
}

// JourneyView is a journey with its train and current seat map.
type JourneyView struct {
    *repository.JourneyDetail
    TakenSeats       map[int][]int `json:"taken_seats"`
    TicketsAvailable int           `json:"tickets_available"`
}

type createJourneyRequest struct {
    TrainID       uint64    `json:"train_id" validate:"required"`
    DepartureTime time.Time `json:"departure_time" validate:"required"`
    ArrivalTime   time.Time `json:"arrival_time" validate:"required,gtfield=DepartureTime"`
}

// ListJourneys handles GET /v1/journeys, optionally filtered by ?train=.
// Every item carries tickets_available.
func (h *JourneyHandler) ListJourneys(c echo.Context) error {
    var trainID uint64
    if s := c.QueryParam("train"); s != "" {
        n, err := strconv.ParseUint(s, 10, 64)
        if err != nil || n == 0 {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid train filter"})
        }
        trainID = n
    }
    items, err := h.Journeys.List(c.Request().Context(), trainID)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// GetJourney handles GET /v1/journeys/:id.  The response embeds the
// train and the seats already taken, keyed by cargo.
func (h *JourneyHandler) GetJourney(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid journey id"})
    }
    ctx := c.Request().Context()
    detail, err := h.Journeys.GetDetail(ctx, id)
    if err != nil {
        if errors.Is(err, repository.ErrNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "journey not found", "code": "journey_not_found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    a, err := h.Seats.Availability(ctx, id)
    if err != nil {
        return reservationError(c, err)
    }
    return c.JSON(http.StatusOK, JourneyView{JourneyDetail: detail, TakenSeats: a.TakenSeats, TicketsAvailable: a.FreeCount})
}

// GetAvailability handles GET /v1/journeys/:id/availability.
func (h *JourneyHandler) GetAvailability(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid journey id"})
    }
    a, err := h.Seats.Availability(c.Request().Context(), id)
    if err != nil {
        return reservationError(c, err)
    }
    return c.JSON(http.StatusOK, a)
}

// CreateJourney handles POST /v1/journeys.
func (h *JourneyHandler) CreateJourney(c echo.Context) error {
    var body createJourneyRequest
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if err := c.Validate(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    }
    j := &model.Journey{TrainID: body.TrainID, DepartureTime: body.DepartureTime.UTC(), ArrivalTime: body.ArrivalTime.UTC()}
    if err := h.Journeys.Create(c.Request().Context(), j); err != nil {
        if errors.Is(err, repository.ErrTrainNotFound) {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "train not found", "field": "train_id"})
        }
        c.Logger().Errorf("create journey: %v", err)
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create journey"})
    }
    return c.JSON(http.StatusCreated, j)
}

// DeleteJourney handles DELETE /v1/journeys/:id.  Tickets sold for the
// journey are removed with it.
func (h *JourneyHandler) DeleteJourney(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid journey id"})
    }
    ctx := c.Request().Context()
    if err := h.Journeys.Delete(ctx, id); err != nil {
        if errors.Is(err, repository.ErrNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "journey not found", "code": "journey_not_found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    h.Seats.ForgetJourney(ctx, id)
    return c.NoContent(http.StatusNoContent)
}
