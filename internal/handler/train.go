package handler

import (
    "context"
    "errors"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/train-station/internal/model"
    "github.com/iliyamo/train-station/internal/repository"
)

// TrainStore is implemented by *repository.TrainRepo.
type TrainStore interface {
    Create(ctx context.Context, t *model.Train) error
    GetByID(ctx context.Context, id uint64) (*model.Train, error)
    List(ctx context.Context) ([]model.Train, error)
}

// TrainHandler serves the train catalogue.  Reads are public; Create is
// mounted behind the ADMIN role.
type TrainHandler struct {
    Trains TrainStore
}

// NewTrainHandler constructs a TrainHandler and panics on a nil store.
func NewTrainHandler(trains TrainStore) *TrainHandler {
    if trains == nil {
        panic("nil repository passed to NewTrainHandler")
    }
    return &TrainHandler{Trains: trains}
}

type createTrainRequest struct {
    Name          string `json:"name" validate:"required,max=60"`
    CargoCount    int    `json:"cargo_count" validate:"gt=0,lte=100"`
    SeatsPerCargo int    `json:"seats_per_cargo" validate:"gt=0,lte=500"`
}

// ListTrains handles GET /v1/trains.
func (h *TrainHandler) ListTrains(c echo.Context) error {
    trains, err := h.Trains.List(c.Request().Context())
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    return c.JSON(http.StatusOK, echo.Map{"items": trains})
}

// GetTrain handles GET /v1/trains/:id.
func (h *TrainHandler) GetTrain(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid train id"})
    }
    t, err := h.Trains.GetByID(c.Request().Context(), id)
    if err != nil {
        if errors.Is(err, repository.ErrNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "train not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    return c.JSON(http.StatusOK, t)
}

// CreateTrain handles POST /v1/trains.  The layout of a train is fixed
// once created.
func (h *TrainHandler) CreateTrain(c echo.Context) error {
    var body createTrainRequest
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if err := c.Validate(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    }
    t := &model.Train{Name: body.Name, CargoCount: body.CargoCount, SeatsPerCargo: body.SeatsPerCargo}
    if err := h.Trains.Create(c.Request().Context(), t); err != nil {
        c.Logger().Errorf("create train: %v", err)
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create train"})
    }
    return c.JSON(http.StatusCreated, t)
}
