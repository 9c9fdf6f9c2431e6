package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/train-station/internal/handler"
)

// RegisterRoutes registers the routes that need neither authentication
// nor a role: the health check and catalogue browsing.  Journey reads
// include the seat map so guests can pick seats before logging in.
func RegisterRoutes(e *echo.Echo, health echo.HandlerFunc, trains *handler.TrainHandler, journeys *handler.JourneyHandler) {
	e.GET("/healthz", health)

	e.GET("/v1/trains", trains.ListTrains)
	e.GET("/v1/trains/:id", trains.GetTrain)

	// ?train=<id> narrows the list to one train.
	e.GET("/v1/journeys", journeys.ListJourneys)
	e.GET("/v1/journeys/:id", journeys.GetJourney)
	e.GET("/v1/journeys/:id/availability", journeys.GetAvailability)
}
