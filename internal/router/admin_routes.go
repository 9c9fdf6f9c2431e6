package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/train-station/internal/handler"
	"github.com/iliyamo/train-station/internal/middleware"
)

// RegisterAdmin registers catalogue management under /v1.  All routes
// require a valid JWT and the ADMIN role.
func RegisterAdmin(e *echo.Echo, trains *handler.TrainHandler, journeys *handler.JourneyHandler, jwtSecret string) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(middleware.RoleAdmin),
	)

	// ---- Trains ----
	g.POST("/trains", trains.CreateTrain)

	// ---- Journeys ----
	g.POST("/journeys", journeys.CreateJourney)
	// Deleting a journey removes the tickets sold for it.
	g.DELETE("/journeys/:id", journeys.DeleteJourney)
}
