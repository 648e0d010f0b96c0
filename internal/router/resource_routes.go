package router

import (
	"github.com/labstack/echo/v4"

	"github.com/waterlog/routeledger/internal/handler"
	"github.com/waterlog/routeledger/internal/middleware"
)

// RegisterResources registers clients, trucks and drivers.  Reads go
// through the response cache; writes invalidate it.
func RegisterResources(e *echo.Echo, h *handler.ResourceHandler, jwtSecret string, rateLimit, cache echo.MiddlewareFunc) {
	g := e.Group("/v1", middleware.JWTAuth(jwtSecret))

	staff := middleware.RequireRole(allRoles...)
	ops := middleware.RequireRole(operatorRoles...)

	g.GET("/clients", h.ListClients, staff, cache)
	g.GET("/clients/:id", h.GetClient, staff, cache)
	g.POST("/clients", h.CreateClient, ops, rateLimit, cache)
	g.PUT("/clients/:id", h.UpdateClient, ops, rateLimit, cache)
	g.DELETE("/clients/:id", h.DeactivateClient, ops, rateLimit, cache)

	g.GET("/resources/trucks", h.ListTrucks, staff, cache)
	g.POST("/resources/trucks", h.CreateTruck, ops, rateLimit, cache)
	g.GET("/resources/drivers", h.ListDrivers, staff, cache)
	g.POST("/resources/drivers", h.CreateDriver, ops, rateLimit, cache)
}
