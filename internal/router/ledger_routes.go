package router

import (
	"github.com/labstack/echo/v4"

	"github.com/waterlog/routeledger/internal/handler"
	"github.com/waterlog/routeledger/internal/middleware"
)

// RegisterLedger registers route manifests and debts under /v1.
// Dispatch and check-in belong to operators, debt resolution and audit
// trails to finance; reads are open to every staff role.
func RegisterLedger(e *echo.Echo, r *handler.RouteHandler, d *handler.DebtHandler, jwtSecret string, rateLimit echo.MiddlewareFunc) {
	g := e.Group("/v1", middleware.JWTAuth(jwtSecret))

	staff := middleware.RequireRole(allRoles...)
	ops := middleware.RequireRole(operatorRoles...)
	fin := middleware.RequireRole(financialRoles...)

	g.POST("/routes/checkout", r.Checkout, ops, rateLimit)
	g.POST("/routes/:id/checkin", r.CheckIn, ops, rateLimit)
	g.GET("/routes", r.List, staff)
	g.GET("/routes/:id", r.Get, staff)
	g.GET("/routes/:id/audit", r.Audit, fin)

	g.GET("/debts", d.List, fin)
	g.POST("/debts/:id/resolve", d.Resolve, fin, rateLimit)
}
