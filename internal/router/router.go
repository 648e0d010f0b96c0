// Package router wires handlers and middleware into an echo instance.
package router

import (
	"database/sql"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/waterlog/routeledger/internal/handler"
	"github.com/waterlog/routeledger/internal/metrics"
	"github.com/waterlog/routeledger/internal/middleware"
	"github.com/waterlog/routeledger/internal/model"
)

// Deps is everything the HTTP layer needs.  RateLimit, Cache and Metrics
// may be nil.
type Deps struct {
	DB        *sql.DB
	JWTSecret string
	Log       *zap.Logger
	Metrics   *metrics.Metrics
	// MetricsHandler serves /metrics when non-nil.
	MetricsHandler http.Handler

	Auth      *handler.AuthHandler
	Routes    *handler.RouteHandler
	Debts     *handler.DebtHandler
	Resources *handler.ResourceHandler

	RateLimit echo.MiddlewareFunc
	Cache     echo.MiddlewareFunc
}

// New builds the echo server with every route registered.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.Use(echomw.RequestID())
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(d.Log, d.Metrics))

	RegisterRoutes(e, d.DB, d.MetricsHandler)
	RegisterAuth(e, d.Auth, d.JWTSecret)
	RegisterLedger(e, d.Routes, d.Debts, d.JWTSecret, orPass(d.RateLimit))
	RegisterResources(e, d.Resources, d.JWTSecret, orPass(d.RateLimit), orPass(d.Cache))
	return e
}

// RegisterRoutes registers the unauthenticated operational endpoints.
func RegisterRoutes(e *echo.Echo, db *sql.DB, metricsHandler http.Handler) {
	e.GET("/healthz", handler.Health(db))
	if metricsHandler != nil {
		e.GET("/metrics", echo.WrapHandler(metricsHandler))
	}
}

// RegisterAuth registers login under /v1/auth and the identity endpoint
// for every authenticated role.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	e.POST("/v1/auth/login", a.Login)

	g := e.Group("/v1", middleware.JWTAuth(jwtSecret), middleware.RequireRole(allRoles...))
	g.GET("/me", a.Me)
}

var (
	allRoles       = []string{model.RoleAdmin, model.RoleSupervisor, model.RoleAuditor}
	operatorRoles  = []string{model.RoleAdmin, model.RoleSupervisor}
	financialRoles = []string{model.RoleAdmin, model.RoleAuditor}
)

func orPass(mw echo.MiddlewareFunc) echo.MiddlewareFunc {
	if mw == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return mw
}
