package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/waterlog/routeledger/internal/apperr"
	"github.com/waterlog/routeledger/internal/reconcile"
	"github.com/waterlog/routeledger/internal/service"
)

const dateLayout = "2006-01-02"

// RouteHandler serves checkout, check-in and the route read side.
type RouteHandler struct {
	Routes *service.RouteService
	Log    *zap.Logger
}

// NewRouteHandler constructs a RouteHandler.
func NewRouteHandler(routes *service.RouteService, log *zap.Logger) *RouteHandler {
	return &RouteHandler{Routes: routes, Log: nopIfNil(log)}
}

type checkoutReq struct {
	DriverID           uint64 `json:"driver_id" validate:"required"`
	TruckID            uint64 `json:"truck_id" validate:"required"`
	InitialFullBottles *int   `json:"initial_full_bottles" validate:"required"`
}

// Checkout dispatches a truck: POST /v1/routes/checkout.
func (h *RouteHandler) Checkout(c echo.Context) error {
	var req checkoutReq
	if err := bind(c, &req); err != nil {
		return fail(c, h.Log, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	m, err := h.Routes.Open(ctx, service.OpenInput{
		RequestMeta:        meta(c),
		DriverID:           req.DriverID,
		TruckID:            req.TruckID,
		InitialFullBottles: *req.InitialFullBottles,
	})
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"route_id":      m.ID,
		"status":        string(m.AuditStatus),
		"checkout_time": m.CheckoutAt.UTC(),
		"message":       "Route dispatched.",
	})
}

type saleLineReq struct {
	ClientID uint64 `json:"client_id" validate:"required"`
	Quantity int    `json:"quantity"`
}

type checkinReq struct {
	ReturnedFull     *int          `json:"returned_full_bottles" validate:"required"`
	ReturnedEmpty    *int          `json:"returned_empty_bottles" validate:"required"`
	ReportedDamaged  int           `json:"reported_damaged"`
	EvidenceVerified bool          `json:"evidence_verified"`
	Notes            string        `json:"notes" validate:"max=1000"`
	Sales            []saleLineReq `json:"sales" validate:"dive"`
}

type checkinResp struct {
	RouteID        uint64   `json:"route_id"`
	Status         string   `json:"status"`
	DebtAmount     string   `json:"debt_amount"`
	Message        string   `json:"message"`
	Delta          int      `json:"delta"`
	Strategy       string   `json:"strategy"`
	SkippedClients []uint64 `json:"skipped_clients"`
	DebtID         uint64   `json:"debt_id,omitempty"`
}

// CheckIn settles a route: POST /v1/routes/:id/checkin.
func (h *RouteHandler) CheckIn(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, h.Log, err)
	}
	var req checkinReq
	if err := bind(c, &req); err != nil {
		if ae, ok := apperr.As(err); ok {
			err = ae.WithEntity("route", id)
		}
		return fail(c, h.Log, err)
	}
	sales := make([]reconcile.SaleLine, 0, len(req.Sales))
	for _, l := range req.Sales {
		sales = append(sales, reconcile.SaleLine{ClientID: l.ClientID, Quantity: l.Quantity})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()
	res, err := h.Routes.CheckIn(ctx, service.CheckInInput{
		RequestMeta:      meta(c),
		RouteID:          id,
		ReturnedFull:     *req.ReturnedFull,
		ReturnedEmpty:    *req.ReturnedEmpty,
		ReportedDamaged:  req.ReportedDamaged,
		EvidenceVerified: req.EvidenceVerified,
		Notes:            req.Notes,
		Sales:            sales,
	})
	if err != nil {
		return fail(c, h.Log, err)
	}
	skipped := res.SkippedClients
	if skipped == nil {
		skipped = []uint64{}
	}
	return c.JSON(http.StatusOK, checkinResp{
		RouteID:        res.RouteID,
		Status:         string(res.Status),
		DebtAmount:     res.DebtAmount.StringFixed(2),
		Message:        res.Message,
		Delta:          res.Delta,
		Strategy:       string(res.Strategy),
		SkippedClients: skipped,
		DebtID:         res.DebtID,
	})
}

// List returns the manifests of a day: GET /v1/routes?date=YYYY-MM-DD.
// Without a date it lists today's routes.
func (h *RouteHandler) List(c echo.Context) error {
	var day time.Time
	if s := c.QueryParam("date"); s != "" {
		d, err := time.Parse(dateLayout, s)
		if err != nil {
			return fail(c, h.Log, apperr.Validation("date", "must be YYYY-MM-DD"))
		}
		day = d
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	routes, err := h.Routes.ListByDate(ctx, day)
	if err != nil {
		return fail(c, h.Log, err)
	}
	out := make([]routeView, 0, len(routes))
	for i := range routes {
		out = append(out, newRouteView(&routes[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"routes": out})
}

// Get returns one manifest with its sales and debts: GET /v1/routes/:id.
func (h *RouteHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, h.Log, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	d, err := h.Routes.Get(ctx, id)
	if err != nil {
		return fail(c, h.Log, err)
	}
	sales := make([]salesView, 0, len(d.Sales))
	for _, s := range d.Sales {
		sales = append(sales, salesView{
			ID:        s.ID,
			ClientID:  s.ClientID,
			Quantity:  s.Quantity,
			UnitPrice: s.UnitPrice.StringFixed(2),
			Subtotal:  s.Subtotal.StringFixed(2),
		})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"route": newRouteView(d.Route),
		"sales": sales,
		"debts": debtViews(d.Debts),
	})
}

// Audit returns the audit trail of a route: GET /v1/routes/:id/audit.
func (h *RouteHandler) Audit(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, h.Log, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	entries, err := h.Routes.AuditTrail(ctx, id)
	if err != nil {
		return fail(c, h.Log, err)
	}
	out := make([]auditView, 0, len(entries))
	for i := range entries {
		out = append(out, newAuditView(&entries[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"entries": out})
}
