package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/waterlog/routeledger/internal/model"
	"github.com/waterlog/routeledger/internal/service"
)

// DebtHandler serves the debt resolution workflow.
type DebtHandler struct {
	Debts *service.DebtService
	Log   *zap.Logger
}

// NewDebtHandler constructs a DebtHandler.
func NewDebtHandler(debts *service.DebtService, log *zap.Logger) *DebtHandler {
	return &DebtHandler{Debts: debts, Log: nopIfNil(log)}
}

// List returns debts, optionally filtered: GET /v1/debts?status=PENDING.
func (h *DebtHandler) List(c echo.Context) error {
	status := model.DebtStatus(strings.ToUpper(strings.TrimSpace(c.QueryParam("status"))))
	ctx, cancel := reqCtx(c)
	defer cancel()
	debts, err := h.Debts.ListByStatus(ctx, status)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"debts": debtViews(debts)})
}

type resolveReq struct {
	Status          string `json:"status" validate:"required,oneof=PENDING DEDUCTED FORGIVEN DISPUTED PAID"`
	ResolutionNotes string `json:"resolution_notes" validate:"max=1000"`
}

// Resolve moves a debt to a new status: POST /v1/debts/:id/resolve.
func (h *DebtHandler) Resolve(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, h.Log, err)
	}
	var req resolveReq
	if err := bind(c, &req); err != nil {
		return fail(c, h.Log, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	d, err := h.Debts.Resolve(ctx, service.ResolveInput{
		RequestMeta:     meta(c),
		DebtID:          id,
		Status:          model.DebtStatus(req.Status),
		ResolutionNotes: strings.TrimSpace(req.ResolutionNotes),
	})
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, newDebtView(d))
}
