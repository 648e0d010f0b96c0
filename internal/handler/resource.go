package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/waterlog/routeledger/internal/service"
)

// ResourceHandler serves clients, trucks and drivers.
type ResourceHandler struct {
	Resources *service.ResourceService
	Log       *zap.Logger
}

// NewResourceHandler constructs a ResourceHandler.
func NewResourceHandler(resources *service.ResourceService, log *zap.Logger) *ResourceHandler {
	return &ResourceHandler{Resources: resources, Log: nopIfNil(log)}
}

type clientReq struct {
	Name         string           `json:"name" validate:"required,max=150"`
	Address      *string          `json:"address" validate:"omitempty,max=255"`
	SpecialPrice *decimal.Decimal `json:"special_price"`
}

func (r clientReq) input(meta service.RequestMeta) service.ClientInput {
	in := service.ClientInput{RequestMeta: meta, Name: r.Name, Address: r.Address}
	if r.SpecialPrice != nil {
		in.SpecialPrice = decimal.NewNullDecimal(*r.SpecialPrice)
	}
	return in
}

// ListClients: GET /v1/clients.
func (h *ResourceHandler) ListClients(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	clients, err := h.Resources.ListClients(ctx)
	if err != nil {
		return fail(c, h.Log, err)
	}
	out := make([]clientView, 0, len(clients))
	for i := range clients {
		out = append(out, newClientView(&clients[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"clients": out})
}

// GetClient: GET /v1/clients/:id.
func (h *ResourceHandler) GetClient(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, h.Log, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	cl, err := h.Resources.GetClient(ctx, id)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, newClientView(cl))
}

// CreateClient: POST /v1/clients.
func (h *ResourceHandler) CreateClient(c echo.Context) error {
	var req clientReq
	if err := bind(c, &req); err != nil {
		return fail(c, h.Log, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	cl, err := h.Resources.CreateClient(ctx, req.input(meta(c)))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, newClientView(cl))
}

// UpdateClient: PUT /v1/clients/:id.
func (h *ResourceHandler) UpdateClient(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, h.Log, err)
	}
	var req clientReq
	if err := bind(c, &req); err != nil {
		return fail(c, h.Log, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	cl, err := h.Resources.UpdateClient(ctx, id, req.input(meta(c)))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, newClientView(cl))
}

// DeactivateClient: DELETE /v1/clients/:id.
func (h *ResourceHandler) DeactivateClient(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, h.Log, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Resources.DeactivateClient(ctx, meta(c), id); err != nil {
		return fail(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type truckReq struct {
	Plate    string  `json:"plate" validate:"required,max=20"`
	Nickname string  `json:"nickname" validate:"max=50"`
	Brand    *string `json:"brand" validate:"omitempty,max=50"`
	Model    *string `json:"model" validate:"omitempty,max=50"`
	Year     *int    `json:"year" validate:"omitempty,min=1950,max=2100"`
}

// ListTrucks: GET /v1/resources/trucks.
func (h *ResourceHandler) ListTrucks(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	trucks, err := h.Resources.ListTrucks(ctx)
	if err != nil {
		return fail(c, h.Log, err)
	}
	out := make([]truckView, 0, len(trucks))
	for _, t := range trucks {
		out = append(out, truckView{ID: t.ID, Plate: t.Plate, Nickname: t.Nickname, Brand: t.Brand, Model: t.Model, Year: t.Year, IsActive: t.IsActive})
	}
	return c.JSON(http.StatusOK, echo.Map{"trucks": out})
}

// CreateTruck: POST /v1/resources/trucks.
func (h *ResourceHandler) CreateTruck(c echo.Context) error {
	var req truckReq
	if err := bind(c, &req); err != nil {
		return fail(c, h.Log, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	t, err := h.Resources.CreateTruck(ctx, service.TruckInput{
		RequestMeta: meta(c),
		Plate:       req.Plate,
		Nickname:    req.Nickname,
		Brand:       req.Brand,
		Model:       req.Model,
		Year:        req.Year,
	})
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, truckView{ID: t.ID, Plate: t.Plate, Nickname: t.Nickname, Brand: t.Brand, Model: t.Model, Year: t.Year, IsActive: t.IsActive})
}

type driverReq struct {
	Username string  `json:"username" validate:"required,min=3,max=50"`
	FullName string  `json:"full_name" validate:"required,max=150"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Password string  `json:"password" validate:"required,min=8,max=72"`
}

// ListDrivers: GET /v1/resources/drivers.
func (h *ResourceHandler) ListDrivers(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	users, err := h.Resources.ListDrivers(ctx)
	if err != nil {
		return fail(c, h.Log, err)
	}
	out := make([]userView, 0, len(users))
	for i := range users {
		out = append(out, newUserView(&users[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"drivers": out})
}

// CreateDriver: POST /v1/resources/drivers.
func (h *ResourceHandler) CreateDriver(c echo.Context) error {
	var req driverReq
	if err := bind(c, &req); err != nil {
		return fail(c, h.Log, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	u, err := h.Resources.CreateDriver(ctx, service.DriverInput{
		RequestMeta: meta(c),
		Username:    req.Username,
		FullName:    req.FullName,
		Email:       req.Email,
		Password:    req.Password,
	})
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, newUserView(u))
}
