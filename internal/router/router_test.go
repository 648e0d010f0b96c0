package router

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/waterlog/routeledger/internal/database"
	"github.com/waterlog/routeledger/internal/handler"
	"github.com/waterlog/routeledger/internal/metrics"
	"github.com/waterlog/routeledger/internal/model"
	"github.com/waterlog/routeledger/internal/service"
	"github.com/waterlog/routeledger/internal/utils"
)

const secret = "router-test-secret"

type app struct {
	e     *echo.Echo
	db    *sql.DB
	repos service.Repos
}

func newApp(t *testing.T) *app {
	t.Helper()
	db, err := database.Open(database.Options{Driver: database.DriverSQLite})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db, database.DriverSQLite))

	reg := prometheus.NewRegistry()
	m := metrics.New(reg, metrics.Config{ServiceName: "routeledger", Environment: "test", PlantID: "plant-1"})
	repos := service.NewRepos(db)
	routes := service.NewRouteService(db, repos, service.RouteConfig{
		BottlePrice: decimal.RequireFromString("60.00"),
		PlantID:     "plant-1",
		Metrics:     m,
	})
	e := New(Deps{
		DB:             db,
		JWTSecret:      secret,
		Metrics:        m,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Auth:           handler.NewAuthHandler(secret, 15, repos.Users, nil),
		Routes:         handler.NewRouteHandler(routes, nil),
		Debts:          handler.NewDebtHandler(service.NewDebtService(db, repos, m, nil), nil),
		Resources:      handler.NewResourceHandler(service.NewResourceService(db, repos, bcrypt.MinCost, nil), nil),
	})
	return &app{e: e, db: db, repos: repos}
}

func (a *app) user(t *testing.T, username, role string) (*model.User, string) {
	t.Helper()
	hash, err := utils.HashPassword("password-123", bcrypt.MinCost)
	require.NoError(t, err)
	u := &model.User{Username: username, FullName: username, PasswordHash: hash, Role: role, IsActive: true, CreatedAt: time.Now().UTC()}
	ctx := context.Background()
	tx, err := a.db.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, a.repos.Users.CreateTx(ctx, tx, u))
	require.NoError(t, tx.Commit())
	tok, err := utils.NewAccessToken(secret, u.ID, role, 15)
	require.NoError(t, err)
	return u, tok.Token
}

func (a *app) call(t *testing.T, method, path, token, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		r.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, r)
	out := map[string]any{}
	if strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

func TestLoginAndMe(t *testing.T) {
	a := newApp(t)
	a.user(t, "Supervisor", model.RoleSupervisor)

	rec, body := a.call(t, http.MethodPost, "/v1/auth/login", "", `{"username":"supervisor","password":"password-123"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	token := body["access"].(map[string]any)["token"].(string)

	rec, body = a.call(t, http.MethodGet, "/v1/me", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "supervisor", body["username"])
	assert.Equal(t, model.RoleSupervisor, body["role"])

	rec, _ = a.call(t, http.MethodPost, "/v1/auth/login", "", `{"username":"supervisor","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, body = a.call(t, http.MethodPost, "/v1/auth/login", "", `{"username":"supervisor"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "password", body["field"])
}

func TestRouteLifecycleOverHTTP(t *testing.T) {
	a := newApp(t)
	_, sup := a.user(t, "sup", model.RoleSupervisor)
	_, aud := a.user(t, "aud", model.RoleAuditor)
	driver, _ := a.user(t, "chofer", model.RoleDriver)

	rec, body := a.call(t, http.MethodPost, "/v1/resources/trucks", sup, `{"plate":"abc-123","nickname":"La Blanca"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	truckID := uint64(body["id"].(float64))

	rec, body = a.call(t, http.MethodPost, "/v1/clients", sup, `{"name":"Tienda Lupita","special_price":"55.00"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "55.00", body["special_price"])
	clientID := uint64(body["id"].(float64))

	checkout := fmt.Sprintf(`{"driver_id":%d,"truck_id":%d,"initial_full_bottles":100}`, driver.ID, truckID)
	rec, _ = a.call(t, http.MethodPost, "/v1/routes/checkout", aud, checkout)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, body = a.call(t, http.MethodPost, "/v1/routes/checkout", sup, checkout)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "IN_PROGRESS", body["status"])
	routeID := uint64(body["route_id"].(float64))

	checkin := fmt.Sprintf(`{"returned_full_bottles":40,"returned_empty_bottles":55,"sales":[{"client_id":%d,"quantity":55}]}`, clientID)
	rec, body = a.call(t, http.MethodPost, fmt.Sprintf("/v1/routes/%d/checkin", routeID), sup, checkin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "LOCKED_DEBT", body["status"])
	assert.Equal(t, "SALES_BASED", body["strategy"])
	assert.Equal(t, "3025.00", body["debt_amount"])
	assert.EqualValues(t, 5, body["delta"])

	rec, body = a.call(t, http.MethodPost, fmt.Sprintf("/v1/routes/%d/checkin", routeID), sup, checkin)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_state", body["error"])
	assert.EqualValues(t, routeID, body["route_id"])

	rec, body = a.call(t, http.MethodGet, fmt.Sprintf("/v1/routes/%d", routeID), aud, "")
	require.Equal(t, http.StatusOK, rec.Code)
	sales := body["sales"].([]any)
	require.Len(t, sales, 1)
	assert.Equal(t, "55.00", sales[0].(map[string]any)["unit_price"])

	rec, body = a.call(t, http.MethodGet, fmt.Sprintf("/v1/routes/%d/audit", routeID), aud, "")
	require.Equal(t, http.StatusOK, rec.Code)
	entries := body["entries"].([]any)
	require.Len(t, entries, 2)
	assert.Equal(t, model.ActionRouteCheckin, entries[1].(map[string]any)["action"])

	rec, _ = a.call(t, http.MethodGet, fmt.Sprintf("/v1/routes/%d/audit", routeID), sup, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, body = a.call(t, http.MethodGet, "/v1/routes", sup, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["routes"].([]any), 1)

	rec, body = a.call(t, http.MethodGet, "/v1/routes?date=14-03-2026", sup, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "date", body["field"])
}

func TestCheckInErrorsOverHTTP(t *testing.T) {
	a := newApp(t)
	_, sup := a.user(t, "sup", model.RoleSupervisor)

	rec, body := a.call(t, http.MethodPost, "/v1/routes/99/checkin", sup, `{"returned_full_bottles":1,"returned_empty_bottles":0}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", body["error"])
	assert.EqualValues(t, 99, body["route_id"])

	rec, body = a.call(t, http.MethodPost, "/v1/routes/99/checkin", sup, `{"returned_full_bottles":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "returned_empty_bottles", body["field"])
	assert.EqualValues(t, 99, body["route_id"])

	rec, body = a.call(t, http.MethodPost, "/v1/routes/99/checkin", sup, `{"returned_full_bottles":-1,"returned_empty_bottles":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "returned_full_bottles", body["field"])

	rec, _ = a.call(t, http.MethodPost, "/v1/routes/99/checkin", "", `{}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDebtResolutionOverHTTP(t *testing.T) {
	a := newApp(t)
	_, sup := a.user(t, "sup", model.RoleSupervisor)
	_, aud := a.user(t, "aud", model.RoleAuditor)
	driver, _ := a.user(t, "chofer", model.RoleDriver)

	_, body := a.call(t, http.MethodPost, "/v1/resources/trucks", sup, `{"plate":"xyz-1"}`)
	truckID := uint64(body["id"].(float64))
	_, body = a.call(t, http.MethodPost, "/v1/routes/checkout", sup, fmt.Sprintf(`{"driver_id":%d,"truck_id":%d,"initial_full_bottles":10}`, driver.ID, truckID))
	routeID := uint64(body["route_id"].(float64))

	rec, body := a.call(t, http.MethodPost, fmt.Sprintf("/v1/routes/%d/checkin", routeID), sup, `{"returned_full_bottles":8,"returned_empty_bottles":0}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "120.00", body["debt_amount"])
	debtID := uint64(body["debt_id"].(float64))

	rec, body = a.call(t, http.MethodGet, "/v1/debts?status=pending", aud, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["debts"].([]any), 1)

	rec, _ = a.call(t, http.MethodPost, fmt.Sprintf("/v1/debts/%d/resolve", debtID), sup, `{"status":"PAID"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, body = a.call(t, http.MethodPost, fmt.Sprintf("/v1/debts/%d/resolve", debtID), aud, `{"status":"PAID","resolution_notes":"cash"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "PAID", body["status"])
	assert.NotNil(t, body["resolved_at"])

	rec, body = a.call(t, http.MethodPost, fmt.Sprintf("/v1/debts/%d/resolve", debtID), aud, `{"status":"FORGIVEN"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "debt", body["entity"])
}

func TestResourceConflictsOverHTTP(t *testing.T) {
	a := newApp(t)
	_, sup := a.user(t, "sup", model.RoleSupervisor)

	rec, _ := a.call(t, http.MethodPost, "/v1/resources/drivers", sup, `{"username":"pedro","full_name":"Pedro","password":"password-1"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec, body := a.call(t, http.MethodPost, "/v1/resources/drivers", sup, `{"username":"Pedro","full_name":"Pedro","password":"password-1"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "username", body["field"])

	rec, body = a.call(t, http.MethodPost, "/v1/clients", sup, `{"name":"Bad","special_price":-3}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "special_price", body["field"])

	rec, body = a.call(t, http.MethodGet, "/v1/resources/drivers", sup, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["drivers"].([]any), 1)

	rec, _ = a.call(t, http.MethodDelete, "/v1/clients/77", sup, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOperationalEndpoints(t *testing.T) {
	a := newApp(t)

	rec, body := a.call(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])

	rec, _ = a.call(t, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "routeledger_http_requests_total")
}
