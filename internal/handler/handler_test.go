package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/waterlog/routeledger/internal/apperr"
)

func TestFailMapsKinds(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{"validation", apperr.Validation("returned_full_bottles", "must be >= 0, got -1").WithEntity("route", 4), http.StatusBadRequest,
			`{"error":"validation_error","message":"must be >= 0, got -1","field":"returned_full_bottles","route_id":4}`},
		{"not found", apperr.NotFound("route", 9), http.StatusNotFound,
			`{"error":"not_found","message":"route not found","route_id":9}`},
		{"invalid state", apperr.InvalidState("debt", 3, "cannot move debt from PAID to PENDING"), http.StatusConflict,
			`{"error":"invalid_state","message":"cannot move debt from PAID to PENDING","entity":"debt","id":3}`},
		{"conflict", apperr.Conflict("truck", "plate", "plate ABC is already registered"), http.StatusConflict,
			`{"error":"conflict","message":"plate ABC is already registered","field":"plate","entity":"truck"}`},
		{"computation", apperr.Computation("bottle_price", "global bottle price must be positive, got 0"), http.StatusUnprocessableEntity,
			`{"error":"computation_error","message":"global bottle price must be positive, got 0","field":"bottle_price"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)
			require.NoError(t, fail(c, zap.NewNop(), tc.err))
			assert.Equal(t, tc.status, rec.Code)
			assert.JSONEq(t, tc.body, rec.Body.String())
		})
	}
}

func TestFailHidesInternalErrors(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	require.NoError(t, fail(c, zap.New(core), errors.New("dial tcp 10.0.0.1:3306: connection refused")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal_error","message":"internal server error"}`, rec.Body.String())
	assert.Equal(t, 1, logs.Len())
}

func TestValidatorNamesJSONFields(t *testing.T) {
	v := NewValidator()

	full := 10
	err := v.Validate(&checkinReq{ReturnedFull: &full})
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, "returned_empty_bottles", ae.Field)

	empty := 0
	err = v.Validate(&checkinReq{ReturnedFull: &full, ReturnedEmpty: &empty, Sales: []saleLineReq{{ClientID: 1, Quantity: 2}, {Quantity: 1}}})
	ae, ok = apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, "sales[1].client_id", ae.Field)

	assert.NoError(t, v.Validate(&checkinReq{ReturnedFull: &full, ReturnedEmpty: &empty}))

	err = v.Validate(&resolveReq{Status: "LOST"})
	ae, ok = apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, "status", ae.Field)
}

func TestBindRejectsMalformedBody(t *testing.T) {
	e := echo.New()
	e.Validator = NewValidator()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"driver_id":`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())

	var body checkoutReq
	err := bind(c, &body)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestPathID(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")

	c.SetParamValues("42")
	id, err := pathID(c, "id")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id)

	for _, bad := range []string{"0", "-1", "abc", ""} {
		c.SetParamValues(bad)
		_, err := pathID(c, "id")
		assert.ErrorIs(t, err, apperr.ErrValidation, bad)
	}
}
