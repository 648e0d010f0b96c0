// Package handler exposes the route ledger over HTTP with echo.
package handler

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/waterlog/routeledger/internal/apperr"
	"github.com/waterlog/routeledger/internal/middleware"
	"github.com/waterlog/routeledger/internal/service"
)

// requestTimeout bounds the database work of one request.
const requestTimeout = 5 * time.Second

// Validator adapts go-playground/validator to echo.Validator.  Field names
// in errors follow the json tags of the request DTOs.
type Validator struct {
	v *validator.Validate
}

// NewValidator builds a Validator.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{v: v}
}

// Validate implements echo.Validator.  It returns an *apperr.Error naming
// the first offending field.
func (cv *Validator) Validate(i any) error {
	err := cv.v.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		// Namespace is "<type>.<json path>"; drop the type.
		field := fe.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		return apperr.Validation(field, "failed %q validation", fe.Tag())
	}
	return apperr.Validation("", "%s", err.Error())
}

// bind decodes the body into req and validates it.
func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return apperr.Validation("", "invalid request body")
	}
	return c.Validate(req)
}

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// meta identifies the caller for audit entries.
func meta(c echo.Context) service.RequestMeta {
	id, _ := middleware.UserID(c)
	return service.RequestMeta{
		ActorID:   id,
		IPAddress: c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	}
}

func pathID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Validation(name, "must be a positive integer")
	}
	return id, nil
}

// errorBody is the JSON shape of every failed request.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Entity  string `json:"entity,omitempty"`
	ID      uint64 `json:"id,omitempty"`
	RouteID uint64 `json:"route_id,omitempty"`
}

func statusFor(kind error) int {
	switch kind {
	case apperr.ErrValidation:
		return http.StatusBadRequest
	case apperr.ErrNotFound:
		return http.StatusNotFound
	case apperr.ErrInvalidState, apperr.ErrConflict:
		return http.StatusConflict
	case apperr.ErrComputation:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// fail writes err as JSON.  Typed failures map to their status code;
// anything else is logged and reported as a 500 without details.
func fail(c echo.Context, log *zap.Logger, err error) error {
	ae, ok := apperr.As(err)
	if !ok {
		log.Error("request failed",
			zap.String("method", c.Request().Method),
			zap.String("route", c.Path()),
			zap.Error(err),
		)
		return c.JSON(http.StatusInternalServerError, errorBody{Error: "internal_error", Message: "internal server error"})
	}
	body := errorBody{Error: ae.Kind.Error(), Message: ae.Message, Field: ae.Field}
	if ae.Entity == "route" {
		body.RouteID = ae.ID
	} else {
		body.Entity, body.ID = ae.Entity, ae.ID
	}
	return c.JSON(statusFor(ae.Kind), body)
}

func nopIfNil(log *zap.Logger) *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log
}
