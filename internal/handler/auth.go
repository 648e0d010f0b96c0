package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/waterlog/routeledger/internal/middleware"
	"github.com/waterlog/routeledger/internal/repository"
	"github.com/waterlog/routeledger/internal/utils"
)

// AuthHandler issues access tokens.  Drivers have accounts but only
// staff roles are routed to protected endpoints.
type AuthHandler struct {
	Secret       string
	AccessTTLMin int
	Users        *repository.UserRepo
	Log          *zap.Logger
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(secret string, accessTTLMin int, users *repository.UserRepo, log *zap.Logger) *AuthHandler {
	return &AuthHandler{Secret: secret, AccessTTLMin: accessTTLMin, Users: users, Log: nopIfNil(log)}
}

type loginReq struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type loginResp struct {
	User   userView  `json:"user"`
	Access tokenPart `json:"access"`
}

// Login verifies credentials: POST /v1/auth/login.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bind(c, &req); err != nil {
		return fail(c, h.Log, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.GetByUsername(ctx, req.Username)
	if errors.Is(err, repository.ErrUserNotFound) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "invalid credentials"})
	}
	if err != nil {
		return fail(c, h.Log, err)
	}
	if !u.IsActive || !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "invalid credentials"})
	}

	access, err := utils.NewAccessToken(h.Secret, u.ID, u.Role, h.AccessTTLMin)
	if err != nil {
		return fail(c, h.Log, err)
	}
	h.Log.Info("login", zap.Uint64("user_id", u.ID), zap.String("role", u.Role))
	return c.JSON(http.StatusOK, loginResp{
		User:   newUserView(u),
		Access: tokenPart{Token: access.Token, Expires: access.Exp},
	})
}

// Me returns the authenticated user: GET /v1/me.
func (h *AuthHandler) Me(c echo.Context) error {
	id, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "not authenticated"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	u, err := h.Users.GetByID(ctx, id)
	if errors.Is(err, repository.ErrUserNotFound) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "user no longer exists"})
	}
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, newUserView(u))
}
