package handler

import (
	"context" // provides context with cancellation for DB calls
	"errors"
	"net/http" // HTTP status codes and primitives
	"strings"  // string manipulation utilities
	"time"     // timeouts for DB calls

	"github.com/labstack/echo/v4" // Echo framework for HTTP routing

	"github.com/iliyamo/travel-availability/internal/middleware"
	"github.com/iliyamo/travel-availability/internal/model"
	"github.com/iliyamo/travel-availability/internal/service"
	"github.com/iliyamo/travel-availability/internal/utils"
)

const dbTimeout = 5 * time.Second

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Auth *service.AuthService
}

func NewAuthHandler(a *service.AuthService) *AuthHandler {
	return &AuthHandler{Auth: a}
}

// ----- DTOs -----

type registerReq struct {
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type loginReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type tokenResp struct {
	User      *model.User `json:"user"`
	Token     string      `json:"token"`
	TokenType string      `json:"token_type"`
	Scope     utils.Scope `json:"scope"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// Register creates a standard user.  Admin accounts are provisioned by
// the catalog service, never through this endpoint.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Auth.Register(ctx, strings.TrimSpace(req.Name), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			return utils.Fail(c, http.StatusConflict, "User already exists with this email")
		}
		c.Logger().Errorf("register: %v", err)
		return utils.InternalError(c)
	}
	return utils.Created(c, "User registered successfully", echo.Map{"user": u})
}

// Login issues a standard scope token.
func (h *AuthHandler) Login(c echo.Context) error { return h.login(c, utils.ScopeUser) }

// AdminLogin issues an admin scope token, signed with the admin secret.
func (h *AuthHandler) AdminLogin(c echo.Context) error { return h.login(c, utils.ScopeAdmin) }

func (h *AuthHandler) login(c echo.Context, scope utils.Scope) error {
	var req loginReq
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, tok, err := h.Auth.Login(ctx, req.Email, req.Password, scope)
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		return utils.Unauthorized(c, "Invalid credentials")
	case errors.Is(err, service.ErrAccountInactive):
		return utils.Unauthorized(c, middleware.MsgAccountInactive)
	case errors.Is(err, service.ErrAdminRequired):
		return utils.Forbidden(c, middleware.MsgAdminRequired)
	case err != nil:
		c.Logger().Errorf("login (%s): %v", scope, err)
		return utils.InternalError(c)
	}
	return utils.Success(c, "Login successful", tokenResp{
		User:      u,
		Token:     tok.Token,
		TokenType: "Bearer",
		Scope:     tok.Scope,
		ExpiresAt: tok.Exp,
	})
}

// Logout blacklists the presented token until it would have expired.
// Works for both scopes; the guard in front decides which one.
func (h *AuthHandler) Logout(c echo.Context) error {
	raw, exp, ok := middleware.CurrentToken(c)
	if !ok {
		return utils.Unauthorized(c, middleware.MsgNoToken)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Auth.Logout(ctx, raw, exp); err != nil {
		c.Logger().Errorf("logout: %v", err)
		return utils.InternalError(c)
	}
	return utils.Success(c, "Logout successful", nil)
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return utils.Unauthorized(c, middleware.MsgNoToken)
	}
	return utils.Success(c, "Success", echo.Map{
		"user":  u,
		"scope": middleware.CurrentScope(c),
	})
}
