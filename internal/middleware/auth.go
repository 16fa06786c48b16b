package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"context"
	"errors"
	"strings"

	"github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

	"github.com/iliyamo/travel-availability/internal/model"
	"github.com/iliyamo/travel-availability/internal/repository"
	"github.com/iliyamo/travel-availability/internal/utils"
)

// Messages the guard answers with.
const (
	MsgNoToken          = "no token provided"
	MsgTokenBlacklisted = "token blacklisted"
	MsgInvalidToken     = "invalid token"
	MsgTokenExpired     = "token expired"
	MsgUserNotFound     = "user not found"
	MsgAccountInactive  = "account is inactive"
	MsgAdminRequired    = "admin access required"
)

// TokenParser verifies a raw token for one scope.
type TokenParser interface {
	Parse(raw string, scope utils.Scope) (*utils.Claims, error)
}

// BlacklistChecker answers whether a token was revoked.
type BlacklistChecker interface {
	IsBlacklisted(ctx context.Context, token string) (bool, error)
}

// UserLoader loads the user a token refers to.
type UserLoader interface {
	GetByID(ctx context.Context, id uint64) (*model.User, error)
}

// AuthGuard authenticates requests with a bearer access token.
type AuthGuard struct {
	tokens    TokenParser
	blacklist BlacklistChecker
	users     UserLoader
}

func NewAuthGuard(tokens TokenParser, blacklist BlacklistChecker, users UserLoader) *AuthGuard {
	return &AuthGuard{tokens: tokens, blacklist: blacklist, users: users}
}

// RequireUser accepts tokens signed with the standard secret.
func (g *AuthGuard) RequireUser() echo.MiddlewareFunc { return g.require(utils.ScopeUser) }

// RequireAdmin accepts tokens signed with the admin secret whose user
// still holds the admin role.
func (g *AuthGuard) RequireAdmin() echo.MiddlewareFunc { return g.require(utils.ScopeAdmin) }

// require runs, in order: extract, blacklist, verify, load user, active
// check, role check, attach.  The blacklist is consulted before the
// signature so a revoked token is reported as revoked even while its
// signature is still good.
func (g *AuthGuard) require(scope utils.Scope) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if raw == "" {
				return utils.Unauthorized(c, MsgNoToken)
			}
			ctx := c.Request().Context()

			revoked, err := g.blacklist.IsBlacklisted(ctx, raw)
			if err != nil {
				c.Logger().Errorf("auth: blacklist lookup: %v", err)
				return utils.InternalError(c)
			}
			if revoked {
				return utils.Unauthorized(c, MsgTokenBlacklisted)
			}

			claims, err := g.tokens.Parse(raw, scope)
			if err != nil {
				if errors.Is(err, utils.ErrTokenExpired) {
					return utils.Unauthorized(c, MsgTokenExpired)
				}
				return utils.Unauthorized(c, MsgInvalidToken)
			}
			uid, err := claims.UserID()
			if err != nil {
				return utils.Unauthorized(c, MsgInvalidToken)
			}

			u, err := g.users.GetByID(ctx, uid)
			if err != nil {
				if errors.Is(err, repository.ErrUserNotFound) {
					return utils.Unauthorized(c, MsgUserNotFound)
				}
				c.Logger().Errorf("auth: load user %d: %v", uid, err)
				return utils.InternalError(c)
			}
			if !u.IsActive() {
				return utils.Unauthorized(c, MsgAccountInactive)
			}
			if scope == utils.ScopeAdmin && !u.IsAdmin() {
				return utils.Forbidden(c, MsgAdminRequired)
			}

			setIdentity(c, u, scope, raw, claims)
			return next(c)
		}
	}
}

// bearerToken extracts the token from an Authorization header.  The
// scheme is matched case-insensitively.
func bearerToken(h string) string {
	scheme, tok, ok := strings.Cut(strings.TrimSpace(h), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(tok)
}
