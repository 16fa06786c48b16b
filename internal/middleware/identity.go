package middleware

// identity.go stores and reads the authenticated identity on the echo
// context.  The guard writes it once; handlers and the rate limiter read
// it through the helpers below instead of touching context keys.

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/travel-availability/internal/model"
	"github.com/iliyamo/travel-availability/internal/utils"
)

const (
	ctxUser     = "user"
	ctxUserID   = "user_id"
	ctxRoleID   = "role_id"
	ctxScope    = "scope"
	ctxToken    = "token"
	ctxTokenExp = "token_exp"
)

func setIdentity(c echo.Context, u *model.User, scope utils.Scope, raw string, claims *utils.Claims) {
	c.Set(ctxUser, u)
	c.Set(ctxUserID, strconv.FormatUint(u.ID, 10))
	c.Set(ctxRoleID, u.RoleID)
	c.Set(ctxScope, scope)
	c.Set(ctxToken, raw)
	if claims.ExpiresAt != nil {
		c.Set(ctxTokenExp, claims.ExpiresAt.Time)
	}
}

// CurrentUser returns the user attached by the guard.
func CurrentUser(c echo.Context) (*model.User, bool) {
	u, ok := c.Get(ctxUser).(*model.User)
	return u, ok && u != nil
}

// CurrentScope returns the scope the request authenticated with.
func CurrentScope(c echo.Context) utils.Scope {
	s, _ := c.Get(ctxScope).(utils.Scope)
	return s
}

// CurrentToken returns the raw bearer token and its expiry.
func CurrentToken(c echo.Context) (string, time.Time, bool) {
	raw, ok := c.Get(ctxToken).(string)
	if !ok || raw == "" {
		return "", time.Time{}, false
	}
	exp, _ := c.Get(ctxTokenExp).(time.Time)
	return raw, exp, true
}

// userID returns the authenticated user id as a string, or "anon".
func userID(c echo.Context) string {
	if s, ok := c.Get(ctxUserID).(string); ok && s != "" {
		return s
	}
	return "anon"
}
