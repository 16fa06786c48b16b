package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/travel-availability/internal/handler"
	"github.com/iliyamo/travel-availability/internal/middleware"
)

// Deps is everything the routes need.
type Deps struct {
	Health         *handler.HealthHandler
	Auth           *handler.AuthHandler
	Unavailability *handler.UnavailabilityHandler
	Guard          *middleware.AuthGuard
	// RateLimit wraps credential endpoints.  Nil disables it.
	RateLimit echo.MiddlewareFunc
	// Cache serves public unavailability reads; Invalidate runs after
	// writes.  Either may be nil.
	Cache      echo.MiddlewareFunc
	Invalidate echo.MiddlewareFunc
}

// Register mounts every route on e.  Versioned routes live under /api/v1.
func Register(e *echo.Echo, d Deps) {
	e.GET("/healthz", d.Health.Health)

	limited := optional(d.RateLimit)
	user := d.Guard.RequireUser()
	admin := d.Guard.RequireAdmin()

	v1 := e.Group("/api/v1")

	// Standard users.
	auth := v1.Group("/auth")
	auth.POST("/register", d.Auth.Register, limited...)
	auth.POST("/login", d.Auth.Login, limited...)
	auth.POST("/logout", d.Auth.Logout, user)
	auth.GET("/me", d.Auth.Me, user)

	// Admins authenticate separately; their tokens are signed with a
	// different secret and are not accepted on the routes above.
	adminAuth := v1.Group("/admin/auth")
	adminAuth.POST("/login", d.Auth.AdminLogin, limited...)
	adminAuth.POST("/logout", d.Auth.Logout, admin)
	adminAuth.GET("/me", d.Auth.Me, admin)

	// Reads are public, writes are admin only.
	reads := optional(d.Cache)
	writes := append([]echo.MiddlewareFunc{admin}, optional(d.Invalidate)...)
	u := v1.Group("/unavailabilities")
	u.GET("", d.Unavailability.List, reads...)
	u.GET("/reference/:reference_id/:reference_type", d.Unavailability.ByReference, reads...)
	u.GET("/:id", d.Unavailability.Get, reads...)
	u.POST("", d.Unavailability.Create, writes...)
	u.PUT("/:id", d.Unavailability.Update, writes...)
	u.DELETE("/:id", d.Unavailability.Delete, writes...)
}

func optional(mw echo.MiddlewareFunc) []echo.MiddlewareFunc {
	if mw == nil {
		return nil
	}
	return []echo.MiddlewareFunc{mw}
}
