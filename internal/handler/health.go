package handler // declare the package name; contains HTTP handlers

import (
	"context"
	"database/sql"
	"net/http" // net/http provides status codes and response helpers
	"time"

	"github.com/labstack/echo/v4" // echo is the web framework used for this project
)

// HealthHandler reports liveness and database reachability.
type HealthHandler struct {
	DB *sql.DB
}

// Health is used by load balancers and monitoring systems.  It answers
// 200 "ok" while the database responds to a ping and 503 otherwise.
func (h *HealthHandler) Health(c echo.Context) error {
	if h.DB != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := h.DB.PingContext(ctx); err != nil {
			c.Logger().Warnf("health: db ping: %v", err)
			return c.String(http.StatusServiceUnavailable, "db unavailable")
		}
	}
	return c.String(http.StatusOK, "ok")
}
