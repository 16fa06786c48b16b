package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/travel-availability/internal/utils"
)

// ErrorHandler replaces echo's default so unhandled errors, unknown
// routes and panics recovered by middleware still answer with the
// standard envelope.  Internal details are logged, never returned.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status := http.StatusInternalServerError
	msg := "Internal server error"

	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		} else {
			msg = http.StatusText(status)
		}
	}
	if status >= http.StatusInternalServerError {
		c.Logger().Errorf("%s %s: %v", c.Request().Method, c.Request().URL.Path, err)
		msg = "Internal server error"
	}

	var werr error
	if c.Request().Method == http.MethodHead {
		werr = c.NoContent(status)
	} else {
		werr = utils.Fail(c, status, msg)
	}
	if werr != nil {
		c.Logger().Errorf("write error response: %v", werr)
	}
}
