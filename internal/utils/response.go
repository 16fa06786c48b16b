package utils

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// FieldError describes one failed validation rule.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Response is the envelope every endpoint answers with.
type Response struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Data    interface{}  `json:"data,omitempty"`
	Errors  []FieldError `json:"errors,omitempty"`
}

// Success sends a 200 envelope.
func Success(c echo.Context, message string, data interface{}) error {
	return c.JSON(http.StatusOK, Response{Success: true, Message: message, Data: data})
}

// Created sends a 201 envelope.
func Created(c echo.Context, message string, data interface{}) error {
	return c.JSON(http.StatusCreated, Response{Success: true, Message: message, Data: data})
}

// Fail sends an error envelope with the given status.
func Fail(c echo.Context, status int, message string) error {
	return c.JSON(status, Response{Success: false, Message: message})
}

// FailWithData sends an error envelope that also carries a payload, e.g.
// the intervals that caused a conflict.
func FailWithData(c echo.Context, status int, message string, data interface{}) error {
	return c.JSON(status, Response{Success: false, Message: message, Data: data})
}

// ValidationFailed sends a 400 with field level details.
func ValidationFailed(c echo.Context, errs []FieldError) error {
	msg := "Validation failed"
	if len(errs) > 0 {
		msg = errs[0].Message
	}
	return c.JSON(http.StatusBadRequest, Response{Success: false, Message: msg, Errors: errs})
}

// Unauthorized sends a 401.
func Unauthorized(c echo.Context, message string) error {
	return Fail(c, http.StatusUnauthorized, message)
}

// Forbidden sends a 403.
func Forbidden(c echo.Context, message string) error {
	return Fail(c, http.StatusForbidden, message)
}

// NotFound sends a 404.
func NotFound(c echo.Context, message string) error {
	return Fail(c, http.StatusNotFound, message)
}

// InternalError sends a generic 500.  Callers log the real cause first.
func InternalError(c echo.Context) error {
	return Fail(c, http.StatusInternalServerError, "Internal server error")
}
