package handler

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/travel-availability/internal/utils"
)

// RequestValidator adapts go-playground/validator to echo.Validator.
type RequestValidator struct {
	v *validator.Validate
}

// NewRequestValidator reports field names by their json tag.
func NewRequestValidator() *RequestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &RequestValidator{v: v}
}

func (rv *RequestValidator) Validate(i interface{}) error {
	return rv.v.Struct(i)
}

// fieldErrors turns a validation error into the response detail list.
// messages overrides the generated text per field.  Errors that did not
// come from the validator yield nil.
func fieldErrors(err error, messages map[string]string) []utils.FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make([]utils.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		msg, ok := messages[fe.Field()]
		if !ok {
			msg = describe(fe)
		}
		out = append(out, utils.FieldError{Field: fe.Field(), Message: msg})
	}
	return out
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	case "email":
		return fmt.Sprintf("%s must be a valid email address", fe.Field())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

// bindAndValidate binds the body into dst and validates it.  It writes
// the 400 response itself and returns ok=false when the request is bad.
func bindAndValidate(c echo.Context, dst interface{}) (bool, error) {
	if err := c.Bind(dst); err != nil {
		return false, utils.Fail(c, http.StatusBadRequest, "invalid request body")
	}
	return validateBody(c, dst, nil)
}

// validateBody validates an already bound body.
func validateBody(c echo.Context, dst interface{}, messages map[string]string) (bool, error) {
	if err := c.Validate(dst); err != nil {
		if fes := fieldErrors(err, messages); fes != nil {
			return false, utils.ValidationFailed(c, fes)
		}
		return false, utils.Fail(c, http.StatusBadRequest, err.Error())
	}
	return true, nil
}
