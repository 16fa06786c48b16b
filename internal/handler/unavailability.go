package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/travel-availability/internal/model"
	"github.com/iliyamo/travel-availability/internal/service"
	"github.com/iliyamo/travel-availability/internal/utils"
)

// Field messages shared by create and update.
const (
	msgReferenceID   = "Reference ID must be a positive integer"
	msgReferenceType = "Reference type must be Driver, Hotel, or Vehicle"
	msgStart         = "Start datetime must be a valid ISO 8601 date"
	msgEnd           = "End datetime must be a valid ISO 8601 date"
	msgReason        = "Reason must not exceed 1000 characters"
	msgInvalidRange  = "End datetime must be after start datetime"
	msgConflict      = "Overlapping unavailability period exists for this reference"
	msgNotFound      = "Unavailability not found"
)

const maxReasonLen = 1000

var unavailabilityMessages = map[string]string{
	"reference_id":   msgReferenceID,
	"reference_type": msgReferenceType,
	"start_datetime": msgStart,
	"end_datetime":   msgEnd,
	"reason":         msgReason,
}

// UnavailabilityHandler serves /unavailabilities.  Reads are public;
// writes sit behind the admin guard.
type UnavailabilityHandler struct {
	Svc *service.UnavailabilityService
}

func NewUnavailabilityHandler(svc *service.UnavailabilityService) *UnavailabilityHandler {
	return &UnavailabilityHandler{Svc: svc}
}

type createUnavailabilityReq struct {
	ReferenceID   int64   `json:"reference_id" validate:"required,min=1"`
	ReferenceType string  `json:"reference_type" validate:"required,oneof=Driver Hotel Vehicle"`
	StartDatetime string  `json:"start_datetime" validate:"required"`
	EndDatetime   string  `json:"end_datetime" validate:"required"`
	Reason        *string `json:"reason" validate:"omitempty,max=1000"`
}

// optionalString records whether a JSON key was present at all, which a
// plain *string cannot tell apart from an explicit null.
type optionalString struct {
	Set   bool
	Value *string
}

func (o *optionalString) UnmarshalJSON(b []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		o.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	o.Value = &s
	return nil
}

type updateUnavailabilityReq struct {
	ReferenceID   *int64         `json:"reference_id" validate:"omitempty,min=1"`
	ReferenceType *string        `json:"reference_type" validate:"omitempty,oneof=Driver Hotel Vehicle"`
	StartDatetime *string        `json:"start_datetime"`
	EndDatetime   *string        `json:"end_datetime"`
	Reason        optionalString `json:"reason" validate:"-"`
}

// Create handles POST /unavailabilities.
func (h *UnavailabilityHandler) Create(c echo.Context) error {
	var req createUnavailabilityReq
	if err := c.Bind(&req); err != nil {
		return utils.Fail(c, http.StatusBadRequest, "invalid request body")
	}
	req.ReferenceType = canonicalType(req.ReferenceType)
	req.Reason = trimReason(req.Reason)
	if ok, err := validateBody(c, &req, unavailabilityMessages); !ok {
		return err
	}

	start, errS := utils.ParseDatetime(req.StartDatetime)
	end, errE := utils.ParseDatetime(req.EndDatetime)
	if fes := datetimeErrors(errS, errE); fes != nil {
		return utils.ValidationFailed(c, fes)
	}

	u, err := h.Svc.Create(c.Request().Context(), service.CreateInput{
		ReferenceID:   uint64(req.ReferenceID),
		ReferenceType: model.ReferenceType(req.ReferenceType),
		StartDatetime: start,
		EndDatetime:   end,
		Reason:        req.Reason,
	})
	if err != nil {
		return writeServiceError(c, err)
	}
	return utils.Created(c, "Unavailability created successfully", echo.Map{
		"unavailability_id": u.ID,
		"unavailability":    u,
	})
}

// List handles GET /unavailabilities.
func (h *UnavailabilityHandler) List(c echo.Context) error {
	q := service.ListQuery{
		ReferenceType: strings.TrimSpace(c.QueryParam("reference_type")),
		Search:        c.QueryParam("search"),
		Page:          queryInt(c, "page"),
		Limit:         queryInt(c, "limit"),
		SortBy:        c.QueryParam("sort_by"),
		SortOrder:     c.QueryParam("sort_order"),
	}
	var fes []utils.FieldError
	if s := strings.TrimSpace(c.QueryParam("reference_id")); s != "" {
		id, err := strconv.ParseUint(s, 10, 64)
		if err != nil || id == 0 {
			fes = append(fes, utils.FieldError{Field: "reference_id", Message: msgReferenceID})
		}
		q.ReferenceID = id
	}
	if s := c.QueryParam("start_date"); s != "" {
		t, err := utils.ParseDatetime(s)
		if err != nil {
			fes = append(fes, utils.FieldError{Field: "start_date", Message: "start_date must be a valid ISO 8601 date"})
		}
		q.StartDate = &t
	}
	if s := c.QueryParam("end_date"); s != "" {
		t, err := utils.ParseDatetime(s)
		if err != nil {
			fes = append(fes, utils.FieldError{Field: "end_date", Message: "end_date must be a valid ISO 8601 date"})
		}
		q.EndDate = &t
	}
	if len(fes) > 0 {
		return utils.ValidationFailed(c, fes)
	}

	res, err := h.Svc.List(c.Request().Context(), q)
	if err != nil {
		return writeServiceError(c, err)
	}
	return utils.Success(c, "Success", res)
}

// Get handles GET /unavailabilities/:id.
func (h *UnavailabilityHandler) Get(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return utils.Fail(c, http.StatusBadRequest, "invalid id")
	}
	u, err := h.Svc.Get(c.Request().Context(), id)
	if err != nil {
		return writeServiceError(c, err)
	}
	return utils.Success(c, "Success", echo.Map{"unavailability": u})
}

// ByReference handles GET /unavailabilities/reference/:reference_id/:reference_type.
func (h *UnavailabilityHandler) ByReference(c echo.Context) error {
	var fes []utils.FieldError
	refID, err := strconv.ParseUint(c.Param("reference_id"), 10, 64)
	if err != nil || refID == 0 {
		fes = append(fes, utils.FieldError{Field: "reference_id", Message: msgReferenceID})
	}
	refType, err := model.ParseReferenceType(c.Param("reference_type"))
	if err != nil {
		fes = append(fes, utils.FieldError{Field: "reference_type", Message: msgReferenceType})
	}
	if len(fes) > 0 {
		return utils.ValidationFailed(c, fes)
	}
	list, err := h.Svc.FindByReference(c.Request().Context(), model.ReferenceKey{ID: refID, Type: refType})
	if err != nil {
		return writeServiceError(c, err)
	}
	return utils.Success(c, "Success", echo.Map{"unavailabilities": list})
}

// Update handles PUT /unavailabilities/:id.  Omitted fields keep their
// stored values.
func (h *UnavailabilityHandler) Update(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return utils.Fail(c, http.StatusBadRequest, "invalid id")
	}
	var req updateUnavailabilityReq
	if err := c.Bind(&req); err != nil {
		return utils.Fail(c, http.StatusBadRequest, "invalid request body")
	}
	if req.ReferenceType != nil {
		t := canonicalType(*req.ReferenceType)
		req.ReferenceType = &t
	}
	if ok, err := validateBody(c, &req, unavailabilityMessages); !ok {
		return err
	}
	req.Reason.Value = trimReason(req.Reason.Value)
	if req.Reason.Value != nil && len([]rune(*req.Reason.Value)) > maxReasonLen {
		return utils.ValidationFailed(c, []utils.FieldError{{Field: "reason", Message: msgReason}})
	}

	in := service.UpdateInput{Reason: req.Reason.Value, ReasonSet: req.Reason.Set}
	if req.ReferenceID != nil {
		v := uint64(*req.ReferenceID)
		in.ReferenceID = &v
	}
	if req.ReferenceType != nil {
		t := model.ReferenceType(*req.ReferenceType)
		in.ReferenceType = &t
	}
	var errS, errE error
	if req.StartDatetime != nil {
		var t time.Time
		t, errS = utils.ParseDatetime(*req.StartDatetime)
		in.StartDatetime = &t
	}
	if req.EndDatetime != nil {
		var t time.Time
		t, errE = utils.ParseDatetime(*req.EndDatetime)
		in.EndDatetime = &t
	}
	if fes := datetimeErrors(errS, errE); fes != nil {
		return utils.ValidationFailed(c, fes)
	}

	u, err := h.Svc.Update(c.Request().Context(), id, in)
	if err != nil {
		return writeServiceError(c, err)
	}
	return utils.Success(c, "Unavailability updated successfully", echo.Map{"unavailability": u})
}

// Delete handles DELETE /unavailabilities/:id.
func (h *UnavailabilityHandler) Delete(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return utils.Fail(c, http.StatusBadRequest, "invalid id")
	}
	if err := h.Svc.Delete(c.Request().Context(), id); err != nil {
		return writeServiceError(c, err)
	}
	return utils.Success(c, "Unavailability deleted successfully", nil)
}

// writeServiceError maps manager failures onto responses.  Conflicts use
// 409 and list the blocking intervals.
func writeServiceError(c echo.Context, err error) error {
	var conflict *service.ConflictError
	var refErr *service.ReferenceError
	switch {
	case errors.As(err, &conflict):
		return utils.FailWithData(c, http.StatusConflict, msgConflict, echo.Map{"overlaps": conflict.Conflicts})
	case errors.Is(err, service.ErrConflict):
		return utils.Fail(c, http.StatusConflict, msgConflict)
	case errors.Is(err, service.ErrInvalidRange):
		return utils.ValidationFailed(c, []utils.FieldError{{Field: "end_datetime", Message: msgInvalidRange}})
	case errors.Is(err, service.ErrNotFound):
		return utils.NotFound(c, msgNotFound)
	case errors.As(err, &refErr):
		msg := unavailabilityMessages[refErr.Field]
		if msg == "" {
			msg = refErr.Error()
		}
		return utils.ValidationFailed(c, []utils.FieldError{{Field: refErr.Field, Message: msg}})
	default:
		c.Logger().Errorf("%s %s: %v", c.Request().Method, c.Path(), err)
		return utils.InternalError(c)
	}
}

func datetimeErrors(errStart, errEnd error) []utils.FieldError {
	var fes []utils.FieldError
	if errStart != nil {
		fes = append(fes, utils.FieldError{Field: "start_datetime", Message: msgStart})
	}
	if errEnd != nil {
		fes = append(fes, utils.FieldError{Field: "end_datetime", Message: msgEnd})
	}
	return fes
}

// canonicalType fixes the case of a known reference type and leaves
// anything else for the validator to reject.
func canonicalType(s string) string {
	if t, err := model.ParseReferenceType(s); err == nil {
		return string(t)
	}
	return s
}

func trimReason(r *string) *string {
	if r == nil {
		return nil
	}
	v := strings.TrimSpace(*r)
	return &v
}

func pathID(c echo.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}

// queryInt returns 0 for a missing or unparsable value, which the service
// treats as "use the default", and -1 for explicit values below 1, which
// it clamps.
func queryInt(c echo.Context, name string) int {
	s := strings.TrimSpace(c.QueryParam(name))
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	if n < 1 {
		return -1
	}
	return n
}
