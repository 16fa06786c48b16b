// Package service holds the business rules that sit between the HTTP
// handlers and the repositories.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/travel-availability/internal/model"
	"github.com/iliyamo/travel-availability/internal/queue"
	"github.com/iliyamo/travel-availability/internal/repository"
)

// Listing bounds.
const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

const publishTimeout = 5 * time.Second

// UnavailabilityStore is the persistence the manager needs.
// *repository.UnavailabilityRepo satisfies it.
type UnavailabilityStore interface {
	GetByID(ctx context.Context, id uint64) (*model.Unavailability, error)
	ListByReference(ctx context.Context, key model.ReferenceKey) ([]model.Unavailability, error)
	Delete(ctx context.Context, id uint64) error
	InReferenceTx(ctx context.Context, keys []model.ReferenceKey, fn func(tx repository.UnavailabilityTx) error) error
}

// UnavailabilitySearcher runs filtered, paged listings.
type UnavailabilitySearcher interface {
	Search(ctx context.Context, q repository.UnavailabilitySearchQuery) ([]repository.UnavailabilityRow, int64, error)
}

// CreateInput is a new interval.  Reason nil or empty stores NULL.
type CreateInput struct {
	ReferenceID   uint64
	ReferenceType model.ReferenceType
	StartDatetime time.Time
	EndDatetime   time.Time
	Reason        *string
}

// UpdateInput is a partial update.  Nil fields keep the stored value.
// Reason is applied only when ReasonSet is true; a nil or empty Reason
// then clears it.
type UpdateInput struct {
	ReferenceID   *uint64
	ReferenceType *model.ReferenceType
	StartDatetime *time.Time
	EndDatetime   *time.Time
	Reason        *string
	ReasonSet     bool
}

// ListQuery is the raw listing request.  Zero Page and Limit mean
// defaults; SortBy and SortOrder are free text checked against an
// allow-list.
type ListQuery struct {
	ReferenceID   uint64
	ReferenceType string
	StartDate     *time.Time
	EndDate       *time.Time
	Search        string
	Page          int
	Limit         int
	SortBy        string
	SortOrder     string
}

// Pagination describes where a page sits in the full result.
type Pagination struct {
	CurrentPage int   `json:"current_page"`
	TotalPages  int   `json:"total_pages"`
	TotalCount  int64 `json:"total_count"`
	HasNextPage bool  `json:"has_next_page"`
	HasPrevPage bool  `json:"has_prev_page"`
	NextPage    *int  `json:"next_page"`
	PrevPage    *int  `json:"prev_page"`
	Limit       int   `json:"limit"`
}

// ListResult is one page of a listing.
type ListResult struct {
	Unavailabilities []repository.UnavailabilityRow `json:"unavailabilities"`
	Pagination       Pagination                     `json:"pagination"`
}

// UnavailabilityService validates and stores unavailabilities.  No two
// stored intervals for the same reference may overlap: every create and
// update runs its overlap check and write under the reference lock.
type UnavailabilityService struct {
	store    UnavailabilityStore
	searcher UnavailabilitySearcher
	pub      Publisher
	log      *log.Logger
	now      func() time.Time
}

// NewUnavailabilityService wires the manager.  pub may be nil when events
// are disabled.
func NewUnavailabilityService(store UnavailabilityStore, searcher UnavailabilitySearcher, pub Publisher, l *log.Logger) *UnavailabilityService {
	if l == nil {
		l = log.New("unavailability")
	}
	return &UnavailabilityService{
		store:    store,
		searcher: searcher,
		pub:      pub,
		log:      l,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create validates in and stores it unless it overlaps an existing
// interval of the same reference.
func (s *UnavailabilityService) Create(ctx context.Context, in CreateInput) (*model.Unavailability, error) {
	u := &model.Unavailability{
		ReferenceID:   in.ReferenceID,
		ReferenceType: in.ReferenceType,
		StartDatetime: storedTime(in.StartDatetime),
		EndDatetime:   storedTime(in.EndDatetime),
		Reason:        normalizeReason(in.Reason),
	}
	if err := validate(u); err != nil {
		return nil, err
	}

	key := u.Key()
	err := s.store.InReferenceTx(ctx, []model.ReferenceKey{key}, func(tx repository.UnavailabilityTx) error {
		if err := checkOverlap(ctx, tx, key, u.Interval(), 0); err != nil {
			return err
		}
		return tx.Insert(ctx, u)
	})
	if err != nil {
		return nil, mapTxError(err)
	}
	s.publish(ctx, queue.ActionCreated, *u)
	return u, nil
}

// Update merges in over the stored row, re-validates and re-checks
// overlaps with the row itself excluded.
func (s *UnavailabilityService) Update(ctx context.Context, id uint64, in UpdateInput) (*model.Unavailability, error) {
	existing, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err)
	}
	merged := merge(*existing, in)
	if err := validate(&merged); err != nil {
		return nil, err
	}

	// Lock the old reference as well so a move between references is
	// serialised against writers of both.
	keys := []model.ReferenceKey{existing.Key(), merged.Key()}
	var out model.Unavailability
	err = s.store.InReferenceTx(ctx, keys, func(tx repository.UnavailabilityTx) error {
		cur, err := tx.GetByID(ctx, id)
		if err != nil {
			return mapNotFound(err)
		}
		if cur.Key() != existing.Key() {
			// Moved by a concurrent writer; its new reference is not locked.
			return &ConflictError{Key: cur.Key()}
		}
		m := merge(*cur, in)
		if err := validate(&m); err != nil {
			return err
		}
		if err := checkOverlap(ctx, tx, m.Key(), m.Interval(), id); err != nil {
			return err
		}
		if err := tx.Update(ctx, &m); err != nil {
			return mapNotFound(err)
		}
		out = m
		return nil
	})
	if err != nil {
		return nil, mapTxError(err)
	}
	s.publish(ctx, queue.ActionUpdated, out)
	return &out, nil
}

// Delete removes an unavailability.
func (s *UnavailabilityService) Delete(ctx context.Context, id uint64) error {
	existing, err := s.store.GetByID(ctx, id)
	if err != nil {
		return mapNotFound(err)
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return mapNotFound(err)
	}
	s.publish(ctx, queue.ActionDeleted, *existing)
	return nil
}

// Get returns one unavailability.
func (s *UnavailabilityService) Get(ctx context.Context, id uint64) (*model.Unavailability, error) {
	u, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return u, nil
}

// FindByReference returns every interval of key, latest start first.
func (s *UnavailabilityService) FindByReference(ctx context.Context, key model.ReferenceKey) ([]model.Unavailability, error) {
	if err := validateReference(key); err != nil {
		return nil, err
	}
	return s.store.ListByReference(ctx, key)
}

// List runs a filtered listing and computes pagination.
func (s *UnavailabilityService) List(ctx context.Context, q ListQuery) (*ListResult, error) {
	sq, err := q.searchQuery()
	if err != nil {
		return nil, err
	}
	rows, total, err := s.searcher.Search(ctx, sq)
	if err != nil {
		return nil, err
	}
	return &ListResult{
		Unavailabilities: rows,
		Pagination:       NewPagination(sq.Page, sq.Limit, total),
	}, nil
}

// NewPagination derives the pagination block for page of size limit.
func NewPagination(page, limit int, total int64) Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	p := Pagination{
		CurrentPage: page,
		TotalPages:  totalPages,
		TotalCount:  total,
		HasNextPage: page < totalPages,
		HasPrevPage: page > 1,
		Limit:       limit,
	}
	if p.HasNextPage {
		n := page + 1
		p.NextPage = &n
	}
	if p.HasPrevPage {
		n := page - 1
		p.PrevPage = &n
	}
	return p
}

func (q ListQuery) searchQuery() (repository.UnavailabilitySearchQuery, error) {
	sq := repository.UnavailabilitySearchQuery{
		ReferenceID: q.ReferenceID,
		StartFrom:   q.StartDate,
		EndUntil:    q.EndDate,
		Search:      strings.TrimSpace(q.Search),
		Page:        q.Page,
		Limit:       q.Limit,
		SortBy:      repository.ParseSortColumn(q.SortBy),
		Ascending:   strings.EqualFold(strings.TrimSpace(q.SortOrder), "ASC"),
	}
	if q.ReferenceType != "" {
		t, err := model.ParseReferenceType(q.ReferenceType)
		if err != nil {
			return sq, &ReferenceError{Field: "reference_type", Reason: "must be one of Driver, Hotel, Vehicle"}
		}
		sq.ReferenceType = t
	}
	if sq.Page < 1 {
		sq.Page = DefaultPage
	}
	switch {
	case sq.Limit == 0:
		sq.Limit = DefaultLimit
	case sq.Limit < 1:
		sq.Limit = 1
	case sq.Limit > MaxLimit:
		sq.Limit = MaxLimit
	}
	return sq, nil
}

// checkOverlap counts first; the conflicting rows are only loaded for the
// 409 body.
func checkOverlap(ctx context.Context, tx repository.UnavailabilityTx, key model.ReferenceKey, iv model.Interval, excludeID uint64) error {
	clash, err := tx.HasOverlap(ctx, key, iv, excludeID)
	if err != nil || !clash {
		return err
	}
	found, err := tx.FindOverlapping(ctx, key, iv, excludeID)
	if err != nil {
		return err
	}
	if len(found) > 0 {
		return &ConflictError{Key: key, Conflicts: found}
	}
	return nil
}

func merge(u model.Unavailability, in UpdateInput) model.Unavailability {
	if in.ReferenceID != nil {
		u.ReferenceID = *in.ReferenceID
	}
	if in.ReferenceType != nil {
		u.ReferenceType = *in.ReferenceType
	}
	if in.StartDatetime != nil {
		u.StartDatetime = storedTime(*in.StartDatetime)
	}
	if in.EndDatetime != nil {
		u.EndDatetime = storedTime(*in.EndDatetime)
	}
	if in.ReasonSet {
		u.Reason = normalizeReason(in.Reason)
	}
	return u
}

// storedTime brings t to the precision of the DATETIME columns, so a range
// is validated and overlap-checked exactly as it will be stored.
func storedTime(t time.Time) time.Time { return t.UTC().Truncate(time.Second) }

func validate(u *model.Unavailability) error {
	if err := validateReference(u.Key()); err != nil {
		return err
	}
	if !u.Interval().Valid() {
		return ErrInvalidRange
	}
	return nil
}

func validateReference(k model.ReferenceKey) error {
	if k.ID == 0 {
		return &ReferenceError{Field: "reference_id", Reason: "must be a positive integer"}
	}
	if !k.Type.Valid() {
		return &ReferenceError{Field: "reference_type", Reason: "must be one of Driver, Hotel, Vehicle"}
	}
	return nil
}

func normalizeReason(r *string) *string {
	if r == nil || *r == "" {
		return nil
	}
	v := *r
	return &v
}

// mapTxError reports a writer that kept losing lock races as a conflict.
func mapTxError(err error) error {
	if errors.Is(err, repository.ErrReferenceBusy) {
		return fmt.Errorf("%w: %w", ErrConflict, err)
	}
	return err
}

func mapNotFound(err error) error {
	if errors.Is(err, repository.ErrUnavailabilityNotFound) {
		return ErrNotFound
	}
	return err
}

// publish never fails the caller; the write has already committed.
func (s *UnavailabilityService) publish(ctx context.Context, action queue.Action, u model.Unavailability) {
	if s.pub == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	ev := queue.NewUnavailabilityChangedEvent(action, u, s.now())
	if err := s.pub.PublishUnavailabilityChanged(ctx, ev); err != nil {
		s.log.Warnf("unavailability %d %s: event not published: %v", u.ID, action, err)
	}
}
