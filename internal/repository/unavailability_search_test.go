package repository

import (
	"context"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/travel-availability/internal/model"
)

func TestParseSortColumn(t *testing.T) {
	assert.Equal(t, SortByEnd, ParseSortColumn("END_DATETIME"))
	assert.Equal(t, SortByReferenceName, ParseSortColumn(" reference_name "))
	assert.Equal(t, SortByStart, ParseSortColumn("reason; DROP TABLE users"))
	assert.Equal(t, SortByStart, ParseSortColumn(""))
}

func TestSearchWhereWithoutNames(t *testing.T) {
	s := NewUnavailabilitySearch(nil, false)
	cond, args := s.where(UnavailabilitySearchQuery{})
	assert.Equal(t, "1=1", cond)
	assert.Empty(t, args)

	start := t0
	cond, args = s.where(UnavailabilitySearchQuery{
		ReferenceID:   3,
		ReferenceType: model.ReferenceVehicle,
		StartFrom:     &start,
		Search:        "50%_off",
	})
	assert.Equal(t, "u.reference_id = ? AND u.reference_type = ? AND u.start_datetime >= ? AND (u.reason LIKE ?)", cond)
	assert.Equal(t, []any{uint64(3), "Vehicle", t0, `%50\%\_off%`}, args)
	assert.Empty(t, s.joins())
	assert.Equal(t, "CAST(NULL AS CHAR)", s.nameExpr())
}

func TestSearchWhereWithNames(t *testing.T) {
	s := NewUnavailabilitySearch(nil, true)
	cond, args := s.where(UnavailabilitySearchQuery{Search: "smith"})
	assert.Equal(t, "(u.reason LIKE ? OR d.name LIKE ? OR h.name LIKE ? OR v.title LIKE ?)", cond)
	assert.Len(t, args, 4)
	assert.Equal(t, 3, strings.Count(s.joins(), "LEFT JOIN"))
	assert.Equal(t, "COALESCE(d.name, h.name, v.title)", s.nameExpr())
}

func TestSearchPagesAndOrders(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	s := NewUnavailabilitySearch(db, false)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs("Driver").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(25))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY u.end_datetime ASC, u.id ASC")).
		WithArgs("Driver", 10, 20).
		WillReturnRows(sqlmock.NewRows([]string{"id", "reference_id", "reference_type", "start_datetime", "end_datetime", "reason", "created_at", "updated_at", "reference_name"}).
			AddRow(21, 1, "Driver", t0, t5, nil, t0, t0, nil))

	rows, total, err := s.Search(context.Background(), UnavailabilitySearchQuery{
		ReferenceType: model.ReferenceDriver,
		Page:          3,
		Limit:         10,
		SortBy:        SortByEnd,
		Ascending:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(25), total)
	require.Len(t, rows, 1)
	assert.Equal(t, uint64(21), rows[0].ID)
	assert.Nil(t, rows[0].ReferenceName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchUnknownSortFallsBackDescending(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	s := NewUnavailabilitySearch(db, false)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY u.start_datetime DESC, u.id DESC")).
		WithArgs(10, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "reference_id", "reference_type", "start_datetime", "end_datetime", "reason", "created_at", "updated_at", "reference_name"}))

	rows, total, err := s.Search(context.Background(), UnavailabilitySearchQuery{Page: 1, Limit: 10, SortBy: "bogus"})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
