package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/travel-availability/internal/model"
)

// SortColumn is one of the columns a listing may be ordered by.  Only
// values from sortColumns ever reach the SQL text.
type SortColumn string

const (
	SortByID            SortColumn = "id"
	SortByReferenceType SortColumn = "reference_type"
	SortByStart         SortColumn = "start_datetime"
	SortByEnd           SortColumn = "end_datetime"
	SortByCreatedAt     SortColumn = "created_at"
	SortByReferenceName SortColumn = "reference_name"
)

var sortColumns = map[SortColumn]string{
	SortByID:            "u.id",
	SortByReferenceType: "u.reference_type",
	SortByStart:         "u.start_datetime",
	SortByEnd:           "u.end_datetime",
	SortByCreatedAt:     "u.created_at",
	SortByReferenceName: "reference_name",
}

// ParseSortColumn maps user input onto the allow-list.  Anything unknown
// falls back to start_datetime.
func ParseSortColumn(s string) SortColumn {
	c := SortColumn(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := sortColumns[c]; ok {
		return c
	}
	return SortByStart
}

// referenceSource says where the display name of a reference lives.
type referenceSource struct {
	alias  string
	table  string
	column string
}

// The catalog tables are owned by other services.
var referenceSources = map[model.ReferenceType]referenceSource{
	model.ReferenceDriver:  {alias: "d", table: "drivers", column: "name"},
	model.ReferenceHotel:   {alias: "h", table: "hotel", column: "name"},
	model.ReferenceVehicle: {alias: "v", table: "vehicles", column: "title"},
}

// UnavailabilitySearchQuery defines filters, pagination and ordering for
// listing unavailabilities.  Zero values mean "no filter".
type UnavailabilitySearchQuery struct {
	ReferenceID   uint64
	ReferenceType model.ReferenceType
	StartFrom     *time.Time // start_datetime >= StartFrom
	EndUntil      *time.Time // end_datetime <= EndUntil
	Search        string
	Page          int
	Limit         int
	SortBy        SortColumn
	Ascending     bool
}

// UnavailabilityRow is an unavailability plus the display name of the
// entity it blocks, when that can be resolved.
type UnavailabilityRow struct {
	model.Unavailability
	ReferenceName *string `json:"reference_name"`
}

// UnavailabilitySearch lists unavailabilities with optional reference
// name resolution.  Name resolution joins catalog tables that may not
// exist in every deployment, so it can be switched off.
type UnavailabilitySearch struct {
	db           *sql.DB
	resolveNames bool
}

func NewUnavailabilitySearch(db *sql.DB, resolveNames bool) *UnavailabilitySearch {
	return &UnavailabilitySearch{db: db, resolveNames: resolveNames}
}

func (s *UnavailabilitySearch) joins() string {
	if !s.resolveNames {
		return ""
	}
	var b strings.Builder
	for _, t := range model.ReferenceTypes {
		src := referenceSources[t]
		b.WriteString("\n\t\tLEFT JOIN " + src.table + " " + src.alias +
			" ON u.reference_type = '" + string(t) + "' AND " + src.alias + ".id = u.reference_id")
	}
	return b.String()
}

func (s *UnavailabilitySearch) nameExpr() string {
	if !s.resolveNames {
		return "CAST(NULL AS CHAR)"
	}
	parts := make([]string, 0, len(model.ReferenceTypes))
	for _, t := range model.ReferenceTypes {
		src := referenceSources[t]
		parts = append(parts, src.alias+"."+src.column)
	}
	return "COALESCE(" + strings.Join(parts, ", ") + ")"
}

func (s *UnavailabilitySearch) where(q UnavailabilitySearchQuery) (string, []any) {
	where := []string{}
	args := []any{}

	if q.ReferenceID != 0 {
		where = append(where, "u.reference_id = ?")
		args = append(args, q.ReferenceID)
	}
	if q.ReferenceType != "" {
		where = append(where, "u.reference_type = ?")
		args = append(args, string(q.ReferenceType))
	}
	if q.StartFrom != nil {
		where = append(where, "u.start_datetime >= ?")
		args = append(args, *q.StartFrom)
	}
	if q.EndUntil != nil {
		where = append(where, "u.end_datetime <= ?")
		args = append(args, *q.EndUntil)
	}
	if term := strings.TrimSpace(q.Search); term != "" {
		like := "%" + escapeLike(term) + "%"
		ors := []string{"u.reason LIKE ?"}
		args = append(args, like)
		if s.resolveNames {
			for _, t := range model.ReferenceTypes {
				src := referenceSources[t]
				ors = append(ors, src.alias+"."+src.column+" LIKE ?")
				args = append(args, like)
			}
		}
		where = append(where, "("+strings.Join(ors, " OR ")+")")
	}

	cond := "1=1"
	if len(where) > 0 {
		cond = strings.Join(where, " AND ")
	}
	return cond, args
}

// Search returns one page of rows and the total number of matches.
func (s *UnavailabilitySearch) Search(ctx context.Context, q UnavailabilitySearchQuery) ([]UnavailabilityRow, int64, error) {
	cond, args := s.where(q)
	joins := s.joins()

	var total int64
	countSQL := `SELECT COUNT(*)
		FROM unavailabilities u` + joins + `
		WHERE ` + cond
	if err := s.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	col, ok := sortColumns[q.SortBy]
	if !ok {
		col = sortColumns[SortByStart]
	}
	dir := "DESC"
	if q.Ascending {
		dir = "ASC"
	}

	limit := q.Limit
	offset := (q.Page - 1) * q.Limit

	dataSQL := `SELECT
			u.id, u.reference_id, u.reference_type, u.start_datetime, u.end_datetime,
			u.reason, u.created_at, u.updated_at,
			` + s.nameExpr() + ` AS reference_name
		FROM unavailabilities u` + joins + `
		WHERE ` + cond + `
		ORDER BY ` + col + ` ` + dir + `, u.id ` + dir + `
		LIMIT ? OFFSET ?`

	argsData := append(append([]any{}, args...), limit, offset)

	rows, err := s.db.QueryContext(ctx, dataSQL, argsData...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]UnavailabilityRow, 0, limit)
	for rows.Next() {
		var (
			d      UnavailabilityRow
			refTyp string
			reason sql.NullString
			name   sql.NullString
		)
		if err := rows.Scan(
			&d.ID,
			&d.ReferenceID,
			&refTyp,
			&d.StartDatetime,
			&d.EndDatetime,
			&reason,
			&d.CreatedAt,
			&d.UpdatedAt,
			&name,
		); err != nil {
			return nil, 0, err
		}
		d.ReferenceType = model.ReferenceType(refTyp)
		if reason.Valid {
			r := reason.String
			d.Reason = &r
		}
		if name.Valid {
			n := name.String
			d.ReferenceName = &n
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
