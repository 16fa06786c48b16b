package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/travel-availability/internal/model"
)

var (
	t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t5 = time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
)

func newMock(t *testing.T) (*UnavailabilityRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewUnavailabilityRepo(db), mock
}

func unavailabilityRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "reference_id", "reference_type", "start_datetime", "end_datetime", "reason", "created_at", "updated_at"})
}

func TestOverlapPredicate(t *testing.T) {
	key := model.ReferenceKey{ID: 1, Type: model.ReferenceDriver}
	span := model.Interval{Start: t0, End: t5}

	where, args := overlapPredicate(key, span, 0)
	assert.Equal(t, "reference_id = ? AND reference_type = ? AND NOT (end_datetime <= ? OR start_datetime >= ?)", where)
	assert.Equal(t, []any{uint64(1), "Driver", t0, t5}, args)

	where, args = overlapPredicate(key, span, 9)
	assert.Contains(t, where, "AND id <> ?")
	assert.Equal(t, uint64(9), args[len(args)-1])
}

func TestTxHasOverlap(t *testing.T) {
	repo, mock := newMock(t)
	key := model.ReferenceKey{ID: 1, Type: model.ReferenceDriver}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO unavailability_locks").WithArgs("Driver", uint64(1)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM unavailabilities WHERE reference_id = ?")).
		WithArgs(uint64(1), "Driver", t0, t5, uint64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))
	mock.ExpectCommit()

	var got bool
	err := repo.InReferenceTx(context.Background(), []model.ReferenceKey{key}, func(tx UnavailabilityTx) error {
		var err error
		got, err = tx.HasOverlap(context.Background(), key, model.Interval{Start: t0, End: t5}, 3)
		return err
	})
	require.NoError(t, err)
	assert.True(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByIDNotFound(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery("FROM unavailabilities WHERE id = ?").
		WithArgs(uint64(99)).
		WillReturnRows(unavailabilityRows())

	_, err := repo.GetByID(context.Background(), 99)
	assert.ErrorIs(t, err, ErrUnavailabilityNotFound)
}

func TestGetByIDScansNullableReason(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery("FROM unavailabilities WHERE id = ?").
		WithArgs(uint64(4)).
		WillReturnRows(unavailabilityRows().AddRow(4, 1, "Hotel", t0, t5, nil, t0, t0))

	u, err := repo.GetByID(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, model.ReferenceHotel, u.ReferenceType)
	assert.Nil(t, u.Reason)
	assert.True(t, u.EndDatetime.Equal(t5))
}

func TestDelete(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectExec("DELETE FROM unavailabilities WHERE id = ?").
		WithArgs(uint64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM unavailabilities WHERE id = ?").
		WithArgs(uint64(2)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Delete(context.Background(), 1))
	assert.ErrorIs(t, repo.Delete(context.Background(), 2), ErrUnavailabilityNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInReferenceTxLocksKeysInOrderAndCommits(t *testing.T) {
	repo, mock := newMock(t)
	hotel := model.ReferenceKey{ID: 2, Type: model.ReferenceHotel}
	driver := model.ReferenceKey{ID: 9, Type: model.ReferenceDriver}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO unavailability_locks").WithArgs("Driver", uint64(9)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO unavailability_locks").WithArgs("Hotel", uint64(2)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT .* FROM unavailabilities WHERE reference_id = \\?").
		WillReturnRows(unavailabilityRows())
	mock.ExpectExec("INSERT INTO unavailabilities").
		WithArgs(uint64(9), "Driver", t0, t5, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectQuery("FROM unavailabilities WHERE id = ?").
		WithArgs(uint64(11)).
		WillReturnRows(unavailabilityRows().AddRow(11, 9, "Driver", t0, t5, "service", t0, t0))
	mock.ExpectCommit()

	u := &model.Unavailability{ReferenceID: 9, ReferenceType: model.ReferenceDriver, StartDatetime: t0, EndDatetime: t5}
	err := repo.InReferenceTx(context.Background(), []model.ReferenceKey{hotel, driver, hotel}, func(tx UnavailabilityTx) error {
		found, err := tx.FindOverlapping(context.Background(), driver, u.Interval(), 0)
		if err != nil {
			return err
		}
		assert.Empty(t, found)
		return tx.Insert(context.Background(), u)
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(11), u.ID)
	require.NotNil(t, u.Reason)
	assert.Equal(t, "service", *u.Reason)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInReferenceTxRollsBackOnError(t *testing.T) {
	repo, mock := newMock(t)
	key := model.ReferenceKey{ID: 1, Type: model.ReferenceVehicle}
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO unavailability_locks").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	err := repo.InReferenceTx(context.Background(), []model.ReferenceKey{key}, func(UnavailabilityTx) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInReferenceTxRetriesDeadlock(t *testing.T) {
	repo, mock := newMock(t)
	key := model.ReferenceKey{ID: 1, Type: model.ReferenceVehicle}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO unavailability_locks").WillReturnError(&mysql.MySQLError{Number: 1213, Message: "Deadlock found"})
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO unavailability_locks").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	calls := 0
	err := repo.InReferenceTx(context.Background(), []model.ReferenceKey{key}, func(UnavailabilityTx) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInReferenceTxGivesUpAfterRepeatedLockWaits(t *testing.T) {
	repo, mock := newMock(t)
	key := model.ReferenceKey{ID: 1, Type: model.ReferenceHotel}

	for i := 0; i < maxTxAttempts; i++ {
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO unavailability_locks").
			WillReturnError(&mysql.MySQLError{Number: 1205, Message: "Lock wait timeout exceeded"})
		mock.ExpectRollback()
	}

	calls := 0
	err := repo.InReferenceTx(context.Background(), []model.ReferenceKey{key}, func(UnavailabilityTx) error {
		calls++
		return nil
	})
	require.ErrorIs(t, err, ErrReferenceBusy)
	var me *mysql.MySQLError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, uint16(1205), me.Number)
	assert.Zero(t, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTxGetByIDLocksRow(t *testing.T) {
	repo, mock := newMock(t)
	key := model.ReferenceKey{ID: 1, Type: model.ReferenceVehicle}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO unavailability_locks").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = ? FOR UPDATE")).
		WithArgs(uint64(5)).
		WillReturnRows(unavailabilityRows())
	mock.ExpectRollback()

	err := repo.InReferenceTx(context.Background(), []model.ReferenceKey{key}, func(tx UnavailabilityTx) error {
		_, err := tx.GetByID(context.Background(), 5)
		return err
	})
	assert.ErrorIs(t, err, ErrUnavailabilityNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByReference(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery("ORDER BY start_datetime DESC").
		WithArgs(uint64(1), "Driver").
		WillReturnRows(unavailabilityRows().
			AddRow(2, 1, "Driver", t5, t5.Add(time.Hour), nil, t0, t0).
			AddRow(1, 1, "Driver", t0, t5, "repair", t0, t0))

	list, err := repo.ListByReference(context.Background(), model.ReferenceKey{ID: 1, Type: model.ReferenceDriver})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, uint64(2), list[0].ID)
	assert.Equal(t, "repair", *list[1].Reason)
}
