package repository

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"chime/internal/models"
)

func setupMockAlarmDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *AlarmRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	repo := NewAlarmRepository(db, zap.NewNop())
	return db, mock, repo
}

func TestFindNearestDue_Found(t *testing.T) {
	db, mock, repo := setupMockAlarmDB(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "clock_id", "to_char", "to_char", "repeat_days", "enabled"}).
		AddRow(int64(3), int64(1), "07:00:00", "2024-01-01", "", true)

	mock.ExpectQuery(`SELECT`).
		WithArgs("2024-01-01", "06:59:00").
		WillReturnRows(rows)

	rec, err := repo.FindNearestDue(context.Background(), "2024-01-01", "06:59:00")

	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, int64(3), rec.ID)
	assert.Equal(t, "07:00:00", rec.Time)
	assert.Equal(t, "2024-01-01", rec.Date)
	assert.True(t, rec.Enabled)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindNearestDue_NoneScheduled(t *testing.T) {
	db, mock, repo := setupMockAlarmDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT`).
		WithArgs("2024-01-01", "23:59:00").
		WillReturnError(sql.ErrNoRows)

	rec, err := repo.FindNearestDue(context.Background(), "2024-01-01", "23:59:00")

	require.NoError(t, err)
	assert.Nil(t, rec)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindNearestDue_QueryOnlyEnabled(t *testing.T) {
	db, mock, repo := setupMockAlarmDB(t)
	defer db.Close()

	// The enabled filter lives in the statement itself; a disabled row
	// can never come back from the store.
	mock.ExpectQuery(`enabled = TRUE`).
		WithArgs("2024-01-01", "07:00:00").
		WillReturnError(sql.ErrNoRows)

	rec, err := repo.FindNearestDue(context.Background(), "2024-01-01", "07:00:00")

	require.NoError(t, err)
	assert.Nil(t, rec)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRetire_Retired(t *testing.T) {
	db, mock, repo := setupMockAlarmDB(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE alarms`).
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	retired, err := repo.Retire(context.Background(), 3)

	require.NoError(t, err)
	assert.True(t, retired)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRetire_AlreadyRetired(t *testing.T) {
	db, mock, repo := setupMockAlarmDB(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE alarms`).
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	retired, err := repo.Retire(context.Background(), 3)

	require.NoError(t, err)
	assert.False(t, retired)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsert_ReturnsID(t *testing.T) {
	db, mock, repo := setupMockAlarmDB(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO alarms`).
		WithArgs(int64(1), "07:30:00", "2024-01-02", "", true).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(11)))

	id, err := repo.Insert(context.Background(), &models.AlarmRecord{
		ClockID: 1,
		Time:    "07:30:00",
		Date:    "2024-01-02",
		Enabled: true,
	})

	require.NoError(t, err)
	assert.Equal(t, int64(11), id)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListByDate(t *testing.T) {
	db, mock, repo := setupMockAlarmDB(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "clock_id", "to_char", "to_char", "repeat_days", "enabled"}).
		AddRow(int64(2), int64(1), "08:00:00", "2024-01-01", "", true).
		AddRow(int64(1), int64(1), "07:00:00", "2024-01-01", "", false)

	mock.ExpectQuery(`SELECT`).
		WithArgs("2024-01-01").
		WillReturnRows(rows)

	alarms, err := repo.ListByDate(context.Background(), "2024-01-01")

	require.NoError(t, err)
	require.Len(t, alarms, 2)
	assert.Equal(t, "08:00:00", alarms[0].Time)
	assert.False(t, alarms[1].Enabled)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	db, mock, repo := setupMockAlarmDB(t)
	defer db.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS alarms`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
