package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"chime/internal/models"
)

// AlarmRepository reads and retires alarm rows. The scheduler is the
// only writer of the enabled flag; the web API only inserts.
type AlarmRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewAlarmRepository(db *sql.DB, logger *zap.Logger) *AlarmRepository {
	return &AlarmRepository{
		db:     db,
		logger: logger,
	}
}

// EnsureSchema creates the alarms table if it does not exist. Safe to
// run on every startup.
func (r *AlarmRepository) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS alarms (
			id BIGSERIAL PRIMARY KEY,
			clock_id BIGINT NOT NULL DEFAULT 1,
			alarm_time TIME NOT NULL,
			alarm_date DATE NOT NULL,
			repeat_days VARCHAR(50) NOT NULL DEFAULT '',
			enabled BOOLEAN NOT NULL DEFAULT TRUE
		)
	`

	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to ensure alarms schema: %w", err)
	}

	return nil
}

// Insert creates a new alarm row and returns its id.
func (r *AlarmRepository) Insert(ctx context.Context, rec *models.AlarmRecord) (int64, error) {
	query := `
		INSERT INTO alarms (clock_id, alarm_time, alarm_date, repeat_days, enabled)
		VALUES ($1, $2::time, $3::date, $4, $5)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		rec.ClockID,
		rec.Time,
		rec.Date,
		rec.RepeatDays,
		rec.Enabled,
	).Scan(&id)

	if err != nil {
		return 0, fmt.Errorf("failed to insert alarm: %w", err)
	}

	return id, nil
}

// FindNearestDue returns the single nearest enabled alarm for the
// given date whose time has not yet passed, or nil when there is
// none. Ordered ascending with LIMIT 1, so a disabled row is never
// returned and at most one candidate is considered per tick.
func (r *AlarmRepository) FindNearestDue(ctx context.Context, date, tm string) (*models.AlarmRecord, error) {
	query := `
		SELECT id, clock_id,
			to_char(alarm_time, 'HH24:MI:SS'),
			to_char(alarm_date, 'YYYY-MM-DD'),
			repeat_days, enabled
		FROM alarms
		WHERE alarm_date = $1::date AND alarm_time >= $2::time AND enabled = TRUE
		ORDER BY alarm_date ASC, alarm_time ASC
		LIMIT 1
	`

	rec := &models.AlarmRecord{}
	err := r.db.QueryRowContext(ctx, query, date, tm).Scan(
		&rec.ID,
		&rec.ClockID,
		&rec.Time,
		&rec.Date,
		&rec.RepeatDays,
		&rec.Enabled,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query nearest due alarm: %w", err)
	}

	return rec, nil
}

// Retire disables a fired alarm. The enabled = TRUE guard makes the
// update conditional, so overlapping ticks retire a record at most
// once. Returns whether this call did the retirement.
func (r *AlarmRepository) Retire(ctx context.Context, id int64) (bool, error) {
	query := `
		UPDATE alarms
		SET enabled = FALSE
		WHERE id = $1 AND enabled = TRUE
	`

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to retire alarm %d: %w", id, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read retire result: %w", err)
	}

	return rows == 1, nil
}

// ListByDate returns all alarms for a date, latest first, for the
// dashboard.
func (r *AlarmRepository) ListByDate(ctx context.Context, date string) ([]models.AlarmRecord, error) {
	query := `
		SELECT id, clock_id,
			to_char(alarm_time, 'HH24:MI:SS'),
			to_char(alarm_date, 'YYYY-MM-DD'),
			repeat_days, enabled
		FROM alarms
		WHERE alarm_date = $1::date
		ORDER BY alarm_time DESC
	`

	rows, err := r.db.QueryContext(ctx, query, date)
	if err != nil {
		return nil, fmt.Errorf("failed to list alarms: %w", err)
	}
	defer rows.Close()

	var alarms []models.AlarmRecord
	for rows.Next() {
		var rec models.AlarmRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.ClockID,
			&rec.Time,
			&rec.Date,
			&rec.RepeatDays,
			&rec.Enabled,
		); err != nil {
			return nil, fmt.Errorf("failed to scan alarm row: %w", err)
		}
		alarms = append(alarms, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alarm rows: %w", err)
	}

	return alarms, nil
}
