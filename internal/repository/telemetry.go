package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"chime/internal/models"
)

// TelemetryRepository persists decoded telemetry samples.
type TelemetryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewTelemetryRepository(db *sql.DB, logger *zap.Logger) *TelemetryRepository {
	return &TelemetryRepository{
		db:     db,
		logger: logger,
	}
}

// EnsureSchema creates the telemetry table if it does not exist. The
// drain worker runs this once before its first dequeue.
func (r *TelemetryRepository) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS telemetry (
			id BIGSERIAL PRIMARY KEY,
			clock_id BIGINT NOT NULL DEFAULT 1,
			received_at TIMESTAMPTZ NOT NULL,
			temperature DOUBLE PRECISION NOT NULL,
			humidity DOUBLE PRECISION NOT NULL
		)
	`

	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to ensure telemetry schema: %w", err)
	}

	return nil
}

// InsertSample writes one sample. Callers only pass samples that carry
// both readings.
func (r *TelemetryRepository) InsertSample(ctx context.Context, s *models.TelemetrySample) error {
	query := `
		INSERT INTO telemetry (clock_id, received_at, temperature, humidity)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.db.ExecContext(ctx, query,
		s.ClockID,
		s.ReceivedAt,
		s.Temperature,
		s.Humidity,
	)

	if err != nil {
		return fmt.Errorf("failed to insert telemetry sample: %w", err)
	}

	return nil
}

// LatestForClock returns the newest stored sample for a clock, or nil
// when none exists. The dashboard uses this as the fallback behind the
// cache.
func (r *TelemetryRepository) LatestForClock(ctx context.Context, clockID int64) (*models.TelemetrySample, error) {
	query := `
		SELECT clock_id, received_at, temperature, humidity
		FROM telemetry
		WHERE clock_id = $1
		ORDER BY received_at DESC
		LIMIT 1
	`

	s := &models.TelemetrySample{}
	err := r.db.QueryRowContext(ctx, query, clockID).Scan(
		&s.ClockID,
		&s.ReceivedAt,
		&s.Temperature,
		&s.Humidity,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query latest telemetry: %w", err)
	}

	return s, nil
}
