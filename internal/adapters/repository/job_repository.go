package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/todovault/core/internal/domain/entities"
	"github.com/todovault/core/internal/infrastructure/database"
	"github.com/todovault/core/internal/ports"
)

// JobRepositoryImpl persists the scheduler's named job registrations.
type JobRepositoryImpl struct {
	db *database.DB
}

// NewJobRepository creates a new scheduled job repository
func NewJobRepository(db *database.DB) ports.JobRepository {
	return &JobRepositoryImpl{db: db}
}

func (r *JobRepositoryImpl) Get(ctx context.Context, name string) (*entities.JobRecord, error) {
	query := `
		SELECT name, interval_seconds, flex_seconds, battery_not_low, device_idle,
			network_required, next_run, last_run, created_at, updated_at
		FROM scheduled_jobs
		WHERE name = ?`

	var record entities.JobRecord
	err := r.db.GetContext(ctx, &record, query, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entities.ErrJobNotFound
		}
		return nil, fmt.Errorf("get scheduled job: %w", err)
	}

	return &record, nil
}

func (r *JobRepositoryImpl) Save(ctx context.Context, record *entities.JobRecord) error {
	now := time.Now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	query := `
		INSERT INTO scheduled_jobs (name, interval_seconds, flex_seconds, battery_not_low,
			device_idle, network_required, next_run, last_run, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			interval_seconds = excluded.interval_seconds,
			flex_seconds = excluded.flex_seconds,
			battery_not_low = excluded.battery_not_low,
			device_idle = excluded.device_idle,
			network_required = excluded.network_required,
			next_run = excluded.next_run,
			updated_at = excluded.updated_at`

	_, err := r.db.ExecContext(ctx, query,
		record.Name, record.IntervalSeconds, record.FlexSeconds, record.BatteryNotLow,
		record.DeviceIdle, record.NetworkRequired, record.NextRun, record.LastRun,
		record.CreatedAt, record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save scheduled job: %w", err)
	}

	return nil
}

func (r *JobRepositoryImpl) Delete(ctx context.Context, name string) error {
	// Idempotent: deleting an unregistered name is a no-op.
	_, err := r.db.ExecContext(ctx, `DELETE FROM scheduled_jobs WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete scheduled job: %w", err)
	}

	return nil
}

func (r *JobRepositoryImpl) List(ctx context.Context) ([]*entities.JobRecord, error) {
	query := `
		SELECT name, interval_seconds, flex_seconds, battery_not_low, device_idle,
			network_required, next_run, last_run, created_at, updated_at
		FROM scheduled_jobs
		ORDER BY name`

	records := []*entities.JobRecord{}
	if err := r.db.SelectContext(ctx, &records, query); err != nil {
		return nil, fmt.Errorf("list scheduled jobs: %w", err)
	}

	return records, nil
}

func (r *JobRepositoryImpl) MarkRun(ctx context.Context, name string, lastRun, nextRun time.Time) error {
	query := `
		UPDATE scheduled_jobs
		SET last_run = ?, next_run = ?, updated_at = ?
		WHERE name = ?`

	result, err := r.db.ExecContext(ctx, query, lastRun, nextRun, time.Now(), name)
	if err != nil {
		return fmt.Errorf("mark scheduled job run: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark scheduled job run: rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return entities.ErrJobNotFound
	}

	return nil
}
