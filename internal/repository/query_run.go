package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"

	"github.com/clockbridge/clockbridge/internal/model"
)

const (
	// DefaultQueryRunLimit is used when ListQueryRuns gets a non-positive limit.
	DefaultQueryRunLimit = 50
	// MaxQueryRunLimit caps a single listing.
	MaxQueryRunLimit = 500
)

// RecordQueryRun inserts one audit row. An empty ID is filled with a ULID.
func (r *Repository) RecordQueryRun(ctx context.Context, run *model.QueryRun) error {
	if run.ID == "" {
		run.ID = ulid.Make().String()
	}

	query := `
		INSERT INTO device_query_runs (id, operation, device_addr, record_count, duration_ms, error, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query,
		run.ID,
		run.Operation,
		run.DeviceAddr,
		run.RecordCount,
		run.DurationMS,
		run.Error,
		run.StartedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record query run: %w", err)
	}

	return nil
}

// ListQueryRuns returns the most recent audit rows, newest first.
func (r *Repository) ListQueryRuns(ctx context.Context, limit int) ([]model.QueryRun, error) {
	limit = ClampQueryRunLimit(limit)

	query := `
		SELECT id, operation, device_addr, record_count, duration_ms, error, started_at
		FROM device_query_runs
		ORDER BY started_at DESC, id DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list query runs: %w", err)
	}

	runs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.QueryRun, error) {
		var run model.QueryRun
		var startedAt time.Time
		err := row.Scan(
			&run.ID,
			&run.Operation,
			&run.DeviceAddr,
			&run.RecordCount,
			&run.DurationMS,
			&run.Error,
			&startedAt,
		)
		run.StartedAt = startedAt.UTC()
		return run, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan query runs: %w", err)
	}

	return runs, nil
}

// ClampQueryRunLimit normalises a caller-supplied listing limit.
func ClampQueryRunLimit(limit int) int {
	if limit <= 0 {
		return DefaultQueryRunLimit
	}
	if limit > MaxQueryRunLimit {
		return MaxQueryRunLimit
	}
	return limit
}
