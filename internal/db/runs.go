package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bobarin/viralforge/internal/models"
	"github.com/google/uuid"
)

const runColumns = `
	id, topic, brief, style, tone, platform, burn_captions, status,
	run_dir, storage_prefix, error_message, summary,
	started_at, finished_at, created_at, updated_at
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner, run *models.Run) error {
	return row.Scan(
		&run.ID, &run.Topic, &run.Brief, &run.Style, &run.Tone, &run.Platform,
		&run.BurnCaptions, &run.Status, &run.RunDir, &run.StoragePrefix,
		&run.ErrorMessage, &run.Summary, &run.StartedAt, &run.FinishedAt,
		&run.CreatedAt, &run.UpdatedAt,
	)
}

func (db *DB) CreateRun(ctx context.Context, run *models.Run) error {
	query := `
		INSERT INTO runs (
			id, topic, brief, style, tone, platform, burn_captions, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`

	return db.QueryRowContext(
		ctx, query,
		run.ID, run.Topic, run.Brief, run.Style, run.Tone, run.Platform,
		run.BurnCaptions, run.Status,
	).Scan(&run.CreatedAt, &run.UpdatedAt)
}

func (db *DB) GetRun(ctx context.Context, id uuid.UUID) (*models.Run, error) {
	query := `SELECT` + runColumns + `FROM runs WHERE id = $1`

	run := &models.Run{}
	err := scanRun(db.QueryRowContext(ctx, query, id), run)
	if err == sql.ErrNoRows {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return run, nil
}

// ListRuns returns runs ordered by creation date (newest first).
// Supports optional status filter, limit, and offset for pagination.
func (db *DB) ListRuns(ctx context.Context, status string, limit, offset int) ([]models.Run, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseSelect := `SELECT` + runColumns + `FROM runs`

	if status != "" {
		query := baseSelect + ` WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
		rows, err = db.QueryContext(ctx, query, status, limit, offset)
	} else {
		query := baseSelect + ` ORDER BY created_at DESC LIMIT $1 OFFSET $2`
		rows, err = db.QueryContext(ctx, query, limit, offset)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []models.Run{}
	for rows.Next() {
		var run models.Run
		if err := scanRun(rows, &run); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// CountRuns returns the total number of runs, optionally filtered by status.
func (db *DB) CountRuns(ctx context.Context, status string) (int, error) {
	var count int
	if status != "" {
		err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE status = $1`, status).Scan(&count)
		return count, err
	}
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&count)
	return count, err
}

func (db *DB) MarkRunRunning(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE runs SET status = $1, started_at = NOW(), updated_at = NOW() WHERE id = $2`
	_, err := db.ExecContext(ctx, query, models.RunStatusRunning, id)
	return err
}

// FinishRun records the terminal state of a run.
func (db *DB) FinishRun(ctx context.Context, id uuid.UUID, update models.RunUpdate) error {
	query := `
		UPDATE runs
		SET status = $1, run_dir = $2, storage_prefix = $3, summary = $4,
			error_message = $5, finished_at = NOW(), updated_at = NOW()
		WHERE id = $6
	`
	var summary any
	if update.Summary != nil {
		summary = update.Summary
	}
	_, err := db.ExecContext(ctx, query,
		update.Status, update.RunDir, update.StoragePrefix, summary, update.ErrorMessage, id)
	return err
}
