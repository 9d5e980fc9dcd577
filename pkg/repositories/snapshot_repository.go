package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/joblens-inc/joblens-engine/pkg/apperrors"
	"github.com/joblens-inc/joblens-engine/pkg/database"
	"github.com/joblens-inc/joblens-engine/pkg/models"
)

// SnapshotRepository persists snapshot jobs. Status transitions happen
// through guarded conditional updates so concurrent triggers cannot run
// the same job twice.
type SnapshotRepository interface {
	// Create inserts a snapshot in created status.
	Create(ctx context.Context, snapshot *models.Snapshot) error

	// Get returns a snapshot by id, or apperrors.ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (*models.Snapshot, error)

	// MarkQueued moves created -> queued; stale statuses are ignored
	// (at-least-once triggering upstream).
	MarkQueued(ctx context.Context, id uuid.UUID) error

	// ClaimRun atomically moves a non-running, non-terminal snapshot to
	// running. Returns (true, "", nil) when this caller won the claim,
	// otherwise (false, currentStatus, nil) so the caller can decide
	// whether the re-entry is a no-op.
	ClaimRun(ctx context.Context, id uuid.UUID) (bool, models.SnapshotStatus, error)

	// Complete persists the report and moves running -> complete.
	Complete(ctx context.Context, id uuid.UUID, report *models.Report, confidence models.ConfidenceLevel, completedAt time.Time) error

	// Fail persists the structured error and moves running -> failed.
	Fail(ctx context.Context, id uuid.UUID, snapErr *models.SnapshotError, completedAt time.Time) error
}

type snapshotRepository struct {
	db *database.DB
}

// NewSnapshotRepository creates a new snapshot repository.
func NewSnapshotRepository(db *database.DB) SnapshotRepository {
	return &snapshotRepository{db: db}
}

func (r *snapshotRepository) Create(ctx context.Context, snapshot *models.Snapshot) error {
	query := `
		INSERT INTO snapshots (id, source_id, status, created_at)
		VALUES ($1, $2, $3, now())`

	_, err := r.db.Exec(ctx, query, snapshot.ID, snapshot.SourceID, snapshot.Status)
	if err != nil {
		return fmt.Errorf("failed to create snapshot: %w", err)
	}
	return nil
}

func (r *snapshotRepository) Get(ctx context.Context, id uuid.UUID) (*models.Snapshot, error) {
	query := `
		SELECT id, source_id, status, confidence_level, report, error, created_at, completed_at
		FROM snapshots
		WHERE id = $1`

	var (
		s          models.Snapshot
		confidence *string
		reportJSON []byte
		errorJSON  []byte
	)
	err := r.db.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.SourceID, &s.Status, &confidence, &reportJSON, &errorJSON, &s.CreatedAt, &s.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	if confidence != nil {
		s.ConfidenceLevel = models.ConfidenceLevel(*confidence)
	}
	if len(reportJSON) > 0 {
		s.Report = &models.Report{}
		if err := json.Unmarshal(reportJSON, s.Report); err != nil {
			return nil, fmt.Errorf("failed to unmarshal snapshot report: %w", err)
		}
	}
	if len(errorJSON) > 0 {
		s.Error = &models.SnapshotError{}
		if err := json.Unmarshal(errorJSON, s.Error); err != nil {
			return nil, fmt.Errorf("failed to unmarshal snapshot error: %w", err)
		}
	}
	return &s, nil
}

func (r *snapshotRepository) MarkQueued(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE snapshots
		SET status = $1
		WHERE id = $2 AND status = $3`

	if _, err := r.db.Exec(ctx, query, models.SnapshotStatusQueued, id, models.SnapshotStatusCreated); err != nil {
		return fmt.Errorf("failed to queue snapshot: %w", err)
	}
	return nil
}

func (r *snapshotRepository) ClaimRun(ctx context.Context, id uuid.UUID) (bool, models.SnapshotStatus, error) {
	query := `
		UPDATE snapshots
		SET status = $1
		WHERE id = $2 AND status IN ($3, $4)`

	tag, err := r.db.Exec(ctx, query,
		models.SnapshotStatusRunning, id,
		models.SnapshotStatusCreated, models.SnapshotStatusQueued)
	if err != nil {
		return false, "", fmt.Errorf("failed to claim snapshot run: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, "", nil
	}

	var current models.SnapshotStatus
	err = r.db.QueryRow(ctx, `SELECT status FROM snapshots WHERE id = $1`, id).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, "", apperrors.ErrNotFound
		}
		return false, "", fmt.Errorf("failed to read snapshot status: %w", err)
	}
	return false, current, nil
}

func (r *snapshotRepository) Complete(ctx context.Context, id uuid.UUID, report *models.Report, confidence models.ConfidenceLevel, completedAt time.Time) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	query := `
		UPDATE snapshots
		SET status = $1, report = $2, confidence_level = $3, completed_at = $4
		WHERE id = $5 AND status = $6`

	tag, err := r.db.Exec(ctx, query,
		models.SnapshotStatusComplete, reportJSON, confidence, completedAt,
		id, models.SnapshotStatusRunning)
	if err != nil {
		return fmt.Errorf("failed to complete snapshot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrStaleStatus
	}
	return nil
}

func (r *snapshotRepository) Fail(ctx context.Context, id uuid.UUID, snapErr *models.SnapshotError, completedAt time.Time) error {
	errorJSON, err := json.Marshal(snapErr)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot error: %w", err)
	}

	query := `
		UPDATE snapshots
		SET status = $1, error = $2, completed_at = $3
		WHERE id = $4 AND status = $5`

	tag, err := r.db.Exec(ctx, query,
		models.SnapshotStatusFailed, errorJSON, completedAt,
		id, models.SnapshotStatusRunning)
	if err != nil {
		return fmt.Errorf("failed to mark snapshot failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrStaleStatus
	}
	return nil
}
