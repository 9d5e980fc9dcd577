// Package repositories provides PostgreSQL data access for the engine.
package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/joblens-inc/joblens-engine/pkg/apperrors"
	"github.com/joblens-inc/joblens-engine/pkg/database"
	"github.com/joblens-inc/joblens-engine/pkg/models"
)

// SourceRepository defines data access for connector import sources.
type SourceRepository interface {
	// Create inserts a new source in pending status.
	Create(ctx context.Context, source *models.Source) error

	// Get returns a source by id, or apperrors.ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (*models.Source, error)

	// AdvanceStatus moves a source forward with a compare-and-set on the
	// expected prior status. Returns apperrors.ErrStaleStatus if the row
	// no longer holds the expected status, and an error for any backward
	// transition.
	AdvanceStatus(ctx context.Context, id uuid.UUID, from, to models.SourceStatus) error

	// Delete removes a source and, via cascade, its normalized rows.
	// Used only to clean up auto-created sources after a failed ingest.
	Delete(ctx context.Context, id uuid.UUID) error
}

type sourceRepository struct {
	db *database.DB
}

// NewSourceRepository creates a new source repository.
func NewSourceRepository(db *database.DB) SourceRepository {
	return &sourceRepository{db: db}
}

func (r *sourceRepository) Create(ctx context.Context, source *models.Source) error {
	query := `
		INSERT INTO sources (id, installation_id, kind, status, auto_created, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())`

	_, err := r.db.Exec(ctx, query,
		source.ID, source.InstallationID, source.Kind, source.Status, source.AutoCreated)
	if err != nil {
		return fmt.Errorf("failed to create source: %w", err)
	}
	return nil
}

func (r *sourceRepository) Get(ctx context.Context, id uuid.UUID) (*models.Source, error) {
	query := `
		SELECT id, installation_id, kind, status, auto_created, created_at, updated_at
		FROM sources
		WHERE id = $1`

	var s models.Source
	err := r.db.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.InstallationID, &s.Kind, &s.Status, &s.AutoCreated, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get source: %w", err)
	}
	return &s, nil
}

func (r *sourceRepository) AdvanceStatus(ctx context.Context, id uuid.UUID, from, to models.SourceStatus) error {
	if !models.CanAdvanceSource(from, to) {
		return fmt.Errorf("source status cannot move from %q to %q", from, to)
	}

	query := `
		UPDATE sources
		SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3`

	tag, err := r.db.Exec(ctx, query, to, id, from)
	if err != nil {
		return fmt.Errorf("failed to advance source status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrStaleStatus
	}
	return nil
}

func (r *sourceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM sources WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete source: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
