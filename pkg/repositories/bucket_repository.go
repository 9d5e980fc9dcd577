package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/joblens-inc/joblens-engine/pkg/apperrors"
	"github.com/joblens-inc/joblens-engine/pkg/database"
	"github.com/joblens-inc/joblens-engine/pkg/models"
)

// BucketRepository persists one aggregate bucket per source.
type BucketRepository interface {
	// Upsert writes the bucket for its source, replacing any prior one.
	// Re-running the bucketer on the same source is idempotent.
	Upsert(ctx context.Context, bucket *models.Bucket) error

	// Get returns the bucket for a source, or apperrors.ErrNotFound.
	Get(ctx context.Context, sourceID uuid.UUID) (*models.Bucket, error)
}

type bucketRepository struct {
	db *database.DB
}

// NewBucketRepository creates a new bucket repository.
func NewBucketRepository(db *database.DB) BucketRepository {
	return &bucketRepository{db: db}
}

func (r *bucketRepository) Upsert(ctx context.Context, bucket *models.Bucket) error {
	estimates, err := json.Marshal(bucket.Estimates)
	if err != nil {
		return fmt.Errorf("failed to marshal estimate bucket: %w", err)
	}
	invoices, err := json.Marshal(bucket.Invoices)
	if err != nil {
		return fmt.Errorf("failed to marshal invoice bucket: %w", err)
	}

	query := `
		INSERT INTO buckets (source_id, estimates, invoices, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (source_id) DO UPDATE
		SET estimates = EXCLUDED.estimates,
		    invoices = EXCLUDED.invoices,
		    updated_at = now()`

	if _, err := r.db.Exec(ctx, query, bucket.SourceID, estimates, invoices); err != nil {
		return fmt.Errorf("failed to upsert bucket: %w", err)
	}
	return nil
}

func (r *bucketRepository) Get(ctx context.Context, sourceID uuid.UUID) (*models.Bucket, error) {
	query := `
		SELECT source_id, estimates, invoices, updated_at
		FROM buckets
		WHERE source_id = $1`

	var (
		b             models.Bucket
		estimatesJSON []byte
		invoicesJSON  []byte
	)
	err := r.db.QueryRow(ctx, query, sourceID).Scan(&b.SourceID, &estimatesJSON, &invoicesJSON, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get bucket: %w", err)
	}

	if err := json.Unmarshal(estimatesJSON, &b.Estimates); err != nil {
		return nil, fmt.Errorf("failed to unmarshal estimate bucket: %w", err)
	}
	if err := json.Unmarshal(invoicesJSON, &b.Invoices); err != nil {
		return nil, fmt.Errorf("failed to unmarshal invoice bucket: %w", err)
	}
	return &b, nil
}
