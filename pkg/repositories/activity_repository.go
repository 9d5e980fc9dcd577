package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/joblens-inc/joblens-engine/pkg/database"
	"github.com/joblens-inc/joblens-engine/pkg/models"
)

// ActivityRepository persists normalized activity rows. Inserts are
// all-or-nothing batches: a failed batch leaves nothing behind, so the
// normalizer never exposes partial-commit semantics.
type ActivityRepository interface {
	InsertEstimates(ctx context.Context, rows []*models.EstimateRow) error
	InsertInvoices(ctx context.Context, rows []*models.InvoiceRow) error
	InsertJobs(ctx context.Context, rows []*models.JobRow) error
	InsertClients(ctx context.Context, rows []*models.ClientRow) error
	InsertPayments(ctx context.Context, rows []*models.PaymentRow) error

	// ListEstimates returns a source's normalized estimates, insertion order.
	ListEstimates(ctx context.Context, sourceID uuid.UUID) ([]*models.EstimateRow, error)
	// ListInvoices returns a source's normalized invoices, insertion order.
	ListInvoices(ctx context.Context, sourceID uuid.UUID) ([]*models.InvoiceRow, error)
}

type activityRepository struct {
	db *database.DB
}

// NewActivityRepository creates a new activity repository.
func NewActivityRepository(db *database.DB) ActivityRepository {
	return &activityRepository{db: db}
}

// runBatch executes queued inserts inside one transaction so the batch
// commits or fails as a unit.
func (r *activityRepository) runBatch(ctx context.Context, entity string, batch *pgx.Batch) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin %s batch: %w", entity, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	results := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			results.Close() //nolint:errcheck
			return fmt.Errorf("failed to insert %s row %d: %w", entity, i, err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("failed to close %s batch: %w", entity, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit %s batch: %w", entity, err)
	}
	return nil
}

func (r *activityRepository) InsertEstimates(ctx context.Context, rows []*models.EstimateRow) error {
	if len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(`
			INSERT INTO estimates (natural_id, source_id, created_at, closed_at, amount, status, job_type, city, postal_prefix)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (source_id, natural_id) DO NOTHING`,
			row.NaturalID, row.SourceID, row.CreatedAt, row.ClosedAt,
			row.Amount, row.Status, row.JobType, row.City, row.PostalPrefix)
	}
	return r.runBatch(ctx, "estimate", batch)
}

func (r *activityRepository) InsertInvoices(ctx context.Context, rows []*models.InvoiceRow) error {
	if len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(`
			INSERT INTO invoices (natural_id, source_id, created_at, amount, status, estimate_id)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (source_id, natural_id) DO NOTHING`,
			row.NaturalID, row.SourceID, row.CreatedAt, row.Amount, row.Status, row.EstimateID)
	}
	return r.runBatch(ctx, "invoice", batch)
}

func (r *activityRepository) InsertJobs(ctx context.Context, rows []*models.JobRow) error {
	if len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(`
			INSERT INTO jobs (natural_id, source_id, created_at, status, job_type)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (source_id, natural_id) DO NOTHING`,
			row.NaturalID, row.SourceID, row.CreatedAt, row.Status, row.JobType)
	}
	return r.runBatch(ctx, "job", batch)
}

func (r *activityRepository) InsertClients(ctx context.Context, rows []*models.ClientRow) error {
	if len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(`
			INSERT INTO clients (natural_id, source_id, created_at, status, city, postal_prefix)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (source_id, natural_id) DO NOTHING`,
			row.NaturalID, row.SourceID, row.CreatedAt, row.Status, row.City, row.PostalPrefix)
	}
	return r.runBatch(ctx, "client", batch)
}

func (r *activityRepository) InsertPayments(ctx context.Context, rows []*models.PaymentRow) error {
	if len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(`
			INSERT INTO payments (natural_id, source_id, created_at, amount, status, invoice_id)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (source_id, natural_id) DO NOTHING`,
			row.NaturalID, row.SourceID, row.CreatedAt, row.Amount, row.Status, row.InvoiceID)
	}
	return r.runBatch(ctx, "payment", batch)
}

func (r *activityRepository) ListEstimates(ctx context.Context, sourceID uuid.UUID) ([]*models.EstimateRow, error) {
	query := `
		SELECT natural_id, source_id, created_at, closed_at, amount, status, job_type, city, postal_prefix
		FROM estimates
		WHERE source_id = $1
		ORDER BY id ASC`

	rows, err := r.db.Query(ctx, query, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list estimates: %w", err)
	}
	defer rows.Close()

	var estimates []*models.EstimateRow
	for rows.Next() {
		var e models.EstimateRow
		if err := rows.Scan(&e.NaturalID, &e.SourceID, &e.CreatedAt, &e.ClosedAt,
			&e.Amount, &e.Status, &e.JobType, &e.City, &e.PostalPrefix); err != nil {
			return nil, fmt.Errorf("failed to scan estimate: %w", err)
		}
		estimates = append(estimates, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating estimates: %w", err)
	}
	return estimates, nil
}

func (r *activityRepository) ListInvoices(ctx context.Context, sourceID uuid.UUID) ([]*models.InvoiceRow, error) {
	query := `
		SELECT natural_id, source_id, created_at, amount, status, COALESCE(estimate_id, '')
		FROM invoices
		WHERE source_id = $1
		ORDER BY id ASC`

	rows, err := r.db.Query(ctx, query, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	var invoices []*models.InvoiceRow
	for rows.Next() {
		var i models.InvoiceRow
		if err := rows.Scan(&i.NaturalID, &i.SourceID, &i.CreatedAt, &i.Amount, &i.Status, &i.EstimateID); err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, &i)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating invoices: %w", err)
	}
	return invoices, nil
}
