package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joblens-inc/joblens-engine/pkg/apperrors"
	"github.com/joblens-inc/joblens-engine/pkg/models"
)

// In-memory repositories mirroring the guarded transitions the SQL layer
// enforces.

type memSourceRepo struct {
	mu      sync.Mutex
	sources map[uuid.UUID]*models.Source
	deleted []uuid.UUID
}

func newMemSourceRepo() *memSourceRepo {
	return &memSourceRepo{sources: map[uuid.UUID]*models.Source{}}
}

func (r *memSourceRepo) Create(_ context.Context, source *models.Source) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *source
	r.sources[source.ID] = &copied
	return nil
}

func (r *memSourceRepo) Get(_ context.Context, id uuid.UUID) (*models.Source, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	source, ok := r.sources[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	copied := *source
	return &copied, nil
}

func (r *memSourceRepo) AdvanceStatus(_ context.Context, id uuid.UUID, from, to models.SourceStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	source, ok := r.sources[id]
	if !ok || source.Status != from {
		return apperrors.ErrStaleStatus
	}
	if !models.CanAdvanceSource(from, to) {
		return apperrors.ErrStaleStatus
	}
	source.Status = to
	return nil
}

func (r *memSourceRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sources[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(r.sources, id)
	r.deleted = append(r.deleted, id)
	return nil
}

type memSnapshotRepo struct {
	mu        sync.Mutex
	snapshots map[uuid.UUID]*models.Snapshot
}

func newMemSnapshotRepo() *memSnapshotRepo {
	return &memSnapshotRepo{snapshots: map[uuid.UUID]*models.Snapshot{}}
}

func (r *memSnapshotRepo) Create(_ context.Context, snapshot *models.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *snapshot
	copied.CreatedAt = time.Now()
	r.snapshots[snapshot.ID] = &copied
	return nil
}

func (r *memSnapshotRepo) Get(_ context.Context, id uuid.UUID) (*models.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot, ok := r.snapshots[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	copied := *snapshot
	return &copied, nil
}

func (r *memSnapshotRepo) MarkQueued(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot, ok := r.snapshots[id]
	if ok && snapshot.Status == models.SnapshotStatusCreated {
		snapshot.Status = models.SnapshotStatusQueued
	}
	return nil
}

func (r *memSnapshotRepo) ClaimRun(_ context.Context, id uuid.UUID) (bool, models.SnapshotStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot, ok := r.snapshots[id]
	if !ok {
		return false, "", apperrors.ErrNotFound
	}
	if snapshot.Status == models.SnapshotStatusCreated || snapshot.Status == models.SnapshotStatusQueued {
		snapshot.Status = models.SnapshotStatusRunning
		return true, "", nil
	}
	return false, snapshot.Status, nil
}

func (r *memSnapshotRepo) Complete(_ context.Context, id uuid.UUID, report *models.Report, confidence models.ConfidenceLevel, completedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot, ok := r.snapshots[id]
	if !ok || snapshot.Status != models.SnapshotStatusRunning {
		return apperrors.ErrStaleStatus
	}
	snapshot.Status = models.SnapshotStatusComplete
	snapshot.Report = report
	snapshot.ConfidenceLevel = confidence
	snapshot.CompletedAt = &completedAt
	return nil
}

func (r *memSnapshotRepo) Fail(_ context.Context, id uuid.UUID, snapErr *models.SnapshotError, completedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot, ok := r.snapshots[id]
	if !ok || snapshot.Status != models.SnapshotStatusRunning {
		return apperrors.ErrStaleStatus
	}
	snapshot.Status = models.SnapshotStatusFailed
	snapshot.Error = snapErr
	snapshot.CompletedAt = &completedAt
	return nil
}

type memBucketRepo struct {
	mu      sync.Mutex
	buckets map[uuid.UUID]*models.Bucket
}

func newMemBucketRepo() *memBucketRepo {
	return &memBucketRepo{buckets: map[uuid.UUID]*models.Bucket{}}
}

func (r *memBucketRepo) Upsert(_ context.Context, bucket *models.Bucket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *bucket
	r.buckets[bucket.SourceID] = &copied
	return nil
}

func (r *memBucketRepo) Get(_ context.Context, sourceID uuid.UUID) (*models.Bucket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	bucket, ok := r.buckets[sourceID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	copied := *bucket
	return &copied, nil
}

type memActivityRepo struct {
	mu        sync.Mutex
	estimates []*models.EstimateRow
	invoices  []*models.InvoiceRow
	failWith  error
}

func (r *memActivityRepo) insertErr() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failWith
}

func (r *memActivityRepo) InsertEstimates(_ context.Context, rows []*models.EstimateRow) error {
	if err := r.insertErr(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.estimates = append(r.estimates, rows...)
	return nil
}

func (r *memActivityRepo) InsertInvoices(_ context.Context, rows []*models.InvoiceRow) error {
	if err := r.insertErr(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invoices = append(r.invoices, rows...)
	return nil
}

func (r *memActivityRepo) InsertJobs(_ context.Context, _ []*models.JobRow) error {
	return r.insertErr()
}

func (r *memActivityRepo) InsertClients(_ context.Context, _ []*models.ClientRow) error {
	return r.insertErr()
}

func (r *memActivityRepo) InsertPayments(_ context.Context, _ []*models.PaymentRow) error {
	return r.insertErr()
}

func (r *memActivityRepo) ListEstimates(_ context.Context, _ uuid.UUID) ([]*models.EstimateRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.estimates, nil
}

func (r *memActivityRepo) ListInvoices(_ context.Context, _ uuid.UUID) ([]*models.InvoiceRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.invoices, nil
}
