package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/joblens-inc/joblens-engine/pkg/config"
	"github.com/joblens-inc/joblens-engine/pkg/models"
	"github.com/joblens-inc/joblens-engine/pkg/reasoner"
	"github.com/joblens-inc/joblens-engine/pkg/scoring"
)

type snapshotFixture struct {
	svc       SnapshotService
	cfg       *config.Config
	sources   *memSourceRepo
	snapshots *memSnapshotRepo
	buckets   *memBucketRepo
	tracker   *scoring.Tracker
}

func newSnapshotFixture(t *testing.T, mode config.ScoringMode, client reasoner.Client) *snapshotFixture {
	t.Helper()
	cfg := &config.Config{
		Ingest: config.IngestConfig{WindowDays: 90, MaxRecords: 500},
		Scoring: config.ScoringConfig{
			Mode:             mode,
			MinEstimates:     15,
			MinTrackedEvents: 10,
			MaxFallbackRate:  0.20,
		},
		Reasoner: config.ReasonerConfig{
			Provider: config.ReasonerOpenAI,
			BaseURL:  "https://api.openai.com/v1",
			Model:    "gpt-4o-mini",
		},
	}

	f := &snapshotFixture{
		cfg:       cfg,
		sources:   newMemSourceRepo(),
		snapshots: newMemSnapshotRepo(),
		buckets:   newMemBucketRepo(),
		tracker:   scoring.NewTracker(),
	}
	f.svc = NewSnapshotService(f.snapshots, f.sources, f.buckets, client, f.tracker, cfg, zap.NewNop())
	return f
}

// seedJob creates a bucketed source with a queued snapshot holding count
// meaningful estimates.
func (f *snapshotFixture) seedJob(t *testing.T, count int) uuid.UUID {
	t.Helper()
	ctx := context.Background()

	source := &models.Source{
		ID:             uuid.New(),
		InstallationID: uuid.New(),
		Kind:           "quotepad",
		Status:         models.SourceStatusBucketed,
	}
	require.NoError(t, f.sources.Create(ctx, source))

	bucket := &models.Bucket{SourceID: source.ID}
	bucket.Estimates.Total = count
	bucket.Estimates.Meaningful = count
	bucket.Estimates.PriceBands = [4]int{count, 0, 0, 0}
	if count > 0 {
		bucket.Estimates.WeeklyVolume = []models.WeekCount{{Week: "2026-W30", Count: count}}
		bucket.Estimates.JobTypes = []models.TypeCount{{Type: "plumbing", Count: count}}
	}
	require.NoError(t, f.buckets.Upsert(ctx, bucket))

	snapshot := &models.Snapshot{ID: uuid.New(), SourceID: source.ID, Status: models.SnapshotStatusCreated}
	require.NoError(t, f.snapshots.Create(ctx, snapshot))
	require.NoError(t, f.snapshots.MarkQueued(ctx, snapshot.ID))
	return snapshot.ID
}

func (f *snapshotFixture) sourceOf(t *testing.T, snapshotID uuid.UUID) *models.Source {
	t.Helper()
	snapshot, err := f.snapshots.Get(context.Background(), snapshotID)
	require.NoError(t, err)
	source, err := f.sources.Get(context.Background(), snapshot.SourceID)
	require.NoError(t, err)
	return source
}

func TestSnapshotRunDeterministic(t *testing.T) {
	f := newSnapshotFixture(t, config.ModeDeterministic, nil)
	snapshotID := f.seedJob(t, 50)

	snapshot, err := f.svc.Run(context.Background(), snapshotID)
	require.NoError(t, err)

	assert.Equal(t, models.SnapshotStatusComplete, snapshot.Status)
	require.NotNil(t, snapshot.Report)
	assert.Equal(t, models.ReportKindSnapshot, snapshot.Report.Kind)
	assert.Equal(t, models.ConfidenceMedium, snapshot.ConfidenceLevel)
	require.NotNil(t, snapshot.CompletedAt)

	assert.Equal(t, models.SourceStatusSnapshotGenerated, f.sourceOf(t, snapshotID).Status)
}

func TestSnapshotRunInsufficientData(t *testing.T) {
	f := newSnapshotFixture(t, config.ModeDeterministic, nil)
	snapshotID := f.seedJob(t, 8)

	snapshot, err := f.svc.Run(context.Background(), snapshotID)
	require.NoError(t, err)

	assert.Equal(t, models.SnapshotStatusComplete, snapshot.Status)
	require.NotNil(t, snapshot.Report)
	assert.Equal(t, models.ReportKindInsufficientData, snapshot.Report.Kind)
	assert.Equal(t, 8, snapshot.Report.Found.Estimates)
	assert.Equal(t, models.ConfidenceLow, snapshot.ConfidenceLevel)

	assert.Equal(t, models.SourceStatusInsufficientData, f.sourceOf(t, snapshotID).Status)
}

func TestSnapshotRunTerminalNoOp(t *testing.T) {
	f := newSnapshotFixture(t, config.ModeDeterministic, nil)
	snapshotID := f.seedJob(t, 50)

	first, err := f.svc.Run(context.Background(), snapshotID)
	require.NoError(t, err)
	require.Equal(t, models.SnapshotStatusComplete, first.Status)
	completedAt := *first.CompletedAt

	second, err := f.svc.Run(context.Background(), snapshotID)
	require.NoError(t, err)

	assert.Equal(t, models.SnapshotStatusComplete, second.Status)
	assert.Equal(t, completedAt, *second.CompletedAt)
	assert.Equal(t, first.Report, second.Report)
}

func TestSnapshotRunMissingBucketFails(t *testing.T) {
	f := newSnapshotFixture(t, config.ModeDeterministic, nil)

	source := &models.Source{ID: uuid.New(), InstallationID: uuid.New(), Kind: "quotepad", Status: models.SourceStatusIngested}
	require.NoError(t, f.sources.Create(context.Background(), source))
	snapshot := &models.Snapshot{ID: uuid.New(), SourceID: source.ID, Status: models.SnapshotStatusCreated}
	require.NoError(t, f.snapshots.Create(context.Background(), snapshot))

	got, err := f.svc.Run(context.Background(), snapshot.ID)
	require.NoError(t, err)

	assert.Equal(t, models.SnapshotStatusFailed, got.Status)
	require.NotNil(t, got.Error)
	assert.Equal(t, models.SnapshotErrorPersistence, got.Error.Kind)
	// The source is never silently advanced on failure.
	assert.Equal(t, models.SourceStatusIngested, f.sourceOf(t, snapshot.ID).Status)
}

func TestSnapshotRunMalformedAggregatesFails(t *testing.T) {
	f := newSnapshotFixture(t, config.ModeDeterministic, nil)
	snapshotID := f.seedJob(t, 50)

	// Corrupt the persisted bucket so the bands no longer sum to the total.
	snapshot, err := f.snapshots.Get(context.Background(), snapshotID)
	require.NoError(t, err)
	bucket, err := f.buckets.Get(context.Background(), snapshot.SourceID)
	require.NoError(t, err)
	bucket.Estimates.PriceBands = [4]int{1, 0, 0, 0}
	require.NoError(t, f.buckets.Upsert(context.Background(), bucket))

	got, err := f.svc.Run(context.Background(), snapshotID)
	require.NoError(t, err)

	assert.Equal(t, models.SnapshotStatusFailed, got.Status)
	require.NotNil(t, got.Error)
	assert.Equal(t, models.SnapshotErrorValidation, got.Error.Kind)
}

func TestSnapshotRunExternallyAssisted(t *testing.T) {
	assisted := &reasoner.MockClient{Report: &models.Report{
		Kind:       models.ReportKindSnapshot,
		WindowDays: 90,
		Signals:    &models.ReportSignals{EstimateCount: 50, InvoiceCount: 10, DemandTrend: models.TrendFlat},
		Scores: &models.ReportScores{
			DemandSignal: 70, CashSignal: 20, DecisionLatency: 40, CapacityPressure: 55,
			Confidence: models.ConfidenceMedium,
		},
		Findings:    []string{"a", "b", "c", "d"},
		NextSteps:   []string{"x"},
		Disclaimers: []string{"directional"},
	}}

	f := newSnapshotFixture(t, config.ModeExternallyAssisted, assisted)
	snapshotID := f.seedJob(t, 50)

	snapshot, err := f.svc.Run(context.Background(), snapshotID)
	require.NoError(t, err)

	assert.Equal(t, models.SnapshotStatusComplete, snapshot.Status)
	assert.Equal(t, 1, assisted.Calls)
	assert.Equal(t, 70, snapshot.Report.Scores.DemandSignal)

	rate := f.tracker.FallbackRate()
	assert.Nil(t, rate) // one success recorded, sample still too small
	assert.Equal(t, 1, f.tracker.Count())
}

func TestSnapshotRunFallsBackToDeterministic(t *testing.T) {
	assisted := &reasoner.MockClient{Err: errors.New("reasoning service unavailable")}

	f := newSnapshotFixture(t, config.ModeExternallyAssisted, assisted)
	snapshotID := f.seedJob(t, 50)

	snapshot, err := f.svc.Run(context.Background(), snapshotID)
	require.NoError(t, err)

	// The job still completes; the fallback is invisible in the record.
	assert.Equal(t, models.SnapshotStatusComplete, snapshot.Status)
	assert.Equal(t, 1, assisted.Calls)
	require.NotNil(t, snapshot.Report)
	assert.Equal(t, models.ReportKindSnapshot, snapshot.Report.Kind)
	assert.Equal(t, 1, f.tracker.Count())

	assert.Equal(t, models.SourceStatusSnapshotGenerated, f.sourceOf(t, snapshotID).Status)
}

// ctxSnapshotRepo surfaces context expiry the way pgx does: any call on a
// done context fails with its error instead of reaching storage.
type ctxSnapshotRepo struct {
	*memSnapshotRepo
}

func (r *ctxSnapshotRepo) Get(ctx context.Context, id uuid.UUID) (*models.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.memSnapshotRepo.Get(ctx, id)
}

func (r *ctxSnapshotRepo) ClaimRun(ctx context.Context, id uuid.UUID) (bool, models.SnapshotStatus, error) {
	if err := ctx.Err(); err != nil {
		return false, "", err
	}
	return r.memSnapshotRepo.ClaimRun(ctx, id)
}

func (r *ctxSnapshotRepo) Complete(ctx context.Context, id uuid.UUID, report *models.Report, confidence models.ConfidenceLevel, completedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.memSnapshotRepo.Complete(ctx, id, report, confidence, completedAt)
}

func (r *ctxSnapshotRepo) Fail(ctx context.Context, id uuid.UUID, snapErr *models.SnapshotError, completedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.memSnapshotRepo.Fail(ctx, id, snapErr, completedAt)
}

// stalledBucketRepo holds every read until the caller's deadline expires.
type stalledBucketRepo struct {
	*memBucketRepo
}

func (r *stalledBucketRepo) Get(ctx context.Context, sourceID uuid.UUID) (*models.Bucket, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestSnapshotRunTimeoutStillFailsJob(t *testing.T) {
	f := newSnapshotFixture(t, config.ModeDeterministic, nil)
	snapshotID := f.seedJob(t, 50)

	guarded := &ctxSnapshotRepo{memSnapshotRepo: f.snapshots}
	stalled := &stalledBucketRepo{memBucketRepo: f.buckets}
	svc := NewSnapshotService(guarded, f.sources, stalled, nil, f.tracker, f.cfg, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	got, err := svc.Run(ctx, snapshotID)
	require.NoError(t, err)

	// The deadline killed the bucket read, not the failure capture: the
	// job must land in failed with the timeout recorded, never stay
	// running.
	assert.Equal(t, models.SnapshotStatusFailed, got.Status)
	require.NotNil(t, got.Error)
	assert.Equal(t, models.SnapshotErrorTimeout, got.Error.Kind)
	require.NotNil(t, got.CompletedAt)

	second, err := svc.Run(context.Background(), snapshotID)
	require.NoError(t, err)
	assert.Equal(t, models.SnapshotStatusFailed, second.Status)
	assert.Equal(t, got.Error, second.Error)
}

// flakyGetSnapshotRepo fails a fixed number of reads, claims untouched.
type flakyGetSnapshotRepo struct {
	*memSnapshotRepo
	failures int
}

func (r *flakyGetSnapshotRepo) Get(ctx context.Context, id uuid.UUID) (*models.Snapshot, error) {
	if r.failures > 0 {
		r.failures--
		return nil, errors.New("connection reset by peer")
	}
	return r.memSnapshotRepo.Get(ctx, id)
}

func TestSnapshotRunReadFailureAfterClaimFailsJob(t *testing.T) {
	f := newSnapshotFixture(t, config.ModeDeterministic, nil)
	snapshotID := f.seedJob(t, 50)

	flaky := &flakyGetSnapshotRepo{memSnapshotRepo: f.snapshots, failures: 1}
	svc := NewSnapshotService(flaky, f.sources, f.buckets, nil, f.tracker, f.cfg, zap.NewNop())

	got, err := svc.Run(context.Background(), snapshotID)
	require.NoError(t, err)

	// A read error after a won claim may not abandon the record in
	// running; it fails like any other mid-run error.
	assert.Equal(t, models.SnapshotStatusFailed, got.Status)
	require.NotNil(t, got.Error)
	assert.Equal(t, models.SnapshotErrorPersistence, got.Error.Kind)
}

func TestSnapshotCompletedWithinReasonableTime(t *testing.T) {
	f := newSnapshotFixture(t, config.ModeDeterministic, nil)
	snapshotID := f.seedJob(t, 50)

	before := time.Now()
	snapshot, err := f.svc.Run(context.Background(), snapshotID)
	require.NoError(t, err)
	require.NotNil(t, snapshot.CompletedAt)
	assert.WithinDuration(t, before, *snapshot.CompletedAt, 5*time.Second)
}
