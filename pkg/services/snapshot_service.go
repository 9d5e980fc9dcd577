package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/joblens-inc/joblens-engine/pkg/config"
	"github.com/joblens-inc/joblens-engine/pkg/models"
	"github.com/joblens-inc/joblens-engine/pkg/reasoner"
	"github.com/joblens-inc/joblens-engine/pkg/repositories"
	"github.com/joblens-inc/joblens-engine/pkg/scoring"
)

// SnapshotService runs snapshot jobs through their state machine:
// created/queued -> running -> complete or failed. Running a snapshot that
// is already running or terminal is a no-op.
type SnapshotService interface {
	// Run executes one snapshot job attempt and returns the resulting
	// record. Failures are captured into the record, not returned;
	// the error return covers only infrastructure problems reading or
	// claiming the job.
	Run(ctx context.Context, snapshotID uuid.UUID) (*models.Snapshot, error)

	// Get returns one snapshot record.
	Get(ctx context.Context, snapshotID uuid.UUID) (*models.Snapshot, error)
}

type snapshotService struct {
	snapshots repositories.SnapshotRepository
	sources   repositories.SourceRepository
	buckets   repositories.BucketRepository
	reasoner  reasoner.Client // nil when not configured
	tracker   *scoring.Tracker
	cfg       *config.Config
	logger    *zap.Logger
	now       func() time.Time
}

// NewSnapshotService creates the snapshot orchestrator. A nil reasoner
// client pins every run to the deterministic path.
func NewSnapshotService(
	snapshots repositories.SnapshotRepository,
	sources repositories.SourceRepository,
	buckets repositories.BucketRepository,
	reasonerClient reasoner.Client,
	tracker *scoring.Tracker,
	cfg *config.Config,
	logger *zap.Logger,
) SnapshotService {
	return &snapshotService{
		snapshots: snapshots,
		sources:   sources,
		buckets:   buckets,
		reasoner:  reasonerClient,
		tracker:   tracker,
		cfg:       cfg,
		logger:    logger.Named("snapshot"),
		now:       time.Now,
	}
}

func (s *snapshotService) Get(ctx context.Context, snapshotID uuid.UUID) (*models.Snapshot, error) {
	return s.snapshots.Get(ctx, snapshotID)
}

func (s *snapshotService) Run(ctx context.Context, snapshotID uuid.UUID) (*models.Snapshot, error) {
	claimed, current, err := s.snapshots.ClaimRun(ctx, snapshotID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		// Terminal or already running: idempotent no-op either way, the
		// record stays exactly as it is.
		s.logger.Info("snapshot run skipped",
			zap.String("snapshot_id", snapshotID.String()),
			zap.String("status", string(current)))
		return s.snapshots.Get(ctx, snapshotID)
	}

	// The claim is won: this run owns the record until it reaches a
	// terminal status. Terminal writes and the final read run detached
	// from the caller's deadline, otherwise a timed-out run could never
	// persist its own failure and the job would stay running forever.
	persistCtx := context.WithoutCancel(ctx)

	snapshot, err := s.snapshots.Get(persistCtx, snapshotID)
	if err != nil {
		s.fail(persistCtx, snapshotID, &models.SnapshotError{
			Kind:    models.SnapshotErrorPersistence,
			Message: "could not load claimed snapshot",
		})
		return s.snapshots.Get(persistCtx, snapshotID)
	}

	report, runErr := s.produceReport(ctx, snapshot.SourceID)
	if runErr != nil {
		s.fail(persistCtx, snapshotID, runErr)
		return s.snapshots.Get(persistCtx, snapshotID)
	}

	confidence := report.ReportConfidence()
	if err := s.snapshots.Complete(persistCtx, snapshotID, report, confidence, s.now()); err != nil {
		s.fail(persistCtx, snapshotID, &models.SnapshotError{
			Kind:    models.SnapshotErrorPersistence,
			Message: "could not persist completed report",
		})
		return s.snapshots.Get(persistCtx, snapshotID)
	}

	s.advanceSource(persistCtx, snapshot.SourceID, report.Kind)

	s.logger.Info("snapshot completed",
		zap.String("snapshot_id", snapshotID.String()),
		zap.String("kind", string(report.Kind)),
		zap.String("confidence", string(confidence)))
	return s.snapshots.Get(persistCtx, snapshotID)
}

// produceReport builds aggregates and scores them via the selected path.
func (s *snapshotService) produceReport(ctx context.Context, sourceID uuid.UUID) (*models.Report, *models.SnapshotError) {
	bucket, err := s.buckets.Get(ctx, sourceID)
	if err != nil {
		kind := models.SnapshotErrorPersistence
		msg := "could not load aggregates"
		if errors.Is(err, context.DeadlineExceeded) {
			kind = models.SnapshotErrorTimeout
			msg = "aggregate load timed out"
		}
		return nil, &models.SnapshotError{Kind: kind, Message: msg}
	}

	agg := models.BuildAggregates(bucket, s.cfg.Ingest.WindowDays)
	if err := models.ValidateAggregates(agg); err != nil {
		// Malformed aggregates are fatal, never coerced.
		return nil, &models.SnapshotError{
			Kind:    models.SnapshotErrorValidation,
			Message: "aggregates failed validation",
		}
	}

	mode := scoring.DecideMode(s.cfg, s.tracker)
	if mode == config.ModeExternallyAssisted && s.reasoner != nil {
		report, err := s.reasoner.GenerateReport(ctx, agg)
		if err == nil {
			s.tracker.Record(false)
			return report, nil
		}
		// Any reasoning failure - transport, timeout, schema violation -
		// falls back to the deterministic scorer instead of failing the job.
		s.tracker.Record(true)
		s.logger.Warn("externally assisted scoring fell back",
			zap.String("source_id", sourceID.String()),
			zap.Error(err))
	}

	return scoring.Score(agg, s.cfg.Scoring), nil
}

func (s *snapshotService) fail(ctx context.Context, snapshotID uuid.UUID, snapErr *models.SnapshotError) {
	if err := s.snapshots.Fail(ctx, snapshotID, snapErr, s.now()); err != nil {
		s.logger.Error("failed to persist snapshot failure",
			zap.String("snapshot_id", snapshotID.String()),
			zap.Error(err))
		return
	}
	s.logger.Warn("snapshot failed",
		zap.String("snapshot_id", snapshotID.String()),
		zap.String("error_kind", string(snapErr.Kind)),
		zap.String("error_message", snapErr.Message))
}

// advanceSource moves the owning source to its terminal status based on
// the report variant. A source that is not in bucketed status anymore
// (concurrent snapshot on the same source) is left alone.
func (s *snapshotService) advanceSource(ctx context.Context, sourceID uuid.UUID, kind models.ReportKind) {
	target := models.SourceStatusSnapshotGenerated
	if kind == models.ReportKindInsufficientData {
		target = models.SourceStatusInsufficientData
	}
	if err := s.sources.AdvanceStatus(ctx, sourceID, models.SourceStatusBucketed, target); err != nil {
		s.logger.Warn("source status not advanced",
			zap.String("source_id", sourceID.String()),
			zap.String("target", string(target)),
			zap.Error(err))
	}
}
