// Package services wires the ingestion, bucketing and snapshot pipeline
// on top of the repositories.
package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/joblens-inc/joblens-engine/pkg/bucketing"
	"github.com/joblens-inc/joblens-engine/pkg/models"
	"github.com/joblens-inc/joblens-engine/pkg/normalize"
	"github.com/joblens-inc/joblens-engine/pkg/repositories"
)

// IngestResult summarizes one connector payload run.
type IngestResult struct {
	SourceID   uuid.UUID                    `json:"source_id"`
	SnapshotID uuid.UUID                    `json:"snapshot_id"`
	Entities   map[string]normalize.Result  `json:"entities"`
	Meaningful int                          `json:"meaningful_estimates"`
}

// IngestService runs the full pipeline for one canonical connector
// payload: normalize every entity, bucket the source, and queue a
// snapshot job.
type IngestService interface {
	Ingest(ctx context.Context, installationID uuid.UUID, payload *models.ConnectorPayload) (*IngestResult, error)
}

type ingestService struct {
	sources    repositories.SourceRepository
	snapshots  repositories.SnapshotRepository
	normalizer *normalize.Normalizer
	bucketer   bucketing.Bucketer
	logger     *zap.Logger
}

// NewIngestService creates the ingest pipeline service.
func NewIngestService(
	sources repositories.SourceRepository,
	snapshots repositories.SnapshotRepository,
	normalizer *normalize.Normalizer,
	bucketer bucketing.Bucketer,
	logger *zap.Logger,
) IngestService {
	return &ingestService{
		sources:    sources,
		snapshots:  snapshots,
		normalizer: normalizer,
		bucketer:   bucketer,
		logger:     logger.Named("ingest"),
	}
}

func (s *ingestService) Ingest(ctx context.Context, installationID uuid.UUID, payload *models.ConnectorPayload) (*IngestResult, error) {
	source := &models.Source{
		ID:             uuid.New(),
		InstallationID: installationID,
		Kind:           payload.Kind,
		Status:         models.SourceStatusPending,
		AutoCreated:    true,
	}
	if err := s.sources.Create(ctx, source); err != nil {
		return nil, fmt.Errorf("failed to create source: %w", err)
	}

	result, err := s.normalizeAll(ctx, source.ID, payload)
	if err != nil {
		// An auto-created source with a half-written import is worse than
		// no source; delete it and let the caller retry from scratch.
		if delErr := s.sources.Delete(ctx, source.ID); delErr != nil {
			s.logger.Error("failed to delete source after ingest failure",
				zap.String("source_id", source.ID.String()),
				zap.Error(delErr))
		}
		return nil, err
	}
	result.SourceID = source.ID

	if err := s.sources.AdvanceStatus(ctx, source.ID, models.SourceStatusPending, models.SourceStatusIngested); err != nil {
		return nil, fmt.Errorf("failed to mark source ingested: %w", err)
	}

	if _, err := s.bucketer.Run(ctx, source.ID); err != nil {
		// Normalized rows are durable; the caller can re-trigger bucketing.
		return nil, err
	}
	if err := s.sources.AdvanceStatus(ctx, source.ID, models.SourceStatusIngested, models.SourceStatusBucketed); err != nil {
		return nil, fmt.Errorf("failed to mark source bucketed: %w", err)
	}

	snapshot := &models.Snapshot{
		ID:       uuid.New(),
		SourceID: source.ID,
		Status:   models.SnapshotStatusCreated,
	}
	if err := s.snapshots.Create(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("failed to create snapshot: %w", err)
	}
	if err := s.snapshots.MarkQueued(ctx, snapshot.ID); err != nil {
		return nil, err
	}
	result.SnapshotID = snapshot.ID

	s.logger.Info("ingest pipeline completed",
		zap.String("installation_id", installationID.String()),
		zap.String("source_id", source.ID.String()),
		zap.String("snapshot_id", snapshot.ID.String()),
		zap.Int("meaningful_estimates", result.Meaningful))
	return result, nil
}

func (s *ingestService) normalizeAll(ctx context.Context, sourceID uuid.UUID, payload *models.ConnectorPayload) (*IngestResult, error) {
	result := &IngestResult{Entities: map[string]normalize.Result{}}

	clients, err := s.normalizer.Clients(ctx, sourceID, payload.Clients)
	if err != nil {
		return nil, fmt.Errorf("client normalization failed: %w", err)
	}
	result.Entities["clients"] = *clients

	estimates, err := s.normalizer.Estimates(ctx, sourceID, payload.Estimates)
	if err != nil {
		return nil, fmt.Errorf("estimate normalization failed: %w", err)
	}
	result.Entities["estimates"] = *estimates
	result.Meaningful = estimates.Meaningful

	invoices, err := s.normalizer.Invoices(ctx, sourceID, payload.Invoices)
	if err != nil {
		return nil, fmt.Errorf("invoice normalization failed: %w", err)
	}
	result.Entities["invoices"] = *invoices

	jobs, err := s.normalizer.Jobs(ctx, sourceID, payload.Jobs)
	if err != nil {
		return nil, fmt.Errorf("job normalization failed: %w", err)
	}
	result.Entities["jobs"] = *jobs

	payments, err := s.normalizer.Payments(ctx, sourceID, payload.Payments)
	if err != nil {
		return nil, fmt.Errorf("payment normalization failed: %w", err)
	}
	result.Entities["payments"] = *payments

	return result, nil
}
