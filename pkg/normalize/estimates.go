package normalize

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/joblens-inc/joblens-engine/pkg/models"
	"github.com/joblens-inc/joblens-engine/pkg/sanitize"
)

// Estimates normalizes raw estimate rows for a source. Beyond the shared
// rules it computes the meaningful count: kept rows whose canonical status
// is sent, accepted or converted.
func (n *Normalizer) Estimates(ctx context.Context, sourceID uuid.UUID, rows []models.PayloadRow) (*Result, error) {
	result := &Result{}
	kept := make([]*models.EstimateRow, 0, min(len(rows), n.cfg.MaxRecords))

	for _, raw := range rows {
		if len(kept) >= n.cfg.MaxRecords {
			result.Rejected++
			continue
		}

		ts, ok := n.windowTime(raw.CreatedAt)
		if !ok {
			result.Rejected++
			continue
		}
		amount, err := sanitize.Amount(raw.Amount)
		if err != nil {
			result.Rejected++
			continue
		}

		status := models.EstimateStatus(estimateAliases.lookup(sanitize.Status(raw.Status)))

		row := &models.EstimateRow{
			NaturalID:    raw.ID,
			SourceID:     sourceID,
			CreatedAt:    ts,
			Amount:       amount,
			Status:       status,
			JobType:      sanitize.JobType(raw.JobType),
			City:         sanitize.City(raw.City),
			PostalPrefix: sanitize.PostalPrefix(raw.PostalCode),
		}
		if closed, ok := parseTimestamp(raw.ClosedAt); ok && !closed.Before(ts) {
			row.ClosedAt = &closed
		}

		kept = append(kept, row)
		result.Kept++
		if models.MeaningfulEstimateStatuses[status] {
			result.Meaningful++
		}
	}

	if err := n.persist(ctx, sourceID, "estimate", result.Kept, func() error {
		return n.repo.InsertEstimates(ctx, kept)
	}); err != nil {
		return nil, err
	}

	n.logger.Info("normalized estimates",
		zap.String("source_id", sourceID.String()),
		zap.Int("kept", result.Kept),
		zap.Int("rejected", result.Rejected),
		zap.Int("meaningful", result.Meaningful))
	return result, nil
}
