package normalize

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/joblens-inc/joblens-engine/pkg/models"
	"github.com/joblens-inc/joblens-engine/pkg/sanitize"
)

// Jobs normalizes raw job rows for a source. Jobs carry no amount; only
// volume, status and job type survive.
func (n *Normalizer) Jobs(ctx context.Context, sourceID uuid.UUID, rows []models.PayloadRow) (*Result, error) {
	result := &Result{}
	kept := make([]*models.JobRow, 0, min(len(rows), n.cfg.MaxRecords))

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

		kept = append(kept, &models.JobRow{
			NaturalID: raw.ID,
			SourceID:  sourceID,
			CreatedAt: ts,
			Status:    models.JobStatus(jobAliases.lookup(sanitize.Status(raw.Status))),
			JobType:   sanitize.JobType(raw.JobType),
		})
		result.Kept++
	}

	if err := n.persist(ctx, sourceID, "job", result.Kept, func() error {
		return n.repo.InsertJobs(ctx, kept)
	}); err != nil {
		return nil, err
	}

	n.logger.Info("normalized jobs",
		zap.String("source_id", sourceID.String()),
		zap.Int("kept", result.Kept),
		zap.Int("rejected", result.Rejected))
	return result, nil
}
