package normalize

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/joblens-inc/joblens-engine/pkg/models"
	"github.com/joblens-inc/joblens-engine/pkg/sanitize"
)

// Clients normalizes raw client rows for a source. Client rows carry no
// amount and no identity - the field diet reduces them to volume and
// coarse geography.
func (n *Normalizer) Clients(ctx context.Context, sourceID uuid.UUID, rows []models.PayloadRow) (*Result, error) {
	result := &Result{}
	kept := make([]*models.ClientRow, 0, min(len(rows), n.cfg.MaxRecords))

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

		kept = append(kept, &models.ClientRow{
			NaturalID:    raw.ID,
			SourceID:     sourceID,
			CreatedAt:    ts,
			Status:       models.ClientStatus(clientAliases.lookup(sanitize.Status(raw.Status))),
			City:         sanitize.City(raw.City),
			PostalPrefix: sanitize.PostalPrefix(raw.PostalCode),
		})
		result.Kept++
	}

	if err := n.persist(ctx, sourceID, "client", result.Kept, func() error {
		return n.repo.InsertClients(ctx, kept)
	}); err != nil {
		return nil, err
	}

	n.logger.Info("normalized clients",
		zap.String("source_id", sourceID.String()),
		zap.Int("kept", result.Kept),
		zap.Int("rejected", result.Rejected))
	return result, nil
}
