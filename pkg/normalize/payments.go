package normalize

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/joblens-inc/joblens-engine/pkg/models"
	"github.com/joblens-inc/joblens-engine/pkg/sanitize"
)

// Payments normalizes raw payment rows for a source.
func (n *Normalizer) Payments(ctx context.Context, sourceID uuid.UUID, rows []models.PayloadRow) (*Result, error) {
	result := &Result{}
	kept := make([]*models.PaymentRow, 0, min(len(rows), n.cfg.MaxRecords))

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

		kept = append(kept, &models.PaymentRow{
			NaturalID: raw.ID,
			SourceID:  sourceID,
			CreatedAt: ts,
			Amount:    amount,
			Status:    models.PaymentStatus(paymentAliases.lookup(sanitize.Status(raw.Status))),
			InvoiceID: raw.InvoiceID,
		})
		result.Kept++
	}

	if err := n.persist(ctx, sourceID, "payment", result.Kept, func() error {
		return n.repo.InsertPayments(ctx, kept)
	}); err != nil {
		return nil, err
	}

	n.logger.Info("normalized payments",
		zap.String("source_id", sourceID.String()),
		zap.Int("kept", result.Kept),
		zap.Int("rejected", result.Rejected))
	return result, nil
}
