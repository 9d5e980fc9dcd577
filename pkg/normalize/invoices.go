package normalize

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/joblens-inc/joblens-engine/pkg/models"
	"github.com/joblens-inc/joblens-engine/pkg/sanitize"
)

// Invoices normalizes raw invoice rows for a source. The estimate link is
// kept as an opaque natural id so the bucketer can compute time-to-invoice
// without ever joining back to raw connector data.
func (n *Normalizer) Invoices(ctx context.Context, sourceID uuid.UUID, rows []models.PayloadRow) (*Result, error) {
	result := &Result{}
	kept := make([]*models.InvoiceRow, 0, min(len(rows), n.cfg.MaxRecords))

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

		kept = append(kept, &models.InvoiceRow{
			NaturalID:  raw.ID,
			SourceID:   sourceID,
			CreatedAt:  ts,
			Amount:     amount,
			Status:     models.InvoiceStatus(invoiceAliases.lookup(sanitize.Status(raw.Status))),
			EstimateID: raw.EstimateID,
		})
		result.Kept++
	}

	if err := n.persist(ctx, sourceID, "invoice", result.Kept, func() error {
		return n.repo.InsertInvoices(ctx, kept)
	}); err != nil {
		return nil, err
	}

	n.logger.Info("normalized invoices",
		zap.String("source_id", sourceID.String()),
		zap.Int("kept", result.Kept),
		zap.Int("rejected", result.Rejected))
	return result, nil
}
