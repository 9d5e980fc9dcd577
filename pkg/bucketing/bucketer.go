package bucketing

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/joblens-inc/joblens-engine/pkg/models"
	"github.com/joblens-inc/joblens-engine/pkg/repositories"
)

// Bucketer folds a source's normalized rows into one fixed-shape bucket.
// Running it twice over the same rows produces the same bucket; the upsert
// replaces the prior one wholesale.
type Bucketer interface {
	// Run rebuilds and persists the bucket for a source.
	Run(ctx context.Context, sourceID uuid.UUID) (*models.Bucket, error)
}

type bucketer struct {
	activities repositories.ActivityRepository
	buckets    repositories.BucketRepository
	logger     *zap.Logger
}

// New creates a bucketer backed by the given repositories.
func New(activities repositories.ActivityRepository, buckets repositories.BucketRepository, logger *zap.Logger) Bucketer {
	return &bucketer{
		activities: activities,
		buckets:    buckets,
		logger:     logger,
	}
}

func (b *bucketer) Run(ctx context.Context, sourceID uuid.UUID) (*models.Bucket, error) {
	estimates, err := b.activities.ListEstimates(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load estimates: %w", err)
	}
	invoices, err := b.activities.ListInvoices(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load invoices: %w", err)
	}

	bucket := &models.Bucket{
		SourceID:  sourceID,
		Estimates: buildEstimateBucket(estimates),
		Invoices:  buildInvoiceBucket(invoices, estimates),
	}

	if err := b.buckets.Upsert(ctx, bucket); err != nil {
		return nil, fmt.Errorf("failed to persist bucket: %w", err)
	}

	b.logger.Info("bucketed source",
		zap.String("source_id", sourceID.String()),
		zap.Int("estimates", bucket.Estimates.Total),
		zap.Int("invoices", bucket.Invoices.Total))
	return bucket, nil
}

func buildEstimateBucket(rows []*models.EstimateRow) models.EstimateBucket {
	eb := models.EstimateBucket{
		Total: len(rows),
	}

	weekly := map[string]int{}
	typeCounts := map[string]int{}
	typeOrder := []string{}

	for _, row := range rows {
		if models.MeaningfulEstimateStatuses[row.Status] {
			eb.Meaningful++
		}
		eb.PriceBands[priceBand(row.Amount)]++

		if row.ClosedAt != nil {
			eb.LatencySampled++
			eb.LatencyBands[latencyBand(row.ClosedAt.Sub(row.CreatedAt))]++
		}

		weekly[isoWeek(row.CreatedAt)]++

		if _, seen := typeCounts[row.JobType]; !seen {
			typeOrder = append(typeOrder, row.JobType)
		}
		typeCounts[row.JobType]++
	}

	eb.WeeklyVolume = sparseWeeks(weekly)
	eb.JobTypes = rankedTypes(typeCounts, typeOrder)
	return eb
}

func buildInvoiceBucket(rows []*models.InvoiceRow, estimates []*models.EstimateRow) models.InvoiceBucket {
	ib := models.InvoiceBucket{
		Total: len(rows),
	}

	estimateCreated := make(map[string]time.Time, len(estimates))
	for _, e := range estimates {
		estimateCreated[e.NaturalID] = e.CreatedAt
	}

	statusCounts := map[models.InvoiceStatus]int{}
	for _, row := range rows {
		ib.PriceBands[priceBand(row.Amount)]++
		statusCounts[row.Status]++

		if row.EstimateID == "" {
			continue
		}
		created, ok := estimateCreated[row.EstimateID]
		if !ok || row.CreatedAt.Before(created) {
			continue
		}
		ib.LinkedToEstimate++
		ib.TimeToInvoiceBands[timeToInvoiceBand(row.CreatedAt.Sub(created))]++
	}

	// Closed status set, emitted in a fixed order so the JSON shape never
	// depends on map iteration.
	for _, status := range models.InvoiceStatusOrder {
		ib.StatusCounts = append(ib.StatusCounts, models.StatusCount{
			Status: status,
			Count:  statusCounts[status],
		})
	}
	return ib
}

// priceBand maps an amount onto <500, 500-1500, 1500-5000, 5000+.
func priceBand(amount float64) int {
	switch {
	case amount < 500:
		return 0
	case amount < 1500:
		return 1
	case amount < 5000:
		return 2
	default:
		return 3
	}
}

// latencyBand maps creation-to-closure time onto 0-2d, 3-7d, 8-21d, 22+d.
func latencyBand(d time.Duration) int {
	days := int(d.Hours() / 24)
	switch {
	case days <= 2:
		return 0
	case days <= 7:
		return 1
	case days <= 21:
		return 2
	default:
		return 3
	}
}

// timeToInvoiceBand maps estimate-to-invoice time onto 0-7d, 8-14d, 15-30d, 31+d.
func timeToInvoiceBand(d time.Duration) int {
	days := int(d.Hours() / 24)
	switch {
	case days <= 7:
		return 0
	case days <= 14:
		return 1
	case days <= 30:
		return 2
	default:
		return 3
	}
}

// isoWeek renders a timestamp as its ISO 8601 week key, e.g. "2026-W35".
func isoWeek(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// sparseWeeks flattens the weekly map into an ascending series. Empty weeks
// never appear; the keys sort lexicographically because the week number is
// zero-padded.
func sparseWeeks(weekly map[string]int) []models.WeekCount {
	keys := make([]string, 0, len(weekly))
	for k := range weekly {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]models.WeekCount, 0, len(keys))
	for _, k := range keys {
		out = append(out, models.WeekCount{Week: k, Count: weekly[k]})
	}
	return out
}

// rankedTypes orders job types by descending count, breaking ties by first
// appearance in the source rows.
func rankedTypes(counts map[string]int, firstSeen []string) []models.TypeCount {
	out := make([]models.TypeCount, 0, len(firstSeen))
	for _, t := range firstSeen {
		out = append(out, models.TypeCount{Type: t, Count: counts[t]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	return out
}
