// Package normalize enforces the ingestion data-safety contract: time
// window, record caps, field diet and status canonicalization. Rows that
// fail any rule are counted and dropped, never partially kept.
package normalize

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/joblens-inc/joblens-engine/pkg/config"
	"github.com/joblens-inc/joblens-engine/pkg/repositories"
	"github.com/joblens-inc/joblens-engine/pkg/retry"
)

// Result reports what one normalization call did. Kept+Rejected always
// equals the input length. Meaningful is populated by the estimate
// normalizer only: the subset of kept rows whose status feeds the
// minimum-data gate.
type Result struct {
	Kept       int `json:"kept"`
	Rejected   int `json:"rejected"`
	Meaningful int `json:"meaningful,omitempty"`
}

// Normalizer runs the per-entity safety filters and persists accepted
// rows in one batch. A failed batch write fails the whole call.
type Normalizer struct {
	repo   repositories.ActivityRepository
	cfg    config.IngestConfig
	logger *zap.Logger

	// now is injectable so window tests do not race the clock.
	now func() time.Time
}

// New creates a normalizer with the given safety configuration.
func New(repo repositories.ActivityRepository, cfg config.IngestConfig, logger *zap.Logger) *Normalizer {
	return &Normalizer{
		repo:   repo,
		cfg:    cfg,
		logger: logger.Named("normalize"),
		now:    time.Now,
	}
}

// windowTime parses a raw timestamp and checks it against the retention
// window. Returns false for unparsable, too-old or future timestamps.
func (n *Normalizer) windowTime(raw string) (time.Time, bool) {
	ts, ok := parseTimestamp(raw)
	if !ok {
		return time.Time{}, false
	}
	now := n.now()
	oldest := now.AddDate(0, 0, -n.cfg.WindowDays)
	if ts.Before(oldest) || ts.After(now) {
		return time.Time{}, false
	}
	return ts, true
}

// parseTimestamp accepts RFC 3339 or bare dates, the two shapes the
// connector adapters emit.
func parseTimestamp(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// persist runs a batch write with the standard persistence retry. Any
// remaining error aborts the normalization call.
func (n *Normalizer) persist(ctx context.Context, sourceID uuid.UUID, entity string, kept int, write func() error) error {
	if err := retry.DoIfRetryable(ctx, nil, write); err != nil {
		n.logger.Error("batch persist failed",
			zap.String("entity", entity),
			zap.String("source_id", sourceID.String()),
			zap.Int("rows", kept),
			zap.Error(err))
		return err
	}
	return nil
}
