// Package reasoner calls an external reasoning service to turn aggregates
// into a scored snapshot report. The service is a black box: aggregates in,
// a report conforming to the locked schema out, or an error. Retry and
// fallback policy belong to the caller.
package reasoner

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/joblens-inc/joblens-engine/pkg/config"
	"github.com/joblens-inc/joblens-engine/pkg/models"
)

// Client produces a snapshot report from validated aggregates.
type Client interface {
	// GenerateReport makes one reasoning call. The returned report has
	// already passed models.ValidateReport; any schema violation in the
	// raw response surfaces as an error instead.
	GenerateReport(ctx context.Context, agg *models.Aggregates) (*models.Report, error)
}

// New builds the client for the configured provider. Returns nil without
// error when no reasoner is configured - the caller treats a nil client as
// "deterministic only".
func New(cfg *config.ReasonerConfig, logger *zap.Logger) (Client, error) {
	if !cfg.IsConfigured() {
		return nil, nil
	}

	switch cfg.Provider {
	case config.ReasonerOpenAI:
		return newOpenAIClient(cfg, logger)
	case config.ReasonerAnthropic:
		return newAnthropicClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown reasoner provider %q", cfg.Provider)
	}
}
