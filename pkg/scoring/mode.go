package scoring

import (
	"github.com/joblens-inc/joblens-engine/pkg/config"
)

// DecideMode resolves the configured scoring mode to one of the two
// concrete paths. Auto is a conservative gate: the externally assisted
// path needs a configured reasoner, a telemetry sample of at least
// MinTrackedEvents, and a computable fallback rate at or under
// MaxFallbackRate. Anything ambiguous resolves to deterministic.
func DecideMode(cfg *config.Config, tracker *Tracker) config.ScoringMode {
	switch cfg.Scoring.Mode {
	case config.ModeDeterministic:
		return config.ModeDeterministic
	case config.ModeExternallyAssisted:
		return config.ModeExternallyAssisted
	}

	if !cfg.Reasoner.IsConfigured() {
		return config.ModeDeterministic
	}
	if tracker.Count() < cfg.Scoring.MinTrackedEvents {
		return config.ModeDeterministic
	}
	rate := tracker.FallbackRate()
	if rate == nil || *rate > cfg.Scoring.MaxFallbackRate {
		return config.ModeDeterministic
	}
	return config.ModeExternallyAssisted
}
