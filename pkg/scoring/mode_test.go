package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/joblens-inc/joblens-engine/pkg/config"
)

func modeConfig(mode config.ScoringMode, reasonerUp bool) *config.Config {
	cfg := &config.Config{
		Scoring: config.ScoringConfig{
			Mode:             mode,
			MinEstimates:     15,
			MinTrackedEvents: 10,
			MaxFallbackRate:  0.20,
		},
	}
	if reasonerUp {
		cfg.Reasoner = config.ReasonerConfig{
			Provider: config.ReasonerOpenAI,
			BaseURL:  "https://api.openai.com/v1",
			Model:    "gpt-4o-mini",
		}
	}
	return cfg
}

func trackerWith(fallbacks, successes int) *Tracker {
	tr := NewTracker()
	for i := 0; i < fallbacks; i++ {
		tr.Record(true)
	}
	for i := 0; i < successes; i++ {
		tr.Record(false)
	}
	return tr
}

func TestDecideModeForced(t *testing.T) {
	tr := trackerWith(50, 0) // terrible fallback rate, ignored when forced
	assert.Equal(t, config.ModeDeterministic,
		DecideMode(modeConfig(config.ModeDeterministic, true), tr))
	assert.Equal(t, config.ModeExternallyAssisted,
		DecideMode(modeConfig(config.ModeExternallyAssisted, true), tr))
}

func TestDecideModeAuto(t *testing.T) {
	tests := []struct {
		name       string
		reasonerUp bool
		tracker    *Tracker
		want       config.ScoringMode
	}{
		{"no reasoner configured", false, trackerWith(0, 50), config.ModeDeterministic},
		{"too few tracked events", true, trackerWith(0, 3), config.ModeDeterministic},
		{"fallback rate too high", true, trackerWith(15, 35), config.ModeDeterministic},
		{"healthy sample", true, trackerWith(2, 48), config.ModeExternallyAssisted},
		{"rate exactly at ceiling", true, trackerWith(10, 40), config.ModeExternallyAssisted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecideMode(modeConfig(config.ModeAuto, tt.reasonerUp), tt.tracker)
			assert.Equal(t, tt.want, got)
		})
	}
}
