package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Ingest:  IngestConfig{WindowDays: 90, MaxRecords: 500},
		Scoring: ScoringConfig{Mode: ModeAuto, MinEstimates: 15, MinTrackedEvents: 10, MaxFallbackRate: 0.2},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid defaults", mutate: func(c *Config) {}},
		{
			name:    "unknown mode",
			mutate:  func(c *Config) { c.Scoring.Mode = "hybrid" },
			wantErr: "unknown scoring mode",
		},
		{
			name:    "zero window",
			mutate:  func(c *Config) { c.Ingest.WindowDays = 0 },
			wantErr: "window_days",
		},
		{
			name:    "negative cap",
			mutate:  func(c *Config) { c.Ingest.MaxRecords = -1 },
			wantErr: "max_records",
		},
		{
			name:    "fallback rate above one",
			mutate:  func(c *Config) { c.Scoring.MaxFallbackRate = 1.5 },
			wantErr: "max_fallback_rate",
		},
		{
			name:    "assisted mode without reasoner",
			mutate:  func(c *Config) { c.Scoring.Mode = ModeExternallyAssisted },
			wantErr: "no reasoner is configured",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestReasonerIsConfigured(t *testing.T) {
	openai := ReasonerConfig{Provider: ReasonerOpenAI, BaseURL: "https://api.openai.com/v1", Model: "gpt-4o"}
	assert.True(t, openai.IsConfigured())

	openai.BaseURL = ""
	assert.False(t, openai.IsConfigured())

	anthropic := ReasonerConfig{Provider: ReasonerAnthropic, Model: "claude-sonnet-4-20250514", APIKey: "sk-test"}
	assert.True(t, anthropic.IsConfigured())

	anthropic.APIKey = ""
	assert.False(t, anthropic.IsConfigured())
}

func TestConnectionString(t *testing.T) {
	db := DatabaseConfig{Host: "db", Port: 5432, User: "joblens", Password: "pw", Database: "joblens_engine", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=joblens password=pw dbname=joblens_engine sslmode=disable", db.ConnectionString())
}
