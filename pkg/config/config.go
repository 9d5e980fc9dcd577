package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for joblens-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// SessionSecret signs the anonymous installation cookie.
	SessionSecret string `yaml:"-" env:"SESSION_SECRET" env-default:"joblens-dev-session-secret"`

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Ingest holds the data-safety knobs for the ingestion pipeline.
	Ingest IngestConfig `yaml:"ingest"`

	// Scoring holds mode selection and scorer thresholds.
	Scoring ScoringConfig `yaml:"scoring"`

	// Reasoner holds the external reasoning service endpoints.
	Reasoner ReasonerConfig `yaml:"reasoner"`

	// Connectors holds the OAuth endpoints for third-party token refresh.
	Connectors ConnectorsConfig `yaml:"connectors"`

	// Token encryption key for connector credentials.
	// Must be a 32-byte key, base64 encoded. Generate with: openssl rand -base64 32
	// Any other value is treated as a passphrase and hashed to 32 bytes.
	CredentialsKey string `yaml:"-" env:"CREDENTIALS_KEY"` // Secret - not in YAML
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"joblens"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"joblens_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MigrationsPath string `yaml:"migrations_path" env:"PGMIGRATIONS_PATH" env-default:"migrations"`
}

// IngestConfig holds the data-safety contract parameters.
// These are deliberately explicit (not ambient env lookups) so every
// normalizer receives the same window and cap it was constructed with.
type IngestConfig struct {
	// WindowDays is the retention window; rows older than this are rejected.
	WindowDays int `yaml:"window_days" env:"INGEST_WINDOW_DAYS" env-default:"90"`
	// MaxRecords caps accepted rows per source per entity.
	MaxRecords int `yaml:"max_records" env:"INGEST_MAX_RECORDS" env-default:"500"`
}

// ScoringMode selects how snapshot reports are produced.
type ScoringMode string

const (
	ModeDeterministic      ScoringMode = "deterministic"
	ModeExternallyAssisted ScoringMode = "externally_assisted"
	ModeAuto               ScoringMode = "auto"
)

// ScoringConfig holds scorer thresholds and mode selection parameters.
type ScoringConfig struct {
	// Mode is deterministic, externally_assisted or auto.
	Mode ScoringMode `yaml:"mode" env:"SCORING_MODE" env-default:"auto"`
	// MinEstimates is the minimum meaningful-estimate count below which the
	// scorer returns the insufficient_data report variant.
	MinEstimates int `yaml:"min_estimates" env:"SCORING_MIN_ESTIMATES" env-default:"15"`
	// MinTrackedEvents is the minimum telemetry sample before auto mode may
	// choose the externally assisted path.
	MinTrackedEvents int `yaml:"min_tracked_events" env:"SCORING_MIN_TRACKED_EVENTS" env-default:"10"`
	// MaxFallbackRate is the fallback-rate ceiling for auto mode.
	MaxFallbackRate float64 `yaml:"max_fallback_rate" env:"SCORING_MAX_FALLBACK_RATE" env-default:"0.20"`
}

// ReasonerProvider identifies which reasoning backend to call.
type ReasonerProvider string

const (
	ReasonerOpenAI    ReasonerProvider = "openai"
	ReasonerAnthropic ReasonerProvider = "anthropic"
)

// ReasonerConfig holds the external reasoning service configuration.
type ReasonerConfig struct {
	Provider ReasonerProvider `yaml:"provider" env:"REASONER_PROVIDER" env-default:"openai"`
	// BaseURL is the endpoint for OpenAI-compatible providers,
	// e.g. "https://api.openai.com/v1" or a local vLLM endpoint.
	BaseURL string `yaml:"base_url" env:"REASONER_BASE_URL" env-default:""`
	Model   string `yaml:"model" env:"REASONER_MODEL" env-default:""`
	APIKey  string `yaml:"-" env:"REASONER_API_KEY"` // Secret - not in YAML
	// TimeoutSeconds bounds one reasoning call. No retries happen at this
	// layer; a timeout surfaces as a fallback to the deterministic scorer.
	TimeoutSeconds int `yaml:"timeout_seconds" env:"REASONER_TIMEOUT_SECONDS" env-default:"30"`
}

// ConnectorsConfig holds the OAuth client used to refresh connector tokens.
// One client identity covers all providers; per-provider token endpoints
// come from the yaml map.
type ConnectorsConfig struct {
	ClientID     string `yaml:"client_id" env:"CONNECTOR_CLIENT_ID" env-default:""`
	ClientSecret string `yaml:"-" env:"CONNECTOR_CLIENT_SECRET"` // Secret - not in YAML
	// TokenURLs maps provider name to its OAuth token endpoint.
	TokenURLs map[string]string `yaml:"token_urls"`
}

// IsConfigured returns true if the external reasoning service can be called.
func (c *ReasonerConfig) IsConfigured() bool {
	if c.Provider == ReasonerAnthropic {
		return c.Model != "" && c.APIKey != ""
	}
	return c.BaseURL != "" && c.Model != ""
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Scoring.Mode {
	case ModeDeterministic, ModeExternallyAssisted, ModeAuto:
	default:
		return fmt.Errorf("unknown scoring mode %q", c.Scoring.Mode)
	}
	if c.Ingest.WindowDays <= 0 {
		return fmt.Errorf("ingest window_days must be positive, got %d", c.Ingest.WindowDays)
	}
	if c.Ingest.MaxRecords <= 0 {
		return fmt.Errorf("ingest max_records must be positive, got %d", c.Ingest.MaxRecords)
	}
	if c.Scoring.MinEstimates < 1 {
		return fmt.Errorf("scoring min_estimates must be at least 1, got %d", c.Scoring.MinEstimates)
	}
	if c.Scoring.MaxFallbackRate < 0 || c.Scoring.MaxFallbackRate > 1 {
		return fmt.Errorf("scoring max_fallback_rate must be in [0,1], got %f", c.Scoring.MaxFallbackRate)
	}
	if c.Scoring.Mode == ModeExternallyAssisted && !c.Reasoner.IsConfigured() {
		return fmt.Errorf("scoring mode is externally_assisted but no reasoner is configured")
	}
	return nil
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
