package models

import (
	"time"

	"github.com/google/uuid"
)

// Connection is one installation's link to one connector provider.
// Token columns hold ciphertext only; plaintext exists in memory for the
// duration of a call and nowhere else.
type Connection struct {
	ID             uuid.UUID `json:"id"`
	InstallationID uuid.UUID `json:"installation_id"`
	Provider       string    `json:"provider"`

	AccessTokenCiphertext  string    `json:"-"`
	RefreshTokenCiphertext string    `json:"-"`
	ExpiresAt              time.Time `json:"expires_at"`

	// TokenVersion increases by exactly one per successful refresh.
	// Concurrent forced refreshes observe the same version.
	TokenVersion int `json:"token_version"`

	// NeedsReauth blocks token retrieval until the installation completes
	// a new authorization; retrieval fails with ErrReauthRequired.
	NeedsReauth bool `json:"needs_reauth"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ConnectionPhase labels entries in the connection audit trail.
type ConnectionPhase string

const (
	PhaseAuthorized     ConnectionPhase = "authorized"
	PhaseFetchStarted   ConnectionPhase = "fetch_started"
	PhaseFetchCompleted ConnectionPhase = "fetch_completed"
	PhaseFetchFailed    ConnectionPhase = "fetch_failed"
	PhaseTokenRefreshed ConnectionPhase = "token_refreshed"
	PhaseRefreshFailed  ConnectionPhase = "refresh_failed"
	PhaseReauthRequired ConnectionPhase = "reauth_required"
)

// ConnectionEvent is one append-only audit record. Events are never
// mutated or deleted; ordering by CreatedAt defines the latest-status view.
type ConnectionEvent struct {
	ID             uuid.UUID       `json:"id"`
	InstallationID uuid.UUID       `json:"installation_id"`
	Provider       string          `json:"provider"`
	Phase          ConnectionPhase `json:"phase"`
	Details        string          `json:"details,omitempty"` // sanitized before persistence
	CreatedAt      time.Time       `json:"created_at"`
}
