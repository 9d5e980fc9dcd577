package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/joblens-inc/joblens-engine/pkg/apperrors"
	"github.com/joblens-inc/joblens-engine/pkg/database"
	"github.com/joblens-inc/joblens-engine/pkg/models"
)

// ConnectionRepository persists connector credentials (ciphertext only)
// and the append-only connection event trail.
type ConnectionRepository interface {
	// Get returns the connection for (installation, provider), or
	// apperrors.ErrNotFound.
	Get(ctx context.Context, installationID uuid.UUID, provider string) (*models.Connection, error)

	// Upsert inserts or replaces the connection for its
	// (installation, provider) pair.
	Upsert(ctx context.Context, conn *models.Connection) error

	// UpdateTokens stores a fresh ciphertext pair with its new version
	// and clears needs_reauth. The version must be exactly one above the
	// stored version; anything else means a lost update and fails with
	// apperrors.ErrStaleStatus.
	UpdateTokens(ctx context.Context, id uuid.UUID, accessCiphertext, refreshCiphertext string, expiresAt time.Time, version int) error

	// SetNeedsReauth flags or unflags a connection for re-authorization.
	SetNeedsReauth(ctx context.Context, id uuid.UUID, needsReauth bool) error

	// AppendEvent appends one audit record. Events are never updated.
	AppendEvent(ctx context.Context, event *models.ConnectionEvent) error

	// ListEvents returns the newest events first, capped at limit.
	ListEvents(ctx context.Context, installationID uuid.UUID, provider string, limit int) ([]*models.ConnectionEvent, error)
}

type connectionRepository struct {
	db *database.DB
}

// NewConnectionRepository creates a new connection repository.
func NewConnectionRepository(db *database.DB) ConnectionRepository {
	return &connectionRepository{db: db}
}

func (r *connectionRepository) Get(ctx context.Context, installationID uuid.UUID, provider string) (*models.Connection, error) {
	query := `
		SELECT id, installation_id, provider, access_token, refresh_token,
		       expires_at, token_version, needs_reauth, created_at, updated_at
		FROM connections
		WHERE installation_id = $1 AND provider = $2`

	var c models.Connection
	err := r.db.QueryRow(ctx, query, installationID, provider).Scan(
		&c.ID, &c.InstallationID, &c.Provider,
		&c.AccessTokenCiphertext, &c.RefreshTokenCiphertext,
		&c.ExpiresAt, &c.TokenVersion, &c.NeedsReauth, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}
	return &c, nil
}

func (r *connectionRepository) Upsert(ctx context.Context, conn *models.Connection) error {
	query := `
		INSERT INTO connections (id, installation_id, provider, access_token, refresh_token,
		                         expires_at, token_version, needs_reauth, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		ON CONFLICT (installation_id, provider) DO UPDATE
		SET access_token = EXCLUDED.access_token,
		    refresh_token = EXCLUDED.refresh_token,
		    expires_at = EXCLUDED.expires_at,
		    token_version = EXCLUDED.token_version,
		    needs_reauth = EXCLUDED.needs_reauth,
		    updated_at = now()`

	_, err := r.db.Exec(ctx, query,
		conn.ID, conn.InstallationID, conn.Provider,
		conn.AccessTokenCiphertext, conn.RefreshTokenCiphertext,
		conn.ExpiresAt, conn.TokenVersion, conn.NeedsReauth)
	if err != nil {
		return fmt.Errorf("failed to upsert connection: %w", err)
	}
	return nil
}

func (r *connectionRepository) UpdateTokens(ctx context.Context, id uuid.UUID, accessCiphertext, refreshCiphertext string, expiresAt time.Time, version int) error {
	query := `
		UPDATE connections
		SET access_token = $1, refresh_token = $2, expires_at = $3,
		    token_version = $4, needs_reauth = false, updated_at = now()
		WHERE id = $5 AND token_version = $4 - 1`

	tag, err := r.db.Exec(ctx, query, accessCiphertext, refreshCiphertext, expiresAt, version, id)
	if err != nil {
		return fmt.Errorf("failed to update tokens: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrStaleStatus
	}
	return nil
}

func (r *connectionRepository) SetNeedsReauth(ctx context.Context, id uuid.UUID, needsReauth bool) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE connections SET needs_reauth = $1, updated_at = now() WHERE id = $2`,
		needsReauth, id)
	if err != nil {
		return fmt.Errorf("failed to set needs_reauth: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *connectionRepository) AppendEvent(ctx context.Context, event *models.ConnectionEvent) error {
	query := `
		INSERT INTO connection_events (id, installation_id, provider, phase, details, created_at)
		VALUES ($1, $2, $3, $4, $5, now())`

	_, err := r.db.Exec(ctx, query,
		event.ID, event.InstallationID, event.Provider, event.Phase, event.Details)
	if err != nil {
		return fmt.Errorf("failed to append connection event: %w", err)
	}
	return nil
}

func (r *connectionRepository) ListEvents(ctx context.Context, installationID uuid.UUID, provider string, limit int) ([]*models.ConnectionEvent, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT id, installation_id, provider, phase, details, created_at
		FROM connection_events
		WHERE installation_id = $1 AND provider = $2
		ORDER BY created_at DESC
		LIMIT $3`

	rows, err := r.db.Query(ctx, query, installationID, provider, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list connection events: %w", err)
	}
	defer rows.Close()

	var events []*models.ConnectionEvent
	for rows.Next() {
		var e models.ConnectionEvent
		if err := rows.Scan(&e.ID, &e.InstallationID, &e.Provider, &e.Phase, &e.Details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan connection event: %w", err)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating connection events: %w", err)
	}
	return events, nil
}
