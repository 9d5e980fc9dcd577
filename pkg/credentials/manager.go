package credentials

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/joblens-inc/joblens-engine/pkg/apperrors"
	"github.com/joblens-inc/joblens-engine/pkg/logging"
	"github.com/joblens-inc/joblens-engine/pkg/models"
	"github.com/joblens-inc/joblens-engine/pkg/repositories"
)

// expirySkew refreshes tokens slightly before their stated expiry so a
// token never dies mid-fetch.
const expirySkew = 2 * time.Minute

// defaultTokenTTL applies when the provider response carries no expiry and
// the access token is not a JWT with an exp claim.
const defaultTokenTTL = time.Hour

// TokenPair is the plaintext result of one upstream refresh call.
type TokenPair struct {
	AccessToken  string
	RefreshToken string    // empty keeps the previous refresh token
	ExpiresAt    time.Time // zero means "derive from the token or default"
}

// Refresher performs the upstream token-refresh call for one provider.
// OAuth code exchange lives elsewhere; this only trades a refresh token
// for a new pair.
type Refresher interface {
	Refresh(ctx context.Context, provider, refreshToken string) (*TokenPair, error)
}

// Grant is what callers receive: a live plaintext access token plus the
// generation it belongs to.
type Grant struct {
	AccessToken  string
	TokenVersion int
	ExpiresAt    time.Time
}

// Manager serves live access tokens for (installation, provider) pairs,
// refreshing through a per-key single flight so concurrent forced
// refreshes collapse into one upstream call. All concurrent waiters see
// the same resulting token version; if the shared refresh fails, they all
// see that failure.
type Manager struct {
	repo      repositories.ConnectionRepository
	cipher    *TokenCipher
	refresher Refresher
	group     singleflight.Group
	logger    *zap.Logger
	now       func() time.Time
}

// NewManager creates a credential manager.
func NewManager(repo repositories.ConnectionRepository, cipher *TokenCipher, refresher Refresher, logger *zap.Logger) *Manager {
	return &Manager{
		repo:      repo,
		cipher:    cipher,
		refresher: refresher,
		logger:    logger.Named("credentials"),
		now:       time.Now,
	}
}

// SaveAuthorized stores a freshly authorized token pair, replacing any
// prior connection for the pair and starting a new version sequence.
func (m *Manager) SaveAuthorized(ctx context.Context, installationID uuid.UUID, provider string, pair *TokenPair) (*models.Connection, error) {
	accessCT, err := m.cipher.Encrypt(pair.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt access token: %w", err)
	}
	refreshCT, err := m.cipher.Encrypt(pair.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt refresh token: %w", err)
	}

	conn := &models.Connection{
		ID:                     uuid.New(),
		InstallationID:         installationID,
		Provider:               provider,
		AccessTokenCiphertext:  accessCT,
		RefreshTokenCiphertext: refreshCT,
		ExpiresAt:              m.resolveExpiry(pair),
		TokenVersion:           1,
		NeedsReauth:            false,
	}
	if err := m.repo.Upsert(ctx, conn); err != nil {
		return nil, fmt.Errorf("failed to store connection: %w", err)
	}

	m.appendEvent(ctx, installationID, provider, models.PhaseAuthorized, "")
	return conn, nil
}

// AccessToken returns a live plaintext access token for the pair,
// refreshing first if the stored one has expired. A connection flagged
// needs_reauth fails with apperrors.ErrReauthRequired instead of handing
// out a stale token.
func (m *Manager) AccessToken(ctx context.Context, installationID uuid.UUID, provider string) (*Grant, error) {
	conn, err := m.repo.Get(ctx, installationID, provider)
	if err != nil {
		return nil, err
	}
	if conn.NeedsReauth {
		return nil, apperrors.ErrReauthRequired
	}

	if m.now().Add(expirySkew).After(conn.ExpiresAt) {
		return m.ForceRefresh(ctx, installationID, provider)
	}

	access, err := m.cipher.Decrypt(conn.AccessTokenCiphertext)
	if err != nil {
		return nil, err
	}
	return &Grant{
		AccessToken:  access,
		TokenVersion: conn.TokenVersion,
		ExpiresAt:    conn.ExpiresAt,
	}, nil
}

// ForceRefresh performs one upstream refresh for the pair. Concurrent
// calls for the same key share a single flight: exactly one upstream call
// happens and every caller receives the same new token version. A forced
// refresh started after the previous one finished is a fresh call.
func (m *Manager) ForceRefresh(ctx context.Context, installationID uuid.UUID, provider string) (*Grant, error) {
	key := installationID.String() + "|" + provider

	result, err, _ := m.group.Do(key, func() (any, error) {
		return m.refresh(ctx, installationID, provider)
	})
	if err != nil {
		return nil, err
	}
	return result.(*Grant), nil
}

func (m *Manager) refresh(ctx context.Context, installationID uuid.UUID, provider string) (*Grant, error) {
	conn, err := m.repo.Get(ctx, installationID, provider)
	if err != nil {
		return nil, err
	}
	if conn.NeedsReauth {
		return nil, apperrors.ErrReauthRequired
	}

	refreshToken, err := m.cipher.Decrypt(conn.RefreshTokenCiphertext)
	if err != nil {
		return nil, err
	}
	if refreshToken == "" {
		m.flagReauth(ctx, conn, "no refresh token on record")
		return nil, apperrors.ErrReauthRequired
	}

	pair, err := m.refresher.Refresh(ctx, provider, refreshToken)
	if err != nil {
		m.appendEvent(ctx, installationID, provider, models.PhaseRefreshFailed, logging.SanitizeError(err))
		if !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
			// A rejected refresh token will not start working on retry.
			m.flagReauth(ctx, conn, "provider rejected refresh token")
			return nil, apperrors.ErrReauthRequired
		}
		return nil, fmt.Errorf("token refresh failed: %w", err)
	}

	if pair.RefreshToken == "" {
		pair.RefreshToken = refreshToken
	}
	expiresAt := m.resolveExpiry(pair)

	accessCT, err := m.cipher.Encrypt(pair.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt access token: %w", err)
	}
	refreshCT, err := m.cipher.Encrypt(pair.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt refresh token: %w", err)
	}

	newVersion := conn.TokenVersion + 1
	if err := m.repo.UpdateTokens(ctx, conn.ID, accessCT, refreshCT, expiresAt, newVersion); err != nil {
		return nil, err
	}

	m.appendEvent(ctx, installationID, provider, models.PhaseTokenRefreshed,
		fmt.Sprintf("token version %d", newVersion))
	m.logger.Info("refreshed connector tokens",
		zap.String("installation_id", installationID.String()),
		zap.String("provider", provider),
		zap.Int("token_version", newVersion))

	return &Grant{
		AccessToken:  pair.AccessToken,
		TokenVersion: newVersion,
		ExpiresAt:    expiresAt,
	}, nil
}

// resolveExpiry picks the token expiry: provider-supplied, else the exp
// claim if the access token happens to be a JWT, else a conservative
// default. The claim is read without signature verification - the token is
// the provider's to verify, we only need its lifetime.
func (m *Manager) resolveExpiry(pair *TokenPair) time.Time {
	if !pair.ExpiresAt.IsZero() {
		return pair.ExpiresAt
	}

	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(pair.AccessToken, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}
	return m.now().Add(defaultTokenTTL)
}

func (m *Manager) flagReauth(ctx context.Context, conn *models.Connection, reason string) {
	if err := m.repo.SetNeedsReauth(ctx, conn.ID, true); err != nil {
		m.logger.Error("failed to flag connection for reauth",
			zap.String("connection_id", conn.ID.String()),
			zap.Error(err))
	}
	m.appendEvent(ctx, conn.InstallationID, conn.Provider, models.PhaseReauthRequired, reason)
}

// appendEvent writes one audit record. Details pass through the log
// sanitizer so token material can never leak into the trail. Audit
// failures are logged, not propagated; the trail is best-effort.
func (m *Manager) appendEvent(ctx context.Context, installationID uuid.UUID, provider string, phase models.ConnectionPhase, details string) {
	event := &models.ConnectionEvent{
		ID:             uuid.New(),
		InstallationID: installationID,
		Provider:       provider,
		Phase:          phase,
		Details:        logging.Sanitize(details),
	}
	if err := m.repo.AppendEvent(ctx, event); err != nil {
		m.logger.Error("failed to append connection event",
			zap.String("provider", provider),
			zap.String("phase", string(phase)),
			zap.Error(err))
	}
}
