package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joblens-inc/joblens-engine/pkg/apperrors"
	"github.com/joblens-inc/joblens-engine/pkg/credentials"
	"github.com/joblens-inc/joblens-engine/pkg/models"
	"github.com/joblens-inc/joblens-engine/pkg/normalize"
	"github.com/joblens-inc/joblens-engine/pkg/services"
)

type mockIngestService struct {
	result *services.IngestResult
	err    error
	calls  int
}

func (m *mockIngestService) Ingest(_ context.Context, _ uuid.UUID, _ *models.ConnectorPayload) (*services.IngestResult, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func ingestResultFixture() *services.IngestResult {
	return &services.IngestResult{
		SourceID:   uuid.New(),
		SnapshotID: uuid.New(),
		Entities: map[string]normalize.Result{
			"estimates": {Kept: 20, Rejected: 2, Meaningful: 18},
		},
		Meaningful: 18,
	}
}

type mockSnapshotService struct {
	snapshot *models.Snapshot
	getErr   error
	runErr   error
	runCalls int
}

func (m *mockSnapshotService) Run(_ context.Context, _ uuid.UUID) (*models.Snapshot, error) {
	m.runCalls++
	if m.runErr != nil {
		return nil, m.runErr
	}
	return m.snapshot, nil
}

func (m *mockSnapshotService) Get(_ context.Context, _ uuid.UUID) (*models.Snapshot, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.snapshot, nil
}

// handlerConnRepo is a minimal in-memory ConnectionRepository.
type handlerConnRepo struct {
	mu     sync.Mutex
	conns  map[string]*models.Connection
	events []*models.ConnectionEvent
}

func newHandlerConnRepo() *handlerConnRepo {
	return &handlerConnRepo{conns: map[string]*models.Connection{}}
}

func (r *handlerConnRepo) key(installationID uuid.UUID, provider string) string {
	return installationID.String() + "|" + provider
}

func (r *handlerConnRepo) Get(_ context.Context, installationID uuid.UUID, provider string) (*models.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.conns[r.key(installationID, provider)]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	copied := *conn
	return &copied, nil
}

func (r *handlerConnRepo) Upsert(_ context.Context, conn *models.Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *conn
	r.conns[r.key(conn.InstallationID, conn.Provider)] = &copied
	return nil
}

func (r *handlerConnRepo) UpdateTokens(_ context.Context, id uuid.UUID, accessCT, refreshCT string, expiresAt time.Time, version int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, conn := range r.conns {
		if conn.ID == id {
			if conn.TokenVersion != version-1 {
				return apperrors.ErrStaleStatus
			}
			conn.AccessTokenCiphertext = accessCT
			conn.RefreshTokenCiphertext = refreshCT
			conn.ExpiresAt = expiresAt
			conn.TokenVersion = version
			conn.NeedsReauth = false
			return nil
		}
	}
	return apperrors.ErrStaleStatus
}

func (r *handlerConnRepo) SetNeedsReauth(_ context.Context, id uuid.UUID, needsReauth bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, conn := range r.conns {
		if conn.ID == id {
			conn.NeedsReauth = needsReauth
			return nil
		}
	}
	return apperrors.ErrNotFound
}

func (r *handlerConnRepo) AppendEvent(_ context.Context, event *models.ConnectionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	event.CreatedAt = time.Now()
	r.events = append(r.events, event)
	return nil
}

func (r *handlerConnRepo) ListEvents(_ context.Context, installationID uuid.UUID, provider string, limit int) ([]*models.ConnectionEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.ConnectionEvent
	for i := len(r.events) - 1; i >= 0 && len(out) < limit; i-- {
		e := r.events[i]
		if e.InstallationID == installationID && e.Provider == provider {
			out = append(out, e)
		}
	}
	return out, nil
}

type staticRefresher struct {
	pair *credentials.TokenPair
	err  error
}

func (s *staticRefresher) Refresh(_ context.Context, _, _ string) (*credentials.TokenPair, error) {
	if s.err != nil {
		return nil, s.err
	}
	pair := *s.pair
	return &pair, nil
}
