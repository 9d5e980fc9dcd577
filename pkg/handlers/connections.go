package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/joblens-inc/joblens-engine/pkg/apperrors"
	"github.com/joblens-inc/joblens-engine/pkg/credentials"
	"github.com/joblens-inc/joblens-engine/pkg/middleware"
	"github.com/joblens-inc/joblens-engine/pkg/models"
	"github.com/joblens-inc/joblens-engine/pkg/repositories"
)

// ConnectionHandler manages connector credential lifecycle endpoints.
// Plaintext tokens never appear in any response; callers get version and
// expiry metadata only.
type ConnectionHandler struct {
	manager *credentials.Manager
	repo    repositories.ConnectionRepository
	logger  *zap.Logger
}

// NewConnectionHandler creates a new ConnectionHandler.
func NewConnectionHandler(manager *credentials.Manager, repo repositories.ConnectionRepository, logger *zap.Logger) *ConnectionHandler {
	return &ConnectionHandler{manager: manager, repo: repo, logger: logger}
}

// RegisterRoutes registers the connection routes on the given mux.
func (h *ConnectionHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/connections/{provider}", h.Get)
	mux.HandleFunc("POST /api/connections/{provider}", h.Save)
	mux.HandleFunc("POST /api/connections/{provider}/refresh", h.Refresh)
}

// connectionView is the outward shape of a connection: metadata plus the
// recent audit trail.
type connectionView struct {
	Connection *models.Connection        `json:"connection"`
	Events     []*models.ConnectionEvent `json:"events"`
}

// saveConnectionRequest carries a freshly authorized token pair. The OAuth
// code exchange happens outside this service; this endpoint only stores
// its outcome.
type saveConnectionRequest struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	ExpiresAt    *time.Time `json:"expires_at"`
}

// refreshResponse reports a refresh outcome without exposing the token.
type refreshResponse struct {
	TokenVersion int       `json:"token_version"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Get handles GET /api/connections/{provider}.
func (h *ConnectionHandler) Get(w http.ResponseWriter, r *http.Request) {
	installationID, ok := middleware.InstallationID(r.Context())
	if !ok {
		_ = ErrorResponse(w, http.StatusUnauthorized, "no_installation", "no installation session")
		return
	}
	provider := r.PathValue("provider")

	conn, err := h.repo.Get(r.Context(), installationID, provider)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			_ = ErrorResponse(w, http.StatusNotFound, "not_found", "no connection for provider")
			return
		}
		h.logger.Error("failed to load connection", zap.String("provider", provider), zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "internal", "could not load connection")
		return
	}

	events, err := h.repo.ListEvents(r.Context(), installationID, provider, 20)
	if err != nil {
		h.logger.Error("failed to load connection events", zap.String("provider", provider), zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "internal", "could not load connection events")
		return
	}

	if err := WriteJSON(w, http.StatusOK, connectionView{Connection: conn, Events: events}); err != nil {
		h.logger.Error("Failed to encode connection response", zap.Error(err))
	}
}

// Save handles POST /api/connections/{provider}: stores a freshly
// authorized token pair.
func (h *ConnectionHandler) Save(w http.ResponseWriter, r *http.Request) {
	installationID, ok := middleware.InstallationID(r.Context())
	if !ok {
		_ = ErrorResponse(w, http.StatusUnauthorized, "no_installation", "no installation session")
		return
	}
	provider := r.PathValue("provider")

	var req saveConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "request body is not a token pair")
		return
	}
	if req.AccessToken == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "access_token is required")
		return
	}

	pair := &credentials.TokenPair{
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
	}
	if req.ExpiresAt != nil {
		pair.ExpiresAt = *req.ExpiresAt
	}

	conn, err := h.manager.SaveAuthorized(r.Context(), installationID, provider, pair)
	if err != nil {
		h.logger.Error("failed to save connection", zap.String("provider", provider), zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "internal", "could not save connection")
		return
	}

	if err := WriteJSON(w, http.StatusCreated, conn); err != nil {
		h.logger.Error("Failed to encode connection response", zap.Error(err))
	}
}

// Refresh handles POST /api/connections/{provider}/refresh: one forced
// refresh through the single-flight manager.
func (h *ConnectionHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	installationID, ok := middleware.InstallationID(r.Context())
	if !ok {
		_ = ErrorResponse(w, http.StatusUnauthorized, "no_installation", "no installation session")
		return
	}
	provider := r.PathValue("provider")

	grant, err := h.manager.ForceRefresh(r.Context(), installationID, provider)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrNotFound):
			_ = ErrorResponse(w, http.StatusNotFound, "not_found", "no connection for provider")
		case errors.Is(err, apperrors.ErrReauthRequired):
			_ = ErrorResponse(w, http.StatusConflict, "reauth_required", "connection must be re-authorized")
		default:
			h.logger.Error("forced refresh failed", zap.String("provider", provider), zap.Error(err))
			_ = ErrorResponse(w, http.StatusBadGateway, "refresh_failed", "token refresh failed")
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, refreshResponse{
		TokenVersion: grant.TokenVersion,
		ExpiresAt:    grant.ExpiresAt,
	}); err != nil {
		h.logger.Error("Failed to encode refresh response", zap.Error(err))
	}
}
