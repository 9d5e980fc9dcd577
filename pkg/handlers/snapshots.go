package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/joblens-inc/joblens-engine/pkg/apperrors"
	"github.com/joblens-inc/joblens-engine/pkg/services"
)

// SnapshotHandler serves snapshot records and triggers runs.
type SnapshotHandler struct {
	snapshots services.SnapshotService
	logger    *zap.Logger
}

// NewSnapshotHandler creates a new SnapshotHandler.
func NewSnapshotHandler(snapshots services.SnapshotService, logger *zap.Logger) *SnapshotHandler {
	return &SnapshotHandler{snapshots: snapshots, logger: logger}
}

// RegisterRoutes registers the snapshot routes on the given mux.
func (h *SnapshotHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/snapshots/{sid}", h.Get)
	mux.HandleFunc("POST /api/snapshots/{sid}/run", h.Run)
}

// Get handles GET /api/snapshots/{sid}.
func (h *SnapshotHandler) Get(w http.ResponseWriter, r *http.Request) {
	snapshotID, ok := ParseSnapshotID(w, r, h.logger)
	if !ok {
		return
	}

	snapshot, err := h.snapshots.Get(r.Context(), snapshotID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			_ = ErrorResponse(w, http.StatusNotFound, "not_found", "snapshot not found")
			return
		}
		h.logger.Error("failed to load snapshot",
			zap.String("snapshot_id", snapshotID.String()),
			zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "internal", "could not load snapshot")
		return
	}

	if err := WriteJSON(w, http.StatusOK, snapshot); err != nil {
		h.logger.Error("Failed to encode snapshot response", zap.Error(err))
	}
}

// Run handles POST /api/snapshots/{sid}/run. Triggering a snapshot that is
// already running or terminal returns its current record unchanged.
func (h *SnapshotHandler) Run(w http.ResponseWriter, r *http.Request) {
	snapshotID, ok := ParseSnapshotID(w, r, h.logger)
	if !ok {
		return
	}

	snapshot, err := h.snapshots.Run(r.Context(), snapshotID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			_ = ErrorResponse(w, http.StatusNotFound, "not_found", "snapshot not found")
			return
		}
		h.logger.Error("failed to run snapshot",
			zap.String("snapshot_id", snapshotID.String()),
			zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "internal", "could not run snapshot")
		return
	}

	if err := WriteJSON(w, http.StatusOK, snapshot); err != nil {
		h.logger.Error("Failed to encode snapshot response", zap.Error(err))
	}
}
