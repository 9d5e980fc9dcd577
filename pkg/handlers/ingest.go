package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/joblens-inc/joblens-engine/pkg/middleware"
	"github.com/joblens-inc/joblens-engine/pkg/models"
	"github.com/joblens-inc/joblens-engine/pkg/services"
)

// maxPayloadBytes bounds one connector payload. 500 rows per entity across
// five entities fits comfortably; anything bigger is a connector bug.
const maxPayloadBytes = 8 << 20

// IngestHandler accepts canonical connector payloads.
type IngestHandler struct {
	ingest services.IngestService
	logger *zap.Logger
}

// NewIngestHandler creates a new IngestHandler.
func NewIngestHandler(ingest services.IngestService, logger *zap.Logger) *IngestHandler {
	return &IngestHandler{ingest: ingest, logger: logger}
}

// RegisterRoutes registers the ingest route on the given mux.
func (h *IngestHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/ingest", h.Ingest)
}

// Ingest handles POST /api/ingest. The body is one canonical connector
// payload; the response carries the created source and queued snapshot.
func (h *IngestHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	installationID, ok := middleware.InstallationID(r.Context())
	if !ok {
		_ = ErrorResponse(w, http.StatusUnauthorized, "no_installation", "no installation session")
		return
	}

	var payload models.ConnectorPayload
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	if err := decoder.Decode(&payload); err != nil {
		// MaxBytesReader trips inside Decode, so the size check lives on
		// this error, not on the service call.
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			_ = ErrorResponse(w, http.StatusRequestEntityTooLarge, "payload_too_large", "connector payload exceeds size limit")
			return
		}
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_payload", "request body is not a connector payload")
		return
	}
	if payload.Kind == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_payload", "payload kind is required")
		return
	}

	result, err := h.ingest.Ingest(r.Context(), installationID, &payload)
	if err != nil {
		h.logger.Error("ingest failed",
			zap.String("installation_id", installationID.String()),
			zap.String("kind", payload.Kind),
			zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "ingest_failed", "could not ingest connector payload")
		return
	}

	if err := WriteJSON(w, http.StatusAccepted, result); err != nil {
		h.logger.Error("Failed to encode ingest response", zap.Error(err))
	}
}
