package handlers

import (
	"net/http"
	"strconv"

	"github.com/emadnahed/flakeid/internal/idgen"
	"github.com/emadnahed/flakeid/internal/metrics"
	"github.com/emadnahed/flakeid/internal/services"
	"github.com/emadnahed/flakeid/pkg/logger"
)

// GenerateResponse is returned by POST /api/v1/ids.
type GenerateResponse struct {
	IDs    []idgen.ID `json:"ids"`
	Count  int        `json:"count"`
	NodeID uint16     `json:"node_id"`
}

// IDHandler serves ID generation and inspection.
type IDHandler struct {
	service services.IDService
	nodeID  uint16
	logger  *logger.Logger
}

// NewIDHandler creates a new IDHandler.
func NewIDHandler(svc services.IDService, nodeID uint16, log *logger.Logger) *IDHandler {
	return &IDHandler{service: svc, nodeID: nodeID, logger: log}
}

// Generate handles POST /api/v1/ids?count=N. count defaults to 1.
func (h *IDHandler) Generate(w http.ResponseWriter, r *http.Request) {
	count, err := CountParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_COUNT", services.ErrInvalidCount.Error())
		return
	}

	ids, err := h.service.Generate(r.Context(), count)
	if err != nil {
		if services.IsGenerationUnavailable(err) {
			logger.FromContext(r.Context(), h.logger).Error("id generation failed",
				"count", count,
				"error", err.Error(),
			)
		}
		writeServiceError(w, err)
		return
	}

	metrics.RecordIDsIssued(len(ids))
	writeJSON(w, http.StatusCreated, GenerateResponse{
		IDs:    ids,
		Count:  len(ids),
		NodeID: h.nodeID,
	})
}

// Inspect handles GET /api/v1/ids/{id}.
func (h *IDHandler) Inspect(w http.ResponseWriter, r *http.Request) {
	info, err := h.service.Inspect(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// Info handles GET /api/v1/snowflake-info.
func (h *IDHandler) Info(w http.ResponseWriter, r *http.Request) {
	info, err := h.service.Info(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// CountParam reads the count query parameter of an ID batch request. An
// absent parameter means one ID. Range checks are left to the service.
func CountParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("count")
	if raw == "" {
		return 1, nil
	}
	return strconv.Atoi(raw)
}
