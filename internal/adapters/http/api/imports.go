package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	service "github.com/okian/nutriagenda/internal/app"
	"github.com/okian/nutriagenda/internal/domain/model"
)

const (
	maxImportBodyBytes = 32 << 20
	maxImportBatch     = 10_000
)

// ImportsHandler handles batch import requests.
type ImportsHandler struct {
	deps ImportDependencies
}

// NewImportsHandler creates a new imports handler.
func NewImportsHandler(deps ImportDependencies) *ImportsHandler {
	return &ImportsHandler{deps: deps}
}

// HandleImport handles POST /imports. The body is a JSON array of
// measurements; they are validated and stored asynchronously.
func (h *ImportsHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	var batch []model.MeasurementInput
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxImportBodyBytes)).Decode(&batch); err != nil {
		writeServiceError(w, fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	switch {
	case len(batch) == 0:
		writeServiceError(w, ErrEmptyBatch)
		return
	case len(batch) > maxImportBatch:
		writeServiceError(w, fmt.Errorf("%w: %d entries, limit %d", ErrBatchTooLarge, len(batch), maxImportBatch))
		return
	}

	res, err := h.deps.Import(r.Context(), service.SourceHTTP, batch)
	if errors.Is(err, service.ErrBackpressure) {
		writeJSON(w, http.StatusTooManyRequests, errorResponse{
			Code:    "backpressure",
			Message: err.Error(),
			Details: res,
		})
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, res)
}
