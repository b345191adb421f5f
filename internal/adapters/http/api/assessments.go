package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/okian/nutriagenda/internal/domain/model"
	"github.com/okian/nutriagenda/internal/domain/snapshot"
)

// maxBodyBytes bounds single-measurement request bodies.
const maxBodyBytes = 1 << 20

// AssessmentsHandler handles assessment and recording requests.
type AssessmentsHandler struct {
	deps AssessmentDependencies
}

// NewAssessmentsHandler creates a new assessments handler.
func NewAssessmentsHandler(deps AssessmentDependencies) *AssessmentsHandler {
	return &AssessmentsHandler{deps: deps}
}

type recordResponse struct {
	ID       string            `json:"id"`
	Snapshot snapshot.Snapshot `json:"snapshot"`
}

// HandleAssess handles POST /assessments. Nothing is stored.
func (h *AssessmentsHandler) HandleAssess(w http.ResponseWriter, r *http.Request) {
	in, err := decodeInput(w, r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	snap, err := h.deps.Assess(r.Context(), &in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// HandleRecord handles POST /patients/{id}/measurements.
func (h *AssessmentsHandler) HandleRecord(w http.ResponseWriter, r *http.Request) {
	in, err := decodeInput(w, r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	id, snap, err := h.deps.Record(r.Context(), r.PathValue("id"), &in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Location", "/patients/"+snap.PatientID()+"/snapshots")
	writeJSON(w, http.StatusCreated, recordResponse{ID: id, Snapshot: snap})
}

func decodeInput(w http.ResponseWriter, r *http.Request) (model.MeasurementInput, error) {
	var in model.MeasurementInput
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&in); err != nil {
		return in, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return in, nil
}
