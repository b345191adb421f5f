package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/okian/nutriagenda/internal/adapters/http/chart"
	"github.com/okian/nutriagenda/internal/domain/trend"
)

// PatientsHandler serves a patient's history and its views.
type PatientsHandler struct {
	deps PatientDependencies
}

// NewPatientsHandler creates a new patients handler.
func NewPatientsHandler(deps PatientDependencies) *PatientsHandler {
	return &PatientsHandler{deps: deps}
}

// HandleSnapshots handles GET /patients/{id}/snapshots.
func (h *PatientsHandler) HandleSnapshots(w http.ResponseWriter, r *http.Request) {
	snaps, err := h.deps.Snapshots(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snaps)
}

// HandleTrend handles GET /patients/{id}/trend. A history too short to
// compare yields 204.
func (h *PatientsHandler) HandleTrend(w http.ResponseWriter, r *http.Request) {
	sum, err := h.deps.Trend(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if sum == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// HandleReport handles GET /patients/{id}/report?metrics=weight,bmi.
func (h *PatientsHandler) HandleReport(w http.ResponseWriter, r *http.Request) {
	ms, err := parseMetrics(r.URL.Query().Get("metrics"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	rep, err := h.deps.Report(r.Context(), r.PathValue("id"), ms...)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// HandleExportCSV handles GET /patients/{id}/export.csv.
func (h *PatientsHandler) HandleExportCSV(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var buf bytes.Buffer
	if err := h.deps.ExportCSV(r.Context(), id, &buf); err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "mediciones-"+id+".csv"))
	_, _ = w.Write(buf.Bytes())
}

// HandleChart handles GET /patients/{id}/chart?metric=weight.
func (h *PatientsHandler) HandleChart(w http.ResponseWriter, r *http.Request) {
	metric := trend.Weight
	if q := r.URL.Query().Get("metric"); q != "" {
		m, err := trend.ParseMetric(q)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		metric = m
	}
	hist, err := h.deps.History(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := chart.Render(&buf, hist, metric); err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func parseMetrics(raw string) ([]trend.Metric, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var ms []trend.Metric
	for _, part := range strings.Split(raw, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		m, err := trend.ParseMetric(part)
		if err != nil {
			return nil, err
		}
		ms = append(ms, m)
	}
	return ms, nil
}
