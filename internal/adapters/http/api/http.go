// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/okian/nutriagenda/internal/adapters/http/chart"
	"github.com/okian/nutriagenda/internal/adapters/repository"
	service "github.com/okian/nutriagenda/internal/app"
	"github.com/okian/nutriagenda/internal/domain/model"
	"github.com/okian/nutriagenda/internal/domain/report"
	"github.com/okian/nutriagenda/internal/domain/snapshot"
	"github.com/okian/nutriagenda/internal/domain/trend"
	"github.com/okian/nutriagenda/internal/domain/validate"
	"github.com/okian/nutriagenda/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	AssessmentDependencies
	PatientDependencies
	ImportDependencies
	StatsProvider
}

// AssessmentDependencies assess and record single measurements.
type AssessmentDependencies interface {
	Assess(ctx context.Context, in *model.MeasurementInput) (snapshot.Snapshot, error)
	Record(ctx context.Context, patientID string, in *model.MeasurementInput) (string, snapshot.Snapshot, error)
}

// PatientDependencies expose a patient's stored history.
type PatientDependencies interface {
	History(ctx context.Context, patientID string) (trend.History, error)
	Snapshots(ctx context.Context, patientID string) ([]snapshot.Snapshot, error)
	Trend(ctx context.Context, patientID string) (*trend.Summary, error)
	Report(ctx context.Context, patientID string, ms ...trend.Metric) (report.Report, error)
	ExportCSV(ctx context.Context, patientID string, w io.Writer) error
}

// ImportDependencies queue batches for asynchronous import.
type ImportDependencies interface {
	Import(ctx context.Context, source string, inputs []model.MeasurementInput) (service.ImportResult, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	assessmentsHandler *AssessmentsHandler
	patientsHandler    *PatientsHandler
	importsHandler     *ImportsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(deps),
		assessmentsHandler: NewAssessmentsHandler(deps),
		patientsHandler:    NewPatientsHandler(deps),
		importsHandler:     NewImportsHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("POST /assessments", MetricsMiddleware(s.assessmentsHandler.HandleAssess, "assessments"))
	mux.HandleFunc("POST /patients/{id}/measurements", MetricsMiddleware(s.assessmentsHandler.HandleRecord, "measurements"))

	mux.HandleFunc("GET /patients/{id}/snapshots", MetricsMiddleware(s.patientsHandler.HandleSnapshots, "snapshots"))
	mux.HandleFunc("GET /patients/{id}/trend", MetricsMiddleware(s.patientsHandler.HandleTrend, "trend"))
	mux.HandleFunc("GET /patients/{id}/report", MetricsMiddleware(s.patientsHandler.HandleReport, "report"))
	mux.HandleFunc("GET /patients/{id}/export.csv", MetricsMiddleware(s.patientsHandler.HandleExportCSV, "export"))
	mux.HandleFunc("GET /patients/{id}/chart", MetricsMiddleware(s.patientsHandler.HandleChart, "chart"))

	mux.HandleFunc("POST /imports", MetricsMiddleware(s.importsHandler.HandleImport, "imports"))
}

type errorResponse struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Issues  []issueResponse `json:"issues,omitempty"`
	Details any             `json:"details,omitempty"`
}

type issueResponse struct {
	Field  string `json:"field"`
	Kind   string `json:"kind"`
	Value  string `json:"value,omitempty"`
	Reason string `json:"reason"`
}

// writeJSON encodes v before committing status, so an unencodable value
// becomes a 500 instead of a truncated success.
func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		logger.Named("api").Error(context.Background(), "encode response", logger.Int("status", status), logger.Error(err))
		buf.Reset()
		_ = json.NewEncoder(&buf).Encode(errorResponse{Code: "internal_error", Message: "response could not be encoded"})
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError translates upstream errors to status codes. Validation
// failures carry every rejected field.
func writeServiceError(w http.ResponseWriter, err error) {
	var verr *validate.ValidationError
	switch {
	case errors.As(err, &verr):
		resp := errorResponse{Code: "invalid_measurement", Message: "measurement rejected"}
		for _, is := range verr.Issues {
			resp.Issues = append(resp.Issues, issueResponse{
				Field:  is.Field,
				Kind:   issueKind(is.Kind),
				Value:  is.Value,
				Reason: is.Reason,
			})
		}
		writeJSON(w, http.StatusUnprocessableEntity, resp)
	case errors.Is(err, service.ErrMissingPatient),
		errors.Is(err, trend.ErrUnknownMetric),
		errors.Is(err, ErrBadRequest),
		errors.Is(err, ErrEmptyBatch):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, ErrBatchTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "too_large", err)
	case errors.Is(err, service.ErrNotFound), errors.Is(err, chart.ErrNoData):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, repository.ErrDuplicate):
		writeError(w, http.StatusConflict, "duplicate", err)
	case errors.Is(err, service.ErrBackpressure):
		writeError(w, http.StatusTooManyRequests, "backpressure", err)
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

func issueKind(kind error) string {
	switch {
	case errors.Is(kind, validate.ErrMissingRequiredField):
		return "missing_required_field"
	case errors.Is(kind, validate.ErrOutOfRange):
		return "out_of_range"
	default:
		return "invalid"
	}
}
