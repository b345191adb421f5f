// Package service orchestrates the assessment engine over a measurement
// store and implements the dependencies required by the HTTP API and the
// AMQP consumer.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	importqueue "github.com/okian/nutriagenda/internal/adapters/mq/queue"
	workerpool "github.com/okian/nutriagenda/internal/adapters/mq/worker"
	"github.com/okian/nutriagenda/internal/adapters/repository"
	"github.com/okian/nutriagenda/internal/domain/dedupe"
	"github.com/okian/nutriagenda/internal/domain/model"
	"github.com/okian/nutriagenda/internal/domain/report"
	"github.com/okian/nutriagenda/internal/domain/snapshot"
	"github.com/okian/nutriagenda/internal/domain/trend"
	"github.com/okian/nutriagenda/internal/domain/validate"
	"github.com/okian/nutriagenda/pkg/logger"
	"github.com/okian/nutriagenda/pkg/metrics"
)

// Sources passed to the assessment counter.
const (
	SourcePreview = "preview"
	SourceRecord  = "record"
	SourceHTTP    = "http"
	SourceAMQP    = "amqp"
)

// Service implements the API dependencies for the assessment engine.
type Service struct {
	mu sync.RWMutex

	// Core components
	store   repository.Store
	deduper dedupe.Deduper
	queue   importqueue.Queue
	pool    *workerpool.Pool

	// Configuration
	workerCount   int
	queueSize     int
	dedupeSize    int
	reportMetrics []trend.Metric
	now           func() time.Time

	started bool
	// stopRun cancels the context the workers run on. Stop calls it only
	// after the queue has drained or the drain timed out.
	stopRun context.CancelFunc

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of import workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the import queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many import keys are remembered. Zero keeps
// every key.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size >= 0 {
			s.dedupeSize = size
		}
	}
}

// WithReportMetrics sets the chart series attached to reports when the
// caller asks for none.
func WithReportMetrics(ms ...trend.Metric) Option {
	return func(s *Service) {
		if len(ms) > 0 {
			s.reportMetrics = ms
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source used to date undated measurements.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a Service over store.
func New(store repository.Store, opts ...Option) *Service {
	s := &Service{
		store:         store,
		workerCount:   runtime.NumCPU(),
		queueSize:     10_000,
		dedupeSize:    100_000,
		reportMetrics: []trend.Metric{trend.Weight, trend.BMI, trend.BodyFat, trend.Waist},
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	return s
}

// Start builds the import pipeline and starts its workers. The workers
// keep ctx's values but not its cancellation; they run until Stop.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = importqueue.NewInMemoryQueue(importqueue.WithCapacity(s.queueSize))
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s.store, s.deduper,
		workerpool.WithLogger(s.logger.Named("import")))
	runCtx, stopRun := context.WithCancel(context.WithoutCancel(ctx))
	s.stopRun = stopRun
	s.pool.Start(runCtx)

	s.started = true
	s.logger.Info(ctx, "assessment service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
	)
	return nil
}

// Stop closes the import queue, waits until the workers have stored every
// accepted job or ctx expires, and then closes the store.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if s.started {
		s.logger.Info(ctx, "stopping assessment service...")
		if err := s.pool.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop import workers: %w", err))
		}
		s.stopRun()
		s.started = false
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil && !errors.Is(err, repository.ErrClosed) {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	s.logger.Info(ctx, "assessment service stopped")
	return errors.Join(errs...)
}

// Assess validates and assesses in without storing it.
func (s *Service) Assess(ctx context.Context, input *model.MeasurementInput) (snapshot.Snapshot, error) {
	start := time.Now()
	in := *input
	if in.Date.IsZero() {
		in.Date = s.now()
	}
	raw, err := s.validate(ctx, &in)
	if err != nil {
		return snapshot.Snapshot{}, err
	}
	snap := s.assess(&raw, SourcePreview)
	metrics.RecordAssessmentLatency(msSince(start))
	return snap, nil
}

// Record validates in, stores it under patientID and returns its id and
// snapshot. patientID takes precedence over input.PatientID.
func (s *Service) Record(ctx context.Context, patientID string, input *model.MeasurementInput) (string, snapshot.Snapshot, error) {
	start := time.Now()
	in := *input
	if p := strings.TrimSpace(patientID); p != "" {
		in.PatientID = p
	}
	if strings.TrimSpace(in.PatientID) == "" {
		return "", snapshot.Snapshot{}, ErrMissingPatient
	}
	if in.Date.IsZero() {
		in.Date = s.now()
	}

	raw, err := s.validate(ctx, &in)
	if err != nil {
		return "", snapshot.Snapshot{}, err
	}

	id, err := s.store.Save(ctx, raw.PatientID, &raw)
	if err != nil {
		return "", snapshot.Snapshot{}, fmt.Errorf("record %s: %w", raw.Key(), err)
	}
	snap := s.assess(&raw, SourceRecord)
	metrics.RecordAssessmentLatency(msSince(start))

	s.logger.Debug(ctx, "measurement recorded",
		logger.String("id", id),
		logger.String("patient_id", raw.PatientID),
	)
	return id, snap, nil
}

// History loads and assesses every stored measurement of patientID.
func (s *Service) History(ctx context.Context, patientID string) (trend.History, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return trend.History{}, ErrMissingPatient
	}
	raws, err := s.store.ListByPatient(ctx, patientID)
	if err != nil {
		return trend.History{}, fmt.Errorf("list %s: %w", patientID, err)
	}
	if len(raws) == 0 {
		return trend.History{}, fmt.Errorf("%w: %s", ErrNotFound, patientID)
	}
	h, err := trend.NewHistory(snapshot.AssessAll(raws))
	if err != nil {
		return trend.History{}, fmt.Errorf("history %s: %w", patientID, err)
	}
	return h, nil
}

// Snapshots returns the assessed history of patientID, oldest first.
func (s *Service) Snapshots(ctx context.Context, patientID string) ([]snapshot.Snapshot, error) {
	h, err := s.History(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return h.Snapshots(), nil
}

// Trend summarises the history of patientID. The summary is nil when
// fewer than two measurements are stored.
func (s *Service) Trend(ctx context.Context, patientID string) (*trend.Summary, error) {
	h, err := s.History(ctx, patientID)
	switch {
	case errors.Is(err, ErrNotFound):
		metrics.RecordTrendRequest("not_found")
		return nil, err
	case err != nil:
		metrics.RecordTrendRequest("error")
		return nil, err
	}
	sum := trend.Analyze(h)
	if sum == nil {
		metrics.RecordTrendRequest("insufficient")
		return nil, nil
	}
	metrics.RecordTrendRequest("ok")
	return sum, nil
}

// Report assembles the latest assessment of patientID with its trend and
// the series for ms, or the configured defaults when ms is empty.
func (s *Service) Report(ctx context.Context, patientID string, ms ...trend.Metric) (report.Report, error) {
	h, err := s.History(ctx, patientID)
	if err != nil {
		return report.Report{}, err
	}
	if len(ms) == 0 {
		ms = s.reportMetrics
	}
	last, _ := h.Last()
	rep := report.Assemble(&last, trend.Analyze(h), h, ms...)
	metrics.RecordReportAssembled()
	return rep, nil
}

// ExportCSV writes the history of patientID as CSV to w.
func (s *Service) ExportCSV(ctx context.Context, patientID string, w io.Writer) error {
	h, err := s.History(ctx, patientID)
	if err != nil {
		return err
	}
	if err := report.WriteCSV(w, h); err != nil {
		return fmt.Errorf("export %s: %w", patientID, err)
	}
	metrics.RecordCSVExport()
	return nil
}

// ImportRejection explains why one entry of a batch was not queued.
type ImportRejection struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// ImportResult summarises a submitted batch.
type ImportResult struct {
	BatchID    string            `json:"batch_id"`
	Accepted   int               `json:"accepted"`
	Duplicates int               `json:"duplicates"`
	Rejected   []ImportRejection `json:"rejected,omitempty"`
}

// Submit queues one measurement for asynchronous import. duplicate is true
// when the same (patient, date) was already submitted.
func (s *Service) Submit(ctx context.Context, source, batchID string, input *model.MeasurementInput) (duplicate bool, err error) {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()
	if !started {
		return false, ErrNotStarted
	}

	in := *input
	in.PatientID = strings.TrimSpace(in.PatientID)
	if in.PatientID == "" {
		metrics.RecordImportFailed("missing_patient")
		return false, ErrMissingPatient
	}
	now := s.now()
	if in.Date.IsZero() {
		in.Date = now
	}

	key := model.KeyOf(in.PatientID, in.Date)
	if s.deduper.SeenAndRecord(ctx, key) {
		metrics.RecordImportDuplicate()
		s.logger.Debug(ctx, "duplicate import skipped", logger.String("key", key))
		return true, nil
	}

	job := importqueue.Job{Key: key, BatchID: batchID, Source: source, Input: in, EnqueuedAt: now}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		s.deduper.Unrecord(ctx, key)
		if errors.Is(err, importqueue.ErrFull) {
			return false, ErrBackpressure
		}
		return false, fmt.Errorf("enqueue %s: %w", key, err)
	}
	return false, nil
}

// Import queues a batch. It stops at the first backpressure error and
// returns what was accepted so far together with ErrBackpressure.
func (s *Service) Import(ctx context.Context, source string, inputs []model.MeasurementInput) (ImportResult, error) {
	res := ImportResult{BatchID: uuid.NewString()}
	for i := range inputs {
		dup, err := s.Submit(ctx, source, res.BatchID, &inputs[i])
		switch {
		case errors.Is(err, ErrMissingPatient):
			res.Rejected = append(res.Rejected, ImportRejection{Index: i, Reason: err.Error()})
		case err != nil:
			s.logger.Warn(ctx, "import batch interrupted",
				logger.String("batch_id", res.BatchID),
				logger.Int("accepted", res.Accepted),
				logger.Int("remaining", len(inputs)-i),
				logger.Error(err),
			)
			return res, err
		case dup:
			res.Duplicates++
		default:
			res.Accepted++
		}
	}
	s.logger.Info(ctx, "import batch queued",
		logger.String("batch_id", res.BatchID),
		logger.String("source", source),
		logger.Int("accepted", res.Accepted),
		logger.Int("duplicates", res.Duplicates),
		logger.Int("rejected", len(res.Rejected)),
	)
	return res, nil
}

// Stats returns service statistics for monitoring.
func (s *Service) Stats(ctx context.Context) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
	}
	if n, err := s.store.Count(ctx); err == nil {
		stats["measurements"] = n
	}
	if s.started {
		stats["queueLength"] = s.queue.Len(ctx)
		stats["dedupeKeys"] = s.deduper.Size()
	}
	return stats
}

func (s *Service) validate(ctx context.Context, in *model.MeasurementInput) (model.RawMeasurement, error) {
	raw, err := validate.Validate(in)
	if err != nil {
		var verr *validate.ValidationError
		if errors.As(err, &verr) {
			for _, f := range verr.Fields() {
				metrics.RecordValidationFailure(f)
			}
		}
		s.logger.Debug(ctx, "measurement rejected", logger.Error(err))
		return model.RawMeasurement{}, err
	}
	return raw, nil
}

func (s *Service) assess(raw *model.RawMeasurement, source string) snapshot.Snapshot {
	snap := snapshot.Assess(raw)
	metrics.RecordAssessment(source)
	metrics.RecordBodyFatMethod(string(snap.Derived.BodyFatMethod))
	return snap
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}
