// Package worker runs the asynchronous measurement import: each job is
// validated, assessed and stored.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/nutriagenda/internal/adapters/mq/queue"
	"github.com/okian/nutriagenda/internal/adapters/repository"
	"github.com/okian/nutriagenda/internal/domain/model"
	"github.com/okian/nutriagenda/internal/domain/snapshot"
	"github.com/okian/nutriagenda/internal/domain/validate"
	"github.com/okian/nutriagenda/pkg/logger"
	"github.com/okian/nutriagenda/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// Saver persists a validated measurement.
type Saver interface {
	Save(ctx context.Context, patientID string, raw *model.RawMeasurement) (string, error)
}

// Forgetter releases a dedupe key so a failed import can be resubmitted.
type Forgetter interface {
	Unrecord(ctx context.Context, key string)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Worker processes import jobs.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue drains.
	Run(ctx context.Context)

	// Shutdown stops the worker after its current job.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue     Queue
	saver     Saver
	forgetter Forgetter
	name      string

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a worker. forgetter may be nil when imports
// are not deduplicated.
func NewInMemoryWorker(q Queue, saver Saver, forgetter Forgetter, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		saver:     saver,
		forgetter: forgetter,
		name:      "worker",
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named("import")
	}
	w.logger = w.logger.With(logger.String("worker", w.name))
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.Process(ctx, j); err != nil {
				w.logger.Warn(ctx, "import job dropped",
					logger.String("key", j.Key),
					logger.String("batch_id", j.BatchID),
					logger.String("source", j.Source),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Process validates, assesses and stores one job. A duplicate is not an
// error. Any other failure releases the job's dedupe key.
func (w *InMemoryWorker) Process(ctx context.Context, j queue.Job) error { //nolint:gocritic // hugeParam: Job must be passed by value for channel semantics
	start := time.Now()
	metrics.IncWorkerActive()
	defer func() {
		metrics.DecWorkerActive()
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	in := j.Input
	if in.Date.IsZero() {
		in.Date = j.EnqueuedAt
	}

	raw, err := validate.Validate(&in)
	if err != nil {
		var verr *validate.ValidationError
		if errors.As(err, &verr) {
			for _, f := range verr.Fields() {
				metrics.RecordValidationFailure(f)
			}
		}
		return w.fail(ctx, &j, "validation", err)
	}
	if raw.PatientID == "" {
		return w.fail(ctx, &j, "missing_patient", errors.New("patient_id is required"))
	}

	snap := snapshot.Assess(&raw)
	metrics.RecordAssessment("import")
	metrics.RecordBodyFatMethod(string(snap.Derived.BodyFatMethod))

	id, err := w.saver.Save(ctx, raw.PatientID, &raw)
	switch {
	case errors.Is(err, repository.ErrDuplicate):
		metrics.RecordImportDuplicate()
		w.logger.Debug(ctx, "measurement already stored", logger.String("key", j.Key))
		return nil
	case err != nil:
		metrics.RecordWorkerError()
		return w.fail(ctx, &j, "store", fmt.Errorf("save %s: %w", raw.Key(), err))
	}

	metrics.RecordImportAccepted()
	w.logger.Debug(ctx, "measurement imported",
		logger.String("id", id),
		logger.String("patient_id", raw.PatientID),
		logger.Float64("bmi", snap.Derived.BMI),
	)
	return nil
}

func (w *InMemoryWorker) fail(ctx context.Context, j *queue.Job, reason string, err error) error {
	metrics.RecordImportFailed(reason)
	if w.forgetter != nil && j.Key != "" {
		w.forgetter.Unrecord(ctx, j.Key)
	}
	return err
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates workerCount workers sharing q. A count below one
// defaults to the number of CPUs.
func NewPool(workerCount int, q Queue, saver Saver, forgetter Forgetter, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
	}
	for i := range workerCount {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		p.workers[i] = NewInMemoryWorker(q, saver, forgetter, wopts...)
	}
	p.logger = p.workers[0].logger.Named("pool")
	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue, lets workers drain it and waits for them
// until ctx or the pool timeout expires.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut int
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			_ = w.Shutdown(shutdownCtx)
			timedOut++
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	metrics.UpdateWorkerCount(0)
	if timedOut > 0 {
		return fmt.Errorf("%d workers did not stop: %w", timedOut, shutdownCtx.Err())
	}
	return nil
}
