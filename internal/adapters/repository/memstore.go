package repository

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/nutriagenda/internal/domain/model"
	"github.com/okian/nutriagenda/pkg/metrics"
)

type memRecord struct {
	id  string
	raw model.RawMeasurement
}

// MemoryStore keeps measurements in memory, sorted by date per patient.
type MemoryStore struct {
	mu        sync.RWMutex
	byPatient map[string][]memRecord
	total     int
	closed    bool

	newID                 func() string
	metricsUpdateInterval time.Duration

	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore constructs a memory store and starts its metrics updater,
// which runs until ctx is done or Close is called.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		byPatient:             make(map[string][]memRecord),
		newID:                 func() string { return uuid.NewString() },
		metricsUpdateInterval: 5 * time.Second,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.startMetricsUpdater(ctx)
	return s
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, patientID string, raw *model.RawMeasurement) (string, error) {
	start := time.Now()
	defer func() { metrics.RecordRepositorySaveLatency(msSince(start)) }()

	if patientID == "" {
		return "", ErrInvalidPatient
	}
	rec := raw.Clone()
	rec.PatientID = patientID
	id := s.newID()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrClosed
	}

	recs := s.byPatient[patientID]
	// Insert after every record with an earlier or equal date.
	i, found := slices.BinarySearchFunc(recs, rec.Date, func(r memRecord, t time.Time) int {
		return r.raw.Date.Compare(t)
	})
	if found {
		metrics.RecordRepositoryError("save")
		return "", ErrDuplicate
	}
	s.byPatient[patientID] = slices.Insert(recs, i, memRecord{id: id, raw: rec})
	s.total++
	return id, nil
}

// ListByPatient implements Store.
func (s *MemoryStore) ListByPatient(_ context.Context, patientID string) ([]model.RawMeasurement, error) {
	start := time.Now()
	defer func() { metrics.RecordRepositoryQueryLatency(msSince(start)) }()

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	recs := s.byPatient[patientID]
	out := make([]model.RawMeasurement, len(recs))
	for i, r := range recs {
		out[i] = r.raw.Clone()
	}
	return out, nil
}

// Count implements Store.
func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total, nil
}

// Patients returns the number of distinct patients.
func (s *MemoryStore) Patients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byPatient)
}

// Close stops the metrics updater. Further calls fail with ErrClosed.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.stopChan)
	})
	s.wg.Wait()
	return nil
}

func (s *MemoryStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				n, _ := s.Count(ctx)
				metrics.UpdateRepositoryMeasurements(n)
			}
		}
	}()
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}
