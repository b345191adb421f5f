package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/nutriagenda/internal/adapters/mq/queue"
	"github.com/okian/nutriagenda/internal/adapters/mq/worker"
	"github.com/okian/nutriagenda/internal/adapters/repository"
	"github.com/okian/nutriagenda/internal/domain/model"
	"github.com/okian/nutriagenda/internal/domain/validate"
	logging "github.com/okian/nutriagenda/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type mockSaver struct {
	mu    sync.Mutex
	saved map[string]model.RawMeasurement
	err   error
}

func newMockSaver() *mockSaver {
	return &mockSaver{saved: make(map[string]model.RawMeasurement)}
}

func (ms *mockSaver) Save(_ context.Context, patientID string, raw *model.RawMeasurement) (string, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.err != nil {
		return "", ms.err
	}
	ms.saved[raw.Key()] = raw.Clone()
	return patientID + "-id", nil
}

func (ms *mockSaver) count() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return len(ms.saved)
}

type mockForgetter struct {
	mu   sync.Mutex
	keys []string
}

func (mf *mockForgetter) Unrecord(_ context.Context, key string) {
	mf.mu.Lock()
	defer mf.mu.Unlock()
	mf.keys = append(mf.keys, key)
}

func (mf *mockForgetter) forgotten() []string {
	mf.mu.Lock()
	defer mf.mu.Unlock()
	return append([]string(nil), mf.keys...)
}

func job(patient string, date time.Time) queue.Job {
	return queue.Job{
		Key:    model.KeyOf(patient, date),
		Source: "test",
		Input: model.MeasurementInput{
			PatientID: patient,
			Date:      date,
			WeightKg:  model.Ptr(80.0),
			HeightCm:  model.Ptr(180.0),
			AgeYears:  model.Ptr(30.0),
			Gender:    "male",
		},
		EnqueuedAt: date,
	}
}

func TestProcess(t *testing.T) {
	convey.Convey("Given a worker with a mock saver", t, func() {
		_ = logging.Init()
		ctx := context.Background()
		date := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

		saver := newMockSaver()
		forgetter := &mockForgetter{}
		w := worker.NewInMemoryWorker(queue.NewInMemoryQueue(), saver, forgetter, worker.WithName("test-worker"))

		convey.Convey("When a valid job is processed", func() {
			err := w.Process(ctx, job("p-1", date))

			convey.Convey("Then the measurement should be stored", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(saver.count(), convey.ShouldEqual, 1)
				convey.So(forgetter.forgotten(), convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When the job has no date", func() {
			j := job("p-1", time.Time{})
			j.EnqueuedAt = date
			err := w.Process(ctx, j)

			convey.Convey("Then the enqueue time should be used", func() {
				convey.So(err, convey.ShouldBeNil)
				_, ok := saver.saved[model.KeyOf("p-1", date)]
				convey.So(ok, convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the job fails validation", func() {
			j := job("p-1", date)
			j.Input.HeightCm = model.Ptr(400.0)
			err := w.Process(ctx, j)

			convey.Convey("Then nothing should be stored and the key released", func() {
				convey.So(errors.Is(err, validate.ErrOutOfRange), convey.ShouldBeTrue)
				convey.So(saver.count(), convey.ShouldEqual, 0)
				convey.So(forgetter.forgotten(), convey.ShouldResemble, []string{j.Key})
			})
		})

		convey.Convey("When the job has no patient", func() {
			j := job(" ", date)
			err := w.Process(ctx, j)

			convey.Convey("Then it should be rejected", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(saver.count(), convey.ShouldEqual, 0)
				convey.So(forgetter.forgotten(), convey.ShouldHaveLength, 1)
			})
		})

		convey.Convey("When the store already holds the measurement", func() {
			saver.err = repository.ErrDuplicate
			err := w.Process(ctx, job("p-1", date))

			convey.Convey("Then it should be treated as done", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(forgetter.forgotten(), convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When the store fails", func() {
			saver.err = errors.New("disk full")
			j := job("p-1", date)
			err := w.Process(ctx, j)

			convey.Convey("Then the error should surface and the key be released", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "disk full")
				convey.So(forgetter.forgotten(), convey.ShouldResemble, []string{j.Key})
			})
		})

		convey.Convey("When no forgetter is configured", func() {
			bare := worker.NewInMemoryWorker(queue.NewInMemoryQueue(), saver, nil)
			saver.err = errors.New("boom")

			convey.Convey("Then failures should not panic", func() {
				convey.So(func() { _ = bare.Process(ctx, job("p-1", date)) }, convey.ShouldNotPanic)
			})
		})
	})
}

func TestInMemoryWorker_Run(t *testing.T) {
	convey.Convey("Given a running worker", t, func() {
		_ = logging.Init()
		q := queue.NewInMemoryQueue(queue.WithCapacity(10))
		saver := newMockSaver()
		w := worker.NewInMemoryWorker(q, saver, nil)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When jobs are enqueued", func() {
			base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
			for i := range 3 {
				convey.So(q.Enqueue(ctx, job("p-1", base.AddDate(0, i, 0))), convey.ShouldBeNil)
			}

			convey.Convey("Then they should all be stored", func() {
				deadline := time.Now().Add(time.Second)
				for saver.count() < 3 && time.Now().Before(deadline) {
					time.Sleep(5 * time.Millisecond)
				}
				convey.So(saver.count(), convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When shutting down", func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer shutdownCancel()

			convey.Convey("Then it should stop gracefully", func() {
				convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
				convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
			})
		})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a worker pool over a memory store", t, func() {
		_ = logging.Init()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		store := repository.NewMemoryStore(ctx)
		defer store.Close()
		q := queue.NewInMemoryQueue(queue.WithCapacity(100))

		convey.Convey("When created with a non-positive count", func() {
			pool := worker.NewPool(0, q, store, nil)

			convey.Convey("Then it should default to at least one worker", func() {
				convey.So(pool.Size(), convey.ShouldBeGreaterThanOrEqualTo, 1)
			})
		})

		convey.Convey("When processing a batch with a repeated date", func() {
			pool := worker.NewPool(4, q, store, nil)
			pool.Start(ctx)

			base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
			for i := range 20 {
				convey.So(q.Enqueue(ctx, job("p-2", base.AddDate(0, 0, i))), convey.ShouldBeNil)
			}
			convey.So(q.Enqueue(ctx, job("p-2", base)), convey.ShouldBeNil)

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer shutdownCancel()
			err := pool.Shutdown(shutdownCtx)

			convey.Convey("Then shutdown should drain the queue and keep one copy per date", func() {
				convey.So(err, convey.ShouldBeNil)
				n, cerr := store.Count(ctx)
				convey.So(cerr, convey.ShouldBeNil)
				convey.So(n, convey.ShouldEqual, 20)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})
	})
}
