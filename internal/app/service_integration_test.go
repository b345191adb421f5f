package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/nutriagenda/internal/adapters/repository"
	service "github.com/okian/nutriagenda/internal/app"
	"github.com/okian/nutriagenda/internal/domain/model"
	"github.com/okian/nutriagenda/internal/domain/trend"
	. "github.com/smartystreets/goconvey/convey"
)

func waitForCount(ctx context.Context, svc *service.Service, want int) int {
	deadline := time.Now().Add(2 * time.Second)
	for {
		n, _ := svc.Stats(ctx)["measurements"].(int)
		if n >= want || time.Now().After(deadline) {
			return n
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// gatedStore blocks every Save until release is closed and reports each
// entry on entered.
type gatedStore struct {
	*repository.MemoryStore
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStore) Save(ctx context.Context, patientID string, raw *model.RawMeasurement) (string, error) {
	select {
	case g.entered <- struct{}{}:
	default:
	}
	<-g.release
	return g.MemoryStore.Save(ctx, patientID, raw)
}

// slowStore delays every Save.
type slowStore struct {
	*repository.MemoryStore
	delay time.Duration
}

func (s *slowStore) Save(ctx context.Context, patientID string, raw *model.RawMeasurement) (string, error) {
	time.Sleep(s.delay)
	return s.MemoryStore.Save(ctx, patientID, raw)
}

func TestServiceImport(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		svc := newService(ctx,
			service.WithWorkerCount(2),
			service.WithQueueSize(1000),
			service.WithDedupeSize(500),
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop(ctx)

		Convey("When importing a monthly history", func() {
			var batch []model.MeasurementInput
			for i := range 6 {
				batch = append(batch, input("p-imp", day0.AddDate(0, i, 0), 90-float64(i)))
			}
			res, err := svc.Import(ctx, service.SourceHTTP, batch)

			Convey("Then every entry should be accepted and stored", func() {
				So(err, ShouldBeNil)
				So(res.BatchID, ShouldNotBeEmpty)
				So(res.Accepted, ShouldEqual, 6)
				So(res.Duplicates, ShouldEqual, 0)
				So(waitForCount(ctx, svc, 6), ShouldEqual, 6)

				sum, err := svc.Trend(ctx, "p-imp")
				So(err, ShouldBeNil)
				c, ok := sum.Change(trend.Weight)
				So(ok, ShouldBeTrue)
				So(c.Delta, ShouldAlmostEqual, -5, 1e-9)
			})

			Convey("And importing it again", func() {
				again, err := svc.Import(ctx, service.SourceAMQP, batch)

				Convey("Then every entry should be a duplicate", func() {
					So(err, ShouldBeNil)
					So(again.Accepted, ShouldEqual, 0)
					So(again.Duplicates, ShouldEqual, 6)
				})
			})
		})

		Convey("When a batch mixes valid, anonymous and invalid entries", func() {
			bad := input("p-mix", day0.AddDate(0, 1, 0), 80)
			bad.HeightCm = model.Ptr(500.0)
			batch := []model.MeasurementInput{
				input("p-mix", day0, 80),
				input("", day0, 80),
				bad,
			}
			res, err := svc.Import(ctx, service.SourceHTTP, batch)

			Convey("Then the anonymous one is rejected up front and the invalid one dropped by the worker", func() {
				So(err, ShouldBeNil)
				So(res.Accepted, ShouldEqual, 2)
				So(res.Rejected, ShouldHaveLength, 1)
				So(res.Rejected[0].Index, ShouldEqual, 1)
				So(waitForCount(ctx, svc, 1), ShouldEqual, 1)
			})

			Convey("Then the invalid entry's key should be released for a corrected resubmission", func() {
				So(waitForCount(ctx, svc, 1), ShouldEqual, 1)
				fixed := bad
				fixed.HeightCm = model.Ptr(180.0)
				var dup bool
				var err error
				deadline := time.Now().Add(2 * time.Second)
				for {
					dup, err = svc.Submit(ctx, service.SourceHTTP, "retry", &fixed)
					if !dup || err != nil || time.Now().After(deadline) {
						break
					}
					time.Sleep(10 * time.Millisecond)
				}
				So(err, ShouldBeNil)
				So(dup, ShouldBeFalse)
				So(waitForCount(ctx, svc, 2), ShouldEqual, 2)
			})
		})
	})
}

func TestServiceImport_Backpressure(t *testing.T) {
	Convey("Given a service whose only worker is stuck on a save", t, func() {
		ctx := context.Background()
		store := &gatedStore{
			MemoryStore: repository.NewMemoryStore(ctx),
			entered:     make(chan struct{}, 1),
			release:     make(chan struct{}),
		}
		svc := service.New(store, service.WithQueueSize(2), service.WithWorkerCount(1))
		So(svc.Start(ctx), ShouldBeNil)
		var releaseOnce sync.Once
		release := func() { releaseOnce.Do(func() { close(store.release) }) }
		defer func() {
			release()
			_ = svc.Stop(ctx)
		}()

		// One job is held by the worker and one waits in the hand-off, so
		// the queue buffer starts empty.
		_, err := svc.Submit(ctx, service.SourceHTTP, "warm", model.Ptr(input("p-warm", day0, 80)))
		So(err, ShouldBeNil)
		<-store.entered
		_, err = svc.Submit(ctx, service.SourceHTTP, "warm", model.Ptr(input("p-warm", day0.AddDate(0, 1, 0), 80)))
		So(err, ShouldBeNil)
		deadline := time.Now().Add(2 * time.Second)
		for svc.Stats(ctx)["queueLength"] != 0 && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}

		Convey("When a larger batch is imported", func() {
			var batch []model.MeasurementInput
			for i := range 5 {
				batch = append(batch, input(fmt.Sprintf("p-%d", i), day0, 80))
			}
			res, err := svc.Import(ctx, service.SourceHTTP, batch)

			Convey("Then it should stop with ErrBackpressure and release the rejected key", func() {
				So(errors.Is(err, service.ErrBackpressure), ShouldBeTrue)
				So(res.Accepted, ShouldEqual, 2)

				_, err := svc.Submit(ctx, service.SourceHTTP, "retry", &batch[2])
				So(errors.Is(err, service.ErrBackpressure), ShouldBeTrue)
			})

			Convey("Then releasing the worker should store everything accepted", func() {
				release()
				So(svc.Stop(ctx), ShouldBeNil)
				n, _ := store.Count(ctx)
				So(n, ShouldEqual, 4)
			})
		})
	})
}

func TestService_StopDrainsQueue(t *testing.T) {
	Convey("Given a single slow worker and a large accepted batch", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		store := &slowStore{MemoryStore: repository.NewMemoryStore(context.Background()), delay: 2 * time.Millisecond}
		svc := service.New(store, service.WithWorkerCount(1), service.WithQueueSize(500))
		So(svc.Start(ctx), ShouldBeNil)

		var batch []model.MeasurementInput
		for i := range 200 {
			batch = append(batch, input("p-drain", day0.Add(time.Duration(i)*time.Hour), 80))
		}
		res, err := svc.Import(ctx, service.SourceAMQP, batch)
		So(err, ShouldBeNil)
		So(res.Accepted, ShouldEqual, 200)

		Convey("When the start context is canceled before Stop", func() {
			cancel()
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer stopCancel()
			err := svc.Stop(stopCtx)

			Convey("Then every accepted measurement should have been stored", func() {
				So(err, ShouldBeNil)
				n, _ := store.Count(context.Background())
				So(n, ShouldEqual, 200)
			})
		})
	})
}
