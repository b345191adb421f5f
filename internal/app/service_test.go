package service_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/okian/nutriagenda/internal/adapters/repository"
	service "github.com/okian/nutriagenda/internal/app"
	"github.com/okian/nutriagenda/internal/domain/model"
	"github.com/okian/nutriagenda/internal/domain/trend"
	"github.com/okian/nutriagenda/internal/domain/validate"
	"github.com/okian/nutriagenda/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

var day0 = time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)

func input(patient string, date time.Time, weight float64) model.MeasurementInput {
	return model.MeasurementInput{
		PatientID: patient,
		Date:      date,
		WeightKg:  model.Ptr(weight),
		HeightCm:  model.Ptr(180.0),
		AgeYears:  model.Ptr(40.0),
		Gender:    "male",
		WaistCm:   model.Ptr(92.0),
		HipCm:     model.Ptr(100.0),
	}
}

func newService(ctx context.Context, opts ...service.Option) *service.Service {
	return service.New(repository.NewMemoryStore(ctx), opts...)
}

func TestService_Assess(t *testing.T) {
	Convey("Given a service", t, func() {
		ctx := context.Background()
		svc := newService(ctx, service.WithClock(func() time.Time { return day0 }))
		defer svc.Stop(ctx)

		Convey("When assessing the reference patient", func() {
			in := model.MeasurementInput{
				WeightKg: model.Ptr(106.6),
				HeightCm: model.Ptr(184.0),
				AgeYears: model.Ptr(41.0),
				Gender:   "female",
			}
			snap, err := svc.Assess(ctx, &in)

			Convey("Then it should be classified as Obesidad I and not stored", func() {
				So(err, ShouldBeNil)
				So(snap.Derived.BMI, ShouldAlmostEqual, 31.486295, 1e-5)
				So(snap.Bands.BMI.Label, ShouldEqual, "Obesidad I")
				So(snap.Date().Equal(day0), ShouldBeTrue)
				So(svc.Stats(ctx)["measurements"], ShouldEqual, 0)
			})
		})

		Convey("When the input is invalid", func() {
			_, err := svc.Assess(ctx, &model.MeasurementInput{HeightCm: model.Ptr(10.0)})

			Convey("Then the validation error should surface", func() {
				var verr *validate.ValidationError
				So(errors.As(err, &verr), ShouldBeTrue)
				So(verr.Fields(), ShouldResemble, []string{"weight_kg", "height_cm"})
			})
		})
	})
}

func TestService_RecordAndTrend(t *testing.T) {
	Convey("Given a service backed by a memory store", t, func() {
		ctx := context.Background()
		svc := newService(ctx)
		defer svc.Stop(ctx)

		Convey("When a measurement has no patient", func() {
			_, _, err := svc.Record(ctx, " ", model.Ptr(input("", day0, 80)))

			Convey("Then it should fail with ErrMissingPatient", func() {
				So(errors.Is(err, service.ErrMissingPatient), ShouldBeTrue)
			})
		})

		Convey("When the path patient differs from the body", func() {
			in := input("p-body", day0, 80)
			_, snap, err := svc.Record(ctx, "p-path", &in)

			Convey("Then the path patient should win", func() {
				So(err, ShouldBeNil)
				So(snap.PatientID(), ShouldEqual, "p-path")
			})

			Convey("Then the caller's input should be left untouched", func() {
				So(in.PatientID, ShouldEqual, "p-body")
			})
		})

		Convey("When a patient has no measurements", func() {
			_, err := svc.Trend(ctx, "ghost")

			Convey("Then trend should fail with ErrNotFound", func() {
				So(errors.Is(err, service.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When a single measurement is stored", func() {
			id, _, err := svc.Record(ctx, "p-1", model.Ptr(input("", day0, 80)))
			So(err, ShouldBeNil)
			So(id, ShouldNotBeEmpty)

			Convey("Then the trend should be nil", func() {
				sum, err := svc.Trend(ctx, "p-1")
				So(err, ShouldBeNil)
				So(sum, ShouldBeNil)
			})

			Convey("And the same date again should be a duplicate", func() {
				_, _, err := svc.Record(ctx, "p-1", model.Ptr(input("", day0, 81)))
				So(errors.Is(err, repository.ErrDuplicate), ShouldBeTrue)
			})
		})

		Convey("When two measurements are stored out of order", func() {
			_, _, err := svc.Record(ctx, "p-1", model.Ptr(input("", day0.AddDate(0, 1, 0), 75)))
			So(err, ShouldBeNil)
			_, _, err = svc.Record(ctx, "p-1", model.Ptr(input("", day0, 80)))
			So(err, ShouldBeNil)

			Convey("Then snapshots should be ordered by date", func() {
				snaps, err := svc.Snapshots(ctx, "p-1")
				So(err, ShouldBeNil)
				So(snaps, ShouldHaveLength, 2)
				So(snaps[0].Raw.WeightKg, ShouldEqual, 80)
				So(snaps[1].Raw.WeightKg, ShouldEqual, 75)
			})

			Convey("Then weight should show a 5 kg improvement", func() {
				sum, err := svc.Trend(ctx, "p-1")
				So(err, ShouldBeNil)
				So(sum, ShouldNotBeNil)
				c, ok := sum.Change(trend.Weight)
				So(ok, ShouldBeTrue)
				So(c.Delta, ShouldAlmostEqual, -5, 1e-9)
				So(c.Direction, ShouldEqual, trend.Improved)
			})

			Convey("Then the report should use the latest snapshot", func() {
				rep, err := svc.Report(ctx, "p-1")
				So(err, ShouldBeNil)
				So(rep.PatientID, ShouldEqual, "p-1")
				So(rep.Date.Equal(day0.AddDate(0, 1, 0)), ShouldBeTrue)
				So(rep.Summary, ShouldNotBeNil)
				So(rep.Series, ShouldHaveLength, 4)
			})

			Convey("Then a report can narrow its series", func() {
				rep, err := svc.Report(ctx, "p-1", trend.Weight)
				So(err, ShouldBeNil)
				So(rep.Series, ShouldHaveLength, 1)
				So(rep.Series[0].Points, ShouldHaveLength, 2)
			})

			Convey("Then the CSV export should have a header and two rows", func() {
				var buf bytes.Buffer
				So(svc.ExportCSV(ctx, "p-1", &buf), ShouldBeNil)
				lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
				So(lines, ShouldHaveLength, 3)
				So(lines[0], ShouldStartWith, "fecha,peso,altura")
				So(lines[1], ShouldStartWith, "2026-01-10,80.0,180.0")
			})

			Convey("Then stats should count both measurements", func() {
				So(svc.Stats(ctx)["measurements"], ShouldEqual, 2)
			})
		})
	})
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		svc := newService(ctx, service.WithWorkerCount(2), service.WithQueueSize(10))

		Convey("When submitting before Start", func() {
			_, err := svc.Submit(ctx, service.SourceHTTP, "b", model.Ptr(input("p-1", day0, 80)))

			Convey("Then it should fail with ErrNotStarted", func() {
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			})
		})

		Convey("When started twice and stopped", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)
			stats := svc.Stats(ctx)
			So(stats["started"], ShouldEqual, true)
			So(stats["workerCount"], ShouldEqual, 2)

			err := svc.Stop(ctx)

			Convey("Then it should stop cleanly and report stopped", func() {
				So(err, ShouldBeNil)
				So(svc.Stats(ctx)["started"], ShouldEqual, false)
				So(svc.Stop(ctx), ShouldBeNil)
			})
		})
	})
}
