package repository_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/nutriagenda/internal/adapters/repository"
	"github.com/okian/nutriagenda/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

var day0 = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

func measurement(day int, weight float64) *model.RawMeasurement {
	return &model.RawMeasurement{
		Date:           day0.AddDate(0, 0, day),
		WeightKg:       weight,
		HeightCm:       170,
		Circumferences: model.Circumferences{WaistCm: model.Ptr(85.0)},
		Gender:         model.Ptr(model.GenderFemale),
	}
}

func TestMemoryStore(t *testing.T) {
	Convey("Given an empty memory store", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore(ctx)
		defer func() { _ = store.Close() }()

		Convey("When measurements are saved out of order", func() {
			id1, err := store.Save(ctx, "p-1", measurement(20, 70))
			So(err, ShouldBeNil)
			id2, err := store.Save(ctx, "p-1", measurement(0, 72))
			So(err, ShouldBeNil)
			_, err = store.Save(ctx, "p-2", measurement(5, 90))
			So(err, ShouldBeNil)

			Convey("Then ids should be unique uuids", func() {
				So(id1, ShouldNotEqual, id2)
				So(id1, ShouldHaveLength, 36)
			})

			Convey("Then the list should be ordered by date and scoped to the patient", func() {
				list, err := store.ListByPatient(ctx, "p-1")
				So(err, ShouldBeNil)
				So(list, ShouldHaveLength, 2)
				So(list[0].WeightKg, ShouldEqual, 72)
				So(list[1].WeightKg, ShouldEqual, 70)
				So(list[0].PatientID, ShouldEqual, "p-1")
			})

			Convey("Then the count should cover all patients", func() {
				n, err := store.Count(ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 3)
				So(store.Patients(), ShouldEqual, 2)
			})

			Convey("Then returned records should not alias stored ones", func() {
				list, _ := store.ListByPatient(ctx, "p-1")
				*list[0].Circumferences.WaistCm = 1
				again, _ := store.ListByPatient(ctx, "p-1")
				So(*again[0].Circumferences.WaistCm, ShouldEqual, 85)
			})
		})

		Convey("When the caller reuses its measurement after saving", func() {
			m := measurement(2, 70)
			_, err := store.Save(ctx, "p-3", m)
			So(err, ShouldBeNil)
			*m.Circumferences.WaistCm = 1
			m.PatientID = "other"

			list, _ := store.ListByPatient(ctx, "p-3")
			So(*list[0].Circumferences.WaistCm, ShouldEqual, 85)
			So(list[0].PatientID, ShouldEqual, "p-3")
		})

		Convey("When the same patient and date are saved twice", func() {
			_, err := store.Save(ctx, "p-1", measurement(1, 70))
			So(err, ShouldBeNil)
			_, err = store.Save(ctx, "p-1", measurement(1, 71))
			So(errors.Is(err, repository.ErrDuplicate), ShouldBeTrue)
		})

		Convey("When the patient id is empty", func() {
			_, err := store.Save(ctx, "", measurement(1, 70))
			So(errors.Is(err, repository.ErrInvalidPatient), ShouldBeTrue)
		})

		Convey("When listing an unknown patient", func() {
			list, err := store.ListByPatient(ctx, "nobody")
			So(err, ShouldBeNil)
			So(list, ShouldBeEmpty)
		})

		Convey("When the store is closed", func() {
			So(store.Close(), ShouldBeNil)
			So(store.Close(), ShouldBeNil)
			_, err := store.Save(ctx, "p-1", measurement(1, 70))
			So(errors.Is(err, repository.ErrClosed), ShouldBeTrue)
		})
	})
}

func TestMemoryStore_Options(t *testing.T) {
	Convey("Given a custom id generator", t, func() {
		n := 0
		store := repository.NewMemoryStore(context.Background(),
			repository.WithIDGenerator(func() string { n++; return fmt.Sprintf("m-%d", n) }),
			repository.WithMetricsUpdateInterval(10*time.Millisecond),
		)
		defer func() { _ = store.Close() }()

		id, err := store.Save(context.Background(), "p", measurement(0, 60))
		So(err, ShouldBeNil)
		So(id, ShouldEqual, "m-1")
	})
}

func TestMemoryStore_Concurrent(t *testing.T) {
	Convey("Given concurrent writers on distinct dates", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore(ctx)
		defer func() { _ = store.Close() }()

		var wg sync.WaitGroup
		for w := 0; w < 8; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := 0; i < 50; i++ {
					_, _ = store.Save(ctx, "p", measurement(w*50+i, 70))
				}
			}(w)
		}
		wg.Wait()

		Convey("Then every record should be kept in date order", func() {
			list, err := store.ListByPatient(ctx, "p")
			So(err, ShouldBeNil)
			So(list, ShouldHaveLength, 400)
			for i := 1; i < len(list); i++ {
				So(list[i-1].Date.Before(list[i].Date), ShouldBeTrue)
			}
		})
	})
}
