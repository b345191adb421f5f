package repository_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"

	"github.com/okian/nutriagenda/internal/adapters/repository"
	"github.com/okian/nutriagenda/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// newPGStore connects to NUTRI_TEST_DATABASE_URL or skips the test.
func newPGStore(t *testing.T) *repository.PGStore {
	t.Helper()
	url := os.Getenv("NUTRI_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("NUTRI_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := repository.NewPool(ctx, url, 4, 1)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	store := repository.NewPGStore(pool)
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestPGStore(t *testing.T) {
	store := newPGStore(t)

	Convey("Given a Postgres store", t, func() {
		ctx := context.Background()
		patient := "pg-" + uuid.NewString()

		Convey("When a full measurement is saved and read back", func() {
			m := measurement(3, 81.5)
			m.AgeYears = model.Ptr(44.0)
			m.ActivityLevel = model.Ptr(model.ActivityLight)
			m.Skinfolds.TricepsMm = model.Ptr(14.0)
			m.Skinfolds.BicepsMm = model.Ptr(6.0)
			m.Breadths.WristCm = model.Ptr(5.4)
			m.Notes = "ayuno"
			_, err := store.Save(ctx, patient, measurement(10, 80))
			So(err, ShouldBeNil)
			id, err := store.Save(ctx, patient, m)
			So(err, ShouldBeNil)
			So(id, ShouldNotBeEmpty)

			list, err := store.ListByPatient(ctx, patient)
			So(err, ShouldBeNil)

			Convey("Then rows should come back ordered with optionals intact", func() {
				So(list, ShouldHaveLength, 2)
				got := list[0]
				So(got.PatientID, ShouldEqual, patient)
				So(got.Date.Equal(m.Date), ShouldBeTrue)
				So(got.WeightKg, ShouldEqual, 81.5)
				So(*got.Gender, ShouldEqual, model.GenderFemale)
				So(*got.ActivityLevel, ShouldEqual, model.ActivityLight)
				So(*got.Skinfolds.TricepsMm, ShouldEqual, 14)
				So(got.Skinfolds.SuprailiacMm, ShouldBeNil)
				So(*got.Skinfolds.BicepsMm, ShouldEqual, 6)
				So(*got.Breadths.WristCm, ShouldEqual, 5.4)
				So(got.Notes, ShouldEqual, "ayuno")
			})

			Convey("Then a second save at the same date should be a duplicate", func() {
				_, err := store.Save(ctx, patient, m)
				So(errors.Is(err, repository.ErrDuplicate), ShouldBeTrue)
			})

			Convey("Then Count should include the rows", func() {
				n, err := store.Count(ctx)
				So(err, ShouldBeNil)
				So(n, ShouldBeGreaterThanOrEqualTo, 2)
			})
		})
	})
}
