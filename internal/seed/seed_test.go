package seed_test

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/okian/nutriagenda/internal/adapters/http/api"
	"github.com/okian/nutriagenda/internal/adapters/repository"
	service "github.com/okian/nutriagenda/internal/app"
	"github.com/okian/nutriagenda/internal/seed"
	"github.com/okian/nutriagenda/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestRun(t *testing.T) {
	Convey("Given a running service over a memory store", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		svc := service.New(repository.NewMemoryStore(ctx), service.WithWorkerCount(2), service.WithQueueSize(1000))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop(context.Background())

		mux := http.NewServeMux()
		api.NewServer(svc).Register(ctx, mux)
		srv := httptest.NewServer(mux)
		defer srv.Close()

		output := filepath.Join(t.TempDir(), "out", "patients.json")
		cfg := &seed.Config{
			BaseURL:      srv.URL,
			Patients:     6,
			Visits:       3,
			BatchSize:    4,
			Workers:      2,
			Timeout:      5 * time.Second,
			Settle:       10 * time.Second,
			PollInterval: 20 * time.Millisecond,
			Start:        time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
			OutputFile:   output,
		}

		Convey("When seeding", func() {
			stats, err := seed.Run(ctx, cfg)

			Convey("Then every trend should be verified", func() {
				So(err, ShouldBeNil)
				So(stats.Accepted, ShouldEqual, 18)
				So(stats.Duplicates, ShouldEqual, 0)
				So(stats.TrendsVerified, ShouldEqual, 6)
				So(stats.TrendsMissing, ShouldEqual, 0)
			})

			Convey("Then the histories should be written out", func() {
				data, err := os.ReadFile(output)
				So(err, ShouldBeNil)
				var saved []seed.Patient
				So(json.Unmarshal(data, &saved), ShouldBeNil)
				So(saved, ShouldHaveLength, 6)
				So(saved[0].Measurements, ShouldHaveLength, 3)
			})
		})

		Convey("When asking for no patients", func() {
			cfg.Patients = 0
			_, err := seed.Run(ctx, cfg)
			So(errors.Is(err, seed.ErrNothingGenerated), ShouldBeTrue)
		})
	})

	Convey("Given an unhealthy service", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		_, err := seed.Run(context.Background(), &seed.Config{BaseURL: srv.URL, Patients: 1, Visits: 1, Timeout: time.Second})
		So(errors.Is(err, seed.ErrUnhealthy), ShouldBeTrue)
	})
}

func TestShowHelp(t *testing.T) {
	Convey("Given the help text", t, func() {
		var b strings.Builder
		seed.ShowHelp(&b)
		So(b.String(), ShouldContainSubstring, "-patients")
		So(b.String(), ShouldContainSubstring, "-settle")
	})
}

func TestSetupLogging(t *testing.T) {
	Convey("Given a log file path", t, func() {
		path := filepath.Join(t.TempDir(), "seed.log")
		closer, err := seed.SetupLogging(path)
		So(err, ShouldBeNil)
		defer func() {
			_ = closer.Close()
			_ = logger.Init()
			log.SetOutput(os.Stderr)
		}()

		logger.Get().Info(context.Background(), "hello from seed")

		data, err := os.ReadFile(path)
		So(err, ShouldBeNil)
		So(string(data), ShouldContainSubstring, "hello from seed")
	})
}
