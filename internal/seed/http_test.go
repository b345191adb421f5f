package seed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	service "github.com/okian/nutriagenda/internal/app"
	"github.com/okian/nutriagenda/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// importRecorder answers POST /imports with scripted statuses.
type importRecorder struct {
	mu      sync.Mutex
	sizes   []int
	replies []func(w http.ResponseWriter, n int)
}

func (r *importRecorder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	var batch []model.MeasurementInput
	_ = json.NewDecoder(req.Body).Decode(&batch)

	r.mu.Lock()
	call := len(r.sizes)
	r.sizes = append(r.sizes, len(batch))
	r.mu.Unlock()

	if call < len(r.replies) {
		r.replies[call](w, len(batch))
		return
	}
	accept(w, len(batch))
}

func accept(w http.ResponseWriter, n int) {
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(service.ImportResult{BatchID: "b", Accepted: n})
}

func TestSubmitBatch(t *testing.T) {
	Convey("Given an import endpoint", t, func() {
		ctx := context.Background()
		client := newHTTPClient(time.Second)
		batch := make([]model.MeasurementInput, 5)

		Convey("When the first attempt hits backpressure after two entries", func() {
			rec := &importRecorder{replies: []func(http.ResponseWriter, int){
				func(w http.ResponseWriter, _ int) {
					w.WriteHeader(http.StatusTooManyRequests)
					_ = json.NewEncoder(w).Encode(map[string]any{
						"code": "backpressure",
						"details": service.ImportResult{
							Accepted: 1,
							Rejected: []service.ImportRejection{{Index: 1, Reason: "missing patient"}},
						},
					})
				},
			}}
			srv := httptest.NewServer(rec)
			defer srv.Close()

			out := submitBatch(ctx, client, srv.URL, batch)

			Convey("Then only the remaining entries should be resent", func() {
				So(out.err, ShouldBeNil)
				So(rec.sizes, ShouldResemble, []int{5, 3})
				So(out.accepted, ShouldEqual, 4)
				So(out.rejected, ShouldEqual, 1)
				So(out.retries, ShouldEqual, 1)
			})
		})

		Convey("When the service answers with an unexpected status", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			}))
			defer srv.Close()

			out := submitBatch(ctx, client, srv.URL, batch)

			Convey("Then the batch should fail", func() {
				So(out.err, ShouldNotBeNil)
				So(out.err.Error(), ShouldContainSubstring, "500")
			})
		})
	})
}

func TestSubmitMeasurements(t *testing.T) {
	Convey("Given eleven entries and a batch size of four", t, func() {
		rec := &importRecorder{}
		srv := httptest.NewServer(rec)
		defer srv.Close()

		cfg := &Config{BaseURL: srv.URL, BatchSize: 4, Workers: 2, Timeout: time.Second}
		stats := &Stats{}
		err := submitMeasurements(context.Background(), cfg, make([]model.MeasurementInput, 11), stats)

		Convey("Then three batches should be accepted", func() {
			So(err, ShouldBeNil)
			So(stats.BatchesSubmitted, ShouldEqual, 3)
			So(stats.BatchesFailed, ShouldEqual, 0)
			So(stats.Accepted, ShouldEqual, 11)
			So(rec.sizes, ShouldHaveLength, 3)
		})
	})
}
