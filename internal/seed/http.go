package seed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	service "github.com/okian/nutriagenda/internal/app"
	"github.com/okian/nutriagenda/internal/domain/model"
)

// HTTPClient wraps http.Client with timeout
type HTTPClient struct {
	client  *http.Client
	timeout time.Duration
}

// newHTTPClient creates a new HTTP client with timeout
func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{
			Timeout: timeout,
		},
		timeout: timeout,
	}
}

// Get performs a GET request
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// Post performs a POST request with JSON body
func (c *HTTPClient) Post(ctx context.Context, url string, body any) (*http.Response, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

// readResponseBody reads and closes the response body
func readResponseBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// backpressureBody is the 429 payload of POST /imports.
type backpressureBody struct {
	Details service.ImportResult `json:"details"`
}

// batchOutcome tallies one chunk after all of its retries.
type batchOutcome struct {
	accepted   int
	duplicates int
	rejected   int
	retries    int
	err        error
}

// chunk splits entries into batches of at most size.
func chunk(entries []model.MeasurementInput, size int) [][]model.MeasurementInput {
	if size < 1 {
		size = DefaultBatchSize
	}
	var out [][]model.MeasurementInput
	for len(entries) > size {
		out = append(out, entries[:size:size])
		entries = entries[size:]
	}
	if len(entries) > 0 {
		out = append(out, entries)
	}
	return out
}

// submitMeasurements posts the histories to /imports concurrently.
func submitMeasurements(ctx context.Context, config *Config, entries []model.MeasurementInput, stats *Stats) error {
	batches := chunk(entries, config.BatchSize)
	workers := max(1, config.Workers)
	log.Printf("📤 Submitting %d measurements in %d batches with %d workers...", len(entries), len(batches), workers)

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/imports"

	var (
		accepted   int64
		duplicates int64
		rejected   int64
		retries    int64
		submitted  int64
		failed     int64
	)

	batchChan := make(chan []model.MeasurementInput, workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for batch := range batchChan {
				out := submitBatch(ctx, client, url, batch)

				atomic.AddInt64(&submitted, 1)
				atomic.AddInt64(&accepted, int64(out.accepted))
				atomic.AddInt64(&duplicates, int64(out.duplicates))
				atomic.AddInt64(&rejected, int64(out.rejected))
				atomic.AddInt64(&retries, int64(out.retries))
				if out.err != nil {
					atomic.AddInt64(&failed, 1)
					log.Printf("⚠️  Batch failed: %v", out.err)
				}

				if config.Verbose {
					log.Printf("📊 Progress: %d/%d batches (accepted: %d, duplicate: %d, rejected: %d)",
						atomic.LoadInt64(&submitted), len(batches),
						atomic.LoadInt64(&accepted), atomic.LoadInt64(&duplicates), atomic.LoadInt64(&rejected))
				}
			}
		}()
	}

	go func() {
		defer close(batchChan)
		for _, batch := range batches {
			select {
			case <-ctx.Done():
				return
			case batchChan <- batch:
			}
		}
	}()

	wg.Wait()

	stats.BatchesSubmitted = int(atomic.LoadInt64(&submitted))
	stats.BatchesFailed = int(atomic.LoadInt64(&failed))
	stats.Accepted = int(atomic.LoadInt64(&accepted))
	stats.Duplicates = int(atomic.LoadInt64(&duplicates))
	stats.Rejected = int(atomic.LoadInt64(&rejected))
	stats.BackpressureRetries = int(atomic.LoadInt64(&retries))

	log.Printf(`✅ Submission completed:
   Accepted: %d
   Duplicate: %d
   Rejected: %d
   Failed batches: %d
`, stats.Accepted, stats.Duplicates, stats.Rejected, stats.BatchesFailed)

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("submission interrupted: %w", err)
	}
	return nil
}

// submitBatch posts one batch. On 429 the entries the service already
// consumed are skipped and the rest is retried after a pause.
func submitBatch(ctx context.Context, client *HTTPClient, url string, batch []model.MeasurementInput) batchOutcome {
	var out batchOutcome
	for attempt := 0; len(batch) > 0; attempt++ {
		resp, err := client.Post(ctx, url, batch)
		if err != nil {
			out.err = err
			return out
		}
		body, err := readResponseBody(resp)
		if err != nil {
			out.err = fmt.Errorf("failed to read response: %w", err)
			return out
		}

		switch resp.StatusCode {
		case StatusAccepted:
			var res service.ImportResult
			if err := json.Unmarshal(body, &res); err != nil {
				out.err = fmt.Errorf("failed to decode import result: %w", err)
				return out
			}
			out.add(res)
			return out
		case StatusTooManyRequests:
			if attempt >= MaxBackpressureTries {
				out.err = fmt.Errorf("gave up after %d backpressure retries", attempt)
				return out
			}
			var bp backpressureBody
			if err := json.Unmarshal(body, &bp); err != nil {
				out.err = fmt.Errorf("failed to decode backpressure details: %w", err)
				return out
			}
			out.add(bp.Details)
			out.retries++
			consumed := min(len(batch), bp.Details.Accepted+bp.Details.Duplicates+len(bp.Details.Rejected))
			batch = batch[consumed:]
			select {
			case <-ctx.Done():
				out.err = ctx.Err()
				return out
			case <-time.After(BackpressureDelay):
			}
		default:
			out.err = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
			return out
		}
	}
	return out
}

func (o *batchOutcome) add(res service.ImportResult) {
	o.accepted += res.Accepted
	o.duplicates += res.Duplicates
	o.rejected += len(res.Rejected)
}
