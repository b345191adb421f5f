package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/nutriagenda/internal/domain/trend"
)

// retrieveTrends polls the trend of every patient until its history holds
// all generated visits or the settle window closes. A nil entry means the
// trend never became complete.
func retrieveTrends(ctx context.Context, config *Config, patients []Patient) []*trend.Summary {
	workers := max(1, config.Workers)
	log.Printf("📈 Retrieving trends for %d patients with %d workers...", len(patients), workers)

	client := newHTTPClient(config.Timeout)
	settle := config.Settle
	if settle <= 0 {
		settle = DefaultSettle
	}
	poll := config.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	deadline := time.Now().Add(settle)

	trends := make([]*trend.Summary, len(patients))
	var retrieved int64

	indexChan := make(chan int, workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for index := range indexChan {
				p := patients[index]
				sum, err := awaitTrend(ctx, client, config.BaseURL, p.ID, len(p.Measurements), poll, deadline)
				if err != nil {
					if config.Verbose {
						log.Printf("⚠️  Trend for %s incomplete: %v", p.ID, err)
					}
					continue
				}
				trends[index] = sum
				atomic.AddInt64(&retrieved, 1)
			}
		}()
	}

	go func() {
		defer close(indexChan)
		for i := range patients {
			select {
			case <-ctx.Done():
				return
			case indexChan <- i:
			}
		}
	}()

	wg.Wait()

	log.Printf("✅ Retrieved %d/%d trends", atomic.LoadInt64(&retrieved), len(patients))
	return trends
}

// awaitTrend polls one patient until the summary covers want entries.
// Single-visit histories never produce a summary; they are accepted as
// soon as the endpoint answers.
func awaitTrend(ctx context.Context, client *HTTPClient, baseURL, patientID string, want int, poll time.Duration, deadline time.Time) (*trend.Summary, error) {
	endpoint := baseURL + "/patients/" + url.PathEscape(patientID) + "/trend"
	var last error
	for {
		sum, err := fetchTrend(ctx, client, endpoint)
		switch {
		case err != nil:
			last = err
		case sum != nil && sum.Entries >= want:
			return sum, nil
		case sum == nil && want < 2:
			return &trend.Summary{PatientID: patientID, Entries: want}, nil
		case sum != nil:
			last = fmt.Errorf("have %d of %d entries", sum.Entries, want)
		default:
			last = fmt.Errorf("no trend yet")
		}

		if time.Now().After(deadline) {
			return nil, last
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(poll):
		}
	}
}

// fetchTrend performs one GET. A 204 or 404 yields a nil summary.
func fetchTrend(ctx context.Context, client *HTTPClient, endpoint string) (*trend.Summary, error) {
	resp, err := client.Get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch resp.StatusCode {
	case StatusOK:
		var sum trend.Summary
		if err := json.Unmarshal(body, &sum); err != nil {
			return nil, fmt.Errorf("failed to decode trend: %w", err)
		}
		return &sum, nil
	case StatusNoContent, StatusNotFound:
		return nil, nil
	default:
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
}
