package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/nutriagenda/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	outputPermission    = 0600
)

// Run executes a complete seed: health check, generation, import and
// trend verification.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	stats := &Stats{
		StartTime: time.Now(),
	}

	logger.Get().Info(ctx, "starting nutriagenda seed",
		logger.String("baseURL", config.BaseURL),
		logger.Int("patients", config.Patients),
		logger.Int("visits", config.Visits),
		logger.Int("batchSize", config.BatchSize),
		logger.Int("workers", config.Workers),
		logger.String("timeout", config.Timeout.String()),
		logger.String("settle", config.Settle.String()),
		logger.String("logFile", config.LogFile),
		logger.Bool("verbose", config.Verbose))

	if err := checkServiceHealth(ctx, config); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	patients, err := generatePatients(ctx, config, stats)
	if err != nil {
		return stats, fmt.Errorf("generation failed: %w", err)
	}

	if err := submitMeasurements(ctx, config, flatten(patients), stats); err != nil {
		return stats, fmt.Errorf("submission failed: %w", err)
	}

	logger.Get().Info(ctx, "waiting for imports to be processed")
	trends := retrieveTrends(ctx, config, patients)

	verifyErr := verifyResults(ctx, config, patients, trends, stats)

	if config.OutputFile != "" {
		if err := savePatientsToFile(ctx, config.OutputFile, patients); err != nil {
			logger.Get().Warn(ctx, "failed to save patients to file", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	displayFinalStats(stats)

	if verifyErr != nil {
		return stats, verifyErr
	}
	logger.Get().Info(ctx, "seed completed successfully")
	return stats, nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, config *Config) error {
	logger.Get().Info(ctx, "checking service health")

	client := newHTTPClient(config.Timeout)
	resp, err := client.Get(ctx, config.BaseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close response body", logger.Error(err))
		}
	}()

	if resp.StatusCode != StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, resp.StatusCode)
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// savePatientsToFile writes the generated histories as a JSON array.
func savePatientsToFile(ctx context.Context, filename string, patients []Patient) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(patients, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal patients: %w", err)
	}
	if err := os.WriteFile(filename, data, outputPermission); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	logger.Get().Info(ctx, "patients saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats prints the final run statistics.
func displayFinalStats(stats *Stats) {
	var verifiedRate, measurementsPerSecond float64

	if stats.PatientsGenerated > 0 {
		verifiedRate = float64(stats.TrendsVerified) / float64(stats.PatientsGenerated) * PercentageMultiplier
	}

	if stats.Duration > 0 {
		measurementsPerSecond = float64(stats.Accepted) / stats.Duration.Seconds()
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("patientsGenerated", stats.PatientsGenerated),
		logger.Int("measurementsGenerated", stats.MeasurementsGenerated),
		logger.Int("batchesSubmitted", stats.BatchesSubmitted),
		logger.Int("batchesFailed", stats.BatchesFailed),
		logger.Int("backpressureRetries", stats.BackpressureRetries),
		logger.Int("accepted", stats.Accepted),
		logger.Int("duplicates", stats.Duplicates),
		logger.Int("rejected", stats.Rejected),
		logger.Int("trendsVerified", stats.TrendsVerified),
		logger.Int("trendsMismatched", stats.TrendsMismatched),
		logger.Int("trendsMissing", stats.TrendsMissing),
		logger.Duration("duration", stats.Duration),
		logger.Float64("verifiedRate", verifiedRate),
		logger.Float64("measurementsPerSecond", measurementsPerSecond))
}
