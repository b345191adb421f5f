package seed

import (
	"time"

	"github.com/okian/nutriagenda/internal/domain/model"
)

// Config holds configuration for a seed run.
type Config struct {
	BaseURL      string        // Base URL of the service
	Patients     int           // Number of synthetic patients
	Visits       int           // Measurements per patient, one per month
	BatchSize    int           // Entries per POST /imports request
	Workers      int           // Number of concurrent workers
	Timeout      time.Duration // HTTP request timeout
	Settle       time.Duration // How long to wait for imports to land
	PollInterval time.Duration // Delay between trend polls
	Start        time.Time     // Date of the first visit; zero means Visits months ago
	OutputFile   string        // Output file for generated measurements
	LogFile      string        // Log file for run output
	Verbose      bool          // Enable verbose logging
}

// Patient is one synthetic history and the weights the service should
// report back for it.
type Patient struct {
	ID           string                   `json:"patient_id"`
	Measurements []model.MeasurementInput `json:"measurements"`
	FirstWeight  float64                  `json:"first_weight_kg"`
	LastWeight   float64                  `json:"last_weight_kg"`
}

// Stats holds run statistics.
type Stats struct {
	PatientsGenerated     int
	MeasurementsGenerated int
	BatchesSubmitted      int
	BatchesFailed         int
	BackpressureRetries   int
	Accepted              int
	Duplicates            int
	Rejected              int
	TrendsVerified        int
	TrendsMismatched      int
	TrendsMissing         int
	StartTime             time.Time
	EndTime               time.Time
	Duration              time.Duration
}
