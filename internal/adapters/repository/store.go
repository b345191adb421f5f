// Package repository persists validated measurements per patient.
package repository

import (
	"context"

	"github.com/okian/nutriagenda/internal/domain/model"
)

// Store persists raw measurements. Derived values are never stored; they
// are recomputed from the raw record on read.
type Store interface {
	// Save stores raw under patientID and returns the new record id.
	// Returns ErrDuplicate when the patient already has a record at raw.Date.
	Save(ctx context.Context, patientID string, raw *model.RawMeasurement) (string, error)

	// ListByPatient returns the patient's measurements ordered by date,
	// oldest first. An unknown patient yields an empty slice.
	ListByPatient(ctx context.Context, patientID string) ([]model.RawMeasurement, error)

	// Count returns the number of stored measurements.
	Count(ctx context.Context) (int, error)

	// Close releases resources held by the store.
	Close() error
}
