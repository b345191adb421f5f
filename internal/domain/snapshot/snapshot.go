// Package snapshot assembles one point-in-time assessment from a validated
// measurement, its derived metrics and their bands.
package snapshot

import (
	"time"

	"github.com/okian/nutriagenda/internal/domain/anthropometry"
	"github.com/okian/nutriagenda/internal/domain/classify"
	"github.com/okian/nutriagenda/internal/domain/model"
)

// Snapshot is an immutable assessment, identified by (PatientID, Date).
type Snapshot struct {
	Raw     model.RawMeasurement         `json:"raw"`
	Derived anthropometry.DerivedMetrics `json:"derived"`
	Bands   classify.Bands               `json:"bands"`
	// BodyScore is only set when the caller supplied one.
	BodyScore *float64 `json:"body_score,omitempty"`
}

// PatientID returns the owning patient.
func (s *Snapshot) PatientID() string { return s.Raw.PatientID }

// Date returns when the measurement was taken.
func (s *Snapshot) Date() time.Time { return s.Raw.Date }

// Key returns the (patient, date) identity.
func (s *Snapshot) Key() string { return s.Raw.Key() }

// Aggregate packages the pieces without computing anything. The snapshot
// owns a deep copy of raw and shares no pointers with the caller.
func Aggregate(raw *model.RawMeasurement, derived *anthropometry.DerivedMetrics, bands classify.Bands) Snapshot {
	s := Snapshot{Raw: raw.Clone(), Derived: *derived, Bands: bands}
	if raw.BodyScore != nil {
		s.BodyScore = model.Ptr(*raw.BodyScore)
	}
	return s
}

// Assess runs Compute, ClassifyAll and Aggregate in order.
func Assess(raw *model.RawMeasurement) Snapshot {
	derived := anthropometry.Compute(raw)
	return Aggregate(raw, &derived, classify.ClassifyAll(raw, &derived))
}

// AssessAll assesses a batch, preserving order.
func AssessAll(raws []model.RawMeasurement) []Snapshot {
	out := make([]Snapshot, len(raws))
	for i := range raws {
		out[i] = Assess(&raws[i])
	}
	return out
}
