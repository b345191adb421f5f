package trend

import (
	"fmt"
	"strings"

	"github.com/okian/nutriagenda/internal/domain/snapshot"
)

// Metric names a tracked quantity.
type Metric string

// Tracked metrics.
const (
	Weight      Metric = "weight"
	BMI         Metric = "bmi"
	BodyFat     Metric = "body_fat"
	FatMass     Metric = "fat_mass"
	LeanMass    Metric = "lean_mass"
	Waist       Metric = "waist"
	WaistHip    Metric = "waist_hip_ratio"
	BMR         Metric = "bmr"
	IdealWeight Metric = "ideal_weight"
)

// Polarity says which direction of change is good.
type Polarity int

const (
	LowerIsBetter Polarity = iota
	HigherIsBetter
	// Neutral metrics are reported but never judged.
	Neutral
)

type metricDef struct {
	polarity Polarity
	unit     string
	value    func(*snapshot.Snapshot) (float64, bool)
}

func deref(p *float64) (float64, bool) {
	if p == nil {
		return 0, false
	}
	return *p, true
}

//nolint:gochecknoglobals // read-only metric table
var metricDefs = map[Metric]metricDef{
	Weight: {LowerIsBetter, "kg", func(s *snapshot.Snapshot) (float64, bool) { return s.Raw.WeightKg, true }},
	BMI:    {LowerIsBetter, "kg/m2", func(s *snapshot.Snapshot) (float64, bool) { return s.Derived.BMI, true }},
	BodyFat: {LowerIsBetter, "%", func(s *snapshot.Snapshot) (float64, bool) {
		return deref(s.Derived.BodyFatPercent)
	}},
	FatMass: {LowerIsBetter, "kg", func(s *snapshot.Snapshot) (float64, bool) {
		return deref(s.Derived.FatMassKg)
	}},
	LeanMass: {HigherIsBetter, "kg", func(s *snapshot.Snapshot) (float64, bool) {
		return deref(s.Derived.LeanMassKg)
	}},
	Waist: {LowerIsBetter, "cm", func(s *snapshot.Snapshot) (float64, bool) {
		return deref(s.Raw.Circumferences.WaistCm)
	}},
	WaistHip: {LowerIsBetter, "", func(s *snapshot.Snapshot) (float64, bool) {
		return deref(s.Derived.WaistHipRatio)
	}},
	BMR: {Neutral, "kcal", func(s *snapshot.Snapshot) (float64, bool) {
		return deref(s.Derived.BMRKcal)
	}},
	IdealWeight: {Neutral, "kg", func(s *snapshot.Snapshot) (float64, bool) {
		return deref(s.Derived.IdealWeightKg)
	}},
}

// summaryMetrics are the metrics Analyze reports, in output order.
//
//nolint:gochecknoglobals // read-only ordering
var summaryMetrics = []Metric{Weight, BMI, BodyFat, FatMass, LeanMass, Waist, WaistHip}

// Metrics returns every tracked metric name.
func Metrics() []Metric {
	return []Metric{Weight, BMI, BodyFat, FatMass, LeanMass, Waist, WaistHip, BMR, IdealWeight}
}

// ParseMetric resolves a metric name, case-insensitively.
func ParseMetric(s string) (Metric, error) {
	m := Metric(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := metricDefs[m]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownMetric, s)
	}
	return m, nil
}

// Polarity reports how a change in m is judged.
func (m Metric) Polarity() Polarity { return metricDefs[m].polarity }

// Unit returns the display unit of m.
func (m Metric) Unit() string { return metricDefs[m].unit }

// Value extracts m from s. ok is false when the snapshot lacks it.
func (m Metric) Value(s *snapshot.Snapshot) (float64, bool) {
	def, ok := metricDefs[m]
	if !ok {
		return 0, false
	}
	return def.value(s)
}
