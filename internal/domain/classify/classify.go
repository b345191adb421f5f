// Package classify maps derived metrics onto the clinical band tables.
//
// Each table is plain data: an ordered list of upper bounds. A value falls
// into the first row whose Below bound exceeds it, so band boundaries
// belong to the upper band (BMI 25.0 is Sobrepeso, not Normal).
package classify

import (
	"math"

	"github.com/okian/nutriagenda/internal/domain/anthropometry"
	"github.com/okian/nutriagenda/internal/domain/model"
)

// Metric names a classified quantity.
type Metric string

// Classified metrics.
const (
	MetricBMI      Metric = "bmi"
	MetricWaistHip Metric = "waist_hip_ratio"
)

// Band is a labelled range with a display colour.
type Band struct {
	Code     string `json:"code"`
	Label    string `json:"label"`
	ColorTag string `json:"color"`
}

// Threshold is one table row: values strictly below Below get Band.
type Threshold struct {
	Below float64
	Band  Band
}

// Bands holds the classifications of one snapshot. Nil means the metric
// was absent or needed a gender that was not recorded.
type Bands struct {
	BMI      *Band `json:"bmi,omitempty"`
	WaistHip *Band `json:"waist_hip_ratio,omitempty"`
}

//nolint:gochecknoglobals // read-only band tables
var (
	bmiTable = []Threshold{
		{18.5, Band{"underweight", "Bajo peso", "#3B82F6"}},
		{25, Band{"normal", "Normal", "#10B981"}},
		{30, Band{"overweight", "Sobrepeso", "#F59E0B"}},
		{35, Band{"obesity_1", "Obesidad I", "#EF4444"}},
		{40, Band{"obesity_2", "Obesidad II", "#DC2626"}},
		{math.Inf(1), Band{"obesity_3", "Obesidad III", "#991B1B"}},
	}

	whrLow      = Band{"low", "Bajo", "#10B981"}
	whrModerate = Band{"moderate", "Moderado", "#F59E0B"}
	whrHigh     = Band{"high", "Alto", "#EF4444"}

	whrTables = map[model.Gender][]Threshold{
		model.GenderMale: {
			{0.90, whrLow},
			{1.00, whrModerate},
			{math.Inf(1), whrHigh},
		},
		model.GenderFemale: {
			{0.80, whrLow},
			{0.85, whrModerate},
			{math.Inf(1), whrHigh},
		},
	}
)

// Table returns a copy of the band table for metric. Gender is ignored for
// BMI and required for WHR. ok is false when no table applies.
func Table(metric Metric, g *model.Gender) ([]Threshold, bool) {
	var t []Threshold
	switch metric {
	case MetricBMI:
		t = bmiTable
	case MetricWaistHip:
		if g == nil {
			return nil, false
		}
		t = whrTables[*g]
	}
	if t == nil {
		return nil, false
	}
	return append([]Threshold(nil), t...), true
}

// Classify returns the band value falls into. ok is false for an unknown
// metric, a missing gender where one is required, or a NaN value.
func Classify(metric Metric, value float64, g *model.Gender) (Band, bool) {
	if math.IsNaN(value) {
		return Band{}, false
	}
	t, ok := Table(metric, g)
	if !ok {
		return Band{}, false
	}
	return lookup(t, value)
}

func lookup(t []Threshold, value float64) (Band, bool) {
	for _, row := range t {
		if value < row.Below {
			return row.Band, true
		}
	}
	return Band{}, false
}

// ClassifyAll classifies every banded metric present in derived.
func ClassifyAll(raw *model.RawMeasurement, derived *anthropometry.DerivedMetrics) Bands {
	var b Bands
	if band, ok := Classify(MetricBMI, derived.BMI, raw.Gender); ok {
		b.BMI = &band
	}
	if derived.WaistHipRatio != nil {
		if band, ok := Classify(MetricWaistHip, *derived.WaistHipRatio, raw.Gender); ok {
			b.WaistHip = &band
		}
	}
	return b
}
