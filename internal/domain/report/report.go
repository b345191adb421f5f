// Package report shapes assessments for display. It formats and rounds
// values but never derives them.
package report

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/okian/nutriagenda/internal/domain/classify"
	"github.com/okian/nutriagenda/internal/domain/snapshot"
	"github.com/okian/nutriagenda/internal/domain/trend"
)

// Card is one displayed metric.
type Card struct {
	Metric  trend.Metric   `json:"metric"`
	Label   string         `json:"label"`
	Value   float64        `json:"value"`
	Display string         `json:"display"`
	Unit    string         `json:"unit,omitempty"`
	Band    *classify.Band `json:"band,omitempty"`
}

// Point is one chart sample.
type Point struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// Series is a chartable metric over time.
type Series struct {
	Metric trend.Metric `json:"metric"`
	Label  string       `json:"label"`
	Unit   string       `json:"unit,omitempty"`
	Points []Point      `json:"points"`
}

// Report is the view of a patient's latest assessment.
type Report struct {
	PatientID  string         `json:"patient_id"`
	Date       time.Time      `json:"date"`
	Cards      []Card         `json:"cards"`
	Somatotype *Somatotype    `json:"somatotype,omitempty"`
	Fractions  []Fraction     `json:"fractions,omitempty"`
	BodyScore  *float64       `json:"body_score,omitempty"`
	Notes      string         `json:"notes,omitempty"`
	Summary    *trend.Summary `json:"summary,omitempty"`
	Series     []Series       `json:"series,omitempty"`
}

// Somatotype is the rounded Heath-Carter rating.
type Somatotype struct {
	Endomorphy string  `json:"endomorphy"`
	Mesomorphy string  `json:"mesomorphy"`
	Ectomorphy string  `json:"ectomorphy"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
}

// Fraction is one component of the four-component body mass split.
type Fraction struct {
	Label   string  `json:"label"`
	Kg      float64 `json:"kg"`
	Percent float64 `json:"percent"`
	Display string  `json:"display"`
}

//nolint:gochecknoglobals // display labels
var labels = map[trend.Metric]string{
	trend.Weight:      "Peso",
	trend.BMI:         "IMC",
	trend.BodyFat:     "Grasa corporal",
	trend.FatMass:     "Masa grasa",
	trend.LeanMass:    "Masa magra",
	trend.Waist:       "Cintura",
	trend.WaistHip:    "Índice cintura-cadera",
	trend.BMR:         "Metabolismo basal",
	trend.IdealWeight: "Peso ideal",
}

// cardOrder is the display order of cards.
//
//nolint:gochecknoglobals // display order
var cardOrder = []trend.Metric{
	trend.Weight, trend.BMI, trend.BodyFat, trend.FatMass, trend.LeanMass,
	trend.Waist, trend.WaistHip, trend.BMR, trend.IdealWeight,
}

// Label returns the display label of m.
func Label(m trend.Metric) string {
	if l, ok := labels[m]; ok {
		return l
	}
	return string(m)
}

// places is the number of decimals shown for m.
func places(m trend.Metric) int32 {
	switch m {
	case trend.WaistHip:
		return 2
	case trend.BMR:
		return 0
	default:
		return 1
	}
}

// lengthPlaces is the precision of raw lengths and masses outside the
// metric cards.
const lengthPlaces int32 = 1

// Round rounds v half away from zero to the display precision of m.
func Round(m trend.Metric, v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(places(m))
}

// Assemble builds the report for snap. summary may be nil; a series is
// attached for each requested metric that has at least one reading.
func Assemble(snap *snapshot.Snapshot, summary *trend.Summary, history trend.History, metrics ...trend.Metric) Report {
	r := Report{
		PatientID: snap.PatientID(),
		Date:      snap.Date(),
		Notes:     snap.Raw.Notes,
		Summary:   summary,
	}
	if snap.BodyScore != nil {
		v := *snap.BodyScore
		r.BodyScore = &v
	}

	for _, m := range cardOrder {
		v, ok := m.Value(snap)
		if !ok {
			continue
		}
		d := Round(m, v)
		r.Cards = append(r.Cards, Card{
			Metric:  m,
			Label:   Label(m),
			Value:   d.InexactFloat64(),
			Display: d.StringFixed(places(m)),
			Unit:    m.Unit(),
			Band:    bandFor(m, snap),
		})
	}

	if st := snap.Derived.Somatotype; st != nil {
		r.Somatotype = &Somatotype{
			Endomorphy: decimal.NewFromFloat(st.Endomorphy).StringFixed(1),
			Mesomorphy: decimal.NewFromFloat(st.Mesomorphy).StringFixed(1),
			Ectomorphy: decimal.NewFromFloat(st.Ectomorphy).StringFixed(1),
			X:          decimal.NewFromFloat(st.X).Round(2).InexactFloat64(),
			Y:          decimal.NewFromFloat(st.Y).Round(2).InexactFloat64(),
		}
	}

	if fr := snap.Derived.Fractionation; fr != nil {
		r.Fractions = []Fraction{
			fraction("Masa grasa", fr.FatKg, fr.FatPercent),
			fraction("Masa ósea", fr.BoneKg, fr.BonePercent),
			fraction("Masa residual", fr.ResidualKg, fr.ResidualPercent),
			fraction("Masa muscular", fr.MuscleKg, fr.MusclePercent),
		}
	}

	for _, m := range metrics {
		s := Series{Metric: m, Label: Label(m), Unit: m.Unit()}
		for at, v := range history.Series(m) {
			s.Points = append(s.Points, Point{Date: at, Value: Round(m, v).InexactFloat64()})
		}
		if len(s.Points) > 0 {
			r.Series = append(r.Series, s)
		}
	}
	return r
}

func fraction(label string, kg, pct float64) Fraction {
	k := decimal.NewFromFloat(kg).Round(lengthPlaces)
	return Fraction{
		Label:   label,
		Kg:      k.InexactFloat64(),
		Percent: decimal.NewFromFloat(pct).Round(lengthPlaces).InexactFloat64(),
		Display: k.StringFixed(lengthPlaces) + " kg",
	}
}

func bandFor(m trend.Metric, s *snapshot.Snapshot) *classify.Band {
	var b *classify.Band
	switch m {
	case trend.BMI:
		b = s.Bands.BMI
	case trend.WaistHip:
		b = s.Bands.WaistHip
	}
	if b == nil {
		return nil
	}
	cp := *b
	return &cp
}
