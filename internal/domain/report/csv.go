package report

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/shopspring/decimal"

	"github.com/okian/nutriagenda/internal/domain/snapshot"
	"github.com/okian/nutriagenda/internal/domain/trend"
)

// CSVHeader is the export column set.
//
//nolint:gochecknoglobals // fixed header
var CSVHeader = []string{
	"fecha", "peso", "altura", "imc", "grasaCorporal",
	"masaMagra", "cintura", "cadera", "metabolismoBasal",
}

const csvDateLayout = "2006-01-02"

// WriteCSV writes one row per snapshot in date order. Absent metrics are
// left blank.
func WriteCSV(w io.Writer, h trend.History) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, s := range h.All() {
		if err := cw.Write(csvRow(&s)); err != nil {
			return fmt.Errorf("write csv row %s: %w", s.Key(), err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func csvRow(s *snapshot.Snapshot) []string {
	cell := func(m trend.Metric) string {
		v, ok := m.Value(s)
		if !ok {
			return ""
		}
		return Round(m, v).StringFixed(places(m))
	}
	opt := func(p *float64) string {
		if p == nil {
			return ""
		}
		return decimal.NewFromFloat(*p).Round(lengthPlaces).StringFixed(lengthPlaces)
	}
	return []string{
		s.Date().UTC().Format(csvDateLayout),
		cell(trend.Weight),
		opt(&s.Raw.HeightCm),
		cell(trend.BMI),
		cell(trend.BodyFat),
		cell(trend.LeanMass),
		cell(trend.Waist),
		opt(s.Raw.Circumferences.HipCm),
		cell(trend.BMR),
	}
}
