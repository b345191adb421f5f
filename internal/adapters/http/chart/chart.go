// Package chart renders measurement histories as interactive HTML line
// charts.
package chart

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/okian/nutriagenda/internal/domain/classify"
	"github.com/okian/nutriagenda/internal/domain/report"
	"github.com/okian/nutriagenda/internal/domain/trend"
	"github.com/okian/nutriagenda/pkg/metrics"
)

const dateLayout = "02/01/2006"

// ErrNoData is returned when no snapshot carries the requested metric.
var ErrNoData = errors.New("no data for metric")

// Line builds the line chart of metric over h.
func Line(h trend.History, metric trend.Metric) (*charts.Line, error) {
	xAxis := make([]string, 0, h.Len())
	yData := make([]opts.LineData, 0, h.Len())
	for at, v := range h.Series(metric) {
		xAxis = append(xAxis, at.Format(dateLayout))
		yData = append(yData, opts.LineData{Value: report.Round(metric, v).InexactFloat64()})
	}
	if len(yData) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, metric)
	}

	title := report.Label(metric)
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: h.PatientID(),
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show: opts.Bool(true),
		}),
		charts.WithLegendOpts(opts.Legend{
			Show: opts.Bool(false),
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name: metric.Unit(),
		}),
	)

	seriesOpts := []charts.SeriesOpts{
		charts.WithLineChartOpts(opts.LineChart{
			Smooth:     opts.Bool(true),
			ShowSymbol: opts.Bool(true),
		}),
		charts.WithMarkPointNameTypeItemOpts(
			opts.MarkPointNameTypeItem{Name: "Max", Type: "max"},
			opts.MarkPointNameTypeItem{Name: "Min", Type: "min"},
		),
	}

	if items := bandLines(h, metric); len(items) > 0 {
		seriesOpts = append(seriesOpts, func(s *charts.SingleSeries) {
			s.MarkLines = &opts.MarkLines{
				Data: items,
				MarkLineStyle: opts.MarkLineStyle{
					Symbol: []string{"none", "none"},
					LineStyle: &opts.LineStyle{
						Color: "rgba(128, 128, 128, 0.6)",
						Type:  "dashed",
						Width: 1.5,
					},
				},
			}
		})
	}

	line.SetXAxis(xAxis).
		AddSeries(title, yData).
		SetSeriesOptions(seriesOpts...)
	return line, nil
}

// Render writes the chart of metric over h as a standalone HTML page.
func Render(w io.Writer, h trend.History, metric trend.Metric) error {
	line, err := Line(h, metric)
	if err != nil {
		return err
	}
	if err := line.Render(w); err != nil {
		return fmt.Errorf("render %s chart: %w", metric, err)
	}
	metrics.RecordChartRendered(string(metric))
	return nil
}

// bandLines marks the classification cut-offs of metric. Waist-hip
// cut-offs depend on gender and are taken from the latest snapshot.
func bandLines(h trend.History, metric trend.Metric) []any {
	var (
		table []classify.Threshold
		ok    bool
	)
	switch metric {
	case trend.BMI:
		table, ok = classify.Table(classify.MetricBMI, nil)
	case trend.WaistHip:
		last, found := h.Last()
		if !found {
			return nil
		}
		table, ok = classify.Table(classify.MetricWaistHip, last.Raw.Gender)
	}
	if !ok {
		return nil
	}

	items := make([]any, 0, len(table))
	for _, th := range table {
		if math.IsInf(th.Below, 1) {
			continue
		}
		items = append(items, opts.MarkLineNameYAxisItem{
			Name:  th.Band.Label,
			YAxis: th.Below,
		})
	}
	return items
}
