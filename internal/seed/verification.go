package seed

import (
	"context"
	"fmt"
	"log"
	"math"

	"github.com/okian/nutriagenda/internal/domain/trend"
)

const weightTolerance = 1e-6

// verifyResults checks every retrieved trend against its generated history.
func verifyResults(ctx context.Context, config *Config, patients []Patient, trends []*trend.Summary, stats *Stats) error {
	log.Println("🔍 Verifying trends...")

	for i := range patients {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		sum := trends[i]
		if sum == nil {
			stats.TrendsMissing++
			continue
		}
		if err := verifyTrend(&patients[i], sum); err != nil {
			stats.TrendsMismatched++
			log.Printf("⚠️  %s: %v", patients[i].ID, err)
			continue
		}
		stats.TrendsVerified++
	}

	if config.Verbose {
		displayWeightChanges(patients)
	}

	if stats.TrendsMissing > 0 || stats.TrendsMismatched > 0 {
		return fmt.Errorf("%w: %d missing, %d mismatched of %d",
			ErrVerificationFailed, stats.TrendsMissing, stats.TrendsMismatched, len(patients))
	}
	log.Println("✅ Trend verification completed")
	return nil
}

// verifyTrend compares the weight change of sum with the generated weights.
func verifyTrend(p *Patient, sum *trend.Summary) error {
	if sum.PatientID != p.ID {
		return fmt.Errorf("trend belongs to %q", sum.PatientID)
	}
	if len(p.Measurements) < 2 {
		return nil
	}
	if sum.Entries != len(p.Measurements) {
		return fmt.Errorf("trend covers %d entries, generated %d", sum.Entries, len(p.Measurements))
	}

	c, ok := sum.Change(trend.Weight)
	if !ok {
		return fmt.Errorf("trend has no weight change")
	}
	if math.Abs(c.From-p.FirstWeight) > weightTolerance || math.Abs(c.To-p.LastWeight) > weightTolerance {
		return fmt.Errorf("weight went %.1f -> %.1f, generated %.1f -> %.1f",
			c.From, c.To, p.FirstWeight, p.LastWeight)
	}

	want := trend.Unchanged
	switch d := p.LastWeight - p.FirstWeight; {
	case d < 0:
		want = trend.Improved
	case d > 0:
		want = trend.Worsened
	}
	if c.Direction != want {
		return fmt.Errorf("weight direction %q, expected %q", c.Direction, want)
	}
	return nil
}

// displayWeightChanges logs the largest loss and gain among the histories.
func displayWeightChanges(patients []Patient) {
	if len(patients) == 0 {
		return
	}
	loss, gain := patients[0], patients[0]
	var total float64
	for _, p := range patients {
		d := p.LastWeight - p.FirstWeight
		total += d
		if d < loss.LastWeight-loss.FirstWeight {
			loss = p
		}
		if d > gain.LastWeight-gain.FirstWeight {
			gain = p
		}
	}

	log.Printf(`📊 Weight change statistics:
   Average: %+.2f kg
   Largest loss: %s %+.1f kg
   Largest gain: %s %+.1f kg
`, total/float64(len(patients)),
		loss.ID, loss.LastWeight-loss.FirstWeight,
		gain.ID, gain.LastWeight-gain.FirstWeight)
}
