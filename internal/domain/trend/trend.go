// Package trend compares a patient's snapshots over time.
package trend

import (
	"fmt"
	"iter"
	"slices"
	"time"

	"github.com/okian/nutriagenda/internal/domain/snapshot"
)

// Direction is the clinical reading of a change.
type Direction string

// Directions.
const (
	Improved  Direction = "improved"
	Worsened  Direction = "worsened"
	Unchanged Direction = "unchanged"
	// Changed is used for neutral metrics that moved.
	Changed Direction = "changed"
)

// History is one patient's snapshots ordered by date, oldest first.
type History struct {
	patientID string
	snaps     []snapshot.Snapshot
}

// NewHistory sorts a copy of snaps by date. The sort is stable so equal
// dates keep their input order. All snapshots must share a patient.
func NewHistory(snaps []snapshot.Snapshot) (History, error) {
	h := History{snaps: slices.Clone(snaps)}
	for i := range h.snaps {
		id := h.snaps[i].PatientID()
		if i == 0 {
			h.patientID = id
			continue
		}
		if id != h.patientID {
			return History{}, fmt.Errorf("%w: %q and %q", ErrMixedPatients, h.patientID, id)
		}
	}
	slices.SortStableFunc(h.snaps, func(a, b snapshot.Snapshot) int {
		return a.Date().Compare(b.Date())
	})
	return h, nil
}

// PatientID returns the owning patient, empty for an empty history.
func (h History) PatientID() string { return h.patientID }

// Len returns the number of snapshots.
func (h History) Len() int { return len(h.snaps) }

// Snapshots returns a copy of the ordered snapshots.
func (h History) Snapshots() []snapshot.Snapshot { return slices.Clone(h.snaps) }

// All yields the snapshots in date order.
func (h History) All() iter.Seq2[int, snapshot.Snapshot] {
	return func(yield func(int, snapshot.Snapshot) bool) {
		for i := range h.snaps {
			if !yield(i, h.snaps[i]) {
				return
			}
		}
	}
}

// First returns the oldest snapshot.
func (h History) First() (snapshot.Snapshot, bool) {
	if len(h.snaps) == 0 {
		return snapshot.Snapshot{}, false
	}
	return h.snaps[0], true
}

// Last returns the newest snapshot.
func (h History) Last() (snapshot.Snapshot, bool) {
	if len(h.snaps) == 0 {
		return snapshot.Snapshot{}, false
	}
	return h.snaps[len(h.snaps)-1], true
}

// Series yields (date, value) for every snapshot carrying metric. It can be
// ranged over any number of times.
func (h History) Series(metric Metric) iter.Seq2[time.Time, float64] {
	return func(yield func(time.Time, float64) bool) {
		for i := range h.snaps {
			v, ok := metric.Value(&h.snaps[i])
			if !ok {
				continue
			}
			if !yield(h.snaps[i].Date(), v) {
				return
			}
		}
	}
}

// Step is the change of a metric between two consecutive readings.
type Step struct {
	From      time.Time `json:"from"`
	To        time.Time `json:"to"`
	Delta     float64   `json:"delta"`
	Direction Direction `json:"direction"`
}

// Steps yields deltas between consecutive readings of metric, skipping
// snapshots that lack it.
func (h History) Steps(metric Metric) iter.Seq[Step] {
	return func(yield func(Step) bool) {
		var (
			prevAt  time.Time
			prevVal float64
			have    bool
		)
		for at, v := range h.Series(metric) {
			if have {
				d := v - prevVal
				if !yield(Step{From: prevAt, To: at, Delta: d, Direction: judge(metric, d)}) {
					return
				}
			}
			prevAt, prevVal, have = at, v, true
		}
	}
}

// Change is a first-to-last comparison of one metric.
type Change struct {
	Metric    Metric    `json:"metric"`
	From      float64   `json:"from"`
	To        float64   `json:"to"`
	Delta     float64   `json:"delta"`
	Direction Direction `json:"direction"`
}

// Summary compares the oldest and newest snapshot of a history.
type Summary struct {
	PatientID string    `json:"patient_id"`
	From      time.Time `json:"from"`
	To        time.Time `json:"to"`
	Entries   int       `json:"entries"`
	Changes   []Change  `json:"changes"`
}

// Change returns the entry for metric, if reported.
func (s *Summary) Change(metric Metric) (Change, bool) {
	for _, c := range s.Changes {
		if c.Metric == metric {
			return c, true
		}
	}
	return Change{}, false
}

// Analyze returns nil when the history has fewer than two snapshots.
// A metric missing from either end is left out of Changes.
func Analyze(h History) *Summary {
	if h.Len() < 2 {
		return nil
	}
	first, last := &h.snaps[0], &h.snaps[len(h.snaps)-1]
	sum := &Summary{
		PatientID: h.patientID,
		From:      first.Date(),
		To:        last.Date(),
		Entries:   h.Len(),
		Changes:   make([]Change, 0, len(summaryMetrics)),
	}
	for _, m := range summaryMetrics {
		from, ok1 := m.Value(first)
		to, ok2 := m.Value(last)
		if !ok1 || !ok2 {
			continue
		}
		d := to - from
		sum.Changes = append(sum.Changes, Change{Metric: m, From: from, To: to, Delta: d, Direction: judge(m, d)})
	}
	return sum
}

func judge(m Metric, delta float64) Direction {
	switch {
	case delta == 0:
		return Unchanged
	case m.Polarity() == Neutral:
		return Changed
	case (delta < 0) == (m.Polarity() == LowerIsBetter):
		return Improved
	default:
		return Worsened
	}
}
