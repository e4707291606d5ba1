// Package stats turns accumulated samples into summaries and board rates.
package stats

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/stat"
)

// NoData is printed in place of a summary with no samples.
const NoData = "no data"

// Summary is the mean and population standard deviation of a sample set.
// A Summary with Count == 0 means there was nothing to summarize.
type Summary struct {
	Avg    float64
	StdDev float64
	Count  int
}

// Summarize computes the mean and population standard deviation (dividing
// by N) of samples. An empty sample set yields a no-data Summary.
func Summarize(samples []float64) Summary {
	if len(samples) == 0 {
		return Summary{}
	}
	mean, std := stat.PopMeanStdDev(samples, nil)
	return Summary{Avg: mean, StdDev: std, Count: len(samples)}
}

// NoData reports whether the summary was computed from zero samples.
func (s Summary) NoData() bool {
	return s.Count == 0
}

// String formats the summary in hours.
func (s Summary) String() string {
	if s.NoData() {
		return NoData
	}
	return fmt.Sprintf("avg: %.2f h, std_dev: %.2f", s.Avg, s.StdDev)
}

// Rates are board-level throughput figures.
type Rates struct {
	// LifeTime is the time between the first card creation and the last
	// board activity
	LifeTime time.Duration

	DoneCards        int
	DoneCardsPerHour float64
	DoneCardsPerDay  float64
}

// HasData reports whether the board lived long enough to compute rates.
func (r Rates) HasData() bool {
	return r.LifeTime > 0
}

// BoardRates computes the done-card rates over the board life time. The
// rates are left at zero, and HasData is false, when the life time is not
// positive.
func BoardRates(doneCards int, firstCardCreation, lastActivity time.Time) Rates {
	r := Rates{DoneCards: doneCards}
	if firstCardCreation.IsZero() || lastActivity.IsZero() {
		return r
	}

	r.LifeTime = lastActivity.Sub(firstCardCreation)
	if r.LifeTime <= 0 {
		r.LifeTime = 0
		return r
	}

	seconds := r.LifeTime.Seconds()
	r.DoneCardsPerHour = float64(doneCards) / (seconds / 3600)
	r.DoneCardsPerDay = float64(doneCards) / (seconds / 86400)
	return r
}
