package metrics

import (
	"fmt"
	"time"
)

// Summary is the finalized value of every series in a run.
type Summary struct {
	Elapsed time.Duration          `json:"elapsed"`
	Series  map[string]SeriesValue `json:"series"`
	Phases  []PhaseChange          `json:"phases,omitempty"`
}

// SeriesValue holds the finalized statistics for one series. Fields that
// do not apply to the series kind are zero.
type SeriesValue struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`

	// Count is the number of samples (rate, trend) or the total (counter).
	Count int64 `json:"count"`

	// Rate
	Passes int64   `json:"passes,omitempty"`
	Rate   float64 `json:"rate,omitempty"`

	// Counter
	PerSecond float64 `json:"perSecond,omitempty"`

	// Trend
	Avg float64 `json:"avg,omitempty"`
	Min float64 `json:"min,omitempty"`
	Max float64 `json:"max,omitempty"`
	Med float64 `json:"med,omitempty"`
	P90 float64 `json:"p90,omitempty"`
	P95 float64 `json:"p95,omitempty"`
	P99 float64 `json:"p99,omitempty"`

	sorted []float64
}

// Empty reports whether the series received no samples.
func (v SeriesValue) Empty() bool {
	return v.Count == 0
}

// Percentile answers an arbitrary p(N) query for a trend.
func (v SeriesValue) Percentile(p float64) (float64, error) {
	if v.Kind != KindTrend {
		return 0, fmt.Errorf("series %q is a %s, percentiles need a trend", v.Name, v.Kind)
	}
	return Percentile(v.sorted, p), nil
}

// Get returns the named series.
func (s *Summary) Get(name string) (SeriesValue, bool) {
	if s == nil {
		return SeriesValue{}, false
	}
	v, ok := s.Series[name]
	return v, ok
}

// RateOf returns the rate of a series and whether it had samples.
func (s *Summary) RateOf(name string) (float64, bool) {
	v, ok := s.Get(name)
	if !ok || v.Kind != KindRate || v.Empty() {
		return 0, false
	}
	return v.Rate, true
}

// AvgOf returns the mean of a trend and whether it had samples.
func (s *Summary) AvgOf(name string) (float64, bool) {
	v, ok := s.Get(name)
	if !ok || v.Kind != KindTrend || v.Empty() {
		return 0, false
	}
	return v.Avg, true
}

// CountOf returns a counter total, zero if undefined.
func (s *Summary) CountOf(name string) int64 {
	v, ok := s.Get(name)
	if !ok {
		return 0
	}
	return v.Count
}
