package metrics

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Kind is the variant of a metric series.
type Kind int

const (
	KindRate Kind = iota
	KindTrend
	KindCounter
)

func (k Kind) String() string {
	switch k {
	case KindRate:
		return "rate"
	case KindTrend:
		return "trend"
	case KindCounter:
		return "counter"
	default:
		return "unknown"
	}
}

// MarshalText renders the kind by name in JSON reports.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Rate tracks the fraction of true outcomes.
type Rate struct {
	passes atomic.Int64
	total  atomic.Int64
}

// Add records one outcome. total is bumped before passes so a reader that
// loads passes first never sees passes > total.
func (r *Rate) Add(ok bool) {
	r.total.Add(1)
	if ok {
		r.passes.Add(1)
	}
}

// Value returns passes/total, or 0 with no samples.
func (r *Rate) Value() float64 {
	passes, total := r.load()
	if total == 0 {
		return 0
	}
	return float64(passes) / float64(total)
}

func (r *Rate) load() (passes, total int64) {
	passes = r.passes.Load()
	total = r.total.Load()
	return passes, total
}

// Counter is a monotonic total.
type Counter struct {
	total atomic.Int64
}

// Add increases the counter. Negative deltas are rejected.
func (c *Counter) Add(n int64) error {
	if n < 0 {
		return fmt.Errorf("counter cannot decrease by %d", n)
	}
	c.total.Add(n)
	return nil
}

// Value returns the current total.
func (c *Counter) Value() int64 {
	return c.total.Load()
}

// HDR range for the live view, in microseconds: 1µs to 1 hour.
const (
	histMin     int64 = 1
	histMax     int64 = 3_600_000_000
	histSigFigs       = 3
)

// Trend keeps every sample for exact percentiles at finalize time and an
// HDR histogram for cheap percentiles while the run is live.
//
// # Thread Safety
//
// Add and the read methods share one mutex, so no sample is lost to
// concurrent writers.
type Trend struct {
	mu      sync.Mutex
	samples []float64
	sum     float64
	hist    *hdrhistogram.Histogram
}

func newTrend() *Trend {
	return &Trend{
		samples: make([]float64, 0, 1024),
		hist:    hdrhistogram.New(histMin, histMax, histSigFigs),
	}
}

// Add records one sample. Trend values are in milliseconds by convention.
func (t *Trend) Add(v float64) {
	micros := int64(v * 1000)
	if micros < histMin {
		micros = histMin
	}
	if micros > histMax {
		micros = histMax
	}

	t.mu.Lock()
	t.samples = append(t.samples, v)
	t.sum += v
	// RecordValue only fails for out-of-range values, which are clamped above.
	_ = t.hist.RecordValue(micros)
	t.mu.Unlock()
}

// AddDuration records d in milliseconds.
func (t *Trend) AddDuration(d time.Duration) {
	t.Add(float64(d) / float64(time.Millisecond))
}

// Count returns the number of samples recorded.
func (t *Trend) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.samples)
}

// LiveStats are approximate, histogram-backed statistics.
type LiveStats struct {
	Count int64
	Avg   float64
	P50   float64
	P95   float64
	P99   float64
}

// Live returns histogram-based statistics in milliseconds.
func (t *Trend) Live() LiveStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := len(t.samples)
	if n == 0 {
		return LiveStats{}
	}
	return LiveStats{
		Count: int64(n),
		Avg:   t.sum / float64(n),
		P50:   float64(t.hist.ValueAtQuantile(50)) / 1000,
		P95:   float64(t.hist.ValueAtQuantile(95)) / 1000,
		P99:   float64(t.hist.ValueAtQuantile(99)) / 1000,
	}
}

// sorted returns a sorted copy of the samples and their sum.
func (t *Trend) sorted() ([]float64, float64) {
	t.mu.Lock()
	out := make([]float64, len(t.samples))
	copy(out, t.samples)
	sum := t.sum
	t.mu.Unlock()

	sort.Float64s(out)
	return out, sum
}

// Percentile returns the p-th percentile (0..100) of sorted samples using
// linear interpolation between closest ranks:
//
//	rank = p/100 * (n-1)
//	value = s[floor(rank)] + (s[ceil(rank)] - s[floor(rank)]) * frac(rank)
//
// An empty slice yields 0.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[n-1]
	}

	rank := p / 100 * float64(n-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
