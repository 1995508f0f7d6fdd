// Package metrics aggregates per-call and per-journey outcomes into named
// Rate, Trend and Counter series and finalizes them into a Summary.
package metrics

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wesleyorama2/gabsload/internal/http"
)

// Aggregator owns every series of one run. Construct one per run and pass
// it to whatever records; there is no package-level registry.
//
// # Thread Safety
//
// Record and the typed helpers may be called from any number of
// goroutines. Rates and counters use atomics, trends use a mutex per
// series, and the series map is guarded by an RWMutex.
type Aggregator struct {
	mu     sync.RWMutex
	series map[string]interface{}

	activeVUs  atomic.Int32
	mismatches atomic.Int64

	phaseMu sync.Mutex
	phases  []PhaseChange

	start time.Time
	now   func() time.Time
}

// PhaseChange records when the run entered a scheduler state.
type PhaseChange struct {
	Phase     string    `json:"phase"`
	Timestamp time.Time `json:"timestamp"`
	Requests  int64     `json:"requests"`
}

// NewAggregator creates an aggregator with every WellKnown series defined.
func NewAggregator() *Aggregator {
	a := &Aggregator{
		series: make(map[string]interface{}, len(WellKnown)),
		start:  time.Now(),
		now:    time.Now,
	}
	for name, kind := range WellKnown {
		a.series[name] = newSeries(kind)
	}
	return a
}

func newSeries(kind Kind) interface{} {
	switch kind {
	case KindRate:
		return &Rate{}
	case KindTrend:
		return newTrend()
	default:
		return &Counter{}
	}
}

func kindOf(s interface{}) Kind {
	switch s.(type) {
	case *Rate:
		return KindRate
	case *Trend:
		return KindTrend
	default:
		return KindCounter
	}
}

// Define registers a series. Redefining with the same kind is a no-op.
func (a *Aggregator) Define(name string, kind Kind) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if existing, ok := a.series[name]; ok {
		if k := kindOf(existing); k != kind {
			return fmt.Errorf("series %q already defined as %s", name, k)
		}
		return nil
	}
	a.series[name] = newSeries(kind)
	return nil
}

// Kinds returns the kind of every defined series.
func (a *Aggregator) Kinds() map[string]Kind {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make(map[string]Kind, len(a.series))
	for name, s := range a.series {
		out[name] = kindOf(s)
	}
	return out
}

func (a *Aggregator) lookup(name string) (interface{}, bool) {
	a.mu.RLock()
	s, ok := a.series[name]
	a.mu.RUnlock()
	return s, ok
}

// Record adds value to a defined series: a Rate treats non-zero as true,
// a Trend stores the sample, a Counter adds it.
func (a *Aggregator) Record(name string, value float64) error {
	s, ok := a.lookup(name)
	if !ok {
		return fmt.Errorf("unknown series %q", name)
	}

	switch s := s.(type) {
	case *Rate:
		s.Add(value != 0)
	case *Trend:
		s.Add(value)
	case *Counter:
		if value != math.Trunc(value) || math.IsInf(value, 0) {
			return fmt.Errorf("counter %q needs a whole number, got %g", name, value)
		}
		return s.Add(int64(value))
	}
	return nil
}

// Rate returns the named rate series, defining it if needed. It returns
// nil when the name belongs to another kind.
func (a *Aggregator) Rate(name string) *Rate {
	s := a.getOrDefine(name, KindRate)
	r, _ := s.(*Rate)
	return r
}

// Trend returns the named trend series, defining it if needed.
func (a *Aggregator) Trend(name string) *Trend {
	s := a.getOrDefine(name, KindTrend)
	t, _ := s.(*Trend)
	return t
}

// Counter returns the named counter series, defining it if needed.
func (a *Aggregator) Counter(name string) *Counter {
	s := a.getOrDefine(name, KindCounter)
	c, _ := s.(*Counter)
	return c
}

func (a *Aggregator) getOrDefine(name string, kind Kind) interface{} {
	if s, ok := a.lookup(name); ok {
		if kindOf(s) != kind {
			a.mismatches.Add(1)
			return nil
		}
		return s
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if s, ok := a.series[name]; ok {
		if kindOf(s) != kind {
			a.mismatches.Add(1)
			return nil
		}
		return s
	}
	s := newSeries(kind)
	a.series[name] = s
	return s
}

// AddRate records one boolean outcome.
func (a *Aggregator) AddRate(name string, ok bool) {
	if r := a.Rate(name); r != nil {
		r.Add(ok)
	}
}

// AddTrend records one sample.
func (a *Aggregator) AddTrend(name string, v float64) {
	if t := a.Trend(name); t != nil {
		t.Add(v)
	}
}

// AddDuration records d as milliseconds.
func (a *Aggregator) AddDuration(name string, d time.Duration) {
	if t := a.Trend(name); t != nil {
		t.AddDuration(d)
	}
}

// Inc increments a counter by one.
func (a *Aggregator) Inc(name string) {
	if c := a.Counter(name); c != nil {
		_ = c.Add(1)
	}
}

// Mismatches counts typed-helper calls dropped because the name was
// already defined with another kind.
func (a *Aggregator) Mismatches() int64 {
	return a.mismatches.Load()
}

// ObserveRequest records http_reqs, http_req_duration and http_req_failed
// for one completed call. It makes the aggregator an http.Observer.
func (a *Aggregator) ObserveRequest(rec http.Record) {
	a.Inc(HTTPReqs)
	a.AddDuration(HTTPReqDuration, rec.Duration)
	a.AddRate(HTTPReqFailed, rec.Failed())
}

// SetActiveVUs updates the active VU gauge.
func (a *Aggregator) SetActiveVUs(n int) {
	a.activeVUs.Store(int32(n))
}

// ActiveVUs returns the active VU gauge.
func (a *Aggregator) ActiveVUs() int {
	return int(a.activeVUs.Load())
}

// SetPhase appends a phase change unless the phase is unchanged.
func (a *Aggregator) SetPhase(phase string) {
	a.phaseMu.Lock()
	defer a.phaseMu.Unlock()

	if n := len(a.phases); n > 0 && a.phases[n-1].Phase == phase {
		return
	}

	var requests int64
	if c := a.Counter(HTTPReqs); c != nil {
		requests = c.Value()
	}
	a.phases = append(a.phases, PhaseChange{Phase: phase, Timestamp: a.now(), Requests: requests})
}

// Phases returns a copy of the phase history.
func (a *Aggregator) Phases() []PhaseChange {
	a.phaseMu.Lock()
	defer a.phaseMu.Unlock()

	out := make([]PhaseChange, len(a.phases))
	copy(out, a.phases)
	return out
}

// Elapsed returns time since the aggregator was created.
func (a *Aggregator) Elapsed() time.Duration {
	return a.now().Sub(a.start)
}

// Snapshot is a cheap live view for progress output.
type Snapshot struct {
	Elapsed       time.Duration
	ActiveVUs     int
	TotalRequests int64
	ErrorRate     float64
	RPS           float64
	Latency       LiveStats
	Iterations    int64
}

// Snapshot returns histogram-backed live statistics.
func (a *Aggregator) Snapshot() Snapshot {
	elapsed := a.Elapsed()
	snap := Snapshot{
		Elapsed:   elapsed,
		ActiveVUs: a.ActiveVUs(),
	}
	if c := a.Counter(HTTPReqs); c != nil {
		snap.TotalRequests = c.Value()
	}
	if r := a.Rate(HTTPReqFailed); r != nil {
		snap.ErrorRate = r.Value()
	}
	if t := a.Trend(HTTPReqDuration); t != nil {
		snap.Latency = t.Live()
	}
	if c := a.Counter(Iterations); c != nil {
		snap.Iterations = c.Value()
	}
	if elapsed > 0 {
		snap.RPS = float64(snap.TotalRequests) / elapsed.Seconds()
	}
	return snap
}

// Finalize computes the end-of-run value of every series. It may be called
// while recording continues; the result reflects a consistent copy of
// each series at the moment it was read.
func (a *Aggregator) Finalize() *Summary {
	elapsed := a.Elapsed()

	a.mu.RLock()
	names := make([]string, 0, len(a.series))
	for name := range a.series {
		names = append(names, name)
	}
	snapshot := make(map[string]interface{}, len(a.series))
	for name, s := range a.series {
		snapshot[name] = s
	}
	a.mu.RUnlock()
	sort.Strings(names)

	summary := &Summary{
		Elapsed: elapsed,
		Series:  make(map[string]SeriesValue, len(names)),
		Phases:  a.Phases(),
	}

	for _, name := range names {
		v := SeriesValue{Name: name}
		switch s := snapshot[name].(type) {
		case *Rate:
			v.Kind = KindRate
			v.Passes, v.Count = s.load()
			if v.Count > 0 {
				v.Rate = float64(v.Passes) / float64(v.Count)
			}
		case *Trend:
			v.Kind = KindTrend
			sorted, sum := s.sorted()
			v.Count = int64(len(sorted))
			v.sorted = sorted
			if len(sorted) > 0 {
				v.Avg = sum / float64(len(sorted))
				v.Min = sorted[0]
				v.Max = sorted[len(sorted)-1]
				v.Med = Percentile(sorted, 50)
				v.P90 = Percentile(sorted, 90)
				v.P95 = Percentile(sorted, 95)
				v.P99 = Percentile(sorted, 99)
			}
		case *Counter:
			v.Kind = KindCounter
			v.Count = s.Value()
			if elapsed > 0 {
				v.PerSecond = float64(v.Count) / elapsed.Seconds()
			}
		}
		summary.Series[name] = v
	}

	return summary
}

var _ http.Observer = (*Aggregator)(nil)
