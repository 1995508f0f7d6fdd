// Package profile defines the named test types and their defaults: ramp
// stages, thresholds, actor mix and the per-journey time limit.
package profile

import (
	"fmt"
	"sort"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/wesleyorama2/gabsload/internal/actor"
	"github.com/wesleyorama2/gabsload/internal/failure"
	"github.com/wesleyorama2/gabsload/internal/metrics"
	"github.com/wesleyorama2/gabsload/internal/scheduler"
	"github.com/wesleyorama2/gabsload/internal/threshold"
)

// Test type names.
const (
	Smoke  = "smoke"
	Load   = "load"
	Stress = "stress"
	Spike  = "spike"
	Soak   = "soak"
)

// Profile is one test type.
type Profile struct {
	Name        string
	Description string
	Stages      []scheduler.Stage
	Thresholds  []threshold.Spec

	// Mix weights actor kinds. Empty means round robin by slot.
	Mix map[actor.Kind]int

	MaxJourneyDuration time.Duration
}

// Selector returns the admission kind selector for p. draw must return a
// value in [0, n).
func (p *Profile) Selector(draw func(n int) int) scheduler.KindSelector {
	if len(p.Mix) == 0 {
		return scheduler.SlotRoundRobin
	}
	return scheduler.Weighted(p.Mix, draw)
}

// TotalDuration is the sum of stage durations.
func (p *Profile) TotalDuration() time.Duration {
	return scheduler.Config{Stages: p.Stages}.TotalDuration()
}

// PeakTarget is the highest stage target.
func (p *Profile) PeakTarget() int {
	return scheduler.Config{Stages: p.Stages}.PeakTarget()
}

// Clone returns a deep copy.
func (p *Profile) Clone() *Profile {
	out := *p
	out.Stages = append([]scheduler.Stage(nil), p.Stages...)
	out.Thresholds = make([]threshold.Spec, len(p.Thresholds))
	for i, spec := range p.Thresholds {
		out.Thresholds[i] = threshold.Spec{
			Metric:      spec.Metric,
			Expressions: append([]string(nil), spec.Expressions...),
		}
	}
	if p.Mix != nil {
		out.Mix = make(map[actor.Kind]int, len(p.Mix))
		for k, w := range p.Mix {
			out.Mix[k] = w
		}
	}
	return &out
}

// SetThreshold replaces the expressions for metric, or appends a new entry.
func (p *Profile) SetThreshold(metric string, exprs ...string) {
	for i := range p.Thresholds {
		if p.Thresholds[i].Metric == metric {
			p.Thresholds[i].Expressions = exprs
			return
		}
	}
	p.Thresholds = append(p.Thresholds, threshold.Spec{Metric: metric, Expressions: exprs})
}

// Validate checks stages, mix and thresholds. Threshold expressions are
// compiled against the well-known series.
func (p *Profile) Validate() error {
	var result *multierror.Error

	if err := (scheduler.Config{Stages: p.Stages}).Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	if p.MaxJourneyDuration < 0 {
		result = multierror.Append(result, failure.Configf("max_journey_duration", "must not be negative"))
	}

	total := 0
	for k, w := range p.Mix {
		if !k.Valid() {
			result = multierror.Append(result, failure.Configf("mix."+string(k), "unknown actor kind"))
			continue
		}
		if w < 0 {
			result = multierror.Append(result, failure.Configf("mix."+string(k), "weight must not be negative"))
			continue
		}
		total += w
	}
	if len(p.Mix) > 0 && total == 0 {
		result = multierror.Append(result, failure.Configf("mix", "at least one weight must be positive"))
	}

	if _, err := threshold.Compile(p.Thresholds, metrics.WellKnown); err != nil {
		result = multierror.Append(result, err)
	}

	return result.ErrorOrNil()
}

// DefaultMix is the weighted actor mix for every type except smoke.
func DefaultMix() map[actor.Kind]int {
	return map[actor.Kind]int{
		actor.Customer: 1000,
		actor.Vendor:   200,
		actor.Rider:    300,
	}
}

func stages(pairs ...interface{}) []scheduler.Stage {
	out := make([]scheduler.Stage, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, scheduler.Stage{Duration: pairs[i].(time.Duration), Target: pairs[i+1].(int)})
	}
	return out
}

func ceiling(ms int) string {
	return fmt.Sprintf("p(95)<%d", ms)
}

// loadThresholds are the baseline thresholds; other types override them.
func loadThresholds() []threshold.Spec {
	return []threshold.Spec{
		{Metric: metrics.HTTPReqDuration, Expressions: []string{"p(95)<2000", "p(99)<5000"}},
		{Metric: metrics.HTTPReqFailed, Expressions: []string{"rate<0.05"}},
		{Metric: metrics.OrderSuccessRate, Expressions: []string{"rate>0.95"}},
		{Metric: metrics.LoginSuccessRate, Expressions: []string{"rate>0.98"}},
		{Metric: metrics.DeliveryCompletionRate, Expressions: []string{"rate>0.90"}},
		{Metric: metrics.CustomerJourneyTime, Expressions: []string{ceiling(30000)}},
		{Metric: metrics.VendorJourneyTime, Expressions: []string{ceiling(15000)}},
		{Metric: metrics.RiderJourneyTime, Expressions: []string{ceiling(20000)}},
		{Metric: metrics.AuthResponseTime, Expressions: []string{ceiling(2000)}},
		{Metric: metrics.VendorBrowseTime, Expressions: []string{ceiling(3000)}},
		{Metric: metrics.MenuLoadTime, Expressions: []string{ceiling(2000)}},
		{Metric: metrics.OrderPlacementTime, Expressions: []string{ceiling(5000)}},
		{Metric: metrics.OrderTrackingTime, Expressions: []string{ceiling(2000)}},
	}
}

func journeyCeilings(p *Profile, customer, vendor, rider int) {
	p.SetThreshold(metrics.CustomerJourneyTime, ceiling(customer))
	p.SetThreshold(metrics.VendorJourneyTime, ceiling(vendor))
	p.SetThreshold(metrics.RiderJourneyTime, ceiling(rider))
}

const (
	second = time.Second
	minute = time.Minute
)

func builtin(name string) *Profile {
	switch name {
	case Smoke:
		p := &Profile{
			Name:               Smoke,
			Description:        "Minimal load to verify every journey works",
			Stages:             stages(30*second, 5, 1*minute, 10, 30*second, 0),
			Thresholds:         loadThresholds(),
			MaxJourneyDuration: 60 * second,
		}
		p.SetThreshold(metrics.HTTPReqDuration, "p(95)<1000", "p(99)<2000")
		journeyCeilings(p, 15000, 10000, 12000)
		return p

	case Load:
		return &Profile{
			Name:        Load,
			Description: "Expected peak traffic up to 1500 concurrent users",
			Stages: stages(
				2*minute, 150, 3*minute, 500, 3*minute, 1000, 2*minute, 1500,
				10*minute, 1500, 2*minute, 1000, 2*minute, 500, 1*minute, 0),
			Thresholds:         loadThresholds(),
			Mix:                DefaultMix(),
			MaxJourneyDuration: 120 * second,
		}

	case Stress:
		p := &Profile{
			Name:        Stress,
			Description: "Push beyond peak to 5000 users to find the breaking point",
			Stages: stages(
				2*minute, 1000, 3*minute, 2000, 3*minute, 3000, 3*minute, 4000, 2*minute, 5000,
				5*minute, 5000, 3*minute, 2000, 2*minute, 1000, 1*minute, 0),
			Thresholds:         loadThresholds(),
			Mix:                DefaultMix(),
			MaxJourneyDuration: 300 * second,
		}
		p.SetThreshold(metrics.HTTPReqDuration, "p(95)<5000", "p(99)<10000")
		p.SetThreshold(metrics.HTTPReqFailed, "rate<0.10")
		p.SetThreshold(metrics.OrderSuccessRate, "rate>0.85")
		journeyCeilings(p, 60000, 30000, 40000)
		return p

	case Spike:
		p := &Profile{
			Name:        Spike,
			Description: "Sudden bursts to 2000 and 3000 users with recovery between",
			Stages: stages(
				1*minute, 500, 30*second, 2000, 1*minute, 2000, 30*second, 500, 1*minute, 500,
				30*second, 3000, 1*minute, 3000, 30*second, 500, 1*minute, 500, 30*second, 0),
			Thresholds:         loadThresholds(),
			Mix:                DefaultMix(),
			MaxJourneyDuration: 180 * second,
		}
		p.SetThreshold(metrics.HTTPReqDuration, "p(95)<3000", "p(99)<8000")
		p.SetThreshold(metrics.HTTPReqFailed, "rate<0.08")
		journeyCeilings(p, 45000, 20000, 25000)
		return p

	case Soak:
		return &Profile{
			Name:               Soak,
			Description:        "Sustained moderate load for two hours",
			Stages:             stages(5*minute, 200, 2*time.Hour, 200, 5*minute, 0),
			Thresholds:         loadThresholds(),
			Mix:                DefaultMix(),
			MaxJourneyDuration: 120 * second,
		}
	}
	return nil
}

// Names lists the built-in test types in escalating order.
func Names() []string {
	return []string{Smoke, Load, Stress, Spike, Soak}
}

// Lookup returns a fresh copy of the named test type.
func Lookup(name string) (*Profile, error) {
	if p := builtin(name); p != nil {
		return p, nil
	}
	known := Names()
	sort.Strings(known)
	return nil, failure.Configf("test_type", "unknown test type %q (known: %v)", name, known)
}

// All returns every built-in profile in Names order.
func All() []*Profile {
	out := make([]*Profile, 0, len(Names()))
	for _, name := range Names() {
		out = append(out, builtin(name))
	}
	return out
}
