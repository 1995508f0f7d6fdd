// Package threshold parses pass/fail predicates over finalized metrics and
// evaluates them.
//
// An expression has the form "<aggregation> <op> <number>[unit]":
//
//	p(95)<2000
//	rate>0.95
//	avg < 1.5s
//	count>=100
//
// Aggregations are avg, min, max, med, p(N), rate and count. Operators are
// <, <=, >, >=, == and !=. Trend limits may carry an ms or s suffix and are
// compared in milliseconds.
package threshold

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/wesleyorama2/gabsload/internal/failure"
	"github.com/wesleyorama2/gabsload/internal/metrics"
)

// Spec names a metric and the predicates it must satisfy.
type Spec struct {
	Metric      string   `yaml:"metric" json:"metric"`
	Expressions []string `yaml:"expressions" json:"expressions"`
}

// Threshold is one compiled predicate.
type Threshold struct {
	Metric     string
	Expression string
	Agg        string
	Percentile float64
	Op         string
	Limit      float64
}

var exprRe = regexp.MustCompile(`^(avg|min|max|med|count|rate|p\(\s*(\d+(?:\.\d+)?)\s*\))\s*(<=|>=|==|!=|<|>)\s*(-?\d+(?:\.\d+)?)\s*(ms|s)?$`)

// Parse compiles one expression for metric without checking the metric.
func Parse(metric, expr string) (Threshold, error) {
	m := exprRe.FindStringSubmatch(strings.TrimSpace(expr))
	if m == nil {
		return Threshold{}, failure.Configf("thresholds."+metric, "cannot parse expression %q", expr)
	}

	th := Threshold{
		Metric:     metric,
		Expression: expr,
		Agg:        m[1],
		Op:         m[3],
	}

	if m[2] != "" {
		p, err := strconv.ParseFloat(m[2], 64)
		if err != nil || p < 0 || p > 100 {
			return Threshold{}, failure.Configf("thresholds."+metric, "percentile out of range in %q", expr)
		}
		th.Agg = "p"
		th.Percentile = p
	}

	limit, err := strconv.ParseFloat(m[4], 64)
	if err != nil {
		return Threshold{}, failure.Configf("thresholds."+metric, "invalid limit in %q", expr)
	}
	switch m[5] {
	case "s":
		limit *= 1000
	case "ms", "":
	}
	if m[5] != "" && (th.Agg == "rate" || th.Agg == "count") {
		return Threshold{}, failure.Configf("thresholds."+metric, "unit not allowed for %s in %q", th.Agg, expr)
	}
	th.Limit = limit

	return th, nil
}

// accepts reports whether agg can be computed for a series of kind k.
func accepts(agg string, k metrics.Kind) bool {
	switch agg {
	case "rate":
		return k == metrics.KindRate
	case "count":
		return true
	default:
		return k == metrics.KindTrend
	}
}

// Compile parses every spec and checks each metric against kinds, the
// series defined for the run. All problems are reported together as
// *failure.Configuration errors.
func Compile(specs []Spec, kinds map[string]metrics.Kind) ([]Threshold, error) {
	var result *multierror.Error
	var out []Threshold

	for _, spec := range specs {
		kind, ok := kinds[spec.Metric]
		if !ok {
			result = multierror.Append(result, failure.Configf("thresholds."+spec.Metric, "unknown metric"))
			continue
		}
		if len(spec.Expressions) == 0 {
			result = multierror.Append(result, failure.Configf("thresholds."+spec.Metric, "no expressions"))
			continue
		}

		for _, expr := range spec.Expressions {
			th, err := Parse(spec.Metric, expr)
			if err != nil {
				result = multierror.Append(result, err)
				continue
			}
			if !accepts(th.Agg, kind) {
				result = multierror.Append(result, failure.Configf("thresholds."+spec.Metric,
					"%s is not available on a %s series", th.Agg, kind))
				continue
			}
			out = append(out, th)
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return out, nil
}

// Result is the outcome of one threshold.
type Result struct {
	Metric     string  `json:"metric"`
	Expression string  `json:"expression"`
	Passed     bool    `json:"passed"`
	Skipped    bool    `json:"skipped,omitempty"`
	Value      float64 `json:"value"`
	Message    string  `json:"message,omitempty"`
}

// Key identifies a result as "metric: expression".
func (r Result) Key() string {
	return r.Metric + ": " + r.Expression
}

// Results keeps thresholds in declaration order.
type Results []Result

// Passed reports whether every threshold passed.
func (rs Results) Passed() bool {
	for _, r := range rs {
		if !r.Passed {
			return false
		}
	}
	return true
}

// Failed returns the thresholds that did not pass.
func (rs Results) Failed() Results {
	var out Results
	for _, r := range rs {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}

// Map returns pass/fail keyed by Result.Key.
func (rs Results) Map() map[string]bool {
	out := make(map[string]bool, len(rs))
	for _, r := range rs {
		out[r.Key()] = r.Passed
	}
	return out
}

// Evaluate applies every threshold to summary. A metric missing from the
// summary is a configuration error. A series with no samples is skipped
// and counts as passed.
func Evaluate(summary *metrics.Summary, thresholds []Threshold) (Results, error) {
	results := make(Results, 0, len(thresholds))
	var errs *multierror.Error

	for _, th := range thresholds {
		series, ok := summary.Get(th.Metric)
		if !ok {
			errs = multierror.Append(errs, failure.Configf("thresholds."+th.Metric, "metric not present in results"))
			continue
		}

		r := Result{Metric: th.Metric, Expression: th.Expression}

		if series.Empty() && th.Agg != "count" {
			r.Passed = true
			r.Skipped = true
			r.Message = "no samples"
			results = append(results, r)
			continue
		}

		value, err := valueOf(series, th)
		if err != nil {
			errs = multierror.Append(errs, failure.Configf("thresholds."+th.Metric, "%v", err))
			continue
		}

		r.Value = value
		r.Passed = compare(value, th.Op, th.Limit)
		if !r.Passed {
			r.Message = fmt.Sprintf("%s is %.4g, want %s %g", aggLabel(th), value, th.Op, th.Limit)
		}
		results = append(results, r)
	}

	return results, errs.ErrorOrNil()
}

func aggLabel(th Threshold) string {
	if th.Agg == "p" {
		return fmt.Sprintf("p(%g)", th.Percentile)
	}
	return th.Agg
}

func valueOf(v metrics.SeriesValue, th Threshold) (float64, error) {
	switch th.Agg {
	case "rate":
		return v.Rate, nil
	case "count":
		return float64(v.Count), nil
	case "avg":
		return v.Avg, nil
	case "min":
		return v.Min, nil
	case "max":
		return v.Max, nil
	case "med":
		return v.Med, nil
	case "p":
		return v.Percentile(th.Percentile)
	}
	return 0, fmt.Errorf("unsupported aggregation %q", th.Agg)
}

func compare(actual float64, op string, limit float64) bool {
	switch op {
	case "<":
		return actual < limit
	case "<=":
		return actual <= limit
	case ">":
		return actual > limit
	case ">=":
		return actual >= limit
	case "==":
		return actual == limit
	case "!=":
		return actual != limit
	default:
		return false
	}
}
