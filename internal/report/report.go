// Package report builds the end-of-run summary: request totals, business
// rates, journey times, threshold outcomes, and a letter grade with
// recommendations.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wesleyorama2/gabsload/internal/actor"
	"github.com/wesleyorama2/gabsload/internal/metrics"
	"github.com/wesleyorama2/gabsload/internal/scheduler"
	"github.com/wesleyorama2/gabsload/internal/threshold"
)

// Requests summarizes HTTP traffic. Times are milliseconds.
type Requests struct {
	Total     int64   `json:"total"`
	Errors    int64   `json:"errors"`
	ErrorRate float64 `json:"errorRatePercent"`
	PerSecond float64 `json:"requestsPerSecond"`
	AvgMs     float64 `json:"avgMs"`
	P95Ms     float64 `json:"p95Ms"`
	P99Ms     float64 `json:"p99Ms"`
}

// Rate is a business rate in percent. Observed is false when the series
// had no samples, in which case Percent is meaningless.
type Rate struct {
	Percent  float64 `json:"percent"`
	Observed bool    `json:"observed"`
}

// Business holds the domain outcomes of the run.
type Business struct {
	OrderSuccess        Rate  `json:"orderSuccess"`
	LoginSuccess        Rate  `json:"loginSuccess"`
	DeliveryCompletion  Rate  `json:"deliveryCompletion"`
	OrdersPlaced        int64 `json:"ordersPlaced"`
	OrdersAccepted      int64 `json:"ordersAccepted"`
	DeliveriesCompleted int64 `json:"deliveriesCompleted"`
	MenuViews           int64 `json:"menuViews"`
	VendorBrowses       int64 `json:"vendorBrowses"`
}

// Journey summarizes the journeys of one actor kind.
type Journey struct {
	Count    int64   `json:"count"`
	AvgMs    float64 `json:"avgMs"`
	P95Ms    float64 `json:"p95Ms"`
	Observed bool    `json:"observed"`
}

// Iterations counts scheduler admissions that ran a journey.
type Iterations struct {
	Total   int64 `json:"total"`
	Failed  int64 `json:"failed"`
	Success Rate  `json:"success"`
}

// Report is the complete run summary.
type Report struct {
	RunID     string        `json:"runId"`
	TestType  string        `json:"testType"`
	StartTime time.Time     `json:"startTime"`
	EndTime   time.Time     `json:"endTime"`
	Duration  time.Duration `json:"duration"`

	Requests   Requests               `json:"requests"`
	Business   Business               `json:"business"`
	Journeys   map[actor.Kind]Journey `json:"journeys"`
	Iterations Iterations             `json:"iterations"`
	Checks     Rate                   `json:"checks"`

	Scheduler *scheduler.Stats      `json:"scheduler,omitempty"`
	Phases    []metrics.PhaseChange `json:"phases,omitempty"`

	Thresholds       threshold.Results `json:"thresholds"`
	FailedThresholds []string          `json:"failedThresholds,omitempty"`
	Passed           bool              `json:"passed"`

	Measures        Measures `json:"measures"`
	Score           int      `json:"score"`
	Grade           string   `json:"grade"`
	Recommendations []string `json:"recommendations"`
}

// Input is everything Build needs.
type Input struct {
	RunID      string
	TestType   string
	Start      time.Time
	End        time.Time
	Summary    *metrics.Summary
	Thresholds threshold.Results
	Scheduler  *scheduler.Stats

	// Scheme defaults to DefaultGradeScheme.
	Scheme *GradeScheme
}

var journeySeries = map[actor.Kind]string{
	actor.Customer: metrics.CustomerJourneyTime,
	actor.Vendor:   metrics.VendorJourneyTime,
	actor.Rider:    metrics.RiderJourneyTime,
}

func rateOf(s *metrics.Summary, name string) Rate {
	v, ok := s.RateOf(name)
	return Rate{Percent: v * 100, Observed: ok}
}

// Build assembles the report and grades it.
func Build(in Input) *Report {
	scheme := in.Scheme
	if scheme == nil {
		scheme = DefaultGradeScheme()
	}
	sum := in.Summary
	if sum == nil {
		sum = &metrics.Summary{}
	}

	r := &Report{
		RunID:      in.RunID,
		TestType:   in.TestType,
		StartTime:  in.Start,
		EndTime:    in.End,
		Duration:   in.End.Sub(in.Start),
		Journeys:   make(map[actor.Kind]Journey, len(journeySeries)),
		Scheduler:  in.Scheduler,
		Phases:     sum.Phases,
		Thresholds: in.Thresholds,
		Passed:     in.Thresholds.Passed(),
		Measures:   make(Measures),
	}

	reqs, _ := sum.Get(metrics.HTTPReqs)
	failed, _ := sum.Get(metrics.HTTPReqFailed)
	latency, _ := sum.Get(metrics.HTTPReqDuration)
	r.Requests = Requests{
		Total:     reqs.Count,
		Errors:    failed.Passes,
		ErrorRate: failed.Rate * 100,
		PerSecond: reqs.PerSecond,
		AvgMs:     latency.Avg,
		P95Ms:     latency.P95,
		P99Ms:     latency.P99,
	}
	if !failed.Empty() {
		r.Measures[ErrorPercent] = r.Requests.ErrorRate
	}
	if !latency.Empty() {
		r.Measures[P95Latency] = latency.P95
	}

	r.Business = Business{
		OrderSuccess:        rateOf(sum, metrics.OrderSuccessRate),
		LoginSuccess:        rateOf(sum, metrics.LoginSuccessRate),
		DeliveryCompletion:  rateOf(sum, metrics.DeliveryCompletionRate),
		OrdersPlaced:        sum.CountOf(metrics.OrdersPlaced),
		OrdersAccepted:      sum.CountOf(metrics.OrdersAccepted),
		DeliveriesCompleted: sum.CountOf(metrics.DeliveriesCompleted),
		MenuViews:           sum.CountOf(metrics.MenuViews),
		VendorBrowses:       sum.CountOf(metrics.VendorBrowses),
	}
	for m, rate := range map[Measure]Rate{
		OrderPercent:    r.Business.OrderSuccess,
		LoginPercent:    r.Business.LoginSuccess,
		DeliveryPercent: r.Business.DeliveryCompletion,
	} {
		if rate.Observed {
			r.Measures[m] = rate.Percent
		}
	}

	journeyMeasures := map[actor.Kind]Measure{
		actor.Customer: CustomerJourneyMs,
		actor.Vendor:   VendorJourneyMs,
		actor.Rider:    RiderJourneyMs,
	}
	for kind, name := range journeySeries {
		v, _ := sum.Get(name)
		j := Journey{Count: v.Count, AvgMs: v.Avg, P95Ms: v.P95, Observed: !v.Empty()}
		r.Journeys[kind] = j
		if j.Observed {
			r.Measures[journeyMeasures[kind]] = j.AvgMs
		}
	}

	r.Iterations = Iterations{
		Total:   sum.CountOf(metrics.Iterations),
		Failed:  sum.CountOf(metrics.IterationsFailed),
		Success: rateOf(sum, metrics.JourneySuccessRate),
	}
	r.Checks = rateOf(sum, metrics.Checks)

	for _, res := range in.Thresholds.Failed() {
		r.FailedThresholds = append(r.FailedThresholds, res.Key())
	}

	r.Score = scheme.Score(r.Measures)
	r.Grade = scheme.Grade(r.Score)
	r.Recommendations = scheme.Recommend(r.Measures)
	return r
}

// Encode writes the report as indented JSON.
func (r *Report) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// Write writes the report to path as HTML when the path ends in .html or
// .htm, and as JSON otherwise.
func (r *Report) Write(path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return r.WriteHTML(path)
	default:
		return r.WriteJSON(path)
	}
}

// WriteJSON writes the report to path, creating parent directories.
func (r *Report) WriteJSON(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	if err := r.Encode(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	return f.Close()
}
