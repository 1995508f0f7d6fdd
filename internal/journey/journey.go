// Package journey runs one actor's ordered steps to completion.
//
// A journey aborts on the first failed critical step, tolerates failures of
// optional steps, and sleeps a random think time between steps. Failures and
// panics inside steps never escape Run; they become Result data.
package journey

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/wesleyorama2/gabsload/internal/actor"
	"github.com/wesleyorama2/gabsload/internal/failure"
)

// ThinkTime is a uniform delay range applied after a step.
type ThinkTime struct {
	Min time.Duration
	Max time.Duration
}

// Seconds builds a ThinkTime from whole seconds.
func Seconds(min, max int) ThinkTime {
	return ThinkTime{Min: time.Duration(min) * time.Second, Max: time.Duration(max) * time.Second}
}

// Outcome is what a step reports back.
type Outcome struct {
	Success bool

	// Stop ends the journey after this step. With Success it is an early,
	// successful finish such as "nothing to process".
	Stop bool

	// Status labels the journey result when Stop is set.
	Status string

	// HTTP status behind a failure, if any.
	Code   int
	Reason string
	Err    error
}

// OK is a successful outcome.
func OK() Outcome {
	return Outcome{Success: true}
}

// Done is a successful outcome that ends the journey early.
func Done(status string) Outcome {
	return Outcome{Success: true, Stop: true, Status: status}
}

// Fail is a failed outcome with a reason.
func Fail(reason string) Outcome {
	return Outcome{Reason: reason}
}

// FailErr is a failed outcome caused by err.
func FailErr(err error) Outcome {
	return Outcome{Reason: err.Error(), Err: err}
}

// FailStatus is a failed outcome caused by an unexpected HTTP status.
func FailStatus(reason string, code int) Outcome {
	return Outcome{Reason: reason, Code: code}
}

// Step is one named unit of a journey.
type Step struct {
	Name     string
	Critical bool
	Think    ThinkTime
	Run      func(ctx context.Context) Outcome
}

// Journey is an ordered list of steps for one actor kind.
type Journey struct {
	Kind  actor.Kind
	Steps []Step
}

// StepRecord is the outcome of one executed step.
type StepRecord struct {
	Name     string        `json:"name"`
	Critical bool          `json:"critical"`
	Success  bool          `json:"success"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// Result is the immutable outcome of one journey run.
type Result struct {
	Kind        actor.Kind    `json:"kind"`
	Success     bool          `json:"success"`
	Duration    time.Duration `json:"duration"`
	FailedStep  string        `json:"failedStep,omitempty"`
	Error       string        `json:"error,omitempty"`
	Status      string        `json:"status"`
	CompletedAt time.Time     `json:"completedAt"`
	Steps       []StepRecord  `json:"steps"`
}

// Err returns the failure as a *failure.Step, or nil on success.
func (r Result) Err() error {
	if r.Success {
		return nil
	}
	return &failure.Step{Step: r.FailedStep, Reason: r.Error}
}

// Tracker receives the name of the step about to run.
type Tracker interface {
	SetStep(name string)
}

// Observer receives structured events as a journey progresses.
type Observer interface {
	StepFinished(kind actor.Kind, rec StepRecord)
	JourneyFinished(res Result)
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the default Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Orchestrator executes journeys. One instance is shared by every VU.
type Orchestrator struct {
	observer   Observer
	sleep      Sleeper
	thinkScale float64
	randInt63n func(n int64) int64
	now        func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithObserver sets the event observer.
func WithObserver(o Observer) Option {
	return func(orc *Orchestrator) {
		orc.observer = o
	}
}

// WithSleeper replaces the think-time sleeper.
func WithSleeper(s Sleeper) Option {
	return func(orc *Orchestrator) {
		orc.sleep = s
	}
}

// WithThinkScale multiplies every drawn think time.
func WithThinkScale(f float64) Option {
	return func(orc *Orchestrator) {
		if f >= 0 {
			orc.thinkScale = f
		}
	}
}

// WithRand sets the source for think-time draws.
func WithRand(int63n func(n int64) int64) Option {
	return func(orc *Orchestrator) {
		orc.randInt63n = int63n
	}
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(opts ...Option) *Orchestrator {
	orc := &Orchestrator{
		sleep:      SleepContext,
		thinkScale: 1,
		randInt63n: rand.Int63n,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(orc)
	}
	return orc
}

// Think draws a delay uniformly from t and applies the scale factor.
func (o *Orchestrator) Think(t ThinkTime) time.Duration {
	d := t.Min
	if span := t.Max - t.Min; span > 0 {
		d += time.Duration(o.randInt63n(int64(span) + 1))
	}
	return time.Duration(float64(d) * o.thinkScale)
}

// Run executes j step by step. tracker may be nil.
func (o *Orchestrator) Run(ctx context.Context, tracker Tracker, j *Journey) Result {
	start := o.now()
	res := Result{
		Kind:    j.Kind,
		Success: true,
		Status:  "completed",
		Steps:   make([]StepRecord, 0, len(j.Steps)),
	}

	for i, step := range j.Steps {
		if tracker != nil {
			tracker.SetStep(step.Name)
		}

		stepStart := o.now()
		out := o.runStep(ctx, step)
		rec := StepRecord{
			Name:     step.Name,
			Critical: step.Critical,
			Success:  out.Success,
			Duration: o.now().Sub(stepStart),
		}
		if !out.Success {
			rec.Error = describe(out)
		}
		res.Steps = append(res.Steps, rec)
		o.stepFinished(j.Kind, rec)

		if !out.Success && step.Critical {
			res.Success = false
			res.FailedStep = step.Name
			res.Error = rec.Error
			res.Status = "failed"
			break
		}
		if out.Stop {
			if out.Status != "" {
				res.Status = out.Status
			}
			break
		}

		if i < len(j.Steps)-1 && (step.Think.Min > 0 || step.Think.Max > 0) {
			if err := o.sleep(ctx, o.Think(step.Think)); err != nil {
				res.Success = false
				res.FailedStep = step.Name
				res.Error = fmt.Sprintf("interrupted during think time: %v", err)
				res.Status = "interrupted"
				break
			}
		}
	}

	res.CompletedAt = o.now()
	res.Duration = res.CompletedAt.Sub(start)
	if o.observer != nil {
		o.observer.JourneyFinished(res)
	}
	return res
}

// runStep invokes step.Run and converts a panic into a failed outcome.
func (o *Orchestrator) runStep(ctx context.Context, step Step) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = Outcome{Reason: fmt.Sprintf("panic: %v", r)}
		}
	}()
	if step.Run == nil {
		return Fail("step has no action")
	}
	return step.Run(ctx)
}

func (o *Orchestrator) stepFinished(kind actor.Kind, rec StepRecord) {
	if o.observer != nil {
		o.observer.StepFinished(kind, rec)
	}
}

func describe(out Outcome) string {
	switch {
	case out.Err != nil && out.Reason != "" && out.Reason != out.Err.Error():
		return fmt.Sprintf("%s: %v", out.Reason, out.Err)
	case out.Err != nil:
		return out.Err.Error()
	case out.Code != 0:
		return fmt.Sprintf("%s (status %d)", out.Reason, out.Code)
	case out.Reason != "":
		return out.Reason
	default:
		return "step failed"
	}
}
