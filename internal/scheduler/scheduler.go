// Package scheduler admits virtual users according to a staged ramp profile.
//
// The scheduler is a single-goroutine state machine:
//
//	Idle -> Ramping(i) -> Sustaining(i) -> ... -> Draining -> Terminated
//
// Stage i's target applies for its whole window; there is no interpolation.
// Each admission takes a slot from a pool sized to the peak target and runs
// one iteration in its own goroutine. Completions come back on a channel and
// trigger re-admission while active < target. When the target drops,
// in-flight users finish naturally.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/wesleyorama2/gabsload/internal/actor"
)

// State is a scheduler lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateRamping
	StateSustaining
	StateDraining
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRamping:
		return "ramping"
	case StateSustaining:
		return "sustaining"
	case StateDraining:
		return "draining"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Status is a state plus the active stage index for Ramping and Sustaining.
type Status struct {
	State State
	Stage int
}

func (s Status) String() string {
	if s.State == StateRamping || s.State == StateSustaining {
		return fmt.Sprintf("%s(%d)", s.State, s.Stage)
	}
	return s.State.String()
}

// IterationFunc runs one journey for vu. Returned errors and panics are
// counted as failed iterations.
type IterationFunc func(ctx context.Context, vu *VirtualUser) error

// Observer is told about state and concurrency changes. Calls come from
// the scheduler goroutine.
type Observer interface {
	StateChanged(st Status)
	ActiveChanged(active, target int)
}

// Stats describes a finished run.
type Stats struct {
	Admitted   int64 `json:"admitted"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
	Recovered  int64 `json:"recovered"`
	PeakActive int   `json:"peakActive"`

	// Admissions per stage, indexed like Config.Stages
	StageAdmissions []int64 `json:"stageAdmissions"`

	FinalState string        `json:"finalState"`
	Drained    bool          `json:"drained"`
	Abandoned  int           `json:"abandoned"`
	Duration   time.Duration `json:"duration"`
}

// Scheduler runs one staged load profile.
type Scheduler struct {
	config   Config
	iterate  IterationFunc
	logger   *zap.Logger
	selectFn KindSelector
	observer Observer

	// read from other goroutines
	state  atomic.Int32
	stage  atomic.Int32
	active atomic.Int32
	target atomic.Int32

	nextID atomic.Int64
	ran    atomic.Bool

	mu       sync.Mutex
	inFlight map[int64]*VirtualUser
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) {
		s.logger = l
	}
}

// WithKindSelector sets how admissions pick an actor kind.
func WithKindSelector(fn KindSelector) Option {
	return func(s *Scheduler) {
		s.selectFn = fn
	}
}

// WithObserver registers a state observer.
func WithObserver(o Observer) Option {
	return func(s *Scheduler) {
		s.observer = o
	}
}

// New validates cfg and returns a scheduler. The stage slice is copied.
func New(cfg Config, fn IterationFunc, opts ...Option) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, errors.New("scheduler: nil iteration func")
	}

	cfg.Stages = append([]Stage(nil), cfg.Stages...)
	if cfg.DrainTimeout == 0 {
		cfg.DrainTimeout = DefaultDrainTimeout
	}

	s := &Scheduler{
		config:   cfg,
		iterate:  fn,
		logger:   zap.NewNop(),
		selectFn: SlotRoundRobin,
		inFlight: make(map[int64]*VirtualUser),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("component", "scheduler"))
	return s, nil
}

// Status returns the current state and stage.
func (s *Scheduler) Status() Status {
	return Status{State: State(s.state.Load()), Stage: int(s.stage.Load())}
}

// Active returns the number of journeys in flight.
func (s *Scheduler) Active() int {
	return int(s.active.Load())
}

// Target returns the current target concurrency.
func (s *Scheduler) Target() int {
	return int(s.target.Load())
}

// InFlight returns the users currently running, in no particular order.
func (s *Scheduler) InFlight() []*VirtualUser {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*VirtualUser, 0, len(s.inFlight))
	for _, vu := range s.inFlight {
		out = append(out, vu)
	}
	return out
}

type completion struct {
	vu       *VirtualUser
	err      error
	panicked bool
}

// run holds the loop-local state of one Run call.
type run struct {
	slots     chan int
	done      chan completion
	ctx       context.Context
	stats     Stats
	active    int
	target    int
	stage     int
	admitting bool
}

// Run executes the profile and blocks until Terminated. Cancelling ctx
// moves straight to Draining; in-flight journeys keep running until they
// finish or the drain timeout expires. Run may be called once.
func (s *Scheduler) Run(ctx context.Context) (*Stats, error) {
	if !s.ran.CompareAndSwap(false, true) {
		return nil, errors.New("scheduler: already run")
	}

	start := time.Now()
	peak := s.config.PeakTarget()

	journeyCtx, cancelJourneys := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelJourneys()

	r := &run{
		slots:     make(chan int, peak),
		done:      make(chan completion, peak),
		ctx:       journeyCtx,
		admitting: true,
	}
	r.stats.StageAdmissions = make([]int64, len(s.config.Stages))
	for slot := 1; slot <= peak; slot++ {
		r.slots <- slot
	}

	s.logger.Info("starting load profile",
		zap.Int("stages", len(s.config.Stages)),
		zap.Int("peak", peak),
		zap.Duration("duration", s.config.TotalDuration()),
		zap.String("profile", FormatStages(s.config.Stages)))

	s.enterStage(r, 0)
	timer := time.NewTimer(s.config.Stages[0].Duration)
	defer timer.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("run cancelled, draining", zap.Int("active", r.active))
			break loop
		case <-timer.C:
			next := r.stage + 1
			if next >= len(s.config.Stages) {
				break loop
			}
			s.enterStage(r, next)
			timer.Reset(s.config.Stages[next].Duration)
		case c := <-r.done:
			s.complete(r, c)
			s.admit(r)
			s.publish(r)
		}
	}

	s.drain(r, cancelJourneys)

	s.setStatus(Status{State: StateTerminated})
	r.stats.FinalState = StateTerminated.String()
	r.stats.Duration = time.Since(start)

	s.logger.Info("load profile finished",
		zap.Int64("admitted", r.stats.Admitted),
		zap.Int64("completed", r.stats.Completed),
		zap.Int64("failed", r.stats.Failed),
		zap.Int("peak_active", r.stats.PeakActive),
		zap.Bool("drained", r.stats.Drained),
		zap.Duration("elapsed", r.stats.Duration))

	return &r.stats, nil
}

func (s *Scheduler) enterStage(r *run, i int) {
	r.stage = i
	r.target = s.config.Stages[i].Target
	s.stage.Store(int32(i))
	s.target.Store(int32(r.target))

	s.logger.Debug("entering stage",
		zap.Int("stage", i),
		zap.Int("target", r.target),
		zap.Duration("duration", s.config.Stages[i].Duration))

	// publish the new target before admitting so the ramp is observable
	s.publish(r)
	s.admit(r)
	s.publish(r)
}

// admit starts journeys until active reaches target.
func (s *Scheduler) admit(r *run) {
	for r.admitting && r.active < r.target {
		var slot int
		select {
		case slot = <-r.slots:
		default:
			// active < target <= peak keeps a slot free
			return
		}

		r.stats.Admitted++
		r.stats.StageAdmissions[r.stage]++
		vu := &VirtualUser{
			ID:        s.nextID.Add(1),
			Slot:      slot,
			Iteration: r.stats.Admitted,
			StartedAt: time.Now(),
		}
		vu.Kind = s.selectFn(slot, vu.Iteration)
		if !vu.Kind.Valid() {
			vu.Kind = actor.Customer
		}

		r.active++
		if r.active > r.stats.PeakActive {
			r.stats.PeakActive = r.active
		}
		s.active.Store(int32(r.active))

		s.mu.Lock()
		s.inFlight[vu.ID] = vu
		s.mu.Unlock()

		go s.execute(r.ctx, r.done, vu)
	}
}

// execute runs one iteration and always reports a completion.
func (s *Scheduler) execute(ctx context.Context, done chan<- completion, vu *VirtualUser) {
	c := completion{vu: vu}
	defer func() {
		if rec := recover(); rec != nil {
			c.panicked = true
			c.err = fmt.Errorf("panic: %v", rec)
		}
		done <- c
	}()
	c.err = s.iterate(ctx, vu)
}

func (s *Scheduler) complete(r *run, c completion) {
	r.active--
	s.active.Store(int32(r.active))
	r.slots <- c.vu.Slot
	r.stats.Completed++

	s.mu.Lock()
	delete(s.inFlight, c.vu.ID)
	s.mu.Unlock()

	if c.err == nil {
		return
	}
	r.stats.Failed++
	fields := []zap.Field{
		zap.Int64("vu", c.vu.ID),
		zap.Int("slot", c.vu.Slot),
		zap.Stringer("actor", c.vu.Kind),
		zap.String("step", c.vu.Step()),
		zap.Error(c.err),
	}
	if c.panicked {
		r.stats.Recovered++
		s.logger.Error("iteration panicked", fields...)
		return
	}
	s.logger.Debug("iteration failed", fields...)
}

// publish derives Ramping or Sustaining from active vs target.
func (s *Scheduler) publish(r *run) {
	if s.observer != nil {
		s.observer.ActiveChanged(r.active, r.target)
	}
	if !r.admitting {
		return
	}
	st := Status{State: StateSustaining, Stage: r.stage}
	if r.active != r.target {
		st.State = StateRamping
	}
	s.setStatus(st)
}

func (s *Scheduler) setStatus(st Status) {
	prev := s.Status()
	s.state.Store(int32(st.State))
	s.stage.Store(int32(st.Stage))
	if prev != st && s.observer != nil {
		s.observer.StateChanged(st)
	}
}

// drain stops admission and waits for in-flight journeys up to the drain
// timeout. Stragglers get their context cancelled and are abandoned.
func (s *Scheduler) drain(r *run, cancelJourneys context.CancelFunc) {
	r.admitting = false
	r.target = 0
	s.target.Store(0)
	s.setStatus(Status{State: StateDraining, Stage: r.stage})
	if s.observer != nil {
		s.observer.ActiveChanged(r.active, 0)
	}

	if r.active == 0 {
		r.stats.Drained = true
		return
	}

	s.logger.Info("draining in-flight journeys",
		zap.Int("active", r.active),
		zap.Duration("timeout", s.config.DrainTimeout))

	deadline := time.NewTimer(s.config.DrainTimeout)
	defer deadline.Stop()

	for r.active > 0 {
		select {
		case c := <-r.done:
			s.complete(r, c)
			if s.observer != nil {
				s.observer.ActiveChanged(r.active, 0)
			}
		case <-deadline.C:
			r.stats.Abandoned = r.active
			for _, vu := range s.InFlight() {
				s.logger.Warn("journey still running at drain timeout",
					zap.Int64("vu", vu.ID),
					zap.Stringer("actor", vu.Kind),
					zap.String("step", vu.Step()),
					zap.Duration("running", time.Since(vu.StartedAt)))
			}
			cancelJourneys()
			return
		}
	}
	r.stats.Drained = true
}
