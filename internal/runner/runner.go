// Package runner wires one load test end to end.
//
// A Runner owns the per-run aggregator, HTTP client, token store and
// scheduler. Run checks connectivity, admits virtual users through the
// scheduler, finalizes metrics, evaluates thresholds and builds the report.
//
// Example usage:
//
//	p, _ := profile.Lookup("smoke")
//	r, _ := runner.New(p, settings, runner.WithLogger(logger))
//	rep, err := r.Run(ctx)
//	if errors.Is(err, runner.ErrThresholdsFailed) { ... }
package runner

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wesleyorama2/gabsload/internal/auth"
	"github.com/wesleyorama2/gabsload/internal/config"
	"github.com/wesleyorama2/gabsload/internal/http"
	"github.com/wesleyorama2/gabsload/internal/journey"
	"github.com/wesleyorama2/gabsload/internal/metrics"
	"github.com/wesleyorama2/gabsload/internal/output"
	"github.com/wesleyorama2/gabsload/internal/profile"
	"github.com/wesleyorama2/gabsload/internal/report"
	"github.com/wesleyorama2/gabsload/internal/scenario"
	"github.com/wesleyorama2/gabsload/internal/scheduler"
	"github.com/wesleyorama2/gabsload/internal/threshold"
)

// ErrThresholdsFailed is returned with the report when any threshold fails.
var ErrThresholdsFailed = errors.New("one or more thresholds failed")

// Runner executes one profile.
type Runner struct {
	runID      string
	profile    *profile.Profile
	settings   *config.Settings
	logger     *zap.Logger
	console    *output.Console
	scheme     *report.GradeScheme
	sleeper    journey.Sleeper
	agg        *metrics.Aggregator
	client     *http.Client
	env        *scenario.Env
	orch       *journey.Orchestrator
	thresholds []threshold.Threshold
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		r.logger = l
	}
}

// WithConsole enables the header, live progress and summary output.
func WithConsole(c *output.Console) Option {
	return func(r *Runner) {
		r.console = c
	}
}

// WithGradeScheme replaces the default grade table.
func WithGradeScheme(g *report.GradeScheme) Option {
	return func(r *Runner) {
		r.scheme = g
	}
}

// WithSleeper replaces the think-time sleeper.
func WithSleeper(s journey.Sleeper) Option {
	return func(r *Runner) {
		r.sleeper = s
	}
}

// WithRunID fixes the run id instead of generating one.
func WithRunID(id string) Option {
	return func(r *Runner) {
		r.runID = id
	}
}

// New validates p and s and builds every per-run component. Any error is
// a configuration error and nothing has been sent to the target.
func New(p *profile.Profile, s *config.Settings, opts ...Option) (*Runner, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	r := &Runner{
		profile:  p,
		settings: s,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.runID == "" {
		r.runID = uuid.NewString()
	}
	r.logger = r.logger.With(zap.String("run_id", r.runID))

	r.agg = metrics.NewAggregator()
	thresholds, err := threshold.Compile(p.Thresholds, r.agg.Kinds())
	if err != nil {
		return nil, err
	}
	r.thresholds = thresholds

	pool, err := config.LoadCredentials(s.CredentialsFile)
	if err != nil {
		return nil, err
	}

	r.client = NewClient(s, http.WithObserver(r.agg))

	storeOpts := auth.Options{RefreshProbability: s.RefreshProbability}
	var tokens auth.Store = auth.NewSharedStore(storeOpts)
	if s.TokenMode == config.TokenModePerVU {
		tokens = auth.NewPerVUStore(storeOpts)
	}

	r.env = &scenario.Env{
		Client:      r.client,
		Auth:        auth.NewAuthenticator(r.client),
		Tokens:      tokens,
		Metrics:     r.agg,
		Credentials: pool,
		Logger:      r.logger,
	}

	orchOpts := []journey.Option{
		journey.WithThinkScale(s.ThinkScale),
		journey.WithObserver(journey.NewLogObserver(r.logger)),
	}
	if r.sleeper != nil {
		orchOpts = append(orchOpts, journey.WithSleeper(r.sleeper))
	}
	r.orch = journey.NewOrchestrator(orchOpts...)

	return r, nil
}

// NewClient builds the shared HTTP client for s.
func NewClient(s *config.Settings, opts ...http.ClientOption) *http.Client {
	transport := http.DefaultTransportConfig()
	transport.Timeout = s.RequestTimeout
	transport.MaxConnsPerHost = s.MaxConnsPerHost
	transport.InsecureSkipVerify = s.InsecureTLS

	base := []http.ClientOption{
		http.WithBaseURL(s.BaseURL),
		http.WithTransport(transport),
	}
	if s.MaxRPS > 0 {
		base = append(base, http.WithRateLimit(s.MaxRPS, int(s.MaxRPS)))
	}
	return http.NewClient(append(base, opts...)...)
}

// RunID returns the id of this run.
func (r *Runner) RunID() string {
	return r.runID
}

// Aggregator exposes the run's metrics.
func (r *Runner) Aggregator() *metrics.Aggregator {
	return r.agg
}

// Run executes the profile. It returns the report together with
// ErrThresholdsFailed when a threshold fails, and no report when the
// connectivity check fails.
func (r *Runner) Run(ctx context.Context) (*report.Report, error) {
	defer r.client.Close()

	if !r.settings.SkipHealthCheck {
		probe := NewClient(r.settings)
		d, err := CheckHealth(ctx, probe)
		probe.Close()
		if err != nil {
			return nil, err
		}
		r.logger.Info("target is healthy", zap.String("base_url", r.settings.BaseURL), zap.Duration("duration", d))
	}

	sched, err := scheduler.New(
		scheduler.Config{Stages: r.profile.Stages, DrainTimeout: r.settings.DrainTimeout},
		r.iterate,
		scheduler.WithLogger(r.logger),
		scheduler.WithKindSelector(r.profile.Selector(rand.Intn)),
		scheduler.WithObserver(phaseObserver{agg: r.agg}),
	)
	if err != nil {
		return nil, err
	}

	if r.console != nil {
		r.console.PrintHeader(output.Header{
			RunID:       r.runID,
			TestType:    r.profile.Name,
			Description: r.profile.Description,
			BaseURL:     r.settings.BaseURL,
			Stages:      r.profile.Stages,
			TokenMode:   r.settings.TokenMode,
		})
	}

	r.logger.Info("starting run",
		zap.String("test_type", r.profile.Name),
		zap.Int("peak_vus", r.profile.PeakTarget()),
		zap.Duration("planned", r.profile.TotalDuration()))

	start := time.Now()
	stats, err := r.execute(ctx, sched)
	end := time.Now()
	if err != nil {
		return nil, err
	}

	summary := r.agg.Finalize()
	results, err := threshold.Evaluate(summary, r.thresholds)
	if err != nil {
		return nil, err
	}

	rep := report.Build(report.Input{
		RunID:      r.runID,
		TestType:   r.profile.Name,
		Start:      start,
		End:        end,
		Summary:    summary,
		Thresholds: results,
		Scheduler:  stats,
		Scheme:     r.scheme,
	})

	if r.settings.ReportPath != "" {
		if err := rep.Write(r.settings.ReportPath); err != nil {
			return rep, err
		}
		r.logger.Info("report written", zap.String("path", r.settings.ReportPath))
	}
	if r.console != nil {
		r.console.PrintSummary(rep)
	}

	r.logger.Info("run finished",
		zap.Bool("passed", rep.Passed),
		zap.String("grade", rep.Grade),
		zap.Int("score", rep.Score),
		zap.Strings("failed_thresholds", rep.FailedThresholds))

	if !rep.Passed {
		return rep, fmt.Errorf("%w: %v", ErrThresholdsFailed, rep.FailedThresholds)
	}
	return rep, nil
}

// execute runs the scheduler alongside progress output and the metrics
// exporter. Both side services stop when the scheduler returns.
func (r *Runner) execute(ctx context.Context, sched *scheduler.Scheduler) (*scheduler.Stats, error) {
	g, gctx := errgroup.WithContext(ctx)
	svcCtx, stopServices := context.WithCancel(gctx)
	defer stopServices()

	var stats *scheduler.Stats
	g.Go(func() error {
		defer stopServices()
		var err error
		stats, err = sched.Run(gctx)
		return err
	})

	if r.console != nil {
		stages := len(r.profile.Stages)
		total := r.profile.TotalDuration()
		g.Go(func() error {
			return r.console.Watch(svcCtx, func() output.Progress {
				return output.Progress{
					Snapshot: r.agg.Snapshot(),
					Status:   sched.Status(),
					Target:   sched.Target(),
					Total:    total,
					Stages:   stages,
				}
			})
		})
	}

	if addr := r.settings.MetricsAddr; addr != "" {
		exp, err := metrics.NewExporter(r.agg, r.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics exporter: %w", err)
		}
		g.Go(func() error {
			return exp.Serve(svcCtx, addr)
		})
	}

	if err := g.Wait(); err != nil {
		return stats, err
	}
	return stats, nil
}

// iterate runs one journey for vu and records its outcome.
func (r *Runner) iterate(ctx context.Context, vu *scheduler.VirtualUser) error {
	j := r.env.Journey(vu.Kind, vu.Slot)
	res := r.orch.Run(ctx, vu, j)

	r.agg.Inc(metrics.Iterations)
	r.agg.AddRate(metrics.JourneySuccessRate, res.Success)
	r.agg.AddDuration(scenario.JourneyMetric(vu.Kind), res.Duration)
	if max := r.profile.MaxJourneyDuration; max > 0 {
		r.agg.AddRate(metrics.Checks, res.Duration <= max)
	}
	if !res.Success {
		r.agg.Inc(metrics.IterationsFailed)
	}
	return res.Err()
}

// phaseObserver feeds scheduler transitions into the aggregator.
type phaseObserver struct {
	agg *metrics.Aggregator
}

func (o phaseObserver) StateChanged(st scheduler.Status) {
	o.agg.SetPhase(st.String())
}

func (o phaseObserver) ActiveChanged(active, _ int) {
	o.agg.SetActiveVUs(active)
}
