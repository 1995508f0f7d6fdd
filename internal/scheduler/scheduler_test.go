package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wesleyorama2/gabsload/internal/actor"
	"github.com/wesleyorama2/gabsload/internal/failure"
)

type recordingObserver struct {
	mu       sync.Mutex
	statuses []string
	maxSeen  int
}

func (o *recordingObserver) StateChanged(st Status) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.statuses = append(o.statuses, st.String())
}

func (o *recordingObserver) ActiveChanged(active, _ int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if active > o.maxSeen {
		o.maxSeen = active
	}
}

func (o *recordingObserver) seen() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.statuses...)
}

func sleepIteration(d time.Duration) IterationFunc {
	return func(ctx context.Context, _ *VirtualUser) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
			return nil
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{name: "valid", config: Config{Stages: []Stage{{Duration: time.Second, Target: 1}}}},
		{name: "no stages", config: Config{}, wantErr: true},
		{name: "negative target", config: Config{Stages: []Stage{{Duration: time.Second, Target: -1}}}, wantErr: true},
		{name: "negative duration", config: Config{Stages: []Stage{{Duration: -time.Second, Target: 1}}}, wantErr: true},
		{name: "zero total", config: Config{Stages: []Stage{{Target: 5}}}, wantErr: true},
		{name: "negative drain", config: Config{Stages: []Stage{{Duration: time.Second}}, DrainTimeout: -1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, failure.IsConfiguration(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestConfig_TargetAtSnapsToStage(t *testing.T) {
	cfg := Config{Stages: []Stage{
		{Duration: 30 * time.Second, Target: 5},
		{Duration: time.Minute, Target: 10},
		{Duration: 30 * time.Second, Target: 0},
	}}

	assert.Equal(t, 5, cfg.TargetAt(0))
	assert.Equal(t, 5, cfg.TargetAt(29*time.Second))
	assert.Equal(t, 10, cfg.TargetAt(30*time.Second))
	assert.Equal(t, 10, cfg.TargetAt(89*time.Second))
	assert.Equal(t, 0, cfg.TargetAt(90*time.Second))
	assert.Equal(t, 0, cfg.TargetAt(5*time.Minute))
	assert.Equal(t, 10, cfg.PeakTarget())
	assert.Equal(t, 2*time.Minute, cfg.TotalDuration())
	assert.Equal(t, "30s:5, 1m0s:10, 30s:0", FormatStages(cfg.Stages))
}

func TestRun_RampUpThenDown(t *testing.T) {
	var running, maxRunning atomic.Int32
	fn := func(ctx context.Context, vu *VirtualUser) error {
		n := running.Add(1)
		defer running.Add(-1)
		for {
			cur := maxRunning.Load()
			if n <= cur || maxRunning.CompareAndSwap(cur, n) {
				break
			}
		}
		return sleepIteration(20*time.Millisecond)(ctx, vu)
	}

	obs := &recordingObserver{}
	s, err := New(Config{
		Stages: []Stage{
			{Duration: 200 * time.Millisecond, Target: 5},
			{Duration: 200 * time.Millisecond, Target: 0},
		},
		DrainTimeout: time.Second,
	}, fn, WithObserver(obs))
	require.NoError(t, err)

	stats, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, stats.PeakActive)
	assert.LessOrEqual(t, int(maxRunning.Load()), 5)
	assert.Greater(t, stats.StageAdmissions[0], int64(5), "completions re-admit while active < target")
	assert.Equal(t, int64(0), stats.StageAdmissions[1])
	assert.Equal(t, stats.Admitted, stats.Completed)
	assert.Equal(t, int64(0), stats.Failed)
	assert.True(t, stats.Drained)
	assert.Equal(t, "terminated", stats.FinalState)
	assert.Equal(t, StateTerminated, s.Status().State)
	assert.Equal(t, 0, s.Active())

	seen := obs.seen()
	require.NotEmpty(t, seen)
	assert.Equal(t, "ramping(0)", seen[0])
	assert.Contains(t, seen, "sustaining(0)")
	assert.Equal(t, "terminated", seen[len(seen)-1])
	assert.Equal(t, 5, obs.maxSeen)
}

func TestRun_RampDownNeverKillsInFlight(t *testing.T) {
	var cancelled atomic.Int32
	fn := func(ctx context.Context, _ *VirtualUser) error {
		select {
		case <-ctx.Done():
			cancelled.Add(1)
			return ctx.Err()
		case <-time.After(300 * time.Millisecond):
			return nil
		}
	}

	s, err := New(Config{
		Stages: []Stage{
			{Duration: 50 * time.Millisecond, Target: 3},
			{Duration: 50 * time.Millisecond, Target: 0},
		},
		DrainTimeout: 2 * time.Second,
	}, fn)
	require.NoError(t, err)

	stats, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(3), stats.Admitted)
	assert.Equal(t, int64(3), stats.Completed)
	assert.Equal(t, int64(0), stats.Failed)
	assert.Equal(t, int32(0), cancelled.Load())
	assert.True(t, stats.Drained)
	assert.GreaterOrEqual(t, stats.Duration, 300*time.Millisecond)
}

func TestRun_PanicCountsAsFailedIteration(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)

	var calls atomic.Int32
	fn := func(ctx context.Context, vu *VirtualUser) error {
		switch calls.Add(1) {
		case 1:
			vu.SetStep("place_order")
			panic("boom")
		case 2:
			return errors.New("journey failed")
		}
		return sleepIteration(10*time.Millisecond)(ctx, vu)
	}

	s, err := New(Config{
		Stages:       []Stage{{Duration: 100 * time.Millisecond, Target: 2}},
		DrainTimeout: time.Second,
	}, fn, WithLogger(zap.New(core)))
	require.NoError(t, err)

	stats, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(2), stats.Failed)
	assert.Equal(t, int64(1), stats.Recovered)
	assert.Greater(t, stats.Admitted, int64(2), "failures do not reduce admission")
	assert.Equal(t, 2, stats.PeakActive)

	entries := logs.FilterMessage("iteration panicked").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "place_order", entries[0].ContextMap()["step"])
}

func TestRun_CancelEntersDrain(t *testing.T) {
	var journeyCancelled atomic.Int32
	fn := func(ctx context.Context, _ *VirtualUser) error {
		select {
		case <-ctx.Done():
			journeyCancelled.Add(1)
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
			return nil
		}
	}

	s, err := New(Config{
		Stages:       []Stage{{Duration: time.Hour, Target: 4}},
		DrainTimeout: 5 * time.Second,
	}, fn)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)

	start := time.Now()
	stats, err := s.Run(ctx)
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, int64(4), stats.Admitted, "no admissions after cancellation")
	assert.Equal(t, int64(4), stats.Completed)
	assert.Equal(t, int32(0), journeyCancelled.Load(), "in-flight journeys finish on a detached context")
	assert.True(t, stats.Drained)
}

func TestRun_DrainTimeoutCancelsStragglers(t *testing.T) {
	cancelled := make(chan struct{}, 2)
	fn := func(ctx context.Context, vu *VirtualUser) error {
		vu.SetStep("wait_forever")
		<-ctx.Done()
		cancelled <- struct{}{}
		return ctx.Err()
	}

	s, err := New(Config{
		Stages:       []Stage{{Duration: 20 * time.Millisecond, Target: 2}},
		DrainTimeout: 50 * time.Millisecond,
	}, fn)
	require.NoError(t, err)

	stats, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.False(t, stats.Drained)
	assert.Equal(t, 2, stats.Abandoned)
	for i := 0; i < 2; i++ {
		select {
		case <-cancelled:
		case <-time.After(time.Second):
			t.Fatal("straggler context was not cancelled")
		}
	}
}

func TestRun_OnlyOnce(t *testing.T) {
	s, err := New(Config{Stages: []Stage{{Duration: time.Millisecond}}}, sleepIteration(0))
	require.NoError(t, err)

	_, err = s.Run(context.Background())
	require.NoError(t, err)
	_, err = s.Run(context.Background())
	assert.Error(t, err)
}

func TestKindSelectors(t *testing.T) {
	assert.Equal(t, actor.Customer, SlotRoundRobin(1, 1))
	assert.Equal(t, actor.Vendor, SlotRoundRobin(2, 2))
	assert.Equal(t, actor.Rider, SlotRoundRobin(3, 3))
	assert.Equal(t, actor.Customer, SlotRoundRobin(4, 4))

	weights := map[actor.Kind]int{actor.Customer: 1000, actor.Vendor: 200, actor.Rider: 300}
	draws := []int{0, 999, 1000, 1199, 1200, 1499}
	want := []actor.Kind{actor.Customer, actor.Customer, actor.Vendor, actor.Vendor, actor.Rider, actor.Rider}

	i := 0
	sel := Weighted(weights, func(n int) int {
		require.Equal(t, 1500, n)
		d := draws[i]
		i++
		return d
	})
	for _, k := range want {
		assert.Equal(t, k, sel(1, 1))
	}

	assert.Equal(t, actor.Vendor, Weighted(nil, nil)(2, 1), "empty weights fall back to round robin")
}

func TestVirtualUser_Step(t *testing.T) {
	vu := &VirtualUser{ID: 1}
	assert.Empty(t, vu.Step())
	vu.SetStep("login")
	assert.Equal(t, "login", vu.Step())
}
