package metrics

import (
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	lhttp "github.com/wesleyorama2/gabsload/internal/http"
)

func TestAggregator_ConcurrentRecordLosesNothing(t *testing.T) {
	agg := NewAggregator()

	const writers = 200
	const perWriter = 50

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				assert.NoError(t, agg.Record(HTTPReqDuration, float64(i*perWriter+j)))
				assert.NoError(t, agg.Record(HTTPReqs, 1))
				agg.AddRate(OrderSuccessRate, j%2 == 0)
			}
		}(i)
	}
	wg.Wait()

	summary := agg.Finalize()
	duration, _ := summary.Get(HTTPReqDuration)
	assert.Equal(t, int64(writers*perWriter), duration.Count)
	assert.Equal(t, int64(writers*perWriter), summary.CountOf(HTTPReqs))

	orders, _ := summary.Get(OrderSuccessRate)
	assert.Equal(t, int64(writers*perWriter), orders.Count)
	assert.Equal(t, int64(writers*perWriter/2), orders.Passes)
}

func TestRate_ExactFraction(t *testing.T) {
	tests := []struct {
		k, n int
	}{
		{0, 10},
		{3, 10},
		{10, 10},
		{1, 3},
		{977, 1000},
	}

	for _, tt := range tests {
		agg := NewAggregator()
		for i := 0; i < tt.n; i++ {
			ok := i < tt.k
			v := 0.0
			if ok {
				v = 1
			}
			require.NoError(t, agg.Record(LoginSuccessRate, v))
		}

		rate, ok := agg.Finalize().RateOf(LoginSuccessRate)
		require.True(t, ok)
		if want := float64(tt.k) / float64(tt.n); rate != want {
			t.Errorf("rate with k=%d n=%d = %v, want %v", tt.k, tt.n, rate, want)
		}
	}
}

func TestPercentile_LinearInterpolation(t *testing.T) {
	samples := make([]float64, 0, 25)
	for v := 100; v <= 2500; v += 100 {
		samples = append(samples, float64(v))
	}

	tests := []struct {
		p    float64
		want float64
	}{
		{0, 100},
		{50, 1300},
		{90, 2260},
		{95, 2380},
		{99, 2476},
		{100, 2500},
	}

	for _, tt := range tests {
		got := Percentile(samples, tt.p)
		assert.InDelta(t, tt.want, got, 1e-9, "p(%v)", tt.p)
	}

	assert.Equal(t, 0.0, Percentile(nil, 95))
	assert.Equal(t, 42.0, Percentile([]float64{42}, 95))
}

func TestAggregator_FinalizeTrend(t *testing.T) {
	agg := NewAggregator()
	// insert out of order; finalize sorts a copy
	for _, v := range []float64{2500, 100, 1300, 700, 1900} {
		agg.AddTrend(MenuLoadTime, v)
	}

	v, ok := agg.Finalize().Get(MenuLoadTime)
	require.True(t, ok)
	assert.Equal(t, KindTrend, v.Kind)
	assert.Equal(t, int64(5), v.Count)
	assert.InDelta(t, 1300, v.Avg, 1e-9)
	assert.Equal(t, 100.0, v.Min)
	assert.Equal(t, 2500.0, v.Max)
	assert.Equal(t, 1300.0, v.Med)

	p75, err := v.Percentile(75)
	require.NoError(t, err)
	assert.Equal(t, 1900.0, p75)
}

func TestAggregator_DefineAndRecordErrors(t *testing.T) {
	agg := NewAggregator()

	assert.Error(t, agg.Record("no_such_series", 1))
	assert.NoError(t, agg.Define("cart_size", KindTrend))
	assert.NoError(t, agg.Define("cart_size", KindTrend))
	assert.Error(t, agg.Define("cart_size", KindRate))
	assert.NoError(t, agg.Record("cart_size", 3))

	err := agg.Record(OrdersPlaced, -1)
	assert.Error(t, err, "counters only increase")
	assert.Error(t, agg.Record(OrdersPlaced, 0.5), "fractional increments are rejected")
	assert.Error(t, agg.Record(OrdersPlaced, math.NaN()))
	assert.NoError(t, agg.Record(OrdersPlaced, 2))
	assert.Equal(t, int64(2), agg.Counter(OrdersPlaced).Value())

	agg.AddRate(OrdersPlaced, true)
	assert.Equal(t, int64(1), agg.Mismatches())
	assert.Equal(t, KindCounter, agg.Kinds()[OrdersPlaced])
}

func TestAggregator_ObserveRequest(t *testing.T) {
	agg := NewAggregator()

	agg.ObserveRequest(lhttp.Record{Status: 200, Duration: 120 * time.Millisecond})
	agg.ObserveRequest(lhttp.Record{Status: 500, Duration: 80 * time.Millisecond})
	agg.ObserveRequest(lhttp.Record{Err: errors.New("connection refused")})

	summary := agg.Finalize()
	assert.Equal(t, int64(3), summary.CountOf(HTTPReqs))

	failed, ok := summary.RateOf(HTTPReqFailed)
	require.True(t, ok)
	assert.InDelta(t, 2.0/3.0, failed, 1e-9)

	avg, ok := summary.AvgOf(HTTPReqDuration)
	require.True(t, ok)
	assert.InDelta(t, 200.0/3.0, avg, 1e-9)
}

func TestAggregator_Phases(t *testing.T) {
	agg := NewAggregator()
	agg.SetPhase("ramping(0)")
	agg.SetPhase("ramping(0)")
	agg.SetPhase("sustaining(0)")

	phases := agg.Phases()
	require.Len(t, phases, 2)
	assert.Equal(t, "ramping(0)", phases[0].Phase)
	assert.Equal(t, "sustaining(0)", phases[1].Phase)
}

func TestAggregator_Snapshot(t *testing.T) {
	agg := NewAggregator()
	agg.SetActiveVUs(7)
	for i := 0; i < 10; i++ {
		agg.ObserveRequest(lhttp.Record{Status: 200, Duration: 50 * time.Millisecond})
	}

	snap := agg.Snapshot()
	assert.Equal(t, 7, snap.ActiveVUs)
	assert.Equal(t, int64(10), snap.TotalRequests)
	assert.Equal(t, 0.0, snap.ErrorRate)
	assert.InDelta(t, 50, snap.Latency.P95, 1)
}

func TestExporter_Handler(t *testing.T) {
	agg := NewAggregator()
	agg.SetActiveVUs(3)
	agg.Inc(OrdersPlaced)
	agg.AddRate(LoginSuccessRate, true)
	agg.AddTrend(AuthResponseTime, 250)

	exp, err := NewExporter(agg, zap.NewNop())
	require.NoError(t, err)

	server := httptest.NewServer(exp.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.Contains(t, text, `gabsload_active_vus 3`)
	assert.Contains(t, text, `gabsload_counter_total{series="orders_placed"} 1`)
	assert.Contains(t, text, `gabsload_rate{series="login_success_rate"} 1`)
	assert.Contains(t, text, `gabsload_trend_milliseconds{series="auth_response_time",stat="avg"} 250`)
}
