package threshold

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/gabsload/internal/failure"
	"github.com/wesleyorama2/gabsload/internal/metrics"
)

func TestParse(t *testing.T) {
	tests := []struct {
		expr    string
		agg     string
		p       float64
		op      string
		limit   float64
		wantErr bool
	}{
		{expr: "p(95)<2000", agg: "p", p: 95, op: "<", limit: 2000},
		{expr: "p(99.9) <= 5000", agg: "p", p: 99.9, op: "<=", limit: 5000},
		{expr: "rate>0.95", agg: "rate", op: ">", limit: 0.95},
		{expr: "avg < 1.5s", agg: "avg", op: "<", limit: 1500},
		{expr: "med<300ms", agg: "med", op: "<", limit: 300},
		{expr: "count>=100", agg: "count", op: ">=", limit: 100},
		{expr: "max!=0", agg: "max", op: "!=", limit: 0},
		{expr: "p95<2000", wantErr: true},
		{expr: "p(101)<2000", wantErr: true},
		{expr: "rate>0.9s", wantErr: true},
		{expr: "avg ~ 10", wantErr: true},
		{expr: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			th, err := Parse("m", tt.expr)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, failure.IsConfiguration(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.agg, th.Agg)
			assert.Equal(t, tt.p, th.Percentile)
			assert.Equal(t, tt.op, th.Op)
			assert.InDelta(t, tt.limit, th.Limit, 1e-9)
		})
	}
}

func TestCompile_ReportsAllConfigurationErrors(t *testing.T) {
	kinds := metrics.NewAggregator().Kinds()

	_, err := Compile([]Spec{
		{Metric: "http_req_duration", Expressions: []string{"p(95)<2000"}},
		{Metric: "not_a_metric", Expressions: []string{"rate>0.5"}},
		{Metric: "order_success_rate", Expressions: []string{"p(95)<10"}},
		{Metric: "menu_load_time", Expressions: []string{"bogus"}},
		{Metric: "orders_placed"},
	}, kinds)

	require.Error(t, err)
	assert.True(t, failure.IsConfiguration(err))
	msg := err.Error()
	assert.Contains(t, msg, "not_a_metric")
	assert.Contains(t, msg, "p is not available on a rate series")
	assert.Contains(t, msg, `cannot parse expression "bogus"`)
	assert.Contains(t, msg, "orders_placed: no expressions")
}

func TestCompile_Valid(t *testing.T) {
	kinds := metrics.NewAggregator().Kinds()

	ths, err := Compile([]Spec{
		{Metric: "http_req_duration", Expressions: []string{"p(95)<2000", "p(99)<5000"}},
		{Metric: "http_req_failed", Expressions: []string{"rate<0.05"}},
		{Metric: "orders_placed", Expressions: []string{"count>0"}},
	}, kinds)
	require.NoError(t, err)
	assert.Len(t, ths, 4)
}

func trendSummary(t *testing.T) *metrics.Summary {
	t.Helper()
	agg := metrics.NewAggregator()
	for v := 100; v <= 2500; v += 100 {
		agg.AddTrend(metrics.HTTPReqDuration, float64(v))
	}
	for i := 0; i < 100; i++ {
		agg.AddRate(metrics.HTTPReqFailed, i < 3)
	}
	return agg.Finalize()
}

func TestEvaluate_PercentileOverKnownSamples(t *testing.T) {
	summary := trendSummary(t)

	ths, err := Compile([]Spec{
		{Metric: "http_req_duration", Expressions: []string{"p(95)<2000", "p(95)<2400", "p(99)<2500"}},
		{Metric: "http_req_failed", Expressions: []string{"rate<0.05"}},
	}, metrics.NewAggregator().Kinds())
	require.NoError(t, err)

	results, err := Evaluate(summary, ths)
	require.NoError(t, err)
	require.Len(t, results, 4)

	// p(95) over 100..2500 interpolates to 2380.
	assert.False(t, results[0].Passed)
	assert.InDelta(t, 2380, results[0].Value, 1e-9)
	assert.Contains(t, results[0].Message, "p(95)")
	assert.True(t, results[1].Passed)
	assert.True(t, results[2].Passed)
	assert.InDelta(t, 2476, results[2].Value, 1e-9)
	assert.True(t, results[3].Passed)

	assert.False(t, results.Passed())
	require.Len(t, results.Failed(), 1)
	assert.Equal(t, "http_req_duration: p(95)<2000", results.Failed()[0].Key())
}

func TestEvaluate_Deterministic(t *testing.T) {
	summary := trendSummary(t)
	ths, err := Compile([]Spec{
		{Metric: "http_req_duration", Expressions: []string{"p(95)<2000", "avg<1500", "med<=1300"}},
		{Metric: "http_req_failed", Expressions: []string{"rate<0.01"}},
	}, metrics.NewAggregator().Kinds())
	require.NoError(t, err)

	first, err := Evaluate(summary, ths)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := Evaluate(summary, ths)
		require.NoError(t, err)
		assert.Equal(t, first.Map(), again.Map())
	}
}

func TestEvaluate_EmptySeriesIsSkipped(t *testing.T) {
	summary := metrics.NewAggregator().Finalize()
	ths, err := Compile([]Spec{
		{Metric: "delivery_completion_rate", Expressions: []string{"rate>0.90"}},
		{Metric: "deliveries_completed", Expressions: []string{"count>0"}},
	}, metrics.NewAggregator().Kinds())
	require.NoError(t, err)

	results, err := Evaluate(summary, ths)
	require.NoError(t, err)
	assert.True(t, results[0].Passed)
	assert.True(t, results[0].Skipped)
	assert.False(t, results[1].Passed, "count thresholds evaluate zero totals")
}

func TestEvaluate_MissingMetricIsConfigurationError(t *testing.T) {
	summary := &metrics.Summary{Series: map[string]metrics.SeriesValue{}}
	th, err := Parse("ghost_metric", "rate>0.5")
	require.NoError(t, err)

	_, err = Evaluate(summary, []Threshold{th})
	require.Error(t, err)
	assert.True(t, failure.IsConfiguration(err))
}
