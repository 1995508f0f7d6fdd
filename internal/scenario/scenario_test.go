package scenario

import (
	"context"
	lhttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wesleyorama2/gabsload/internal/actor"
	"github.com/wesleyorama2/gabsload/internal/auth"
	"github.com/wesleyorama2/gabsload/internal/http"
	"github.com/wesleyorama2/gabsload/internal/journey"
	"github.com/wesleyorama2/gabsload/internal/metrics"
	"github.com/wesleyorama2/gabsload/internal/testserver"
)

type fixture struct {
	srv *testserver.Server
	env *Env
	agg *metrics.Aggregator
	orc *journey.Orchestrator
}

func newFixture(t *testing.T, opts auth.Options) *fixture {
	t.Helper()

	srv := testserver.New(testserver.Options{Vendors: 2})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	agg := metrics.NewAggregator()
	client := http.NewClient(
		http.WithBaseURL(ts.URL+testserver.Prefix),
		http.WithTimeout(5*time.Second),
		http.WithObserver(agg),
	)
	t.Cleanup(client.Close)

	env := &Env{
		Client:  client,
		Auth:    auth.NewAuthenticator(client),
		Tokens:  auth.NewSharedStore(opts),
		Metrics: agg,
		Logger:  zap.NewNop(),
		Intn:    func(int) int { return 0 },
	}
	orc := journey.NewOrchestrator(journey.WithSleeper(func(ctx context.Context, _ time.Duration) error {
		return ctx.Err()
	}))

	return &fixture{srv: srv, env: env, agg: agg, orc: orc}
}

func (f *fixture) run(kind actor.Kind, vu int) journey.Result {
	return f.orc.Run(context.Background(), nil, f.env.Journey(kind, vu))
}

func TestJourneys_EndToEnd(t *testing.T) {
	f := newFixture(t, auth.Options{})

	customer := f.run(actor.Customer, 1)
	require.True(t, customer.Success, customer.Error)
	assert.Equal(t, "completed", customer.Status)
	assert.Len(t, customer.Steps, 8)

	vendor := f.run(actor.Vendor, 2)
	require.True(t, vendor.Success, vendor.Error)
	assert.Equal(t, "completed", vendor.Status)

	rider := f.run(actor.Rider, 3)
	require.True(t, rider.Success, rider.Error)
	assert.Equal(t, "completed", rider.Status)

	st := f.srv.Stats()
	assert.Equal(t, int64(3), st.Logins)
	assert.Equal(t, int64(1), st.OrdersPlaced)
	assert.Equal(t, int64(1), st.OrdersAccepted)
	assert.Equal(t, int64(1), st.Deliveries)

	sum := f.agg.Finalize()
	for name, want := range map[string]float64{
		metrics.LoginSuccessRate:       1,
		metrics.OrderSuccessRate:       1,
		metrics.DeliveryCompletionRate: 1,
		metrics.Checks:                 1,
		metrics.HTTPReqFailed:          0,
	} {
		got, ok := sum.RateOf(name)
		require.True(t, ok, name)
		assert.Equal(t, want, got, name)
	}
	for _, name := range []string{
		metrics.OrdersPlaced, metrics.OrdersAccepted, metrics.DeliveriesCompleted,
		metrics.MenuViews, metrics.VendorBrowses,
	} {
		assert.Equal(t, int64(1), sum.CountOf(name), name)
	}
	assert.Equal(t, 3, f.agg.Trend(metrics.AuthResponseTime).Count())
	assert.Equal(t, 1, f.agg.Trend(metrics.OrderPlacementTime).Count())
	assert.Equal(t, 1, f.agg.Trend(metrics.OrderTrackingTime).Count())
	assert.Positive(t, sum.CountOf(metrics.HTTPReqs))
}

func TestVendorJourney_NoOrders(t *testing.T) {
	f := newFixture(t, auth.Options{})

	res := f.run(actor.Vendor, 1)
	assert.True(t, res.Success)
	assert.Equal(t, "no_orders", res.Status)
	assert.Len(t, res.Steps, 2, "journey stops after view_orders")
}

func TestRiderJourney_NoAssignments(t *testing.T) {
	f := newFixture(t, auth.Options{})

	res := f.run(actor.Rider, 1)
	assert.True(t, res.Success)
	assert.Equal(t, "no_assignments", res.Status)
}

func TestVendorJourney_AcceptOnlyForNonPending(t *testing.T) {
	f := newFixture(t, auth.Options{})
	require.True(t, f.run(actor.Customer, 1).Success)
	require.True(t, f.run(actor.Vendor, 2).Success)

	// the only order is now ready_for_pickup, so the fallback listing is used
	res := f.run(actor.Vendor, 2)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, int64(1), f.srv.Stats().OrdersAccepted, "accepting twice is idempotent")
}

func TestCustomerJourney_LoginFailureAborts(t *testing.T) {
	f := newFixture(t, auth.Options{})
	f.srv.Fail("/auth/customer", lhttp.StatusInternalServerError)

	res := f.run(actor.Customer, 1)
	assert.False(t, res.Success)
	assert.Equal(t, "login", res.FailedStep)
	assert.Len(t, res.Steps, 1)

	rate, ok := f.agg.Finalize().RateOf(metrics.LoginSuccessRate)
	require.True(t, ok)
	assert.Equal(t, 0.0, rate)
}

func TestCustomerJourney_CriticalStepFailure(t *testing.T) {
	f := newFixture(t, auth.Options{})
	f.srv.Fail("/customer/order/place", lhttp.StatusServiceUnavailable)

	res := f.run(actor.Customer, 1)
	assert.False(t, res.Success)
	assert.Equal(t, "order", res.FailedStep)
	assert.Contains(t, res.Error, "status 503")

	rate, ok := f.agg.Finalize().RateOf(metrics.OrderSuccessRate)
	require.True(t, ok)
	assert.Equal(t, 0.0, rate)
	assert.Equal(t, int64(0), f.agg.Counter(metrics.OrdersPlaced).Value())
}

func TestCustomerJourney_OptionalFailureKeepsSuccess(t *testing.T) {
	f := newFixture(t, auth.Options{})
	f.srv.Fail("/notifications", lhttp.StatusServiceUnavailable)

	res := f.run(actor.Customer, 1)
	require.True(t, res.Success, res.Error)

	last := res.Steps[len(res.Steps)-1]
	assert.Equal(t, "tracking_experience", last.Name)
	assert.False(t, last.Success)
	assert.Contains(t, last.Error, "503")
}

func TestJourney_RefreshesTokens(t *testing.T) {
	f := newFixture(t, auth.Options{RefreshProbability: 1})

	res := f.run(actor.Customer, 1)
	require.True(t, res.Success, res.Error)
	// every authenticated step after login refreshes
	assert.Equal(t, int64(7), f.srv.Stats().Refreshes)
}

func TestJourney_PerVUTokens(t *testing.T) {
	f := newFixture(t, auth.Options{})
	store := auth.NewPerVUStore(auth.Options{})
	f.env.Tokens = store

	require.True(t, f.run(actor.Customer, 1).Success)
	require.True(t, f.run(actor.Customer, 2).Success)
	assert.Equal(t, 2, store.Len())
}

func TestPool_Pick(t *testing.T) {
	pool := Pool{actor.Customer: {{Email: "only@example.com", Password: "x"}}}
	first := func(int) int { return 0 }

	assert.Equal(t, "only@example.com", pool.Pick(actor.Customer, first).Email)
	assert.Contains(t, pool.Pick(actor.Rider, first).Email, "@rider.com", "falls back to built-in accounts")
}

func TestPickItems(t *testing.T) {
	menu := []menuItem{{ID: "a", Price: 1}, {ID: "b", Price: 2}}
	env := &Env{Intn: func(n int) int { return n - 1 }}

	items := env.pickItems(menu)
	assert.Len(t, items, 2, "never more items than the menu has")
	for _, it := range items {
		assert.Equal(t, 3, it.Quantity)
	}
	assert.NotEqual(t, items[0].MenuItemID, items[1].MenuItemID)
}

func TestJourneyMetric(t *testing.T) {
	assert.Equal(t, metrics.CustomerJourneyTime, JourneyMetric(actor.Customer))
	assert.Equal(t, metrics.VendorJourneyTime, JourneyMetric(actor.Vendor))
	assert.Equal(t, metrics.RiderJourneyTime, JourneyMetric(actor.Rider))
}
