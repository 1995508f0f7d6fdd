// Package scenario defines the customer, vendor and rider journeys.
//
// Each journey is a list of journey.Steps whose actions call the target API
// through the shared HTTP client, rotate tokens through the token store,
// validate response shapes, and record business metrics. State that a later
// step needs (selected vendor, placed order, accepted assignment) lives in a
// session owned by one journey run.
package scenario

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/wesleyorama2/gabsload/internal/actor"
	"github.com/wesleyorama2/gabsload/internal/auth"
	"github.com/wesleyorama2/gabsload/internal/failure"
	"github.com/wesleyorama2/gabsload/internal/http"
	"github.com/wesleyorama2/gabsload/internal/journey"
	"github.com/wesleyorama2/gabsload/internal/metrics"
	"github.com/wesleyorama2/gabsload/pkg/jsonschema"
)

// Env holds the shared dependencies of every journey.
type Env struct {
	Client      *http.Client
	Auth        *auth.Authenticator
	Tokens      auth.Store
	Metrics     *metrics.Aggregator
	Credentials Pool
	Logger      *zap.Logger

	// Intn returns a value in [0,n). Defaults to math/rand.
	Intn func(n int) int
}

func (e *Env) intn(n int) int {
	if n <= 1 {
		return 0
	}
	if e.Intn != nil {
		return e.Intn(n)
	}
	return rand.Intn(n)
}

// between returns a value in [min,max].
func (e *Env) between(min, max int) int {
	return min + e.intn(max-min+1)
}

func (e *Env) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

// Journey builds a fresh journey for kind. vu selects the token slot in
// per-VU mode.
func (e *Env) Journey(kind actor.Kind, vu int) *journey.Journey {
	s := &session{
		env:    e,
		kind:   kind,
		key:    auth.Key{Kind: kind, VU: vu},
		logger: e.logger().With(zap.String("component", "scenario"), zap.String("kind", kind.String()), zap.Int("vu", vu)),
	}

	switch kind {
	case actor.Vendor:
		return s.vendorJourney()
	case actor.Rider:
		return s.riderJourney()
	default:
		return s.customerJourney()
	}
}

// JourneyMetric names the trend that records a kind's journey duration.
func JourneyMetric(kind actor.Kind) string {
	switch kind {
	case actor.Vendor:
		return metrics.VendorJourneyTime
	case actor.Rider:
		return metrics.RiderJourneyTime
	default:
		return metrics.CustomerJourneyTime
	}
}

// session is the per-run state of one journey.
type session struct {
	env    *Env
	kind   actor.Kind
	key    auth.Key
	logger *zap.Logger

	token  string
	userID string

	// customer
	vendorID   string
	menu       []menuItem
	cartItems  []orderItem
	orderID    string
	orderTotal float64

	// vendor
	vendorOrderID     string
	vendorOrderStatus string

	// rider
	assignmentID     string
	assignmentOrder  string
	assignmentStatus string
}

// login authenticates with a pooled credential and caches the token.
func (s *session) login(ctx context.Context) journey.Outcome {
	creds := s.env.Credentials.Pick(s.kind, s.env.intn)
	res, err := s.env.Auth.Login(ctx, s.kind, creds)

	m := s.env.Metrics
	m.AddRate(metrics.LoginSuccessRate, err == nil)
	if res.Duration > 0 {
		m.AddDuration(metrics.AuthResponseTime, res.Duration)
	}

	s.check(s.kind.String()+" login successful", res.Status == 200, "")
	s.check(s.kind.String()+" login has token", res.Token.Value != "", "")
	s.check(s.kind.String()+" login response time < 2000ms", res.Duration < 2*time.Second, res.Duration.String())

	if err != nil {
		return journey.FailErr(err)
	}

	s.env.Tokens.Set(s.key, res.Token)
	s.token = res.Token.Value
	s.userID = res.UserID
	return journey.OK()
}

// authorize rotates the cached token when due and adopts whatever the store
// holds for this key.
func (s *session) authorize(ctx context.Context) {
	if !s.env.Tokens.EnsureValid(ctx, s.key, s.env.Auth.Refresh) {
		s.logger.Debug("token not refreshed, continuing with cached token")
	}
	if tok, ok := s.env.Tokens.Get(s.key); ok {
		s.token = tok.Value
	}
}

// send issues an authenticated call. ok is false when the call failed at
// transport level or returned a non-2xx status; out then describes why.
func (s *session) send(ctx context.Context, req *http.Request) (resp *http.Response, out journey.Outcome, ok bool) {
	resp, err := s.env.Client.Do(ctx, req.WithBearer(s.token))
	switch {
	case err != nil:
		return nil, journey.FailErr(err), false
	case !resp.IsSuccess():
		return resp, journey.FailStatus(req.Name+" returned an error", resp.StatusCode), false
	}
	return resp, journey.OK(), true
}

// check records one predicate in the checks rate.
func (s *session) check(name string, ok bool, detail string) bool {
	s.env.Metrics.AddRate(metrics.Checks, ok)
	if !ok {
		s.logger.Debug("check failed", zap.Error(&failure.Assertion{Check: name, Detail: detail}))
	}
	return ok
}

// checkSchema validates resp against schema and records the result.
func (s *session) checkSchema(name string, schema *jsonschema.Schema, resp *http.Response) bool {
	err := schema.Validate(resp.Body())
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	return s.check(name, err == nil, detail)
}
