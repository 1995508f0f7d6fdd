// Package testserver is an in-memory fake of the food-delivery API.
//
// It implements every endpoint the scenarios call, keeps orders, carts
// and rider assignments in memory, and issues HS256 JWTs. Tests use it
// through httptest; `gabsload mock-api` serves it for dry runs.
package testserver

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Prefix is the path every route is mounted under.
const Prefix = "/api"

// Options configures a Server.
type Options struct {
	// Signing secret for issued tokens
	Secret []byte

	TokenTTL time.Duration
	Vendors  int

	// Latency is added to every request.
	Latency time.Duration

	// ErrorRate in [0,1] answers that fraction of requests with 500.
	ErrorRate float64

	Logger *zap.Logger
}

// DefaultOptions returns options for a small catalog and 15 minute tokens.
func DefaultOptions() Options {
	return Options{
		Secret:   []byte("gabsload-test-secret"),
		TokenTTL: 15 * time.Minute,
		Vendors:  4,
	}
}

// Stats counts business events the server has handled.
type Stats struct {
	Logins         int64
	Refreshes      int64
	OrdersPlaced   int64
	OrdersAccepted int64
	Deliveries     int64
}

// Server is the fake API.
type Server struct {
	opts   Options
	logger *zap.Logger
	router chi.Router

	mu            sync.Mutex
	vendors       []Vendor
	menus         map[string][]MenuItem
	carts         map[string][]CartItem
	orders        map[string]*Order
	orderIDs      []string
	assignments   map[string]*Assignment
	assignmentIDs []string
	failures      map[string]int
	rnd           *rand.Rand

	logins, refreshes, placed, accepted, delivered atomic.Int64
}

// New builds a server with its catalog seeded.
func New(opts Options) *Server {
	def := DefaultOptions()
	if len(opts.Secret) == 0 {
		opts.Secret = def.Secret
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = def.TokenTTL
	}
	if opts.Vendors <= 0 {
		opts.Vendors = def.Vendors
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	s := &Server{
		opts:        opts,
		logger:      opts.Logger.With(zap.String("component", "mock-api")),
		carts:       make(map[string][]CartItem),
		orders:      make(map[string]*Order),
		assignments: make(map[string]*Assignment),
		failures:    make(map[string]int),
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	s.vendors, s.menus = buildCatalog(opts.Vendors)
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Fail answers every request whose path (after Prefix) starts with
// pathPrefix with status. A status of 0 removes the rule.
func (s *Server) Fail(pathPrefix string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.failures, pathPrefix)
		return
	}
	s.failures[pathPrefix] = status
}

// Stats returns a snapshot of the event counters.
func (s *Server) Stats() Stats {
	return Stats{
		Logins:         s.logins.Load(),
		Refreshes:      s.refreshes.Load(),
		OrdersPlaced:   s.placed.Load(),
		OrdersAccepted: s.accepted.Load(),
		Deliveries:     s.delivered.Load(),
	}
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	s.logger.Info("mock API listening",
		zap.String("addr", ln.Addr().String()),
		zap.String("base_url", "http://"+ln.Addr().String()+Prefix))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(s.injectFaults)

	r.Route(Prefix, func(r chi.Router) {
		r.Get("/health", s.health)
		r.Post("/auth/{kind}/login", s.login)
		r.Post("/auth/refresh", s.refresh)

		r.Group(func(r chi.Router) {
			r.Use(s.requireRole("customer"))
			r.Get("/restaurants/get-restaurants", s.listVendors)
			r.Get("/restaurants/details/{id}", s.vendorDetails)
			r.Get("/customer/cart/list", s.getCart)
			r.Post("/customer/cart/add", s.addToCart)
			r.Patch("/cart/items/{id}", s.updateCartItem)
			r.Delete("/cart/items/{id}", s.removeCartItem)
			r.Post("/customer/order/place", s.placeOrder)
			r.Get("/customer/order/list", s.customerOrders)
			r.Get("/customer/order/track", s.trackOrder)
			r.Get("/orders/{id}/status-history", s.statusHistory)
			r.Get("/orders/{id}/track/location", s.orderLocation)
			r.Get("/notifications/delivery", s.notifications)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.requireRole("vendor"))
			r.Get("/vendor/orders", s.vendorOrders)
			r.Get("/vendor/orders/{id}", s.vendorOrder)
			r.Post("/vendor/orders/{id}/accept", s.vendorAccept)
			r.Patch("/vendor/orders/{id}/status", s.vendorStatus)
			r.Get("/vendor/menu", s.vendorMenu)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.requireRole("rider"))
			r.Get("/rider/assignments", s.listAssignments)
			r.Get("/rider/assignments/{id}", s.getAssignment)
			r.Post("/rider/assignments/{id}/accept", s.acceptAssignment)
			r.Patch("/rider/orders/{id}/status", s.riderStatus)
			r.Post("/rider/location", s.riderLocation)
		})
	})

	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.String("request_id", r.Header.Get("X-Request-ID")),
			zap.Duration("duration", time.Since(start)))
	})
}

func (s *Server) injectFaults(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.Latency > 0 {
			select {
			case <-r.Context().Done():
				return
			case <-time.After(s.opts.Latency):
			}
		}

		path := strings.TrimPrefix(r.URL.Path, Prefix)
		s.mu.Lock()
		status := 0
		for prefix, code := range s.failures {
			if strings.HasPrefix(path, prefix) {
				status = code
				break
			}
		}
		if status == 0 && s.opts.ErrorRate > 0 && s.rnd.Float64() < s.opts.ErrorRate {
			status = http.StatusInternalServerError
		}
		s.mu.Unlock()

		if status != 0 {
			s.respondError(w, status, "injected failure")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode JSON response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, msg string) {
	s.respondJSON(w, status, map[string]string{"error": msg})
}

func decode(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	return json.NewDecoder(r.Body).Decode(v)
}
