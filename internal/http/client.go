// Package http is the adapter every scenario uses to talk to the target API.
//
// It wraps net/http with uniform timing capture, JSON bodies, bearer
// authentication, an optional global rate limit, and a per-call observer
// hook that feeds the metrics aggregator.
package http

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptrace"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/wesleyorama2/gabsload/internal/failure"
)

// Observer receives one record per completed call.
//
// Implementations must be safe for concurrent use; the client is shared by
// every virtual user.
type Observer interface {
	ObserveRequest(rec Record)
}

// Record describes one completed call for observability.
type Record struct {
	Name     string
	Method   string
	Path     string
	Status   int
	Duration time.Duration
	Bytes    int
	Err      error
}

// Failed reports whether the call errored or returned a non-2xx status.
func (r Record) Failed() bool {
	return r.Err != nil || r.Status < 200 || r.Status >= 300
}

// Client is a concurrency-safe HTTP client bound to one target base URL.
type Client struct {
	httpClient *http.Client
	baseURL    string
	headers    map[string]string
	limiter    *rate.Limiter
	observer   Observer
}

// ClientOption is a function that configures a Client
type ClientOption func(*Client)

// NewClient creates a client with pooled transport defaults for load testing.
func NewClient(options ...ClientOption) *Client {
	client := &Client{
		httpClient: NewHTTPClient(DefaultTransportConfig()),
		headers:    make(map[string]string),
	}

	for _, option := range options {
		option(client)
	}

	return client
}

// WithBaseURL sets the base URL for the client
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithTimeout sets the per-request timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithHeader adds a header sent on every request
func WithHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.headers[key] = value
	}
}

// WithTransport replaces the underlying client with one built from cfg.
func WithTransport(cfg TransportConfig) ClientOption {
	return func(c *Client) {
		timeout := c.httpClient.Timeout
		c.httpClient = NewHTTPClient(cfg)
		if cfg.Timeout == 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithRateLimit caps the aggregate request rate across all callers.
// A non-positive rps disables the limit.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithObserver registers the per-call observer.
func WithObserver(o Observer) ClientOption {
	return func(c *Client) {
		c.observer = o
	}
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do executes req and returns the response with timing information.
//
// Any status is returned as a Response; only network, timeout, and
// cancellation errors produce a *failure.Transport.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, c.fail(req, 0, &failure.Transport{Method: req.Method, Path: req.Path, Err: err})
		}
	}

	httpReq, err := req.Build(ctx, c.baseURL)
	if err != nil {
		return nil, c.fail(req, 0, &failure.Transport{Method: req.Method, Path: req.Path, Err: err})
	}

	for key, value := range c.headers {
		if httpReq.Header.Get(key) == "" {
			httpReq.Header.Set(key, value)
		}
	}
	if httpReq.Header.Get("X-Request-ID") == "" {
		httpReq.Header.Set("X-Request-ID", uuid.NewString())
	}

	timing := TimingInfo{StartTime: time.Now()}
	httpReq = httpReq.WithContext(httptrace.WithClientTrace(httpReq.Context(), timing.trace()))

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		timing.TotalTime = time.Since(timing.StartTime)
		return nil, c.fail(req, timing.TotalTime, &failure.Transport{Method: req.Method, Path: req.Path, Err: err})
	}
	defer httpResp.Body.Close()

	transferStart := time.Now()
	body, err := io.ReadAll(httpResp.Body)
	timing.ContentTransferTime = time.Since(transferStart)
	timing.TotalTime = time.Since(timing.StartTime)
	if err != nil {
		return nil, c.fail(req, timing.TotalTime, &failure.Transport{Method: req.Method, Path: req.Path, Err: err})
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Status:     httpResp.Status,
		Headers:    httpResp.Header,
		Timing:     timing,
		body:       body,
	}

	c.observe(Record{
		Name:     req.metricName(),
		Method:   req.Method,
		Path:     req.Path,
		Status:   resp.StatusCode,
		Duration: timing.TotalTime,
		Bytes:    len(body),
	})

	return resp, nil
}

// Close releases idle connections held by the transport.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

func (c *Client) fail(req *Request, d time.Duration, err error) error {
	c.observe(Record{
		Name:     req.metricName(),
		Method:   req.Method,
		Path:     req.Path,
		Duration: d,
		Err:      err,
	})
	return err
}

func (c *Client) observe(rec Record) {
	if c.observer != nil {
		c.observer.ObserveRequest(rec)
	}
}

// TransportConfig contains connection pool settings.
type TransportConfig struct {
	// Timeout for HTTP requests
	Timeout time.Duration

	// MaxIdleConns controls the maximum number of idle connections
	MaxIdleConns int

	// MaxIdleConnsPerHost controls the maximum idle connections per host
	MaxIdleConnsPerHost int

	// MaxConnsPerHost limits the total connections per host (0 = unlimited)
	MaxConnsPerHost int

	// IdleConnTimeout is how long idle connections are kept alive
	IdleConnTimeout time.Duration

	DisableKeepAlives  bool
	InsecureSkipVerify bool
}

// DefaultTransportConfig returns pool sizes suited to thousands of VUs
// against a single host.
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		Timeout:             30 * time.Second,
		MaxIdleConns:        1000,
		MaxIdleConnsPerHost: 1000,
		IdleConnTimeout:     90 * time.Second,
	}
}

// NewHTTPClient builds a net/http client from cfg.
func NewHTTPClient(cfg TransportConfig) *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		MaxConnsPerHost:     cfg.MaxConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		DisableKeepAlives:   cfg.DisableKeepAlives,
	}
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}

	return &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
	}
}
