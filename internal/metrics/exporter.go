package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Collector exposes live aggregator values to Prometheus at scrape time.
type Collector struct {
	agg *Aggregator

	rateDesc    *prometheus.Desc
	trendDesc   *prometheus.Desc
	counterDesc *prometheus.Desc
	vusDesc     *prometheus.Desc
}

// NewCollector wraps agg as a prometheus.Collector.
func NewCollector(agg *Aggregator) *Collector {
	return &Collector{
		agg: agg,
		rateDesc: prometheus.NewDesc("gabsload_rate",
			"Fraction of true outcomes for a rate series.", []string{"series"}, nil),
		trendDesc: prometheus.NewDesc("gabsload_trend_milliseconds",
			"Live histogram statistic for a trend series.", []string{"series", "stat"}, nil),
		counterDesc: prometheus.NewDesc("gabsload_counter_total",
			"Total of a counter series.", []string{"series"}, nil),
		vusDesc: prometheus.NewDesc("gabsload_active_vus",
			"Virtual users currently running a journey.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.rateDesc
	ch <- c.trendDesc
	ch <- c.counterDesc
	ch <- c.vusDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.vusDesc, prometheus.GaugeValue, float64(c.agg.ActiveVUs()))

	for name, kind := range c.agg.Kinds() {
		switch kind {
		case KindRate:
			ch <- prometheus.MustNewConstMetric(c.rateDesc, prometheus.GaugeValue, c.agg.Rate(name).Value(), name)
		case KindCounter:
			ch <- prometheus.MustNewConstMetric(c.counterDesc, prometheus.CounterValue, float64(c.agg.Counter(name).Value()), name)
		case KindTrend:
			live := c.agg.Trend(name).Live()
			ch <- prometheus.MustNewConstMetric(c.trendDesc, prometheus.GaugeValue, live.Avg, name, "avg")
			ch <- prometheus.MustNewConstMetric(c.trendDesc, prometheus.GaugeValue, live.P95, name, "p95")
			ch <- prometheus.MustNewConstMetric(c.trendDesc, prometheus.GaugeValue, live.P99, name, "p99")
		}
	}
}

// Exporter serves one run's metrics on a private registry.
type Exporter struct {
	registry *prometheus.Registry
	logger   *zap.Logger
}

// NewExporter registers a Collector for agg on a fresh registry.
func NewExporter(agg *Aggregator, logger *zap.Logger) (*Exporter, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(NewCollector(agg)); err != nil {
		return nil, err
	}
	return &Exporter{registry: reg, logger: logger.With(zap.String("component", "exporter"))}, nil
}

// Handler returns the /metrics handler.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Serve listens on addr until ctx is cancelled.
func (e *Exporter) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", e.Handler())

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	server := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	e.logger.Info("serving metrics", zap.String("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
