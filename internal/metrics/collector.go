// internal/metrics/collector.go
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "letscook"

// Collector owns the quoting metrics and the registry they live in.
type Collector struct {
	registry *prometheus.Registry

	rpcLatency   *prometheus.HistogramVec
	quotes       *prometheus.CounterVec
	cacheLookups *prometheus.CounterVec
	curvePrice   *prometheus.GaugeVec
	graduation   *prometheus.GaugeVec
}

// NewCollector registers all metrics on a fresh registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),

		rpcLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "rpc_latency_seconds",
				Help:      "RPC request latency in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
			},
			[]string{"method", "status"},
		),
		quotes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "quotes_total",
				Help:      "Total number of quotes served",
			},
			[]string{"side", "status"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "state_cache_lookups_total",
				Help:      "Launch state cache lookups by result",
			},
			[]string{"result"},
		),
		curvePrice: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "curve_price_sol",
				Help:      "Last observed marginal curve price in SOL",
			},
			[]string{"mint"},
		),
		graduation: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "graduation_progress_ratio",
				Help:      "Fraction of the graduation threshold raised",
			},
			[]string{"mint"},
		),
	}

	c.registry.MustRegister(c.rpcLatency, c.quotes, c.cacheLookups, c.curvePrice, c.graduation)
	return c
}

func status(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// ObserveRPC records one RPC attempt.
func (c *Collector) ObserveRPC(method string, d time.Duration, err error) {
	c.rpcLatency.WithLabelValues(method, status(err)).Observe(d.Seconds())
}

// RecordQuote counts a buy, sell or snapshot request.
func (c *Collector) RecordQuote(side string, err error) {
	c.quotes.WithLabelValues(side, status(err)).Inc()
}

// RecordCacheLookup counts a state cache hit or miss.
func (c *Collector) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheLookups.WithLabelValues(result).Inc()
}

// SetCurve stores the latest price and graduation progress of mint.
func (c *Collector) SetCurve(mint string, price, progress float64) {
	c.curvePrice.WithLabelValues(mint).Set(price)
	c.graduation.WithLabelValues(mint).Set(progress)
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the metrics in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Reset clears all series.
func (c *Collector) Reset() {
	c.rpcLatency.Reset()
	c.quotes.Reset()
	c.cacheLookups.Reset()
	c.curvePrice.Reset()
	c.graduation.Reset()
}
