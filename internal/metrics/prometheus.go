package metrics

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics exports every recorded metric through a private
// Prometheus registry. Collectors are created on first use of a name.
type PrometheusMetrics struct {
	namespace string
	registry  *prometheus.Registry

	mu         sync.Mutex
	counters   map[string]prometheus.Counter
	gauges     map[string]prometheus.Gauge
	histograms map[string]prometheus.Histogram
}

// NewPrometheusMetrics creates a backend whose metric names are prefixed
// with namespace. Go runtime and process collectors are registered too.
func NewPrometheusMetrics(namespace string) *PrometheusMetrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &PrometheusMetrics{
		namespace:  sanitize(namespace),
		registry:   registry,
		counters:   make(map[string]prometheus.Counter),
		gauges:     make(map[string]prometheus.Gauge),
		histograms: make(map[string]prometheus.Histogram),
	}
}

// Registry returns the underlying registry.
func (p *PrometheusMetrics) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (p *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func (p *PrometheusMetrics) Initialize(ctx context.Context) error { return nil }
func (p *PrometheusMetrics) Flush(ctx context.Context) error      { return nil }
func (p *PrometheusMetrics) Shutdown(ctx context.Context) error   { return nil }

// UpdateGauge sets the named gauge.
func (p *PrometheusMetrics) UpdateGauge(ctx context.Context, name string, value float64) error {
	p.mu.Lock()
	g, ok := p.gauges[name]
	if !ok {
		g = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Name:      sanitize(name),
			Help:      "Gauge " + name + ".",
		})
		if err := p.registry.Register(g); err != nil {
			p.mu.Unlock()
			return err
		}
		p.gauges[name] = g
	}
	p.mu.Unlock()

	g.Set(value)
	return nil
}

// IncrementCounter adds value to the named counter, exported with a _total suffix.
func (p *PrometheusMetrics) IncrementCounter(ctx context.Context, name string, value uint64) error {
	p.mu.Lock()
	c, ok := p.counters[name]
	if !ok {
		c = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Name:      sanitize(name) + "_total",
			Help:      "Counter " + name + ".",
		})
		if err := p.registry.Register(c); err != nil {
			p.mu.Unlock()
			return err
		}
		p.counters[name] = c
	}
	p.mu.Unlock()

	c.Add(float64(value))
	return nil
}

// RecordHistogram observes value in the named histogram.
func (p *PrometheusMetrics) RecordHistogram(ctx context.Context, name string, value float64) error {
	p.mu.Lock()
	h, ok := p.histograms[name]
	if !ok {
		h = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Name:      sanitize(name),
			Help:      "Histogram " + name + ".",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 14),
		})
		if err := p.registry.Register(h); err != nil {
			p.mu.Unlock()
			return err
		}
		p.histograms[name] = h
	}
	p.mu.Unlock()

	h.Observe(value)
	return nil
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
