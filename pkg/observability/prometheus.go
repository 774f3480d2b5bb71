package observability

import (
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics implements Metrics on a Prometheus registry.
//
// Dotted metric names are exported with underscores. The label set of a
// metric is fixed by its first observation; later observations fill missing
// labels with "" and drop unknown ones.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	mu         sync.Mutex
	counters   map[string]*labeled[*prometheus.CounterVec]
	gauges     map[string]*labeled[*prometheus.GaugeVec]
	histograms map[string]*labeled[*prometheus.HistogramVec]
}

type labeled[V any] struct {
	vec    V
	labels []string
}

// NewPrometheusMetrics creates a collector with its own registry, including
// the standard Go and process collectors.
func NewPrometheusMetrics() *PrometheusMetrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &PrometheusMetrics{
		registry:   registry,
		counters:   make(map[string]*labeled[*prometheus.CounterVec]),
		gauges:     make(map[string]*labeled[*prometheus.GaugeVec]),
		histograms: make(map[string]*labeled[*prometheus.HistogramVec]),
	}
}

// Registry exposes the underlying registry.
func (m *PrometheusMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

func (m *PrometheusMetrics) Counter(name string, value int64, tags ...Tag) {
	m.mu.Lock()
	c, ok := m.counters[name]
	if !ok {
		labels := labelNames(tags)
		vec := prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: PrometheusName(name),
			Help: name,
		}, labels)
		c = &labeled[*prometheus.CounterVec]{labels: labels}
		if m.registry.Register(vec) == nil {
			c.vec = vec
		}
		m.counters[name] = c
	}
	m.mu.Unlock()

	if c.vec != nil && value >= 0 {
		c.vec.With(labelValues(c.labels, tags)).Add(float64(value))
	}
}

func (m *PrometheusMetrics) Gauge(name string, value float64, tags ...Tag) {
	m.mu.Lock()
	g, ok := m.gauges[name]
	if !ok {
		labels := labelNames(tags)
		vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: PrometheusName(name),
			Help: name,
		}, labels)
		g = &labeled[*prometheus.GaugeVec]{labels: labels}
		if m.registry.Register(vec) == nil {
			g.vec = vec
		}
		m.gauges[name] = g
	}
	m.mu.Unlock()

	if g.vec != nil {
		g.vec.With(labelValues(g.labels, tags)).Set(value)
	}
}

func (m *PrometheusMetrics) Histogram(name string, value float64, tags ...Tag) {
	if h := m.histogram(name, tags); h.vec != nil {
		h.vec.With(labelValues(h.labels, tags)).Observe(value)
	}
}

// Timing records durations in seconds.
func (m *PrometheusMetrics) Timing(name string, duration time.Duration, tags ...Tag) {
	m.Histogram(name, duration.Seconds(), tags...)
}

func (m *PrometheusMetrics) histogram(name string, tags []Tag) *labeled[*prometheus.HistogramVec] {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.histograms[name]
	if !ok {
		labels := labelNames(tags)
		vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    PrometheusName(name),
			Help:    name,
			Buckets: prometheus.DefBuckets,
		}, labels)
		h = &labeled[*prometheus.HistogramVec]{labels: labels}
		if m.registry.Register(vec) == nil {
			h.vec = vec
		}
		m.histograms[name] = h
	}
	return h
}

// PrometheusName converts a dotted metric name into a valid Prometheus name.
func PrometheusName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == ':':
			return r
		default:
			return '_'
		}
	}, name)
}

func labelNames(tags []Tag) []string {
	names := make([]string, 0, len(tags))
	for _, t := range tags {
		key := PrometheusName(t.Key)
		if !slices.Contains(names, key) {
			names = append(names, key)
		}
	}
	slices.Sort(names)
	return names
}

func labelValues(labels []string, tags []Tag) prometheus.Labels {
	values := make(prometheus.Labels, len(labels))
	for _, l := range labels {
		values[l] = ""
	}
	for _, t := range tags {
		key := PrometheusName(t.Key)
		if _, ok := values[key]; ok {
			values[key] = t.Value
		}
	}
	return values
}

var _ Metrics = (*PrometheusMetrics)(nil)
