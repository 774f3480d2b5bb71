package observability

import (
	"strings"
	"sync"
	"time"
)

// Metrics records application metrics. PrometheusMetrics backs it in the
// binaries and InMemoryMetrics in tests.
type Metrics interface {
	Counter(name string, value int64, tags ...Tag)
	Gauge(name string, value float64, tags ...Tag)
	Histogram(name string, value float64, tags ...Tag)
	Timing(name string, duration time.Duration, tags ...Tag)
}

// Tag is a metric label.
type Tag struct {
	Key   string
	Value string
}

// T creates a Tag.
func T(key, value string) Tag {
	return Tag{Key: key, Value: value}
}

// NoopMetrics discards everything.
type NoopMetrics struct{}

func (NoopMetrics) Counter(string, int64, ...Tag)        {}
func (NoopMetrics) Gauge(string, float64, ...Tag)        {}
func (NoopMetrics) Histogram(string, float64, ...Tag)    {}
func (NoopMetrics) Timing(string, time.Duration, ...Tag) {}

// InMemoryMetrics keeps metrics in maps keyed by name and tags. Timings are
// stored as histogram observations in seconds, as Prometheus does.
type InMemoryMetrics struct {
	mu           sync.RWMutex
	counters     map[string]int64
	gauges       map[string]float64
	observations map[string][]float64
}

// NewInMemoryMetrics creates an empty collector.
func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{
		counters:     make(map[string]int64),
		gauges:       make(map[string]float64),
		observations: make(map[string][]float64),
	}
}

func (m *InMemoryMetrics) Counter(name string, value int64, tags ...Tag) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[metricKey(name, tags)] += value
}

func (m *InMemoryMetrics) Gauge(name string, value float64, tags ...Tag) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges[metricKey(name, tags)] = value
}

func (m *InMemoryMetrics) Histogram(name string, value float64, tags ...Tag) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := metricKey(name, tags)
	m.observations[key] = append(m.observations[key], value)
}

func (m *InMemoryMetrics) Timing(name string, duration time.Duration, tags ...Tag) {
	m.Histogram(name, duration.Seconds(), tags...)
}

// GetCounter returns a counter's value, zero if never incremented.
func (m *InMemoryMetrics) GetCounter(name string, tags ...Tag) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counters[metricKey(name, tags)]
}

// GetGauge returns a gauge's last value.
func (m *InMemoryMetrics) GetGauge(name string, tags ...Tag) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gauges[metricKey(name, tags)]
}

// Observations returns a copy of the values recorded by Histogram or Timing.
func (m *InMemoryMetrics) Observations(name string, tags ...Tag) []float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]float64(nil), m.observations[metricKey(name, tags)]...)
}

// metricKey renders name{k=v,...} with tags in call order.
func metricKey(name string, tags []Tag) string {
	if len(tags) == 0 {
		return name
	}
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	for i, t := range tags {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(t.Key)
		b.WriteByte('=')
		b.WriteString(t.Value)
	}
	b.WriteByte('}')
	return b.String()
}

// Metric names. PrometheusMetrics rewrites the dots to underscores.
const (
	MetricOperationTotal    = "premium.operation.total"
	MetricOperationDuration = "premium.operation.duration"
	MetricOperationErrors   = "premium.operation.errors"

	MetricLicensesIssued   = "premium.licenses.issued"
	MetricActivations      = "premium.activations"
	MetricRevocations      = "premium.revocations"
	MetricSweepRevoked     = "premium.sweep.revoked"
	MetricSweepFailures    = "premium.sweep.failures"
	MetricSweepDuration    = "premium.sweep.duration"
	MetricFeatureChecks    = "premium.feature.checks"
	MetricOwnerCacheHits   = "premium.owner_cache.hits"
	MetricOwnerCacheMisses = "premium.owner_cache.misses"

	MetricPurchasesHandled = "premium.purchases.handled"

	MetricNotificationsSent   = "premium.notifications.sent"
	MetricNotificationsFailed = "premium.notifications.failed"

	MetricEventsPublished = "premium.events.published"
	MetricEventsConsumed  = "premium.events.consumed"

	MetricOutboxFailed = "premium.outbox.failed"
	MetricOutboxDead   = "premium.outbox.dead"
	MetricOutboxLag    = "premium.outbox.lag_seconds"
)
