package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusMetrics_Counter(t *testing.T) {
	m := NewPrometheusMetrics()

	m.Counter(MetricActivations, 1, T("result", "success"))
	m.Counter(MetricActivations, 1, T("result", "success"))
	m.Counter(MetricActivations, 1, T("result", "invalid_or_used_key"))

	vec := m.counters[MetricActivations].vec
	require.NotNil(t, vec)
	assert.Equal(t, 2.0, testutil.ToFloat64(vec.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(vec.WithLabelValues("invalid_or_used_key")))
}

func TestPrometheusMetrics_LabelSetFixedByFirstUse(t *testing.T) {
	m := NewPrometheusMetrics()

	m.Counter(MetricRevocations, 1, T("reason", "manual"))
	m.Counter(MetricRevocations, 1)
	m.Counter(MetricRevocations, 1, T("reason", "expired"), T("extra", "dropped"))

	vec := m.counters[MetricRevocations].vec
	require.NotNil(t, vec)
	assert.Equal(t, []string{"reason"}, m.counters[MetricRevocations].labels)
	assert.Equal(t, 1.0, testutil.ToFloat64(vec.WithLabelValues("manual")))
	assert.Equal(t, 1.0, testutil.ToFloat64(vec.WithLabelValues("")))
	assert.Equal(t, 1.0, testutil.ToFloat64(vec.WithLabelValues("expired")))
}

func TestPrometheusMetrics_GaugeAndTiming(t *testing.T) {
	m := NewPrometheusMetrics()

	m.Gauge("premium.sweep.pending", 4)
	m.Gauge("premium.sweep.pending", 7)
	assert.Equal(t, 7.0, testutil.ToFloat64(m.gauges["premium.sweep.pending"].vec.WithLabelValues()))

	m.Timing(MetricSweepDuration, 250*time.Millisecond)
	m.Timing(MetricSweepDuration, time.Second)
	assert.Equal(t, 1, testutil.CollectAndCount(m.histograms[MetricSweepDuration].vec))
}

func TestPrometheusMetrics_TypeConflictIsIgnored(t *testing.T) {
	m := NewPrometheusMetrics()

	m.Counter("premium.conflict", 1)
	assert.NotPanics(t, func() {
		m.Gauge("premium.conflict", 3)
	})
	assert.Nil(t, m.gauges["premium.conflict"].vec)
}

func TestPrometheusMetrics_TimerIntegration(t *testing.T) {
	m := NewPrometheusMetrics()

	StartTimer("activate").WithMetrics(m).Stop()

	vec := m.counters[MetricOperationTotal].vec
	require.NotNil(t, vec)
	assert.Equal(t, 1.0, testutil.ToFloat64(vec.WithLabelValues("activate")))
}

func TestPrometheusMetrics_Handler(t *testing.T) {
	m := NewPrometheusMetrics()
	m.Counter(MetricLicensesIssued, 3, T("tier", "monthly"))

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `premium_licenses_issued{tier="monthly"} 3`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestPrometheusName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"premium.activations", "premium_activations"},
		{"premium.owner_cache.hits", "premium_owner_cache_hits"},
		{"already_valid", "already_valid"},
		{"with-dash and space", "with_dash_and_space"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, PrometheusName(tt.in))
		})
	}
}
