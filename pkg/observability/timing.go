package observability

import "time"

// Timer measures one run of an operation such as an activation or a sweep.
type Timer struct {
	operation string
	start     time.Time
	metrics   Metrics
}

// StartTimer starts timing operation.
func StartTimer(operation string) *Timer {
	return &Timer{operation: operation, start: time.Now()}
}

// WithMetrics makes Stop report to metrics.
func (t *Timer) WithMetrics(metrics Metrics) *Timer {
	t.metrics = metrics
	return t
}

// Stop records a successful run and returns its duration.
func (t *Timer) Stop() time.Duration {
	return t.StopWithError(nil)
}

// StopWithError records a run that ended with err, counting it as an
// error when err is non-nil.
func (t *Timer) StopWithError(err error) time.Duration {
	d := time.Since(t.start)
	if t.metrics == nil {
		return d
	}

	op := T("operation", t.operation)
	t.metrics.Timing(MetricOperationDuration, d, op)
	t.metrics.Counter(MetricOperationTotal, 1, op)
	if err != nil {
		t.metrics.Counter(MetricOperationErrors, 1, op)
	}
	return d
}
