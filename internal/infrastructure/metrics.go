package infrastructure

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// BusinessMetrics holds the instruments of the HTTP layer and the results
// pipeline. All methods are no-ops on a nil receiver so services can run
// without telemetry.
type BusinessMetrics struct {
	httpRequests metric.Int64Counter
	httpDuration metric.Float64Histogram
	httpActive   metric.Int64UpDownCounter

	loads          metric.Int64Counter
	loadFailures   metric.Int64Counter
	uploadBytes    metric.Int64Counter
	recordsLoaded  metric.Int64Counter
	fieldIssues    metric.Int64Counter
	loadDuration   metric.Float64Histogram
	exports        metric.Int64Counter
	emptyViews     metric.Int64Counter
	activeSessions metric.Int64UpDownCounter
	evictions      metric.Int64Counter
}

// CreateBusinessMetrics registers every instrument on meter.
func CreateBusinessMetrics(meter metric.Meter) (*BusinessMetrics, error) {
	var errs []error
	counter := func(name, desc string, opts ...metric.Int64CounterOption) metric.Int64Counter {
		c, err := meter.Int64Counter(name, append(opts, metric.WithDescription(desc))...)
		errs = append(errs, err)
		return c
	}
	seconds := func(name, desc string) metric.Float64Histogram {
		h, err := meter.Float64Histogram(name, metric.WithDescription(desc), metric.WithUnit("s"))
		errs = append(errs, err)
		return h
	}
	gauge := func(name, desc string) metric.Int64UpDownCounter {
		c, err := meter.Int64UpDownCounter(name, metric.WithDescription(desc))
		errs = append(errs, err)
		return c
	}

	m := &BusinessMetrics{
		httpRequests: counter("http_requests_total", "HTTP requests served"),
		httpDuration: seconds("http_request_duration_seconds", "HTTP request latency"),
		httpActive:   gauge("http_active_requests", "HTTP requests in flight"),

		loads:          counter("uploads_total", "Result files loaded"),
		loadFailures:   counter("upload_failures_total", "Result files rejected"),
		uploadBytes:    counter("upload_bytes_total", "Bytes of result files loaded", metric.WithUnit("By")),
		recordsLoaded:  counter("records_loaded_total", "Result records loaded"),
		fieldIssues:    counter("field_issues_total", "Cells that failed to parse"),
		loadDuration:   seconds("load_duration_seconds", "Time to parse one result file"),
		exports:        counter("exports_total", "Exports written"),
		emptyViews:     counter("empty_results_total", "Operations asked of an empty view"),
		activeSessions: gauge("active_sessions", "Live sessions"),
		evictions:      counter("sessions_evicted_total", "Sessions dropped by expiry or capacity"),
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return m, nil
}

// RequestStarted counts a request in flight and returns the func that
// records its outcome.
func (m *BusinessMetrics) RequestStarted(ctx context.Context) func(method, route string, status int) {
	if m == nil {
		return func(string, string, int) {}
	}
	start := time.Now()
	m.httpActive.Add(ctx, 1)
	return func(method, route string, status int) {
		m.httpActive.Add(ctx, -1)
		attrs := metric.WithAttributes(
			attribute.String("method", method),
			attribute.String("route", route),
			attribute.Int("status_code", status),
		)
		m.httpRequests.Add(ctx, 1, attrs)
		m.httpDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	}
}

// FileLoaded records a parsed result file.
func (m *BusinessMetrics) FileLoaded(ctx context.Context, format string, size int64, records, issues int, took time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("format", format))
	m.loads.Add(ctx, 1, attrs)
	m.uploadBytes.Add(ctx, size, attrs)
	m.recordsLoaded.Add(ctx, int64(records), attrs)
	m.fieldIssues.Add(ctx, int64(issues), attrs)
	m.loadDuration.Record(ctx, took.Seconds(), attrs)
}

// FileRejected records a result file that could not be loaded. reason is a
// short stable label such as "schema" or "encoding".
func (m *BusinessMetrics) FileRejected(ctx context.Context, format, reason string) {
	if m == nil {
		return
	}
	m.loadFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("format", format),
		attribute.String("reason", reason),
	))
}

// Exported records one export.
func (m *BusinessMetrics) Exported(ctx context.Context, format string) {
	if m == nil {
		return
	}
	m.exports.Add(ctx, 1, metric.WithAttributes(attribute.String("format", format)))
}

// EmptyView records an operation asked of a view with no records.
func (m *BusinessMetrics) EmptyView(ctx context.Context, operation string) {
	if m == nil {
		return
	}
	m.emptyViews.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", operation)))
}

// SessionOpened records a new session.
func (m *BusinessMetrics) SessionOpened(ctx context.Context) {
	if m == nil {
		return
	}
	m.activeSessions.Add(ctx, 1)
}

// SessionClosed records a session leaving the store. evicted is true when
// the store dropped it rather than a client.
func (m *BusinessMetrics) SessionClosed(ctx context.Context, evicted bool) {
	if m == nil {
		return
	}
	m.activeSessions.Add(ctx, -1)
	if evicted {
		m.evictions.Add(ctx, 1)
	}
}
