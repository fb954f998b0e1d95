package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records execution metrics for gateway actions and the resilience
// substrate (cache, dedup, circuit breakers, batching) that backs them.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must honor cancellation/deadlines and return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordExecution records an action invocation with duration and error status.
	RecordExecution(ctx context.Context, meta RequestMeta, duration time.Duration, err error)

	// RecordCacheAccess records a cache lookup outcome for the given namespace.
	RecordCacheAccess(ctx context.Context, namespace string, hit bool)

	// RecordDedupCoalesce records that n-1 callers were coalesced onto one
	// in-flight upstream call (n total waiters sharing the result).
	RecordDedupCoalesce(ctx context.Context, endpoint string, waiters int)

	// RecordCircuitState records the current breaker state for an endpoint.
	RecordCircuitState(ctx context.Context, endpoint string, state int64)

	// RecordBatchFlush records the size of a flushed batch or merge window.
	RecordBatchFlush(ctx context.Context, kind string, size int)

	// RecordRateLimitWait records time spent waiting on the rate limiter.
	RecordRateLimitWait(ctx context.Context, endpoint string, wait time.Duration, throttled bool)
}

// metricsImpl is the concrete implementation of Metrics.
type metricsImpl struct {
	meter          metric.Meter
	totalCount     metric.Int64Counter
	errorCount     metric.Int64Counter
	durationHist   metric.Float64Histogram
	cacheHits      metric.Int64Counter
	cacheMisses    metric.Int64Counter
	dedupWaiters   metric.Int64Histogram
	circuitState   metric.Int64Gauge
	batchSizeHist  metric.Int64Histogram
	rateLimitWait  metric.Float64Histogram
	rateLimitThrot metric.Int64Counter
}

// newMetrics creates a new Metrics instance with the given meter.
func newMetrics(meter metric.Meter) (*metricsImpl, error) {
	totalCount, err := meter.Int64Counter(
		"mcp.request.total",
		metric.WithDescription("Total number of action invocations"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"mcp.request.errors",
		metric.WithDescription("Total number of action invocation errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"mcp.request.duration_ms",
		metric.WithDescription("Action invocation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	cacheHits, err := meter.Int64Counter("mcp.cache.hits", metric.WithUnit("{hit}"))
	if err != nil {
		return nil, err
	}
	cacheMisses, err := meter.Int64Counter("mcp.cache.misses", metric.WithUnit("{miss}"))
	if err != nil {
		return nil, err
	}
	dedupWaiters, err := meter.Int64Histogram("mcp.dedup.waiters", metric.WithUnit("{caller}"))
	if err != nil {
		return nil, err
	}
	circuitState, err := meter.Int64Gauge("mcp.circuit.state")
	if err != nil {
		return nil, err
	}
	batchSizeHist, err := meter.Int64Histogram("mcp.batch.flush_size", metric.WithUnit("{op}"))
	if err != nil {
		return nil, err
	}
	rateLimitWait, err := meter.Float64Histogram("mcp.ratelimit.wait_ms", metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	rateLimitThrot, err := meter.Int64Counter("mcp.ratelimit.throttled", metric.WithUnit("{call}"))
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		meter:          meter,
		totalCount:     totalCount,
		errorCount:     errorCount,
		durationHist:   durationHist,
		cacheHits:      cacheHits,
		cacheMisses:    cacheMisses,
		dedupWaiters:   dedupWaiters,
		circuitState:   circuitState,
		batchSizeHist:  batchSizeHist,
		rateLimitWait:  rateLimitWait,
		rateLimitThrot: rateLimitThrot,
	}, nil
}

// RecordExecution records metrics for an action invocation.
func (m *metricsImpl) RecordExecution(ctx context.Context, meta RequestMeta, duration time.Duration, err error) {
	// Build common attributes
	attrs := []attribute.KeyValue{
		attribute.String("mcp.action_id", meta.ActionID()),
		attribute.String("mcp.action_name", meta.Name),
	}

	// Add namespace if present
	if meta.Namespace != "" {
		attrs = append(attrs, attribute.String("mcp.server_namespace", meta.Namespace))
	}

	opt := metric.WithAttributes(attrs...)

	// Always increment total counter
	m.totalCount.Add(ctx, 1, opt)

	// Increment error counter on failure
	if err != nil {
		m.errorCount.Add(ctx, 1, opt)
	}

	// Record duration in milliseconds
	durationMs := float64(duration.Milliseconds())
	m.durationHist.Record(ctx, durationMs, opt)
}

func (m *metricsImpl) RecordCacheAccess(ctx context.Context, namespace string, hit bool) {
	opt := metric.WithAttributes(attribute.String("mcp.cache.namespace", namespace))
	if hit {
		m.cacheHits.Add(ctx, 1, opt)
	} else {
		m.cacheMisses.Add(ctx, 1, opt)
	}
}

func (m *metricsImpl) RecordDedupCoalesce(ctx context.Context, endpoint string, waiters int) {
	m.dedupWaiters.Record(ctx, int64(waiters), metric.WithAttributes(attribute.String("mcp.endpoint", endpoint)))
}

func (m *metricsImpl) RecordCircuitState(ctx context.Context, endpoint string, state int64) {
	m.circuitState.Record(ctx, state, metric.WithAttributes(attribute.String("mcp.endpoint", endpoint)))
}

func (m *metricsImpl) RecordBatchFlush(ctx context.Context, kind string, size int) {
	m.batchSizeHist.Record(ctx, int64(size), metric.WithAttributes(attribute.String("mcp.batch.kind", kind)))
}

func (m *metricsImpl) RecordRateLimitWait(ctx context.Context, endpoint string, wait time.Duration, throttled bool) {
	attrs := metric.WithAttributes(attribute.String("mcp.endpoint", endpoint))
	m.rateLimitWait.Record(ctx, float64(wait.Milliseconds()), attrs)
	if throttled {
		m.rateLimitThrot.Add(ctx, 1, attrs)
	}
}

// noopMetrics is a metrics implementation that does nothing.
type noopMetrics struct{}

func (m *noopMetrics) RecordExecution(ctx context.Context, meta RequestMeta, duration time.Duration, err error) {
}
func (m *noopMetrics) RecordCacheAccess(ctx context.Context, namespace string, hit bool)    {}
func (m *noopMetrics) RecordDedupCoalesce(ctx context.Context, endpoint string, waiters int) {}
func (m *noopMetrics) RecordCircuitState(ctx context.Context, endpoint string, state int64)  {}
func (m *noopMetrics) RecordBatchFlush(ctx context.Context, kind string, size int)           {}
func (m *noopMetrics) RecordRateLimitWait(ctx context.Context, endpoint string, wait time.Duration, throttled bool) {
}
