// Package observe provides OpenTelemetry-based observability for the gateway's
// action dispatch path and resilience substrate.
//
// It is a pure instrumentation library: no execution, no transport, no I/O
// beyond exporter setup. Consumers wire the Observer into the handler runtime
// or transport layer.
//
// # Overview
//
// observe provides three observability pillars:
//   - Tracing: OpenTelemetry spans with action metadata attributes
//   - Metrics: Execution counters, duration histograms, and gateway-specific
//     instruments for cache hit rate, dedup coalescing, circuit state, batch
//     flush size, and rate limiter wait time
//   - Logging: Structured JSON logging with automatic field redaction
//
// # Core Components
//
//   - [Observer]: Main facade providing Tracer, Meter, and Logger access
//   - [Tracer]: Span creation with action metadata as span attributes
//   - [Metrics]: Records execution counts, errors, duration, and substrate metrics
//   - [Logger]: Structured JSON logging with sensitive field redaction
//   - [Middleware]: Wraps ExecuteFunc with complete observability
//
// # Quick Start
//
//	cfg := observe.Config{
//	    ServiceName: "sheetbridge-gateway",
//	    Version:     "1.0.0",
//	    Tracing:     observe.TracingConfig{Enabled: true, Exporter: "otlp", SamplePct: 1.0},
//	    Metrics:     observe.MetricsConfig{Enabled: true, Exporter: "prometheus"},
//	    Logging:     observe.LoggingConfig{Enabled: true, Level: "info"},
//	}
//
//	obs, err := observe.NewObserver(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer obs.Shutdown(ctx)
//
//	// Create middleware and wrap action dispatch
//	mw, _ := observe.MiddlewareFromObserver(obs)
//	wrappedExec := mw.Wrap(dispatchAction)
//
//	// Dispatch - automatically traced, metered, and logged
//	result, err := wrappedExec(ctx, actionMeta, input)
//
// # Telemetry Details
//
// Tracing creates spans with deterministic names:
//   - With namespace: "mcp.request.<namespace>.<name>" (e.g., "mcp.request.sheets.values_get")
//   - Without namespace: "mcp.request.<name>" (e.g., "mcp.request.values_get")
//
// Span attributes include:
//   - mcp.action_id: Fully qualified action identifier
//   - mcp.action_name: Action name (required)
//   - mcp.server_namespace: Server namespace (if set)
//   - mcp.action_version: Gateway version (if set)
//   - mcp.action_category: Action category (if set)
//   - mcp.action_tags: Discovery tags (if set)
//   - mcp.action_error: Boolean indicating dispatch failure
//
// Metrics recorded:
//   - mcp.request.total / mcp.request.errors / mcp.request.duration_ms
//   - mcp.cache.hits / mcp.cache.misses
//   - mcp.dedup.waiters (histogram of coalesced caller counts)
//   - mcp.circuit.state (gauge: 0=closed, 1=open, 2=half-open)
//   - mcp.batch.flush_size (histogram, labeled by merge/batch kind)
//   - mcp.ratelimit.wait_ms / mcp.ratelimit.throttled
//
// # Sensitive Field Redaction
//
// The logger automatically redacts these fields to prevent credential leakage:
//   - input, inputs
//   - password, secret, token
//   - api_key, apiKey, credential
//
// See [RedactedFields] for the complete list.
//
// # Exporter Configuration
//
// Tracing exporters:
//   - "otlp": OTLP gRPC (requires OTEL_EXPORTER_OTLP_ENDPOINT or OTEL_EXPORTER_OTLP_TRACES_ENDPOINT)
//   - "jaeger": Jaeger via OTLP (requires OTEL_EXPORTER_JAEGER_ENDPOINT)
//   - "stdout": Console output for development
//   - "none" or "": Disabled (no-op)
//
// Metrics exporters:
//   - "otlp": OTLP gRPC (requires OTEL_EXPORTER_OTLP_ENDPOINT or OTEL_EXPORTER_OTLP_METRICS_ENDPOINT)
//   - "prometheus": Prometheus scrape endpoint
//   - "stdout": Console output for development
//   - "none" or "": Disabled (no-op)
//
// # Thread Safety
//
// All exported types are safe for concurrent use after construction:
//   - [Observer]: Tracer(), Meter(), Logger() are safe; Shutdown() is idempotent
//   - [Tracer]: StartSpan() and EndSpan() are safe for concurrent use
//   - [Metrics]: all Record* methods are safe for concurrent use
//   - [Logger]: All logging methods are mutex-protected
//   - [Middleware]: Wrap() returns a thread-safe ExecuteFunc
//
// # Error Handling
//
// Configuration errors (use errors.Is for checking):
//   - [ErrMissingServiceName]: Config.ServiceName is empty
//   - [ErrInvalidSamplePct]: Tracing.SamplePct not in [0.0, 1.0]
//   - [ErrInvalidTracingExporter]: Unknown tracing exporter name
//   - [ErrInvalidMetricsExporter]: Unknown metrics exporter name
//   - [ErrInvalidLogLevel]: Unknown log level
//
// Exporter errors:
//   - [ErrEndpointNotConfigured]: Required endpoint env var not set
//
// Runtime errors:
//   - [ErrNilObserver]: Nil Observer passed to function
//   - [ErrMissingActionName]: RequestMeta.Name is empty
//
// Example error handling:
//
//	obs, err := observe.NewObserver(ctx, cfg)
//	if errors.Is(err, observe.ErrMissingServiceName) {
//	    // Handle missing service name
//	}
//	if errors.Is(err, observe.ErrEndpointNotConfigured) {
//	    // Handle missing OTLP endpoint
//	}
//
// # Integration
//
// observe is consumed by every other package in this module:
//   - handler: wraps action dispatch with Middleware
//   - apiclient: records circuit/retry/rate-limit outcomes
//   - cache, dedup, merge, batch: record hit rate, coalescing, and flush size
//   - transport: instruments HTTP/SSE endpoints
package observe
