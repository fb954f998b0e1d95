package transport

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel/propagation"
)

var traceContextPropagator = propagation.TraceContext{}

// ExtractTraceContext parses a W3C traceparent (and tracestate) header pair
// into ctx. A missing or malformed header yields an invalid span context,
// which the caller must treat as "mint fresh ids" rather than an error.
func ExtractTraceContext(ctx context.Context, h http.Header) context.Context {
	return traceContextPropagator.Extract(ctx, propagation.HeaderCarrier(h))
}

// InjectTraceContext writes ctx's trace context back onto outbound headers,
// e.g. for a reconnect event that should carry the resumed trace forward.
func InjectTraceContext(ctx context.Context, h http.Header) {
	traceContextPropagator.Inject(ctx, propagation.HeaderCarrier(h))
}
