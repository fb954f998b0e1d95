package apiclient

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jonwraymond/sheetbridge/observe"
	"github.com/jonwraymond/sheetbridge/resilience"
)

// EndpointConfig configures the resilience.Executor built for each
// endpoint name the first time it is used.
type EndpointConfig struct {
	MaxFailures     int
	ResetTimeout    time.Duration
	MaxRetries      int
	RetryBaseDelay  time.Duration
	RetryMaxDelay   time.Duration
	RateLimit       float64
	RateLimitBurst  int
	MaxConcurrent   int
	RequestTimeout  time.Duration
}

// DefaultEndpointConfig mirrors the breaker/retry defaults spec'd for C2:
// failure_threshold 5, reset_timeout 30s, max_retries 3.
func DefaultEndpointConfig() EndpointConfig {
	return EndpointConfig{
		MaxFailures:    5,
		ResetTimeout:   30 * time.Second,
		MaxRetries:     3,
		RetryBaseDelay: 100 * time.Millisecond,
		RetryMaxDelay:  10 * time.Second,
		RateLimit:      10,
		RateLimitBurst: 20,
		MaxConcurrent:  20,
		RequestTimeout: 30 * time.Second,
	}
}

// Registry lazily builds and caches one resilience.Executor (and its
// CircuitBreaker, for state inspection) per logical endpoint name, the
// same "one breaker per dependency" shape the teacher's health package
// expects to observe.
type Registry struct {
	mu       sync.RWMutex
	cfg      EndpointConfig
	metrics  observe.Metrics
	breakers map[string]*resilience.CircuitBreaker
	limiters map[string]*resilience.RateLimiter
	executor map[string]*resilience.Executor
}

// NewRegistry creates an endpoint registry. metrics may be nil, in which
// case state-change callbacks are skipped.
func NewRegistry(cfg EndpointConfig, metrics observe.Metrics) *Registry {
	return &Registry{
		cfg:      cfg,
		metrics:  metrics,
		breakers: make(map[string]*resilience.CircuitBreaker),
		limiters: make(map[string]*resilience.RateLimiter),
		executor: make(map[string]*resilience.Executor),
	}
}

// Executor returns the resilience.Executor for endpoint, creating it on
// first use.
func (r *Registry) Executor(endpoint string) *resilience.Executor {
	r.mu.RLock()
	if ex, ok := r.executor[endpoint]; ok {
		r.mu.RUnlock()
		return ex
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if ex, ok := r.executor[endpoint]; ok {
		return ex
	}

	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:         endpoint,
		MaxFailures:  r.cfg.MaxFailures,
		ResetTimeout: r.cfg.ResetTimeout,
		IsFailure:    IsFailure,
		OnStateChange: func(from, to resilience.State) {
			if r.metrics != nil {
				r.metrics.RecordCircuitState(context.Background(), endpoint, int64(to))
			}
		},
	})
	retry := resilience.NewRetry(resilience.RetryConfig{
		MaxAttempts:   r.cfg.MaxRetries + 1, // first call plus MaxRetries retries
		InitialDelay:  r.cfg.RetryBaseDelay,
		MaxDelay:      r.cfg.RetryMaxDelay,
		Strategy:      resilience.BackoffExponential,
		Jitter:        true,
		RetryIf:       RetryIf,
		DelayOverride: RetryAfterDelay,
	})
	rl := resilience.NewRateLimiter(resilience.RateLimiterConfig{
		Name:        endpoint,
		Rate:        r.cfg.RateLimit,
		Burst:       r.cfg.RateLimitBurst,
		WaitOnLimit: true,
		MaxWait:     r.cfg.RequestTimeout,
	})
	bh := resilience.NewBulkhead(resilience.BulkheadConfig{Name: endpoint, MaxConcurrent: r.cfg.MaxConcurrent})

	ex := resilience.NewExecutor(
		resilience.WithRateLimiter(rl),
		resilience.WithBulkhead(bh),
		resilience.WithCircuitBreaker(cb),
		resilience.WithRetry(retry),
		resilience.WithTimeout(r.cfg.RequestTimeout),
	)

	r.breakers[endpoint] = cb
	r.limiters[endpoint] = rl
	r.executor[endpoint] = ex
	return ex
}

// Penalize drains the rate limiter for endpoint and holds it empty for
// d. The client calls this when an upstream response is classified
// ClassRateLimited with a Retry-After, so the local limiter stops
// issuing tokens the dependency would just reject again. A no-op if
// endpoint has no limiter yet (Executor was never called for it).
func (r *Registry) Penalize(endpoint string, d time.Duration) {
	r.mu.RLock()
	rl, ok := r.limiters[endpoint]
	r.mu.RUnlock()
	if ok {
		rl.Penalize(d)
	}
}

// BreakerState returns the current circuit state for endpoint, or
// resilience.StateClosed if the endpoint has never been used.
func (r *Registry) BreakerState(endpoint string) resilience.State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if cb, ok := r.breakers[endpoint]; ok {
		return cb.State()
	}
	return resilience.StateClosed
}

// Stats returns a snapshot of every endpoint's circuit breaker state and
// failure/success counts, the data backing apiclient.BreakerStatsHandler.
func (r *Registry) Stats() map[string]EndpointStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]EndpointStats, len(r.breakers))
	for name, cb := range r.breakers {
		m := cb.Metrics()
		out[name] = EndpointStats{
			State:     m.State.String(),
			Failures:  m.Failures,
			Successes: m.Successes,
		}
	}
	return out
}

// EndpointStats is the per-endpoint snapshot exposed by Registry.Stats.
type EndpointStats struct {
	State     string `json:"state"`
	Failures  int    `json:"failures"`
	Successes int    `json:"successes"`
}

// Fallback is one entry in a FallbackRegistry: a named, priority-ordered
// recovery path that runs when the breaker surfaces ErrCircuitOpen.
// Precondition gates whether this fallback applies to the current call
// (e.g. cached-data only applies if a cache entry exists for the key).
type Fallback struct {
	Name        string
	Priority    int
	Precondition func(ctx context.Context) bool
	Run         func(ctx context.Context) (any, error)
}

// FallbackRegistry holds the canonical C2 fallback chain: cached-data
// (100), retry-with-backoff (80, a no-op hook since retry already ran
// inside the executor), degraded (50).
type FallbackRegistry struct {
	mu        sync.RWMutex
	fallbacks []Fallback
}

// NewFallbackRegistry builds an empty registry; callers Register their
// own fallbacks (cache-backed ones need a *cache.Cache reference this
// package does not import, to avoid a dependency cycle).
func NewFallbackRegistry() *FallbackRegistry {
	return &FallbackRegistry{}
}

// Register adds a fallback and keeps the list sorted by descending
// priority.
func (f *FallbackRegistry) Register(fb Fallback) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fallbacks = append(f.fallbacks, fb)
	sort.SliceStable(f.fallbacks, func(i, j int) bool {
		return f.fallbacks[i].Priority > f.fallbacks[j].Priority
	})
}

// Run tries each fallback in priority order and returns the result of
// the first whose Precondition passes. ErrNoFallback is returned if none
// apply.
func (f *FallbackRegistry) Run(ctx context.Context) (any, string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, fb := range f.fallbacks {
		if fb.Precondition != nil && !fb.Precondition(ctx) {
			continue
		}
		v, err := fb.Run(ctx)
		return v, fb.Name, err
	}
	return nil, "", ErrNoFallback
}
