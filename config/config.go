// Package config loads gateway configuration from environment variables
// (with an optional .env file for local development) and resolves
// secretref: values through the secret package. Configuration is
// env-first: every operational knob in SPEC_FULL.md's ambient stack has an
// `env` struct tag decoded by envdecode, the same pattern used elsewhere in
// the retrieved corpus for service configuration.
package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"

	"github.com/jonwraymond/sheetbridge/secret"
)

// ServerConfig controls the transport listener.
type ServerConfig struct {
	Host               string `env:"SERVER_HOST,default=0.0.0.0"`
	Port               int    `env:"SERVER_PORT,default=8080"`
	AllowedOrigins     []string `env:"SERVER_ALLOWED_ORIGINS"`
	MaxSessionsPerUser int    `env:"SERVER_MAX_SESSIONS_PER_USER,default=10"`
}

// CacheConfig controls C3 Cache Manager TTLs and the optional distributed
// backend.
type CacheConfig struct {
	DefaultTTL   time.Duration `env:"CACHE_DEFAULT_TTL,default=5m"`
	MaxTTL       time.Duration `env:"CACHE_MAX_TTL,default=1h"`
	RedisURL     string        `env:"CACHE_REDIS_URL"`
}

// MergeConfig controls C5 Request Merger windowing.
type MergeConfig struct {
	Enabled       bool          `env:"MERGE_ENABLED,default=true"`
	Window        time.Duration `env:"MERGE_WINDOW,default=50ms"`
	MergeAdjacent bool          `env:"MERGE_ADJACENT,default=true"`
}

// BatchConfig controls C6 Batching System windowing.
type BatchConfig struct {
	Enabled bool          `env:"BATCH_ENABLED,default=true"`
	Window  time.Duration `env:"BATCH_WINDOW,default=50ms"`
	MaxSize int           `env:"BATCH_MAX_SIZE,default=25"`
}

// PrefetchConfig controls C7 Prefetch + Refresh Engine.
type PrefetchConfig struct {
	Enabled          bool          `env:"PREFETCH_ENABLED,default=true"`
	Concurrency      int           `env:"PREFETCH_CONCURRENCY,default=2"`
	RefreshThreshold time.Duration `env:"PREFETCH_REFRESH_THRESHOLD,default=60s"`
	MaxTrackedKeys   int           `env:"PREFETCH_MAX_TRACKED_KEYS,default=1000"`
}

// RateLimitConfig controls C8 Rate Limiter.
type RateLimitConfig struct {
	Capacity   int           `env:"RATE_LIMIT_CAPACITY,default=100"`
	RefillRate float64       `env:"RATE_LIMIT_REFILL_RATE,default=10"`
	Window     time.Duration `env:"RATE_LIMIT_WINDOW,default=1s"`
}

// BreakerConfig controls C2 Circuit Breaker defaults (per-endpoint breakers
// may still override via code).
type BreakerConfig struct {
	MaxFailures  int           `env:"BREAKER_MAX_FAILURES,default=5"`
	ResetTimeout time.Duration `env:"BREAKER_RESET_TIMEOUT,default=30s"`
}

// TransactionConfig controls C10 Transaction Manager.
type TransactionConfig struct {
	Timeout            time.Duration `env:"TXN_TIMEOUT,default=5m"`
	GrowthAdvisoryAt   int           `env:"TXN_GROWTH_ADVISORY_AT,default=20"`
	StrongAdvisoryAt   int           `env:"TXN_STRONG_ADVISORY_AT,default=50"`
}

// SafetyConfig controls C9 Batch Compiler / Safety Gate.
type SafetyConfig struct {
	MaxFullDiffCells int `env:"SAFETY_MAX_FULL_DIFF_CELLS,default=500"`
	SampleSize       int `env:"SAFETY_SAMPLE_SIZE,default=20"`
}

// AuthConfig controls bearer-token validation for inbound HTTP/SSE sessions.
type AuthConfig struct {
	JWTIssuer   string `env:"AUTH_JWT_ISSUER"`
	JWTAudience string `env:"AUTH_JWT_AUDIENCE"`
	JWKSURL     string `env:"AUTH_JWKS_URL"`

	// RequireWriteScope gates sheets.write and transactions.commit on the
	// caller holding sheets:write for the target spreadsheet. Left off by
	// default so a deployment with no JWKS configured keeps working
	// anonymously; turn it on once JWTs carry a scope claim.
	RequireWriteScope bool `env:"AUTH_REQUIRE_WRITE_SCOPE,default=false"`
}

// TaskConfig controls C13 Task Store.
type TaskConfig struct {
	RedisURL string `env:"TASK_REDIS_URL"`
}

// CapabilityConfig controls C12 Capability Cache.
type CapabilityConfig struct {
	TTL      time.Duration `env:"CAPABILITY_TTL,default=1h"`
	RedisURL string        `env:"CAPABILITY_REDIS_URL"`
}

// ObserveConfig mirrors observe.Config's knobs so they can be decoded from
// the environment rather than constructed by hand.
type ObserveConfig struct {
	ServiceName    string  `env:"OTEL_SERVICE_NAME,default=sheetbridge-gateway"`
	TracingEnabled bool    `env:"TRACING_ENABLED,default=true"`
	TracingExporter string `env:"TRACING_EXPORTER,default=otlp"`
	SamplePct      float64 `env:"TRACING_SAMPLE_PCT,default=1.0"`
	MetricsEnabled bool    `env:"METRICS_ENABLED,default=true"`
	MetricsExporter string `env:"METRICS_EXPORTER,default=prometheus"`
	LogLevel       string  `env:"LOG_LEVEL,default=info"`
}

// Config is the top-level gateway configuration, decoded from the
// environment (and an optional .env file) via Load.
type Config struct {
	Server      ServerConfig
	Cache       CacheConfig
	Merge       MergeConfig
	Batch       BatchConfig
	Prefetch    PrefetchConfig
	RateLimit   RateLimitConfig
	Breaker     BreakerConfig
	Transaction TransactionConfig
	Safety      SafetyConfig
	Auth        AuthConfig
	Task        TaskConfig
	Capability  CapabilityConfig
	Observe     ObserveConfig
}

// Load reads .env (if present; a missing file is not an error) and decodes
// the environment into a Config, then resolves a secretref: value in
// Auth.JWKSURL through resolver. No other field is resolved.
func Load(envFile string, resolver *secret.Resolver) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: loading %s: %w", envFile, err)
		}
	}

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && err != envdecode.ErrNoTargetFieldsAreSet {
		return nil, fmt.Errorf("config: decoding environment: %w", err)
	}

	if resolver != nil && cfg.Auth.JWKSURL != "" {
		resolved, err := resolver.ResolveValue(context.Background(), cfg.Auth.JWKSURL)
		if err != nil {
			return nil, fmt.Errorf("config: resolving AUTH_JWKS_URL: %w", err)
		}
		cfg.Auth.JWKSURL = resolved
	}

	return &cfg, nil
}
