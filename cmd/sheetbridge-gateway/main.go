// Command sheetbridge-gateway runs the MCP-to-spreadsheet gateway: it
// wires the cache, safety, transaction, transport, capability, and task
// layers onto one HTTP mux and serves stdio, SSE, and streamable-HTTP
// transports side by side.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	flags "github.com/jessevdk/go-flags"
	"github.com/redis/go-redis/v9"

	"github.com/jonwraymond/sheetbridge/apiclient"
	"github.com/jonwraymond/sheetbridge/auth"
	"github.com/jonwraymond/sheetbridge/cache"
	"github.com/jonwraymond/sheetbridge/capability"
	"github.com/jonwraymond/sheetbridge/config"
	"github.com/jonwraymond/sheetbridge/handler"
	"github.com/jonwraymond/sheetbridge/health"
	"github.com/jonwraymond/sheetbridge/observe"
	"github.com/jonwraymond/sheetbridge/prefetch"
	"github.com/jonwraymond/sheetbridge/resilience"
	"github.com/jonwraymond/sheetbridge/safety"
	"github.com/jonwraymond/sheetbridge/secret"
	"github.com/jonwraymond/sheetbridge/task"
	"github.com/jonwraymond/sheetbridge/transport"
	"github.com/jonwraymond/sheetbridge/txn"
)

type cliArgs struct {
	EnvFile string `long:"env-file" description:"optional .env file to load before reading the environment" default:".env"`
	Token   string `long:"api-token" env:"SHEETBRIDGE_API_TOKEN" description:"static bearer token for the upstream spreadsheet API"`
}

func main() {
	var opts cliArgs
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagErr, ok := err.(*flags.Error); ok && flagErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := run(opts); err != nil {
		fmt.Fprintln(os.Stderr, "sheetbridge-gateway:", err)
		os.Exit(1)
	}
}

func run(opts cliArgs) error {
	secretResolver, err := buildSecretResolver()
	if err != nil {
		return fmt.Errorf("setting up secret providers: %w", err)
	}
	cfg, err := config.Load(opts.EnvFile, secretResolver)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	obs, err := observe.NewObserver(ctx, observe.Config{
		ServiceName: cfg.Observe.ServiceName,
		Tracing: observe.TracingConfig{
			Enabled:   cfg.Observe.TracingEnabled,
			Exporter:  cfg.Observe.TracingExporter,
			SamplePct: cfg.Observe.SamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  cfg.Observe.MetricsEnabled,
			Exporter: cfg.Observe.MetricsExporter,
		},
		Logging: observe.LoggingConfig{Enabled: true, Level: cfg.Observe.LogLevel},
	})
	if err != nil {
		return fmt.Errorf("setting up observability: %w", err)
	}
	defer obs.Shutdown(context.Background())

	logger := obs.Logger()

	apiClient := apiclient.NewClient(apiclient.Config{
		TokenSource: apiclient.StaticTokenSource(opts.Token),
		Logger:      logger,
	})
	rawSpreadsheets := apiclient.NewSpreadsheetsAPI(apiClient)
	drive := apiclient.NewDriveAPI(apiClient)
	metadataAPI := apiclient.NewMetadataAPI(apiClient)
	_ = drive

	metadataStore := cache.NewMemoryCache(cache.MetadataPolicy())
	namedRangesCache := cache.NewReadOnlyMiddleware(
		cache.Namespace("named_ranges", metadataStore),
		cache.NewDefaultKeyer(),
		cache.MetadataPolicy(),
	)
	developerMetadataCache := cache.NewReadOnlyMiddleware(
		cache.Namespace("developer_metadata", metadataStore),
		cache.NewDefaultKeyer(),
		cache.MetadataPolicy(),
	)

	rangeStore := cache.NewMemoryCache(cache.Policy{DefaultTTL: cfg.Cache.DefaultTTL, MaxTTL: cfg.Cache.MaxTTL})
	var rangeMirror cache.Cache
	if cfg.Cache.RedisURL != "" {
		ropts, err := redis.ParseURL(cfg.Cache.RedisURL)
		if err != nil {
			return fmt.Errorf("parsing CACHE_REDIS_URL: %w", err)
		}
		rangeMirror = cache.NewRedisCache(redis.NewClient(ropts), "sheetbridge:cache:")
	}
	rangeCache := cache.NewRangeCache(rangeStore, rangeMirror, 10000, nil, logger)
	spreadsheets := newCachingSpreadsheets(rawSpreadsheets, rangeCache, cfg.Cache.DefaultTTL)

	snapshots := safety.NewMemorySnapshotStore()
	gate := safety.NewGate(spreadsheets, snapshots, rangeCache, nil, logger).
		WithHighRiskThreshold(5000)
	txnManager := txn.NewManager(spreadsheets, gate)

	tracker := prefetch.NewTracker(cfg.Prefetch.MaxTrackedKeys)
	prefetchEngine := prefetch.NewEngine(rangeCache, tracker, prefetch.Config{
		Concurrency:  cfg.Prefetch.Concurrency,
		ScanInterval: 30 * time.Second,
		Threshold:    cfg.Prefetch.RefreshThreshold,
		Namespaces:   []string{"values", "spreadsheet"},
	}, rangeRefresher(rawSpreadsheets, rangeCache), nil, logger)
	if cfg.Prefetch.Enabled {
		prefetchEngine.Start(ctx)
		defer prefetchEngine.Stop()
	}

	var capDistributed capability.Tier
	if cfg.Capability.RedisURL != "" {
		copts, err := redis.ParseURL(cfg.Capability.RedisURL)
		if err != nil {
			return fmt.Errorf("parsing CAPABILITY_REDIS_URL: %w", err)
		}
		capDistributed = capability.NewRedisTier(redis.NewClient(copts), "sheetbridge:capability:")
	}
	capCache := capability.New(capability.NewMemoryTier(), capDistributed, defaultCapabilityFetcher, nil, logger)
	_ = capCache

	var taskStore task.Store
	if cfg.Task.RedisURL != "" {
		topts, err := redis.ParseURL(cfg.Task.RedisURL)
		if err != nil {
			return fmt.Errorf("parsing TASK_REDIS_URL: %w", err)
		}
		taskStore = task.NewRedisStore(redis.NewClient(topts), "sheetbridge:task:")
	} else {
		taskStore = task.NewMemoryStore()
	}
	_ = taskStore

	sessionManager := transport.NewManager(cfg.Server.MaxSessionsPerUser)
	sseRegistry := transport.NewSSERegistry(sessionManager)

	authenticator := buildAuthenticator(ctx, cfg, logger)
	userIDFromRequest := transport.UserIDFromRequest(authenticator)
	identityFromRequest := transport.IdentityFromRequest(authenticator)

	resolver := handler.NewRangeResolver(rangeCache, &handler.APISemanticLookup{
		Spreadsheets: spreadsheets,
		Metadata:     metadataAPI,
	})
	runtime := handler.New()
	registerActions(runtime, resolver, spreadsheets, metadataAPI, namedRangesCache, developerMetadataCache, gate, txnManager, taskStore, cfg.Auth.RequireWriteScope)

	healthAgg := health.NewAggregator()
	healthAgg.Register("memory", health.NewMemoryChecker(health.MemoryCheckerConfig{}))
	for _, endpoint := range []string{
		"spreadsheets.values.get",
		"spreadsheets.values.update",
		"spreadsheets.values.batchUpdate",
	} {
		endpoint := endpoint
		healthAgg.Register(endpoint, health.NewDependencyStateChecker(endpoint, func() (string, bool) {
			state := apiClient.Endpoints().BreakerState(endpoint)
			return state.String(), state == resilience.StateOpen
		}))
	}

	mux := http.NewServeMux()
	health.RegisterHandlers(mux, healthAgg)
	mux.HandleFunc("/sse", sseRegistry.Handler(userIDFromRequest))
	mux.HandleFunc("/sse/message", sseRegistry.MessageHandler(dispatchRawMessage(runtime)))
	mux.HandleFunc("/mcp", transport.StreamableHandler(sessionManager, identityFromRequest, dispatchStreamable(runtime)))
	mux.HandleFunc("/session/", transport.CloseSessionHandler(sessionManager))
	mux.HandleFunc("/stats", transport.StatsHandler(sessionManager, time.Now()))
	mux.HandleFunc("/breaker-stats", apiclient.BreakerStatsHandler(apiClient.Endpoints()))

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: mux,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info(ctx, "sheetbridge-gateway: listening", observe.Field{Key: "addr", Value: srv.Addr})
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return transport.Shutdown(shutdownCtx, sessionManager, srv.Shutdown)
}

// defaultCapabilityFetcher is used when no live peer-negotiation channel
// is wired; every peer is assumed to advertise nothing until proven
// otherwise by a real handshake.
func defaultCapabilityFetcher(ctx context.Context, sessionID, peerHandle string) (capability.Descriptor, error) {
	return capability.Descriptor{}, nil
}

// buildSecretResolver wires the env and file providers into a Resolver so
// secretref:env:... and secretref:file:... work for the JWKS URL, the
// one config value config.Load resolves. The
// file provider's base directory mirrors where a Kubernetes secret volume
// mounting a Sheets API service-account key would be mounted; it can be
// overridden before the secret volume path is known at image-build time.
func buildSecretResolver() (*secret.Resolver, error) {
	baseDir := os.Getenv("SHEETBRIDGE_SECRET_FILE_DIR")
	cfg := map[string]any{}
	if baseDir != "" {
		cfg["base_dir"] = baseDir
	}

	envProvider, err := secret.DefaultRegistry.Create("env", nil)
	if err != nil {
		return nil, err
	}
	fileProvider, err := secret.DefaultRegistry.Create("file", cfg)
	if err != nil {
		return nil, err
	}
	return secret.NewResolver(false, envProvider, fileProvider), nil
}

func buildAuthenticator(ctx context.Context, cfg *config.Config, logger observe.Logger) auth.Authenticator {
	var authenticators []auth.Authenticator
	if cfg.Auth.JWKSURL != "" {
		keyProvider := auth.NewJWKSKeyProvider(auth.JWKSConfig{
			URL: cfg.Auth.JWKSURL,
			OnRefreshFailure: func(err error) {
				logger.Warn(ctx, "sheetbridge-gateway: jwks refresh failed, serving cached keys",
					observe.Field{Key: "jwks_url", Value: cfg.Auth.JWKSURL},
					observe.Field{Key: "error", Value: err.Error()})
			},
		})
		authenticators = append(authenticators, auth.NewJWTAuthenticator(auth.JWTConfig{
			Issuer:   cfg.Auth.JWTIssuer,
			Audience: cfg.Auth.JWTAudience,
		}, keyProvider))
	}
	return auth.NewCompositeAuthenticator(authenticators...)
}

// rangeRefresher rebuilds a prefetch.RefreshFunc that re-reads an
// expiring values-cache entry's underlying range and writes the fresh
// bytes back under the same key, so the next reader gets a cache hit
// instead of paying the upstream round trip.
func rangeRefresher(spreadsheets apiclient.SpreadsheetsAPI, rangeCache *cache.RangeCache) prefetch.RefreshFunc {
	return func(ctx context.Context, entry cache.CacheEntry) error {
		for _, tag := range entry.Tags {
			vr, err := spreadsheets.GetValues(ctx, apiclient.GetValuesRequest{
				SpreadsheetID: tag.SpreadsheetID,
				Range:         tag.Ref.Format(),
			})
			if err != nil {
				return err
			}
			data, err := json.Marshal(vr)
			if err != nil {
				return err
			}
			if err := rangeCache.Set(ctx, entry.Namespace, entry.Key, data, 5*time.Minute, tag); err != nil {
				return err
			}
		}
		return nil
	}
}
