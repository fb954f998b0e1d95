package prefetch

import (
	"container/heap"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonwraymond/sheetbridge/cache"
	"github.com/jonwraymond/sheetbridge/observe"
	"github.com/jonwraymond/sheetbridge/resilience"
)

// Config controls the background refresh loop.
type Config struct {
	Concurrency  int           // default 2
	ScanInterval time.Duration // default 30s
	Threshold    time.Duration // default 60s; entries expiring sooner are refreshed
	Namespaces   []string      // default {"values", "spreadsheet"}
}

// DefaultConfig returns the spec's default scan parameters.
func DefaultConfig() Config {
	return Config{
		Concurrency:  2,
		ScanInterval: 30 * time.Second,
		Threshold:    60 * time.Second,
		Namespaces:   []string{"values", "spreadsheet"},
	}
}

// RefreshFunc reconstructs and reissues the original request behind a
// cache entry, repopulating the cache on success. Engine never inspects
// the entry's value itself, only its key/namespace/tags.
type RefreshFunc func(ctx context.Context, entry cache.CacheEntry) error

// Stats are the cumulative counters C7 specifies.
type Stats struct {
	TotalRefreshes      int64
	SuccessfulRefreshes int64
	FailedRefreshes     int64
}

// RefreshHitRate returns SuccessfulRefreshes/TotalRefreshes, or 0 if
// nothing has been attempted yet.
func (s Stats) RefreshHitRate() float64 {
	if s.TotalRefreshes == 0 {
		return 0
	}
	return float64(s.SuccessfulRefreshes) / float64(s.TotalRefreshes)
}

// Engine runs the background refresh scan and serves prefetch-on-open
// scheduling, dispatching both through a shared resilience.Bulkhead so
// the two responsibilities share one concurrency budget.
type Engine struct {
	cache   *cache.RangeCache
	tracker *Tracker
	cfg     Config
	refresh RefreshFunc
	metrics observe.Metrics
	logger  observe.Logger
	bulkhead *resilience.Bulkhead

	totalRefreshes      int64
	successfulRefreshes int64
	failedRefreshes     int64

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine builds an Engine. tracker is shared with the read path so
// RecordAccess calls there feed this engine's priority scoring.
func NewEngine(c *cache.RangeCache, tracker *Tracker, cfg Config, refresh RefreshFunc, metrics observe.Metrics, logger observe.Logger) *Engine {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
	return &Engine{
		cache:   c,
		tracker: tracker,
		cfg:     cfg,
		refresh: refresh,
		metrics: metrics,
		logger:  logger,
		bulkhead: resilience.NewBulkhead(resilience.BulkheadConfig{
			MaxConcurrent: cfg.Concurrency,
			MaxWait:       5 * time.Minute,
		}),
	}
}

// Start launches the background scan loop. Calling Start twice without
// an intervening Stop is a no-op.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	if e.cancel != nil {
		e.mu.Unlock()
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(e.cfg.ScanInterval)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				e.scanOnce(loopCtx)
			}
		}
	}()
}

// Stop cancels the scan loop and waits for every dispatched goroutine to
// finish, including refreshes already running; a dispatch still waiting
// for a concurrency slot gives up once the context is cancelled.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel := e.cancel
	e.cancel = nil
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	e.wg.Wait()
}

// Stats returns a snapshot of the cumulative refresh counters.
func (e *Engine) Stats() Stats {
	return Stats{
		TotalRefreshes:      atomic.LoadInt64(&e.totalRefreshes),
		SuccessfulRefreshes: atomic.LoadInt64(&e.successfulRefreshes),
		FailedRefreshes:     atomic.LoadInt64(&e.failedRefreshes),
	}
}

func (e *Engine) scanOnce(ctx context.Context) {
	pq := &priorityQueue{}
	heap.Init(pq)

	for _, ns := range e.cfg.Namespaces {
		for entry := range e.cache.Expiring(ns, e.cfg.Threshold) {
			entry := entry
			expiresIn := time.Until(entry.ExpiresAt)
			priority := e.tracker.Priority(entry.Key, expiresIn)
			heap.Push(pq, &job{
				namespace: ns,
				key:       entry.Key,
				priority:  priority,
				refresh:   func() error { return e.refresh(ctx, entry) },
			})
		}
	}

	for pq.Len() > 0 {
		j := heap.Pop(pq).(*job)
		e.dispatch(ctx, j)
	}
}

func (e *Engine) dispatch(ctx context.Context, j *job) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		err := e.bulkhead.Execute(ctx, func(ctx context.Context) error {
			return j.refresh()
		})

		atomic.AddInt64(&e.totalRefreshes, 1)
		if err != nil {
			atomic.AddInt64(&e.failedRefreshes, 1)
			if e.logger != nil {
				e.logger.Warn(ctx, "prefetch: refresh failed",
					observe.Field{Key: "namespace", Value: j.namespace},
					observe.Field{Key: "key", Value: j.key},
					observe.Field{Key: "error", Value: err.Error()})
			}
			return
		}
		atomic.AddInt64(&e.successfulRefreshes, 1)
	}()
}

// OnOpen schedules low-priority prefetch reads for a newly touched
// spreadsheet: the workbook metadata fetch and each predicted range
// read, dispatched through the same bounded-concurrency bulkhead as
// background refresh so the two responsibilities never oversubscribe
// the upstream API together.
func (e *Engine) OnOpen(ctx context.Context, spreadsheetID string, metadata func() error, predicted []func() error) {
	if metadata != nil {
		e.dispatch(ctx, &job{namespace: "spreadsheet", key: spreadsheetID, priority: 1, refresh: metadata})
	}
	for _, fn := range predicted {
		e.dispatch(ctx, &job{namespace: "values", key: spreadsheetID, priority: 0.5, refresh: fn})
	}
}
