package prefetch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonwraymond/sheetbridge/cache"
)

func TestEngine_ScansExpiringEntriesAndRefreshesThem(t *testing.T) {
	rc := cache.NewRangeCache(cache.NewMemoryCache(cache.DefaultPolicy()), nil, 0, nil, nil)
	ctx := context.Background()

	rc.Set(ctx, "values", "soon", []byte("v"), 10*time.Millisecond)
	rc.Set(ctx, "values", "later", []byte("v"), time.Hour)

	tracker := NewTracker(0)
	tracker.RecordAccess("soon")

	var refreshed int32
	var mu sync.Mutex
	var seenKeys []string

	cfg := Config{Concurrency: 2, ScanInterval: 20 * time.Millisecond, Threshold: 50 * time.Millisecond, Namespaces: []string{"values"}}
	engine := NewEngine(rc, tracker, cfg, func(ctx context.Context, entry cache.CacheEntry) error {
		atomic.AddInt32(&refreshed, 1)
		mu.Lock()
		seenKeys = append(seenKeys, entry.Key)
		mu.Unlock()
		return nil
	}, nil, nil)

	runCtx, cancel := context.WithCancel(ctx)
	engine.Start(runCtx)
	time.Sleep(100 * time.Millisecond)
	cancel()
	engine.Stop()

	if atomic.LoadInt32(&refreshed) == 0 {
		t.Fatal("expected at least one refresh of the soon-expiring entry")
	}
	mu.Lock()
	defer mu.Unlock()
	for _, k := range seenKeys {
		if k == "later" {
			t.Error("later should not have been refreshed, it is well within threshold")
		}
	}

	stats := engine.Stats()
	if stats.TotalRefreshes == 0 {
		t.Error("Stats().TotalRefreshes should be > 0")
	}
	if stats.RefreshHitRate() != 1 {
		t.Errorf("RefreshHitRate() = %v, want 1 (all refreshes succeeded)", stats.RefreshHitRate())
	}
}

func TestEngine_RefreshFailureIsCountedButDoesNotEscalate(t *testing.T) {
	rc := cache.NewRangeCache(cache.NewMemoryCache(cache.DefaultPolicy()), nil, 0, nil, nil)
	ctx := context.Background()
	rc.Set(ctx, "values", "broken", []byte("v"), 10*time.Millisecond)

	tracker := NewTracker(0)
	cfg := Config{Concurrency: 1, ScanInterval: 20 * time.Millisecond, Threshold: 50 * time.Millisecond, Namespaces: []string{"values"}}

	failErr := context.DeadlineExceeded
	engine := NewEngine(rc, tracker, cfg, func(ctx context.Context, entry cache.CacheEntry) error {
		return failErr
	}, nil, nil)

	runCtx, cancel := context.WithCancel(ctx)
	engine.Start(runCtx)
	time.Sleep(80 * time.Millisecond)
	cancel()
	engine.Stop()

	stats := engine.Stats()
	if stats.FailedRefreshes == 0 {
		t.Error("expected FailedRefreshes > 0")
	}
	if stats.SuccessfulRefreshes != 0 {
		t.Error("expected SuccessfulRefreshes == 0")
	}
}

func TestEngine_OnOpenDispatchesMetadataAndPredictedReads(t *testing.T) {
	rc := cache.NewRangeCache(cache.NewMemoryCache(cache.DefaultPolicy()), nil, 0, nil, nil)
	tracker := NewTracker(0)
	cfg := DefaultConfig()
	cfg.ScanInterval = time.Hour

	var metadataCalled int32
	var predictedCalled int32

	engine := NewEngine(rc, tracker, cfg, func(context.Context, cache.CacheEntry) error { return nil }, nil, nil)

	engine.OnOpen(context.Background(), "sheet-1",
		func() error { atomic.AddInt32(&metadataCalled, 1); return nil },
		[]func() error{
			func() error { atomic.AddInt32(&predictedCalled, 1); return nil },
			func() error { atomic.AddInt32(&predictedCalled, 1); return nil },
		})

	engine.wg.Wait()

	if atomic.LoadInt32(&metadataCalled) != 1 {
		t.Errorf("metadata fetch called %d times, want 1", metadataCalled)
	}
	if atomic.LoadInt32(&predictedCalled) != 2 {
		t.Errorf("predicted reads called %d times, want 2", predictedCalled)
	}
}
