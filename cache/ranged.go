package cache

import (
	"container/list"
	"context"
	"iter"
	"sync"
	"time"

	"github.com/jonwraymond/sheetbridge/observe"
	"github.com/jonwraymond/sheetbridge/rangeref"
)

// RangeTag associates a cache entry with the grid range it was derived
// from, so a write to an overlapping range can invalidate it.
type RangeTag struct {
	SpreadsheetID string
	Ref           rangeref.Ref
}

// CacheEntry is the snapshot RangeCache.Expiring yields: enough for a
// caller (the prefetch engine) to decide whether to refresh it.
type CacheEntry struct {
	Namespace string
	Key       string
	ExpiresAt time.Time
	Tags      []RangeTag
}

type entryMeta struct {
	tags      []RangeTag
	expiresAt time.Time
	elem      *list.Element // holds the bare key string, for the namespace's LRU list
}

type nsState struct {
	entries map[string]*entryMeta
	lru     *list.List // front = most recently used
}

func newNSState() *nsState {
	return &nsState{entries: make(map[string]*entryMeta), lru: list.New()}
}

// RangeCache layers namespacing, dependency-tag range invalidation, LRU
// eviction, and an optional distributed mirror on top of a plain Cache
// byte store (ordinarily a *MemoryCache). It is the namespaced store C3
// specifies; the underlying Cache stays the simple interface the
// teacher's CacheMiddleware already knows how to use.
type RangeCache struct {
	store  Cache
	mirror Cache // optional distributed backend; failures are logged, never surfaced
	budget int   // max entries per namespace before LRU eviction kicks in

	metrics observe.Metrics
	logger  observe.Logger

	mu         sync.Mutex
	namespaces map[string]*nsState
}

// NewRangeCache builds a RangeCache over store. mirror and metrics/logger
// may be nil. budget <= 0 disables per-namespace LRU eviction.
func NewRangeCache(store Cache, mirror Cache, budget int, metrics observe.Metrics, logger observe.Logger) *RangeCache {
	return &RangeCache{
		store:      store,
		mirror:     mirror,
		budget:     budget,
		metrics:    metrics,
		logger:     logger,
		namespaces: make(map[string]*nsState),
	}
}

func fullKey(ns, key string) string { return ns + "\x00" + key }

// Get retrieves a cached value, touching its LRU recency on hit.
func (rc *RangeCache) Get(ctx context.Context, ns, key string) ([]byte, bool) {
	fk := fullKey(ns, key)
	v, ok := rc.store.Get(ctx, fk)
	if !ok && rc.mirror != nil {
		if mv, mok := rc.mirror.Get(ctx, fk); mok {
			v, ok = mv, true
		}
	}

	if rc.metrics != nil {
		rc.metrics.RecordCacheAccess(ctx, ns, ok)
	}
	if !ok {
		return nil, false
	}

	rc.mu.Lock()
	if s, exists := rc.namespaces[ns]; exists {
		if meta, exists := s.entries[key]; exists {
			s.lru.MoveToFront(meta.elem)
		}
	}
	rc.mu.Unlock()

	return v, true
}

// Set stores value under (ns, key) with ttl and the given dependency
// tags, evicting the namespace's least-recently-used entry if the
// namespace is over budget afterward.
func (rc *RangeCache) Set(ctx context.Context, ns, key string, value []byte, ttl time.Duration, tags ...RangeTag) error {
	fk := fullKey(ns, key)
	if err := rc.store.Set(ctx, fk, value, ttl); err != nil {
		return err
	}
	if rc.mirror != nil {
		if err := rc.mirror.Set(ctx, fk, value, ttl); err != nil && rc.logger != nil {
			rc.logger.Warn(ctx, "cache: distributed mirror set failed",
				observe.Field{Key: "namespace", Value: ns},
				observe.Field{Key: "error", Value: err.Error()})
		}
	}

	rc.mu.Lock()
	defer rc.mu.Unlock()

	s, ok := rc.namespaces[ns]
	if !ok {
		s = newNSState()
		rc.namespaces[ns] = s
	}

	if meta, exists := s.entries[key]; exists {
		s.lru.MoveToFront(meta.elem)
		meta.tags = tags
		meta.expiresAt = time.Now().Add(ttl)
	} else {
		elem := s.lru.PushFront(key)
		s.entries[key] = &entryMeta{tags: tags, expiresAt: time.Now().Add(ttl), elem: elem}
	}

	rc.evictLocked(ctx, ns, s)
	return nil
}

func (rc *RangeCache) evictLocked(ctx context.Context, ns string, s *nsState) {
	if rc.budget <= 0 {
		return
	}
	for len(s.entries) > rc.budget {
		back := s.lru.Back()
		if back == nil {
			return
		}
		key := back.Value.(string)
		s.lru.Remove(back)
		delete(s.entries, key)
		_ = rc.store.Delete(ctx, fullKey(ns, key))
		if rc.mirror != nil {
			_ = rc.mirror.Delete(ctx, fullKey(ns, key))
		}
	}
}

// Invalidate removes a single cached entry.
func (rc *RangeCache) Invalidate(ctx context.Context, ns, key string) error {
	fk := fullKey(ns, key)
	if err := rc.store.Delete(ctx, fk); err != nil {
		return err
	}
	if rc.mirror != nil {
		if err := rc.mirror.Delete(ctx, fk); err != nil && rc.logger != nil {
			rc.logger.Warn(ctx, "cache: distributed mirror delete failed",
				observe.Field{Key: "namespace", Value: ns},
				observe.Field{Key: "error", Value: err.Error()})
		}
	}

	rc.mu.Lock()
	defer rc.mu.Unlock()
	if s, ok := rc.namespaces[ns]; ok {
		if meta, exists := s.entries[key]; exists {
			s.lru.Remove(meta.elem)
			delete(s.entries, key)
		}
	}
	return nil
}

// InvalidateRange removes every entry in ns whose dependency tags
// overlap the written a1Range on spreadsheetID, per the grid-coordinate
// overlap rule (unbounded axes treated as maximal). Returns the number
// of entries removed.
func (rc *RangeCache) InvalidateRange(ctx context.Context, ns, spreadsheetID, a1Range string) (int, error) {
	target, err := rangeref.Parse(a1Range)
	if err != nil {
		return 0, err
	}

	rc.mu.Lock()
	s, ok := rc.namespaces[ns]
	if !ok {
		rc.mu.Unlock()
		return 0, nil
	}

	var toRemove []string
	for key, meta := range s.entries {
		for _, tag := range meta.tags {
			if tag.SpreadsheetID == spreadsheetID && rangeref.Overlaps(tag.Ref, target) {
				toRemove = append(toRemove, key)
				break
			}
		}
	}
	for _, key := range toRemove {
		if meta, exists := s.entries[key]; exists {
			s.lru.Remove(meta.elem)
			delete(s.entries, key)
		}
	}
	rc.mu.Unlock()

	for _, key := range toRemove {
		fk := fullKey(ns, key)
		_ = rc.store.Delete(ctx, fk)
		if rc.mirror != nil {
			_ = rc.mirror.Delete(ctx, fk)
		}
	}
	return len(toRemove), nil
}

// Expiring yields every entry in ns due to expire within threshold, for
// the prefetch engine's refresh scan. Iteration order is unspecified.
func (rc *RangeCache) Expiring(ns string, threshold time.Duration) iter.Seq[CacheEntry] {
	return func(yield func(CacheEntry) bool) {
		rc.mu.Lock()
		s, ok := rc.namespaces[ns]
		if !ok {
			rc.mu.Unlock()
			return
		}
		cutoff := time.Now().Add(threshold)
		snapshot := make([]CacheEntry, 0, len(s.entries))
		for key, meta := range s.entries {
			if meta.expiresAt.Before(cutoff) {
				snapshot = append(snapshot, CacheEntry{
					Namespace: ns,
					Key:       key,
					ExpiresAt: meta.expiresAt,
					Tags:      meta.tags,
				})
			}
		}
		rc.mu.Unlock()

		for _, e := range snapshot {
			if !yield(e) {
				return
			}
		}
	}
}
