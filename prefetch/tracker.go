// Package prefetch implements the Prefetch + Refresh Engine (C7): an
// access-pattern tracker that schedules low-priority reads when a
// spreadsheet is first touched, and a background loop that refreshes
// cache entries nearing expiry in priority order.
package prefetch

import (
	"container/list"
	"sync"
	"time"
)

// accessRecord tracks how often and how recently a key was read.
type accessRecord struct {
	key         string
	accessCount int
	lastAccess  time.Time
	elem        *list.Element
}

// Tracker records read access patterns per cache key, capped at
// MaxTrackedKeys entries (least-recently-used eviction), and scores
// entries for refresh priority per the freq/recency/urgency formula.
type Tracker struct {
	mu       sync.Mutex
	maxKeys  int
	records  map[string]*accessRecord
	lru      *list.List
}

// NewTracker builds a Tracker capped at maxKeys entries. maxKeys <= 0
// means unbounded (not recommended in production).
func NewTracker(maxKeys int) *Tracker {
	return &Tracker{
		maxKeys: maxKeys,
		records: make(map[string]*accessRecord),
		lru:     list.New(),
	}
}

// RecordAccess notes that key was read, incrementing its access count
// and refreshing its recency, evicting the least-recently-used tracked
// key if the tracker is at capacity.
func (t *Tracker) RecordAccess(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if r, ok := t.records[key]; ok {
		r.accessCount++
		r.lastAccess = time.Now()
		t.lru.MoveToFront(r.elem)
		return
	}

	if t.maxKeys > 0 && len(t.records) >= t.maxKeys {
		back := t.lru.Back()
		if back != nil {
			victim := back.Value.(string)
			t.lru.Remove(back)
			delete(t.records, victim)
		}
	}

	elem := t.lru.PushFront(key)
	t.records[key] = &accessRecord{key: key, accessCount: 1, lastAccess: time.Now(), elem: elem}
}

// AccessCount returns how many times key has been recorded, 0 if untracked.
func (t *Tracker) AccessCount(key string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if r, ok := t.records[key]; ok {
		return r.accessCount
	}
	return 0
}

// Age returns how long ago key was last accessed. A very large duration
// is returned for an untracked key so scoring treats it as cold.
func (t *Tracker) Age(key string) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if r, ok := t.records[key]; ok {
		return time.Since(r.lastAccess)
	}
	return 24 * time.Hour
}

// Priority computes the [0,10] refresh priority for an entry expiring
// in expiresIn, per the formula:
//
//	priority = min(10, freq_score + recency_score + urgency_score)
//	freq_score     = min(5, access_count)
//	recency_score  = age<60s:3, <5min:2, <10min:1, else:0
//	urgency_score  = expires_in<30s:2, <60s:1, <120s:0.5, else:0
func (t *Tracker) Priority(key string, expiresIn time.Duration) float64 {
	freq := float64(t.AccessCount(key))
	if freq > 5 {
		freq = 5
	}

	age := t.Age(key)
	var recency float64
	switch {
	case age < 60*time.Second:
		recency = 3
	case age < 5*time.Minute:
		recency = 2
	case age < 10*time.Minute:
		recency = 1
	}

	var urgency float64
	switch {
	case expiresIn < 30*time.Second:
		urgency = 2
	case expiresIn < 60*time.Second:
		urgency = 1
	case expiresIn < 120*time.Second:
		urgency = 0.5
	}

	priority := freq + recency + urgency
	if priority > 10 {
		priority = 10
	}
	return priority
}
