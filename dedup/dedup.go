// Package dedup coalesces identical in-flight requests into one shared
// call. It is grounded on the same golang.org/x/sync/singleflight
// primitive the teacher's auth.JWKSKeyProvider uses to prevent a
// thundering herd on key refresh, generalized here to arbitrary callers
// and extended with DoChan so a caller detaching (context cancellation)
// never cancels the work other callers are still waiting on.
package dedup

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/sheetbridge/observe"
)

// Group deduplicates calls keyed by method name and stable-serialized
// parameters. One Group is shared across all deduplicated read paths.
type Group struct {
	sf      singleflight.Group
	metrics observe.Metrics
}

// New builds a Group. metrics may be nil.
func New(metrics observe.Metrics) *Group {
	return &Group{metrics: metrics}
}

// Key builds the deduplication key "method|stable_json(params)". Map
// keys are sorted before marshaling so two calls with the same logical
// parameters in different iteration order produce the same key.
func Key(method string, params map[string]any) string {
	return fmt.Sprintf("%s|%s", method, stableJSON(params))
}

// methodOf extracts the method portion of a dedup key for use as a
// low-cardinality metric label; the parameter JSON portion is dropped.
func methodOf(key string) string {
	for i := 0; i < len(key); i++ {
		if key[i] == '|' {
			return key[:i]
		}
	}
	return key
}

func stableJSON(v map[string]any) string {
	if len(v) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ordered := make([]byte, 0, 256)
	ordered = append(ordered, '{')
	for i, k := range keys {
		if i > 0 {
			ordered = append(ordered, ',')
		}
		kb, _ := json.Marshal(k)
		vb, _ := json.Marshal(v[k])
		ordered = append(ordered, kb...)
		ordered = append(ordered, ':')
		ordered = append(ordered, vb...)
	}
	ordered = append(ordered, '}')
	return string(ordered)
}

// Do runs fn if no call for key is already in flight, or attaches to the
// in-flight call otherwise. fn receives no per-caller context: it runs
// to completion regardless of whether the caller that triggered it
// detaches, since other callers may still be waiting on its result. If
// ctx is cancelled before the shared result is ready, Do returns
// ctx.Err() to THIS caller only; the shared call is left running for
// whoever else is still waiting on it.
func Do[T any](ctx context.Context, g *Group, key string, fn func() (T, error)) (T, error) {
	ch := g.sf.DoChan(key, func() (any, error) {
		return fn()
	})

	select {
	case res := <-ch:
		var zero T
		if res.Err != nil {
			return zero, res.Err
		}
		v, ok := res.Val.(T)
		if !ok {
			return zero, fmt.Errorf("dedup: unexpected result type %T", res.Val)
		}
		if g.metrics != nil && res.Shared {
			g.metrics.RecordDedupCoalesce(ctx, methodOf(key), 1)
		}
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Forget removes key from the in-flight map, so the next Do call for it
// starts fresh work instead of attaching to a stale result. Safe to call
// even if no call for key is in flight.
func (g *Group) Forget(key string) {
	g.sf.Forget(key)
}
