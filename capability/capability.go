// Package capability implements the Capability Cache (C12): a per-session
// memoization of peer protocol capabilities (elicitation, sampling),
// backed by a process-local tier and an optional distributed second tier.
package capability

import (
	"context"
	"sync"
	"time"

	"github.com/jonwraymond/sheetbridge/mcperr"
	"github.com/jonwraymond/sheetbridge/observe"
)

// TTL is how long a capability descriptor stays memoized.
const TTL = time.Hour

// Descriptor is what a peer advertised at handshake.
type Descriptor struct {
	Elicitation bool
	Sampling    bool
	Resources   bool
	Prompts     bool
}

// Fetcher retrieves the live capability descriptor for a peer. It is
// called at most once per session per TTL window.
type Fetcher func(ctx context.Context, sessionID, peerHandle string) (Descriptor, error)

// Tier is the storage contract both the process-local and distributed
// backends satisfy.
type Tier interface {
	Get(ctx context.Context, key string) (Descriptor, bool, error)
	Set(ctx context.Context, key string, d Descriptor, ttl time.Duration) error
}

// Cache memoizes capability descriptors per (session, peer) for up to
// TTL, consulting the process-local tier first and falling back to an
// optional distributed tier before calling the Fetcher.
type Cache struct {
	local   Tier
	distributed Tier
	fetch   Fetcher
	metrics observe.Metrics
	logger  observe.Logger
}

// New builds a Cache. distributed may be nil to run single-tier.
func New(local, distributed Tier, fetch Fetcher, metrics observe.Metrics, logger observe.Logger) *Cache {
	return &Cache{local: local, distributed: distributed, fetch: fetch, metrics: metrics, logger: logger}
}

func key(sessionID, peerHandle string) string {
	return sessionID + "\x00" + peerHandle
}

// Get returns the memoized (or freshly fetched) descriptor for a peer.
func (c *Cache) Get(ctx context.Context, sessionID, peerHandle string) (Descriptor, error) {
	k := key(sessionID, peerHandle)

	if d, ok, err := c.local.Get(ctx, k); err == nil && ok {
		return d, nil
	}

	if c.distributed != nil {
		if d, ok, err := c.distributed.Get(ctx, k); err == nil && ok {
			_ = c.local.Set(ctx, k, d, TTL)
			return d, nil
		} else if err != nil && c.logger != nil {
			c.logger.Warn(ctx, "capability: distributed tier read failed",
				observe.Field{Key: "session_id", Value: sessionID},
				observe.Field{Key: "error", Value: err.Error()})
		}
	}

	d, err := c.fetch(ctx, sessionID, peerHandle)
	if err != nil {
		return Descriptor{}, err
	}
	_ = c.local.Set(ctx, k, d, TTL)
	if c.distributed != nil {
		if err := c.distributed.Set(ctx, k, d, TTL); err != nil && c.logger != nil {
			c.logger.Warn(ctx, "capability: distributed tier write failed",
				observe.Field{Key: "session_id", Value: sessionID},
				observe.Field{Key: "error", Value: err.Error()})
		}
	}
	return d, nil
}

// RequireElicitation returns KindElicitationUnavailable if the peer has
// not advertised elicitation support, so handlers can fail fast before
// attempting the peer call.
func (c *Cache) RequireElicitation(ctx context.Context, sessionID, peerHandle string) *mcperr.Error {
	d, err := c.Get(ctx, sessionID, peerHandle)
	if err != nil {
		return mcperr.Wrap(mcperr.KindInternal, "capability lookup failed", err)
	}
	if !d.Elicitation {
		return mcperr.New(mcperr.KindElicitationUnavailable, "peer did not advertise elicitation support").
			WithResolution("fall back to a non-interactive confirmation path")
	}
	return nil
}

// RequireSampling returns KindSamplingUnavailable if the peer has not
// advertised sampling support.
func (c *Cache) RequireSampling(ctx context.Context, sessionID, peerHandle string) *mcperr.Error {
	d, err := c.Get(ctx, sessionID, peerHandle)
	if err != nil {
		return mcperr.Wrap(mcperr.KindInternal, "capability lookup failed", err)
	}
	if !d.Sampling {
		return mcperr.New(mcperr.KindSamplingUnavailable, "peer did not advertise sampling support").
			WithResolution("proceed without LLM-backed assistance or prompt the user directly")
	}
	return nil
}

// memoryTier is the process-local Tier implementation.
type memoryTier struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	value     Descriptor
	expiresAt time.Time
}

// NewMemoryTier builds a process-local Tier.
func NewMemoryTier() Tier {
	return &memoryTier{entries: make(map[string]memoryEntry)}
}

func (t *memoryTier) Get(_ context.Context, key string) (Descriptor, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		return Descriptor{}, false, nil
	}
	return e.value, true, nil
}

func (t *memoryTier) Set(_ context.Context, key string, d Descriptor, ttl time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[key] = memoryEntry{value: d, expiresAt: time.Now().Add(ttl)}
	return nil
}

var _ Tier = (*memoryTier)(nil)
