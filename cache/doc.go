// Package cache provides deterministic caching for tool executions.
//
// It provides a Cache interface with memory implementation, SHA-256-based
// key derivation, and TTL policies with unsafe tag handling.
//
// # Ecosystem Position
//
// cache sits between tool invocation and tool execution, intercepting requests
// to avoid redundant computation:
//
//	┌─────────────────────────────────────────────────────────────────┐
//	│                      Tool Execution Flow                        │
//	├─────────────────────────────────────────────────────────────────┤
//	│                                                                 │
//	│   toolexec            cache               toolexec              │
//	│   ┌──────┐         ┌─────────┐          ┌─────────┐            │
//	│   │ Tool │────────▶│Middleware│─────────▶│Executor │            │
//	│   │ Call │         │         │          │         │            │
//	│   └──────┘         │ ┌─────┐ │   miss   └─────────┘            │
//	│       ▲            │ │Keyer│ │              │                   │
//	│       │            │ ├─────┤ │              │                   │
//	│       │            │ │Cache│◀──────────────┘                   │
//	│       │            │ ├─────┤ │   store                         │
//	│       │    hit     │ │Policy│ │                                 │
//	│       └────────────│ └─────┘ │                                 │
//	│                    └─────────┘                                 │
//	│                                                                 │
//	└─────────────────────────────────────────────────────────────────┘
//
// # Core Components
//
//   - [Cache]: Interface for caching tool execution results (Get/Set/Delete)
//   - [MemoryCache]: Thread-safe in-memory cache with TTL support, Len and
//     Purge for reclaiming entries that expired without being re-read
//   - [Namespace]: Prefixes every key passed to an inner Cache, letting
//     unrelated callers share one backing store
//   - [RangeCache]: Namespaced, range-tag-aware cache over a plain Cache,
//     used for cell values (see ranged.go)
//   - [Keyer]: Interface for deterministic cache key generation
//   - [DefaultKeyer]: SHA-256 based keyer with canonical JSON serialization
//   - [MetadataToolID]: Builds the toolID a named-range or
//     developer-metadata lookup keys against
//   - [Policy]: Configures TTL defaults, maximums, and unsafe tag handling
//   - [MetadataPolicy]: Longer-lived TTL for spreadsheet structure, which
//     changes far less often than cell values
//   - [CacheMiddleware]: Transparent caching wrapper for tool execution
//   - [NewReadOnlyMiddleware]: CacheMiddleware constructor for operations
//     that are always safe to cache, skipping the unsafe-tag check
//
// # Quick Start
//
// Named-range and developer-metadata lookups (always read-only, longer
// TTL) go through [NewReadOnlyMiddleware]:
//
//	memCache := cache.NewMemoryCache(cache.MetadataPolicy())
//	mw := cache.NewReadOnlyMiddleware(memCache, cache.NewDefaultKeyer(), cache.MetadataPolicy())
//
//	toolID := cache.MetadataToolID("named_ranges.list", spreadsheetID)
//	result, err := mw.Execute(ctx, toolID, nil, nil,
//	    func(ctx context.Context, _ string, _ any) ([]byte, error) {
//	        return json.Marshal(metadata.ListNamedRanges(ctx, spreadsheetID))
//	    })
//
// Cell values go through [RangeCache] instead (see ranged.go), since a
// write needs to invalidate by grid-range overlap, not by exact key.
//
// # Key Generation
//
// The [DefaultKeyer] generates deterministic cache keys using:
//
//	cache:<toolID>:<hash>
//
// Where hash is the first 16 hex characters of SHA-256(canonical JSON(input)).
// Canonical JSON ensures map keys are sorted for deterministic serialization.
//
// # TTL Policies
//
// The [Policy] type controls caching behavior:
//
//   - DefaultTTL: Applied when no specific TTL is provided
//   - MaxTTL: Upper bound for any TTL (prevents excessive caching)
//   - AllowUnsafe: Whether to cache tools with unsafe tags
//
// Preset policies:
//
//   - [DefaultPolicy]: 5 minute default, 1 hour max, unsafe=false
//   - [NoCachePolicy]: Disabled (0 TTL)
//   - [MetadataPolicy]: 30 minute default, 2 hour max, for named ranges
//     and developer metadata
//
// # Unsafe Tag Handling
//
// Tools with certain tags should not be cached because they have side effects:
//
//   - write, danger, unsafe, mutation, delete
//
// The [DefaultSkipRule] checks for these tags (case-insensitive) and skips
// caching. Override via [NewCacheMiddleware]'s skipRule parameter.
//
// # Thread Safety
//
// All exported types are safe for concurrent use:
//
//   - [MemoryCache]: sync.RWMutex protects all operations
//   - [DefaultKeyer]: Stateless, concurrent-safe
//   - [CacheMiddleware]: Delegates to thread-safe Cache/Keyer
//   - [Policy]: Immutable struct, concurrent-safe
//
// # Error Handling
//
// Sentinel errors (use errors.Is for checking):
//
//   - [ErrNilCache]: Cache is nil
//   - [ErrInvalidKey]: Key is empty, whitespace-only, or contains newlines
//   - [ErrKeyTooLong]: Key exceeds MaxKeyLength (512 characters)
//
// Note: Cache.Get never returns errors - it returns (nil, false) on miss.
// Key validation is performed via [ValidateKey] function.
//
// # Integration
//
// cache integrates with the rest of this module:
//
//   - handler: RangeResolver consults RangeCache before issuing an
//     upstream read for header:/named:/meta: references
//   - the gateway's named-range and developer-metadata actions wrap
//     apiclient.MetadataAPI in a [CacheMiddleware] built with
//     [NewReadOnlyMiddleware] and [MetadataPolicy]
//   - rangeref: computes range overlap for dependency-tag invalidation
//   - observe: records cache hits/misses via [Metrics.RecordCacheAccess]
//   - resilience: combine with retry/circuit breaker for robust caching
package cache
