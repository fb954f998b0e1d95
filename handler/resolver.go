package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jonwraymond/sheetbridge/cache"
	"github.com/jonwraymond/sheetbridge/rangeref"
)

// semanticTTL bounds how long a resolved header/named-range/metadata
// lookup is trusted before the resolver asks the API again. Shorter
// than capability.TTL since sheet structure changes more often than
// peer capabilities.
const semanticTTL = 10 * time.Minute

// SemanticLookup resolves a semantic reference into an A1 range by
// calling the upstream API. RangeResolver consults the cache before
// ever reaching these methods.
type SemanticLookup interface {
	ResolveNamedRange(ctx context.Context, spreadsheetID, name string) (string, error)
	ResolveHeader(ctx context.Context, spreadsheetID, sheet, columnHeader string) (string, error)
	ResolveDeveloperMetadata(ctx context.Context, spreadsheetID, key string) (string, error)
}

const semanticNamespace = "semantic"

// RangeResolver turns either A1 notation or a semantic reference
// (header:Sheet!Column, named:RangeName, meta:Key) into a parsed Ref,
// consulting the cache before the API for semantic lookups.
type RangeResolver struct {
	cache  *cache.RangeCache
	lookup SemanticLookup
}

// NewRangeResolver builds a RangeResolver. cache may be nil to skip the
// semantic-lookup cache tier entirely.
func NewRangeResolver(c *cache.RangeCache, lookup SemanticLookup) *RangeResolver {
	return &RangeResolver{cache: c, lookup: lookup}
}

// Resolve parses ref, which is either plain A1 notation or one of the
// semantic forms, into a Ref scoped to spreadsheetID.
func (r *RangeResolver) Resolve(ctx context.Context, spreadsheetID, ref string) (rangeref.Ref, error) {
	switch {
	case strings.HasPrefix(ref, "named:"):
		return r.resolveSemantic(ctx, spreadsheetID, "named", strings.TrimPrefix(ref, "named:"),
			func() (string, error) { return r.lookup.ResolveNamedRange(ctx, spreadsheetID, strings.TrimPrefix(ref, "named:")) })

	case strings.HasPrefix(ref, "header:"):
		raw := strings.TrimPrefix(ref, "header:")
		sheet, column, ok := strings.Cut(raw, "!")
		if !ok {
			return rangeref.Ref{}, fmt.Errorf("handler: header reference %q must be Sheet!Column", ref)
		}
		return r.resolveSemantic(ctx, spreadsheetID, "header", raw,
			func() (string, error) { return r.lookup.ResolveHeader(ctx, spreadsheetID, sheet, column) })

	case strings.HasPrefix(ref, "meta:"):
		key := strings.TrimPrefix(ref, "meta:")
		return r.resolveSemantic(ctx, spreadsheetID, "meta", key,
			func() (string, error) { return r.lookup.ResolveDeveloperMetadata(ctx, spreadsheetID, key) })

	default:
		return rangeref.Parse(ref)
	}
}

func (r *RangeResolver) resolveSemantic(ctx context.Context, spreadsheetID, kind, key string, fetch func() (string, error)) (rangeref.Ref, error) {
	cacheKey := spreadsheetID + "\x00" + kind + "\x00" + key

	if r.cache != nil {
		if v, ok := r.cache.Get(ctx, semanticNamespace, cacheKey); ok {
			return rangeref.Parse(string(v))
		}
	}

	a1, err := fetch()
	if err != nil {
		return rangeref.Ref{}, fmt.Errorf("handler: resolve %s reference %q: %w", kind, key, err)
	}

	if r.cache != nil {
		_ = r.cache.Set(ctx, semanticNamespace, cacheKey, []byte(a1), semanticTTL)
	}
	return rangeref.Parse(a1)
}
