package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jonwraymond/sheetbridge/apiclient"
	"github.com/jonwraymond/sheetbridge/cache"
	"github.com/jonwraymond/sheetbridge/rangeref"
)

const valuesNamespace = "values"

func valuesCacheKey(spreadsheetID, rng string) string {
	return spreadsheetID + "\x00" + rng
}

// cachingSpreadsheets fronts GetValues with the range cache (C3), so
// sheets.read and header resolution stop paying an upstream round trip
// on every call. Writes pass straight through; the safety gate is
// responsible for invalidating the range it mutated.
type cachingSpreadsheets struct {
	apiclient.SpreadsheetsAPI
	cache *cache.RangeCache
	ttl   time.Duration
}

func newCachingSpreadsheets(inner apiclient.SpreadsheetsAPI, rangeCache *cache.RangeCache, ttl time.Duration) *cachingSpreadsheets {
	return &cachingSpreadsheets{SpreadsheetsAPI: inner, cache: rangeCache, ttl: ttl}
}

func (c *cachingSpreadsheets) GetValues(ctx context.Context, req apiclient.GetValuesRequest) (*apiclient.ValueRange, error) {
	key := valuesCacheKey(req.SpreadsheetID, req.Range)
	if cached, ok := c.cache.Get(ctx, valuesNamespace, key); ok {
		var vr apiclient.ValueRange
		if err := json.Unmarshal(cached, &vr); err == nil {
			return &vr, nil
		}
	}

	vr, err := c.SpreadsheetsAPI.GetValues(ctx, req)
	if err != nil {
		return nil, err
	}

	if ref, perr := rangeref.Parse(req.Range); perr == nil {
		if data, merr := json.Marshal(vr); merr == nil {
			_ = c.cache.Set(ctx, valuesNamespace, key, data, c.ttl, cache.RangeTag{SpreadsheetID: req.SpreadsheetID, Ref: ref})
		}
	}
	return vr, nil
}
