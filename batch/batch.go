// Package batch implements the Batching System (C6): a time-window and
// size-bounded grouper that converts N pending writes/appends against
// the same spreadsheet into one batchUpdate call.
package batch

import (
	"context"
	"sync"
	"time"

	"github.com/jonwraymond/sheetbridge/apiclient"
	"github.com/jonwraymond/sheetbridge/dedup"
	"github.com/jonwraymond/sheetbridge/observe"
)

// Config controls batch windowing.
type Config struct {
	Window  time.Duration // default 50ms
	MaxSize int           // default 25
}

// DefaultConfig returns the spec's default window parameters.
func DefaultConfig() Config {
	return Config{Window: 50 * time.Millisecond, MaxSize: 25}
}

type pendingWrite struct {
	item   apiclient.BatchRequestItem
	result *dedup.Shared[apiclient.UpdateResult]
}

type window struct {
	mu      sync.Mutex
	writes  []*pendingWrite
	timer   *time.Timer
	flushed bool
}

// Batcher groups writes per spreadsheet id.
type Batcher struct {
	cfg     Config
	api     apiclient.SpreadsheetsAPI
	metrics observe.Metrics

	mu      sync.Mutex
	windows map[string]*window
}

// New builds a Batcher that issues batchUpdate calls through api.
func New(cfg Config, api apiclient.SpreadsheetsAPI, metrics observe.Metrics) *Batcher {
	return &Batcher{
		cfg:     cfg,
		api:     api,
		metrics: metrics,
		windows: make(map[string]*window),
	}
}

// Queue adds item to the open window for spreadsheetID, opening one if
// none exists, and blocks until the window flushes and this write's
// portion of the result is known. The window flushes after cfg.Window
// elapses or once cfg.MaxSize writes have joined it, whichever is first.
func (b *Batcher) Queue(ctx context.Context, spreadsheetID string, item apiclient.BatchRequestItem) (*apiclient.UpdateResult, error) {
	w := b.joinWindow(spreadsheetID)

	w.mu.Lock()
	pw := &pendingWrite{item: item, result: dedup.NewShared[apiclient.UpdateResult]()}
	w.writes = append(w.writes, pw)
	shouldFlushNow := len(w.writes) >= b.cfg.MaxSize
	w.mu.Unlock()

	if shouldFlushNow {
		b.flush(spreadsheetID, w)
	}

	res, err := pw.result.Wait(ctx)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (b *Batcher) joinWindow(spreadsheetID string) *window {
	b.mu.Lock()
	defer b.mu.Unlock()

	if w, ok := b.windows[spreadsheetID]; ok {
		return w
	}

	w := &window{}
	b.windows[spreadsheetID] = w
	w.timer = time.AfterFunc(b.cfg.Window, func() {
		b.flush(spreadsheetID, w)
	})
	return w
}

// flush issues one batchUpdate for every write queued in w. Every caller
// in the group receives the same UpdateResult, and an upstream error
// propagates identically to every caller, matching the request-merger's
// error-fanout rule.
func (b *Batcher) flush(spreadsheetID string, w *window) {
	b.mu.Lock()
	if b.windows[spreadsheetID] == w {
		delete(b.windows, spreadsheetID)
	}
	b.mu.Unlock()

	w.mu.Lock()
	if w.flushed {
		w.mu.Unlock()
		return
	}
	w.flushed = true
	if w.timer != nil {
		w.timer.Stop()
	}
	writes := w.writes
	w.mu.Unlock()

	if len(writes) == 0 {
		return
	}

	items := make([]apiclient.BatchRequestItem, len(writes))
	for i, pw := range writes {
		items[i] = pw.item
	}

	ctx := context.Background()
	result, err := b.api.BatchUpdate(ctx, apiclient.BatchUpdateRequest{
		SpreadsheetID: spreadsheetID,
		Requests:      items,
	})

	if b.metrics != nil {
		b.metrics.RecordBatchFlush(ctx, "batch", len(writes))
	}

	for _, pw := range writes {
		if err != nil {
			pw.result.Resolve(apiclient.UpdateResult{}, err)
			continue
		}
		pw.result.Resolve(*result, nil)
	}
}
