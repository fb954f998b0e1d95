// Package merge implements the Request Merger (C5): a time-window
// collector that unions overlapping reads eligible for the same
// spreadsheet/sheet/value-render-option/major-dimension into a single
// bounding-box API call, then slices the response back out per caller.
// It applies to reads only; writes go through package batch instead.
package merge

import (
	"context"
	"sync"
	"time"

	"github.com/jonwraymond/sheetbridge/apiclient"
	"github.com/jonwraymond/sheetbridge/dedup"
	"github.com/jonwraymond/sheetbridge/observe"
	"github.com/jonwraymond/sheetbridge/rangeref"
)

// Eligibility is the tuple that must match for two reads to share a
// window: spreadsheet id, sheet, value-render-option, major-dimension.
type Eligibility struct {
	SpreadsheetID     string
	Sheet             string
	ValueRenderOption string
	MajorDimension    string
}

// Config controls merge windowing.
type Config struct {
	Window        time.Duration // default 50ms
	MaxWindowSize int           // default 100
	MergeAdjacent bool
}

// DefaultConfig returns the spec's default window parameters.
func DefaultConfig() Config {
	return Config{Window: 50 * time.Millisecond, MaxWindowSize: 100, MergeAdjacent: true}
}

type pendingRead struct {
	ref    rangeref.Ref
	result *dedup.Shared[apiclient.ValueRange]
}

type window struct {
	mu      sync.Mutex
	reads   []*pendingRead
	timer   *time.Timer
	flushed bool
}

// Merger batches eligible reads behind per-eligibility-tuple windows.
type Merger struct {
	cfg     Config
	api     apiclient.SpreadsheetsAPI
	metrics observe.Metrics

	mu       sync.Mutex
	windows  map[Eligibility]*window
}

// New builds a Merger that issues bounding-box reads through api.
func New(cfg Config, api apiclient.SpreadsheetsAPI, metrics observe.Metrics) *Merger {
	return &Merger{
		cfg:     cfg,
		api:     api,
		metrics: metrics,
		windows: make(map[Eligibility]*window),
	}
}

// Get requests rng within the given eligibility tuple. If a window is
// already open for this tuple, the request joins it and is resolved by
// slicing the group's bounding-box response; otherwise a new window
// opens and flushes after cfg.Window or once cfg.MaxWindowSize requests
// have joined it.
func (m *Merger) Get(ctx context.Context, elig Eligibility, rng string) (*apiclient.ValueRange, error) {
	ref, err := rangeref.Parse(rng)
	if err != nil {
		return nil, err
	}
	if ref.Sheet == "" {
		ref.Sheet = elig.Sheet
	}

	w := m.joinWindow(elig)

	w.mu.Lock()
	pr := &pendingRead{ref: ref, result: dedup.NewShared[apiclient.ValueRange]()}
	w.reads = append(w.reads, pr)
	shouldFlushNow := len(w.reads) >= m.cfg.MaxWindowSize
	w.mu.Unlock()

	if shouldFlushNow {
		m.flush(elig, w)
	}

	vr, err := pr.result.Wait(ctx)
	if err != nil {
		return nil, err
	}
	return &vr, nil
}

func (m *Merger) joinWindow(elig Eligibility) *window {
	m.mu.Lock()
	defer m.mu.Unlock()

	if w, ok := m.windows[elig]; ok {
		return w
	}

	w := &window{}
	m.windows[elig] = w
	w.timer = time.AfterFunc(m.cfg.Window, func() {
		m.flush(elig, w)
	})
	return w
}

// flush issues one bounding-box read for every pending request in w and
// resolves each with its slice of the response. Single in-flight
// requests skip the bounding-box round trip and call straight through,
// per the "skip merging to avoid latency overhead" rule.
func (m *Merger) flush(elig Eligibility, w *window) {
	m.mu.Lock()
	if m.windows[elig] == w {
		delete(m.windows, elig)
	}
	m.mu.Unlock()

	w.mu.Lock()
	if w.flushed {
		w.mu.Unlock()
		return
	}
	w.flushed = true
	if w.timer != nil {
		w.timer.Stop()
	}
	reads := w.reads
	w.mu.Unlock()

	if len(reads) == 0 {
		return
	}

	ctx := context.Background()

	if len(reads) == 1 {
		vr, err := m.api.GetValues(ctx, apiclient.GetValuesRequest{
			SpreadsheetID:     elig.SpreadsheetID,
			Range:             reads[0].ref.Format(),
			ValueRenderOption: elig.ValueRenderOption,
			MajorDimension:    elig.MajorDimension,
		})
		if err != nil {
			reads[0].result.Resolve(apiclient.ValueRange{}, err)
			return
		}
		reads[0].result.Resolve(*vr, nil)
		return
	}

	groups := groupByAdjacency(reads, m.cfg.MergeAdjacent)

	for _, group := range groups {
		refs := make([]rangeref.Ref, len(group))
		for i, pr := range group {
			refs[i] = pr.ref
		}
		box, err := rangeref.BoundingBox(refs...)
		if err != nil {
			for _, pr := range group {
				pr.result.Resolve(apiclient.ValueRange{}, err)
			}
			continue
		}

		vr, err := m.api.GetValues(ctx, apiclient.GetValuesRequest{
			SpreadsheetID:     elig.SpreadsheetID,
			Range:             box.Format(),
			ValueRenderOption: elig.ValueRenderOption,
			MajorDimension:    elig.MajorDimension,
		})
		if err != nil {
			for _, pr := range group {
				pr.result.Resolve(apiclient.ValueRange{}, err)
			}
			continue
		}

		if m.metrics != nil {
			m.metrics.RecordBatchFlush(ctx, "merge", len(group))
		}

		for _, pr := range group {
			slice := sliceValueRange(*vr, box, pr.ref)
			pr.result.Resolve(slice, nil)
		}
	}
}

// groupByAdjacency partitions reads into clusters that overlap or (when
// mergeAdjacent is set) touch each other, so each cluster gets its own
// bounding box instead of one box spanning unrelated corners of a sheet.
func groupByAdjacency(reads []*pendingRead, mergeAdjacent bool) [][]*pendingRead {
	n := len(reads)
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			related := rangeref.Overlaps(reads[i].ref, reads[j].ref)
			if !related && mergeAdjacent {
				related = rangeref.Adjacent(reads[i].ref, reads[j].ref)
			}
			if related {
				union(i, j)
			}
		}
	}

	clusters := make(map[int][]*pendingRead)
	for i, pr := range reads {
		root := find(i)
		clusters[root] = append(clusters[root], pr)
	}

	out := make([][]*pendingRead, 0, len(clusters))
	for _, c := range clusters {
		out = append(out, c)
	}
	return out
}

// sliceValueRange extracts the portion of box's response corresponding
// to want, by relative row/column offset.
func sliceValueRange(box apiclient.ValueRange, boxRef, want rangeref.Ref) apiclient.ValueRange {
	rowOff := want.Row0 - boxRef.Row0
	colOff := want.Col0 - boxRef.Col0
	rows := want.Row1 - want.Row0
	cols := want.Col1 - want.Col0

	out := make([][]any, 0, rows)
	for r := 0; r < rows; r++ {
		srcRow := rowOff + r
		if srcRow < 0 || srcRow >= len(box.Values) {
			out = append(out, make([]any, cols))
			continue
		}
		row := box.Values[srcRow]
		dst := make([]any, cols)
		for c := 0; c < cols; c++ {
			srcCol := colOff + c
			if srcCol >= 0 && srcCol < len(row) {
				dst[c] = row[srcCol]
			}
		}
		out = append(out, dst)
	}

	return apiclient.ValueRange{
		Range:          want.Format(),
		MajorDimension: box.MajorDimension,
		Values:         out,
	}
}
