package safety

import (
	"context"
	"fmt"

	"github.com/jonwraymond/sheetbridge/apiclient"
	"github.com/jonwraymond/sheetbridge/cache"
	"github.com/jonwraymond/sheetbridge/mcperr"
	"github.com/jonwraymond/sheetbridge/observe"
	"github.com/jonwraymond/sheetbridge/rangeref"
)

// DefaultHighRiskCellThreshold gates mutations this large unless the
// caller explicitly opts in with AllowRisky.
const DefaultHighRiskCellThreshold = 5000

// Request describes one mutation to run through the gate.
type Request struct {
	SpreadsheetID  string
	Range          string
	EstimatedCells int
	Options        Options
	Diff           DiffOptions
	Progress       ProgressFunc

	// Execute performs the actual write, typically routed through the
	// batching collector (C6) or a transaction (C10). Its UpdateResult
	// feeds the metadata tier of the diff.
	Execute func(ctx context.Context) (*apiclient.UpdateResult, error)
}

// Gate is the Safety Gate (C9): the single path every mutation takes.
type Gate struct {
	api               apiclient.SpreadsheetsAPI
	snapshots         SnapshotStore
	invalidator       *cache.RangeCache
	metrics           observe.Metrics
	logger            observe.Logger
	highRiskThreshold int
}

// NewGate builds a Gate. invalidator may be nil if the caller has no
// range-aware cache in front of the API (invalidation is then a no-op).
func NewGate(api apiclient.SpreadsheetsAPI, snapshots SnapshotStore, invalidator *cache.RangeCache, metrics observe.Metrics, logger observe.Logger) *Gate {
	return &Gate{
		api:               api,
		snapshots:         snapshots,
		invalidator:       invalidator,
		metrics:           metrics,
		logger:            logger,
		highRiskThreshold: DefaultHighRiskCellThreshold,
	}
}

// WithHighRiskThreshold overrides the default cell-count guardrail.
func (g *Gate) WithHighRiskThreshold(n int) *Gate {
	g.highRiskThreshold = n
	return g
}

// Snapshots exposes the gate's SnapshotStore so callers that need manual
// rollback outside the normal pipeline (C10's Rollback) can reach it.
func (g *Gate) Snapshots() SnapshotStore { return g.snapshots }

// Run executes the C9 pipeline for req. Exactly one of (*Preview,
// *MutationSummary) is non-nil on success; err is non-nil on any failure,
// including the policy short-circuit.
func (g *Gate) Run(ctx context.Context, req Request) (*Preview, *MutationSummary, *mcperr.Error) {
	state := StateReady

	// 1. Policy check.
	req.Progress.emit(PhasePolicyCheck, "checking cell-count guardrail")
	if req.EstimatedCells > g.highRiskThreshold && !req.Options.AllowRisky {
		return nil, nil, mcperr.New(mcperr.KindPreconditionFail,
			fmt.Sprintf("estimated %d cells exceeds high-risk threshold %d", req.EstimatedCells, g.highRiskThreshold)).
			WithResolution("pass allow_risky=true to proceed, or narrow the target range")
	}
	state = StatePolicyOK

	diffOpts := req.Diff
	if diffOpts.Tier == "" {
		diffOpts = DefaultDiffOptions()
	}

	// 2. Dry-run: compute a preview without touching the API.
	if req.Options.DryRun {
		return &Preview{
			Range:          req.Range,
			EstimatedCells: req.EstimatedCells,
			ProjectedDiff:  Diff{ChangedCells: req.EstimatedCells},
		}, nil, nil
	}

	// Capture before-values whenever we'll need them for sample/full
	// diffing, regardless of whether a durable snapshot is requested.
	var before *apiclient.ValueRange
	if diffOpts.Tier != TierMetadata {
		vr, err := g.api.GetValues(ctx, apiclient.GetValuesRequest{SpreadsheetID: req.SpreadsheetID, Range: req.Range})
		if err != nil {
			return nil, nil, mcperr.Wrap(mcperr.KindInternal, "failed to capture before-state for diff", err)
		}
		before = vr
	}

	// 3. Snapshot.
	var snapshotID string
	if req.Options.CreateSnapshot {
		req.Progress.emit(PhaseSnapshot, "capturing pre-execution snapshot")
		id, err := g.snapshots.Create(ctx, g.api, req.SpreadsheetID, req.Range)
		if err != nil {
			return nil, nil, mcperr.Wrap(mcperr.KindInternal, "snapshot capture failed", err)
		}
		snapshotID = id
		state = StateSnapshotted
	}

	// 4. Execute.
	req.Progress.emit(PhaseExecute, "executing mutation")
	state = StateExecuting
	result, err := req.Execute(ctx)
	if err != nil {
		if g.logger != nil {
			g.logger.Error(ctx, "safety: mutation execute failed",
				observe.Field{Key: "spreadsheet_id", Value: req.SpreadsheetID},
				observe.Field{Key: "range", Value: req.Range},
				observe.Field{Key: "snapshot_id", Value: snapshotID},
				observe.Field{Key: "error", Value: err.Error()})
		}
		mcerr := mcperr.Wrap(mcperr.KindInternal, "mutation execute failed", err)
		if snapshotID != "" {
			mcerr = mcerr.WithDetails(map[string]any{"snapshot_id": snapshotID})
		}
		_ = state // state ends at StateFailed; not surfaced beyond the error today
		return nil, nil, mcerr
	}

	// 5. Diff.
	req.Progress.emit(PhaseDiff, "computing diff")
	var after *apiclient.ValueRange
	if diffOpts.Tier != TierMetadata {
		if vr, aerr := g.api.GetValues(ctx, apiclient.GetValuesRequest{SpreadsheetID: req.SpreadsheetID, Range: req.Range}); aerr == nil {
			after = vr
		}
	}
	diff := computeDiff(before, after, req.Range, diffOpts, result)
	state = StateDiffed

	// 6. Invalidate.
	req.Progress.emit(PhaseInvalidate, "invalidating cached entries")
	if g.invalidator != nil {
		if _, ierr := g.invalidator.InvalidateRange(ctx, "values", req.SpreadsheetID, req.Range); ierr != nil && g.logger != nil {
			g.logger.Warn(ctx, "safety: cache invalidation failed",
				observe.Field{Key: "spreadsheet_id", Value: req.SpreadsheetID},
				observe.Field{Key: "range", Value: req.Range},
				observe.Field{Key: "error", Value: ierr.Error()})
		}
	}
	state = StateInvalidated

	state = StateReturned
	return nil, &MutationSummary{
		Range:          req.Range,
		EstimatedCells: req.EstimatedCells,
		SnapshotID:     snapshotID,
		Diff:           diff,
		State:          state,
	}, nil
}

func computeDiff(before, after *apiclient.ValueRange, rng string, opts DiffOptions, result *apiclient.UpdateResult) Diff {
	d := Diff{}
	if result != nil {
		d.ChangedCells = result.UpdatedCells
		d.ChangedRows = result.UpdatedRows
		d.ChangedColumns = result.UpdatedColumns
	}
	if opts.Tier == TierMetadata || before == nil || after == nil {
		return d
	}

	base, err := rangeref.Parse(rng)
	if err != nil {
		return d
	}

	limit := opts.MaxFullDiffCells
	if opts.Tier == TierSample {
		limit = opts.SampleSize
	}
	if limit <= 0 {
		limit = DefaultDiffOptions().SampleSize
	}

	rows := maxRows(before, after)
	changedCells, rowSet, colSet := 0, map[int]bool{}, map[int]bool{}
	for r := 0; r < rows; r++ {
		cols := maxCols(before, after, r)
		for c := 0; c < cols; c++ {
			bv := cellAt(before, r, c)
			av := cellAt(after, r, c)
			if bv == av {
				continue
			}
			changedCells++
			rowSet[r] = true
			colSet[c] = true
			if len(d.Samples) < limit {
				cellRef := rangeref.Ref{Row0: base.Row0 + r, Row1: base.Row0 + r + 1, Col0: base.Col0 + c, Col1: base.Col0 + c + 1}
				d.Samples = append(d.Samples, CellDiff{Cell: cellRef.Format(), Before: bv, After: av})
			}
		}
	}

	d.ChangedCells = changedCells
	d.ChangedRows = len(rowSet)
	d.ChangedColumns = len(colSet)
	if changedCells > limit {
		d.Truncated = true
	}
	return d
}

func maxRows(a, b *apiclient.ValueRange) int {
	if len(a.Values) > len(b.Values) {
		return len(a.Values)
	}
	return len(b.Values)
}

func maxCols(a, b *apiclient.ValueRange, row int) int {
	var ac, bc int
	if row < len(a.Values) {
		ac = len(a.Values[row])
	}
	if row < len(b.Values) {
		bc = len(b.Values[row])
	}
	if ac > bc {
		return ac
	}
	return bc
}

func cellAt(vr *apiclient.ValueRange, r, c int) any {
	if r >= len(vr.Values) || c >= len(vr.Values[r]) {
		return nil
	}
	return vr.Values[r][c]
}
