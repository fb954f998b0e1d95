// Package safety implements the Batch Compiler / Safety Gate (C9): the
// single front door every mutating operation passes through for policy
// checks, dry-run previews, pre-execution snapshots, tiered diffing,
// and cache invalidation.
package safety

import "time"

// DiffTier controls how much of a mutation's effect is reported back.
type DiffTier string

const (
	TierMetadata DiffTier = "metadata"
	TierSample   DiffTier = "sample"
	TierFull     DiffTier = "full"
)

// Options carries the per-call safety knobs a caller supplies.
type Options struct {
	DryRun              bool
	CreateSnapshot      bool
	RequireConfirmation bool
	AllowRisky          bool
}

// DiffOptions controls the tiered diff computed after a successful execute.
type DiffOptions struct {
	Tier             DiffTier
	SampleSize       int
	MaxFullDiffCells int
}

// DefaultDiffOptions matches the gateway's stated defaults.
func DefaultDiffOptions() DiffOptions {
	return DiffOptions{Tier: TierSample, SampleSize: 20, MaxFullDiffCells: 500}
}

// CellDiff is one before/after pair reported in a sample or full diff.
type CellDiff struct {
	Cell   string `json:"cell"`
	Before any    `json:"before,omitempty"`
	After  any    `json:"after,omitempty"`
}

// Diff is the tiered summary of a mutation's effect.
type Diff struct {
	ChangedCells   int        `json:"changed_cells"`
	ChangedRows    int        `json:"changed_rows"`
	ChangedColumns int        `json:"changed_columns"`
	Samples        []CellDiff `json:"samples,omitempty"`
	Truncated      bool       `json:"truncated,omitempty"`
}

// State is the Safety Gate's position in its pipeline for one operation.
type State string

const (
	StateReady        State = "ready"
	StatePolicyOK     State = "policy_ok"
	StateDryRun       State = "dry_run_returned"
	StateSnapshotted  State = "snapshotted"
	StateExecuting    State = "executing"
	StateDiffed       State = "diffed"
	StateInvalidated  State = "invalidated"
	StateReturned     State = "returned"
	StateFailed       State = "failed"
)

// Preview is returned in place of a MutationSummary when DryRun is set.
type Preview struct {
	Range          string `json:"range"`
	EstimatedCells int    `json:"estimated_cells"`
	ProjectedDiff  Diff   `json:"projected_diff"`
}

// MutationSummary is the result of a successfully executed mutation.
type MutationSummary struct {
	Range          string    `json:"range"`
	EstimatedCells int       `json:"estimated_cells"`
	SnapshotID     string    `json:"snapshot_id,omitempty"`
	Diff           Diff      `json:"diff"`
	State          State     `json:"state"`
	StartedAt      time.Time `json:"started_at"`
	CompletedAt    time.Time `json:"completed_at"`
}

// ProgressPhase names a point in the pipeline at which a progress event fires.
type ProgressPhase string

const (
	PhasePolicyCheck ProgressPhase = "policy_check"
	PhaseSnapshot    ProgressPhase = "snapshot"
	PhaseExecute     ProgressPhase = "execute"
	PhaseDiff        ProgressPhase = "diff"
	PhaseInvalidate  ProgressPhase = "invalidate"
)

// ProgressEvent is emitted at defined phases of the pipeline.
type ProgressEvent struct {
	Phase     ProgressPhase
	Message   string
	Timestamp time.Time
}

// ProgressFunc receives progress events. A nil ProgressFunc is valid and
// silently drops events.
type ProgressFunc func(ProgressEvent)

func (f ProgressFunc) emit(phase ProgressPhase, msg string) {
	if f == nil {
		return
	}
	f(ProgressEvent{Phase: phase, Message: msg, Timestamp: time.Now()})
}
