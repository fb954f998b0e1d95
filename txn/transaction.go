// Package txn implements the Transaction Manager (C10): multi-operation
// atomic units committed as a single batch write through the Safety Gate,
// with snapshot-backed auto-rollback on failure.
package txn

import "time"

// State is a Transaction's position in its lifecycle.
type State string

const (
	StateOpen       State = "open"
	StateCommitting State = "committing"
	StateCommitted  State = "committed"
	StateRolledBack State = "rolled_back"
	StateFailed     State = "failed"
)

// Operation is one queued write. Range and Values describe an
// UpdateValues-style write; commit compiles every queued Operation of a
// transaction into one BatchUpdateRequest.
type Operation struct {
	Range  string
	Values [][]any
}

// Transaction is a spreadsheet-scoped unit of queued operations.
type Transaction struct {
	ID            string
	SpreadsheetID string
	State         State
	Operations    []Operation
	SnapshotID    string
	CreatedAt     time.Time
	AutoRollback  bool
}

// QueueAdvisory names a queue-size warning level.
type QueueAdvisory string

const (
	AdvisoryNone   QueueAdvisory = ""
	AdvisoryGrowth QueueAdvisory = "growth"
	AdvisoryStrong QueueAdvisory = "strong"
)

const (
	growthAdvisoryThreshold = 20
	strongAdvisoryThreshold = 50
)

func advisoryFor(queueSize int) QueueAdvisory {
	switch {
	case queueSize > strongAdvisoryThreshold:
		return AdvisoryStrong
	case queueSize > growthAdvisoryThreshold:
		return AdvisoryGrowth
	default:
		return AdvisoryNone
	}
}

// CommitResult is returned on a successful commit.
type CommitResult struct {
	TransactionID string
	SnapshotID    string
	UpdatedCells  int
}
