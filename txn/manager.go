package txn

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/sheetbridge/apiclient"
	"github.com/jonwraymond/sheetbridge/mcperr"
	"github.com/jonwraymond/sheetbridge/rangeref"
	"github.com/jonwraymond/sheetbridge/safety"
)

// DefaultLifetime bounds how long a transaction may stay open before
// queue/commit start failing with TRANSACTION_TIMEOUT.
const DefaultLifetime = 5 * time.Minute

// Manager owns every open Transaction. One Manager serves the whole
// gateway; transactions are independent of session lifetime.
type Manager struct {
	api      apiclient.SpreadsheetsAPI
	gate     *safety.Gate
	lifetime time.Duration

	mu   sync.Mutex
	txns map[string]*Transaction
}

// NewManager builds a Manager. gate is the same Safety Gate instance the
// single-operation write path uses, so commits get identical policy
// checks, diffing, and cache invalidation.
func NewManager(api apiclient.SpreadsheetsAPI, gate *safety.Gate) *Manager {
	return &Manager{
		api:      api,
		gate:     gate,
		lifetime: DefaultLifetime,
		txns:     make(map[string]*Transaction),
	}
}

// Begin opens a new transaction against spreadsheetID.
func (m *Manager) Begin(spreadsheetID string, autoRollback bool) *Transaction {
	tx := &Transaction{
		ID:            uuid.NewString(),
		SpreadsheetID: spreadsheetID,
		State:         StateOpen,
		CreatedAt:     time.Now(),
		AutoRollback:  autoRollback,
	}
	m.mu.Lock()
	m.txns[tx.ID] = tx
	m.mu.Unlock()
	return tx
}

// Queue appends op to an open transaction in FIFO order, returning a
// growth advisory once the queue crosses the warning thresholds.
func (m *Manager) Queue(txID string, op Operation) (QueueAdvisory, *mcperr.Error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, ok := m.txns[txID]
	if !ok {
		return AdvisoryNone, mcperr.New(mcperr.KindNotFound, fmt.Sprintf("transaction %s not found", txID))
	}
	if expired(tx, m.lifetime) {
		tx.State = StateFailed
		return AdvisoryNone, mcperr.New(mcperr.KindTransactionTimeout, "transaction exceeded its open lifetime")
	}
	if tx.State != StateOpen {
		return AdvisoryNone, mcperr.New(mcperr.KindPreconditionFail, fmt.Sprintf("transaction %s is %s, not open", txID, tx.State))
	}

	tx.Operations = append(tx.Operations, op)
	return advisoryFor(len(tx.Operations)), nil
}

// Status returns a snapshot of a transaction, or false if it does not exist.
func (m *Manager) Status(txID string) (Transaction, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.txns[txID]
	if !ok {
		return Transaction{}, false
	}
	return *tx, true
}

// List returns a snapshot of every known transaction.
func (m *Manager) List() []Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Transaction, 0, len(m.txns))
	for _, tx := range m.txns {
		out = append(out, *tx)
	}
	return out
}

// Rollback restores a committed or failed transaction's snapshot and
// marks it rolled_back. It is a caller-driven counterpart to the
// automatic rollback commit performs on failure.
func (m *Manager) Rollback(ctx context.Context, txID string) *mcperr.Error {
	m.mu.Lock()
	tx, ok := m.txns[txID]
	m.mu.Unlock()
	if !ok {
		return mcperr.New(mcperr.KindNotFound, fmt.Sprintf("transaction %s not found", txID))
	}
	if tx.SnapshotID == "" {
		return mcperr.New(mcperr.KindPreconditionFail, "transaction has no snapshot to restore from")
	}
	if err := m.gate.Snapshots().Restore(ctx, m.api, tx.SnapshotID); err != nil {
		return mcperr.Wrap(mcperr.KindInternal, "rollback failed", err)
	}
	m.mu.Lock()
	tx.State = StateRolledBack
	m.mu.Unlock()
	return nil
}

// Commit compiles the queued operations into one batch write through the
// Safety Gate. On failure with AutoRollback set, the transaction's
// pre-commit snapshot is restored and the transaction marked
// rolled_back; otherwise it is marked failed.
func (m *Manager) Commit(ctx context.Context, txID string) (*CommitResult, *mcperr.Error) {
	m.mu.Lock()
	tx, ok := m.txns[txID]
	m.mu.Unlock()
	if !ok {
		return nil, mcperr.New(mcperr.KindNotFound, fmt.Sprintf("transaction %s not found", txID))
	}
	if expired(tx, m.lifetime) {
		m.mu.Lock()
		tx.State = StateFailed
		m.mu.Unlock()
		return nil, mcperr.New(mcperr.KindTransactionTimeout, "transaction exceeded its open lifetime")
	}
	if tx.State != StateOpen {
		return nil, mcperr.New(mcperr.KindPreconditionFail, fmt.Sprintf("transaction %s is %s, not open", txID, tx.State))
	}
	if len(tx.Operations) == 0 {
		return nil, mcperr.New(mcperr.KindInvalidRequest, "transaction has no queued operations")
	}

	m.mu.Lock()
	tx.State = StateCommitting
	m.mu.Unlock()

	bbox, err := boundingBox(tx.Operations)
	if err != nil {
		m.mu.Lock()
		tx.State = StateFailed
		m.mu.Unlock()
		return nil, mcperr.Wrap(mcperr.KindInvalidRequest, "could not compute a bounding range for the queued operations", err)
	}

	estimatedCells := 0
	for _, op := range tx.Operations {
		for _, row := range op.Values {
			estimatedCells += len(row)
		}
	}

	_, summary, mErr := m.gate.Run(ctx, safety.Request{
		SpreadsheetID:  tx.SpreadsheetID,
		Range:          bbox,
		EstimatedCells: estimatedCells,
		Options:        safety.Options{CreateSnapshot: tx.AutoRollback, AllowRisky: true},
		Diff:           safety.DiffOptions{Tier: safety.TierMetadata},
		Execute: func(ctx context.Context) (*apiclient.UpdateResult, error) {
			return m.api.BatchUpdate(ctx, apiclient.BatchUpdateRequest{
				SpreadsheetID: tx.SpreadsheetID,
				Requests:      compileRequests(tx.Operations),
			})
		},
	})

	if mErr != nil {
		m.mu.Lock()
		if tx.AutoRollback && summary != nil && summary.SnapshotID != "" {
			tx.SnapshotID = summary.SnapshotID
		}
		rollbackSnapshot := tx.SnapshotID
		m.mu.Unlock()

		if tx.AutoRollback && rollbackSnapshot != "" {
			if rerr := m.gate.Snapshots().Restore(ctx, m.api, rollbackSnapshot); rerr == nil {
				m.mu.Lock()
				tx.State = StateRolledBack
				m.mu.Unlock()
				return nil, mErr.WithDetails(map[string]any{"rolled_back": true})
			}
		}
		m.mu.Lock()
		tx.State = StateFailed
		m.mu.Unlock()
		return nil, mErr
	}

	m.mu.Lock()
	tx.State = StateCommitted
	tx.SnapshotID = summary.SnapshotID
	m.mu.Unlock()

	return &CommitResult{TransactionID: tx.ID, SnapshotID: summary.SnapshotID, UpdatedCells: summary.Diff.ChangedCells}, nil
}

func expired(tx *Transaction, lifetime time.Duration) bool {
	return tx.State == StateOpen && time.Since(tx.CreatedAt) > lifetime
}

func boundingBox(ops []Operation) (string, error) {
	refs := make([]rangeref.Ref, 0, len(ops))
	for _, op := range ops {
		r, err := rangeref.Parse(op.Range)
		if err != nil {
			return "", err
		}
		refs = append(refs, r)
	}
	box, err := rangeref.BoundingBox(refs...)
	if err != nil {
		return "", err
	}
	return box.Format(), nil
}

func compileRequests(ops []Operation) []apiclient.BatchRequestItem {
	items := make([]apiclient.BatchRequestItem, 0, len(ops))
	for _, op := range ops {
		items = append(items, apiclient.BatchRequestItem{
			UpdateCells: map[string]any{"range": op.Range, "values": op.Values},
		})
	}
	return items
}
