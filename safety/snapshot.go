package safety

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/sheetbridge/apiclient"
)

// Snapshot is a point-in-time capture of a range, used to undo a mutation.
type Snapshot struct {
	ID            string
	SpreadsheetID string
	Range         string
	Values        apiclient.ValueRange
	CreatedAt     time.Time
}

// SnapshotStore captures and restores ranges ahead of risky mutations.
// C10's auto-rollback and C9's create_snapshot option both go through
// this interface.
type SnapshotStore interface {
	Create(ctx context.Context, api apiclient.SpreadsheetsAPI, spreadsheetID, rng string) (string, error)
	Restore(ctx context.Context, api apiclient.SpreadsheetsAPI, id string) error
	Get(id string) (Snapshot, bool)
	Discard(id string)
}

// MemorySnapshotStore keeps captured ranges in process memory. Snapshots
// do not outlive the process; a distributed store is a drop-in swap
// behind the same interface if cross-instance undo is ever required.
type MemorySnapshotStore struct {
	mu        sync.Mutex
	snapshots map[string]Snapshot
}

// NewMemorySnapshotStore builds an empty MemorySnapshotStore.
func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{snapshots: make(map[string]Snapshot)}
}

// Create reads the current values of rng and stores them under a fresh id.
func (s *MemorySnapshotStore) Create(ctx context.Context, api apiclient.SpreadsheetsAPI, spreadsheetID, rng string) (string, error) {
	vr, err := api.GetValues(ctx, apiclient.GetValuesRequest{SpreadsheetID: spreadsheetID, Range: rng})
	if err != nil {
		return "", fmt.Errorf("safety: snapshot capture failed: %w", err)
	}

	id := uuid.NewString()
	s.mu.Lock()
	s.snapshots[id] = Snapshot{ID: id, SpreadsheetID: spreadsheetID, Range: rng, Values: *vr, CreatedAt: time.Now()}
	s.mu.Unlock()
	return id, nil
}

// Restore writes a snapshot's captured values back to the spreadsheet.
func (s *MemorySnapshotStore) Restore(ctx context.Context, api apiclient.SpreadsheetsAPI, id string) error {
	snap, ok := s.Get(id)
	if !ok {
		return fmt.Errorf("safety: snapshot %s not found", id)
	}
	_, err := api.UpdateValues(ctx, apiclient.UpdateValuesRequest{
		SpreadsheetID:    snap.SpreadsheetID,
		Range:            snap.Range,
		ValueInputOption: "RAW",
		Values:           snap.Values.Values,
	})
	if err != nil {
		return fmt.Errorf("safety: snapshot restore failed: %w", err)
	}
	return nil
}

// Get returns the snapshot for id, if present.
func (s *MemorySnapshotStore) Get(id string) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snapshots[id]
	return snap, ok
}

// Discard drops a snapshot once it is no longer needed for rollback.
func (s *MemorySnapshotStore) Discard(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, id)
}

var _ SnapshotStore = (*MemorySnapshotStore)(nil)
