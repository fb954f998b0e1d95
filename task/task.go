// Package task implements the Task Store (C13): a persistent record of
// long-running tool invocations supporting progress reporting and
// cancellation, backed by a swappable in-memory or distributed store.
package task

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/sheetbridge/mcperr"
)

// State is a Task's position in its lifecycle. cancelled is terminal;
// state and progress are monotonic where defined.
type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

var terminal = map[State]bool{
	StateCompleted: true,
	StateFailed:    true,
	StateCancelled: true,
}

// Task is one long-running invocation tracked across its lifetime.
type Task struct {
	ID                string
	SessionID         string
	Tool              string
	ParamsFingerprint string
	State             State
	Progress          float64
	Result            any
	Err               string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Patch describes a partial update to a Task. Nil fields are left
// unchanged.
type Patch struct {
	State    *State
	Progress *float64
	Result   any
	Err      *string
}

// Store is the swappable backend contract; in-memory and distributed
// implementations are identical from a caller's perspective.
type Store interface {
	Create(ctx context.Context, sessionID, tool, paramsFingerprint string) (*Task, error)
	Update(ctx context.Context, id string, patch Patch) (*Task, *mcperr.Error)
	Get(ctx context.Context, id string) (*Task, bool, error)
	Cancel(ctx context.Context, id string) (*Task, *mcperr.Error)
	List(ctx context.Context, sessionID string) ([]*Task, error)
}

// MemoryStore is the in-process Store implementation. Tasks survive
// transport reconnects within the process but not a restart; a
// distributed store is a drop-in swap behind the same interface.
type MemoryStore struct {
	mu    sync.Mutex
	tasks map[string]*Task
}

// NewMemoryStore builds an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tasks: make(map[string]*Task)}
}

func (s *MemoryStore) Create(_ context.Context, sessionID, tool, paramsFingerprint string) (*Task, error) {
	now := time.Now()
	t := &Task{
		ID:                uuid.NewString(),
		SessionID:         sessionID,
		Tool:              tool,
		ParamsFingerprint: paramsFingerprint,
		State:             StateQueued,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	s.mu.Lock()
	s.tasks[t.ID] = t
	s.mu.Unlock()
	return t, nil
}

func (s *MemoryStore) Update(_ context.Context, id string, patch Patch) (*Task, *mcperr.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, mcperr.New(mcperr.KindNotFound, fmt.Sprintf("task %s not found", id))
	}
	if terminal[t.State] {
		return nil, mcperr.New(mcperr.KindPreconditionFail, fmt.Sprintf("task %s is already %s", id, t.State))
	}

	if patch.State != nil {
		t.State = *patch.State
	}
	if patch.Progress != nil {
		if *patch.Progress < t.Progress {
			return nil, mcperr.New(mcperr.KindInvalidParams, "progress must be monotonically non-decreasing")
		}
		t.Progress = *patch.Progress
	}
	if patch.Result != nil {
		t.Result = patch.Result
	}
	if patch.Err != nil {
		t.Err = *patch.Err
	}
	t.UpdatedAt = time.Now()
	return t, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Task, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	return t, ok, nil
}

func (s *MemoryStore) Cancel(_ context.Context, id string) (*Task, *mcperr.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, mcperr.New(mcperr.KindNotFound, fmt.Sprintf("task %s not found", id))
	}
	if terminal[t.State] {
		return t, nil
	}
	t.State = StateCancelled
	t.UpdatedAt = time.Now()
	return t, nil
}

func (s *MemoryStore) List(_ context.Context, sessionID string) ([]*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Task
	for _, t := range s.tasks {
		if t.SessionID == sessionID {
			out = append(out, t)
		}
	}
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
