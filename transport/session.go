// Package transport implements the Session & Transport Manager (C11):
// stdio, SSE, and streamable-HTTP transports sharing one session model,
// per-user session caps, and W3C trace-context propagation.
package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/sheetbridge/mcperr"
)

// Kind names a transport a session was opened over.
type Kind string

const (
	KindStdio      Kind = "stdio"
	KindSSE        Kind = "sse"
	KindStreamable Kind = "streamable_http"
)

// Session is the gateway's unit of peer state, independent of transport.
type Session struct {
	ID        string
	UserID    string
	Transport Kind
	CreatedAt time.Time

	mu           sync.Mutex
	lastEventID uint64
	taskCount    int
}

// TouchTask increments or decrements the session's open task count;
// negative delta decrements. Never goes below zero.
func (s *Session) TouchTask(delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.taskCount += delta
	if s.taskCount < 0 {
		s.taskCount = 0
	}
}

// OpenTaskCount returns the session's current open task count.
func (s *Session) OpenTaskCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.taskCount
}

func (s *Session) nextEventID() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastEventID++
	return s.lastEventID
}

// Manager owns every open Session and enforces per-user caps. It is the
// sole owner of session lifetime; the Handler Runtime only ever borrows
// a Session for the duration of one request.
type Manager struct {
	maxPerUser int

	mu       sync.Mutex
	sessions map[string]*Session
	byUser   map[string]int
}

// NewManager builds a Manager. maxPerUser <= 0 means unbounded.
func NewManager(maxPerUser int) *Manager {
	return &Manager{
		maxPerUser: maxPerUser,
		sessions:   make(map[string]*Session),
		byUser:     make(map[string]int),
	}
}

// Open creates a new session for userID over the given transport kind,
// rejecting with TOO_MANY_SESSIONS if the user is already at their cap.
func (m *Manager) Open(userID string, kind Kind) (*Session, *mcperr.Error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.maxPerUser > 0 && m.byUser[userID] >= m.maxPerUser {
		return nil, mcperr.New(mcperr.KindTooManySessions,
			fmt.Sprintf("user %s already has %d open sessions", userID, m.byUser[userID])).
			WithResolution("close an existing session before opening another")
	}

	sess := &Session{ID: uuid.NewString(), UserID: userID, Transport: kind, CreatedAt: time.Now()}
	m.sessions[sess.ID] = sess
	m.byUser[userID]++
	return sess, nil
}

// Get returns an open session by id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	return sess, ok
}

// Close removes a session, releasing its per-user slot.
func (m *Manager) Close(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return
	}
	delete(m.sessions, id)
	m.byUser[sess.UserID]--
	if m.byUser[sess.UserID] <= 0 {
		delete(m.byUser, sess.UserID)
	}
}

// CloseAll closes every open session, used at shutdown.
func (m *Manager) CloseAll() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.sessions = make(map[string]*Session)
	m.byUser = make(map[string]int)
	return out
}

// Shutdown closes every session and waits for the provided drain
// functions (typically one per background worker or task store) to
// return, bounded by ctx's deadline.
func Shutdown(ctx context.Context, m *Manager, drain ...func(context.Context) error) error {
	m.CloseAll()
	errCh := make(chan error, len(drain))
	for _, fn := range drain {
		fn := fn
		go func() { errCh <- fn(ctx) }()
	}
	var firstErr error
	for range drain {
		select {
		case err := <-errCh:
			if err != nil && firstErr == nil {
				firstErr = err
			}
		case <-ctx.Done():
			if firstErr == nil {
				firstErr = ctx.Err()
			}
		}
	}
	return firstErr
}
