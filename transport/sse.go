package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// subscriber is one live SSE connection attached to a session.
type subscriber struct {
	w       http.ResponseWriter
	flusher http.Flusher
	done    chan struct{}
	mu      sync.Mutex
}

func (s *subscriber) writeEvent(id uint64, event, data string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.done:
		return fmt.Errorf("transport: subscriber closed")
	default:
	}

	var b strings.Builder
	fmt.Fprintf(&b, "id: %d\n", id)
	if event != "" {
		fmt.Fprintf(&b, "event: %s\n", event)
	}
	for _, line := range strings.Split(data, "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteString("\n")

	if _, err := s.w.Write([]byte(b.String())); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// SSERegistry fans out events to the live subscriber for each session,
// honouring Last-Event-ID on resume.
type SSERegistry struct {
	manager *Manager

	mu          sync.Mutex
	subscribers map[string]*subscriber
}

// NewSSERegistry builds a registry backed by the given session manager.
func NewSSERegistry(manager *Manager) *SSERegistry {
	return &SSERegistry{manager: manager, subscribers: make(map[string]*subscriber)}
}

// Handler implements GET /sse: opens a fresh session, or — when the
// client supplies an X-Session-ID for a session that still exists —
// resumes it and emits a reconnect event (carrying the Last-Event-ID it
// resumed from, 0 if absent) instead of minting a new one.
func (r *SSERegistry) Handler(userID func(*http.Request) string) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		var sess *Session
		reconnected := false

		if sid := req.Header.Get("X-Session-ID"); sid != "" {
			if existing, ok := r.manager.Get(sid); ok {
				sess = existing
				reconnected = true
			}
		}
		if sess == nil {
			newSess, mErr := r.manager.Open(userID(req), KindSSE)
			if mErr != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(mErr)
				return
			}
			sess = newSess
		}

		w.Header().Set("X-Session-ID", sess.ID)
		if reconnected {
			w.Header().Set("X-Reconnected", "true")
		}
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		sub := &subscriber{w: w, flusher: flusher, done: make(chan struct{})}
		r.mu.Lock()
		r.subscribers[sess.ID] = sub
		r.mu.Unlock()
		defer func() {
			r.mu.Lock()
			if r.subscribers[sess.ID] == sub {
				delete(r.subscribers, sess.ID)
			}
			r.mu.Unlock()
			close(sub.done)
		}()

		if reconnected {
			resumedFrom := parseEventID(req.Header.Get("Last-Event-ID"))
			payload, _ := json.Marshal(map[string]uint64{"resumed_from": resumedFrom})
			sub.writeEvent(sess.nextEventID(), "reconnect", string(payload))
		}

		<-req.Context().Done()
	}
}

// Send emits event/data to the live subscriber of sessionID, if any. It
// is a no-op (not an error) when the session has no current connection,
// since a disconnected session's task work continues per configuration.
func (r *SSERegistry) Send(sessionID, event string, data any) error {
	r.mu.Lock()
	sub, ok := r.subscribers[sessionID]
	r.mu.Unlock()
	if !ok {
		return nil
	}
	sess, ok := r.manager.Get(sessionID)
	if !ok {
		return nil
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("transport: marshal SSE payload: %w", err)
	}
	return sub.writeEvent(sess.nextEventID(), event, string(payload))
}

// MessageHandler implements POST /sse/message: delivers a peer message
// to the session named by X-Session-ID, invoking handle with its body.
func (r *SSERegistry) MessageHandler(handle func(ctx context.Context, sessionID string, body []byte) error) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		sessionID := req.Header.Get("X-Session-ID")
		if sessionID == "" {
			http.Error(w, "missing X-Session-ID", http.StatusBadRequest)
			return
		}
		if _, ok := r.manager.Get(sessionID); !ok {
			http.Error(w, "unknown session", http.StatusNotFound)
			return
		}

		buf, err := io.ReadAll(req.Body)
		if err != nil {
			http.Error(w, "failed to read body", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(req.Context(), 30*time.Second)
		defer cancel()
		if err := handle(ctx, sessionID, buf); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

// parseEventID parses a Last-Event-ID header value, defaulting to 0 for
// a missing or malformed value (the stream then starts from scratch).
func parseEventID(s string) uint64 {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
