package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// StdioTransport serves exactly one session per process over newline
// delimited JSON on stdin/stdout. This is the simplest C11 transport:
// no session cap, no reconnect, one reader goroutine per process.
type StdioTransport struct {
	in      *bufio.Scanner
	out     io.Writer
	outMu   sync.Mutex
	session *Session
}

// NewStdioTransport opens a session over in/out for userID.
func NewStdioTransport(in io.Reader, out io.Writer, manager *Manager, userID string) (*StdioTransport, error) {
	sess, mErr := manager.Open(userID, KindStdio)
	if mErr != nil {
		return nil, mErr
	}
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &StdioTransport{in: scanner, out: out, session: sess}, nil
}

// Session returns the transport's single session.
func (t *StdioTransport) Session() *Session { return t.session }

// Serve reads newline-delimited JSON requests until ctx is cancelled or
// the input stream closes, dispatching each to handle and writing back
// whatever handle returns, newline-delimited in turn.
func (t *StdioTransport) Serve(ctx context.Context, handle func(ctx context.Context, req json.RawMessage) (json.RawMessage, error)) error {
	lines := make(chan []byte)
	scanErr := make(chan error, 1)

	go func() {
		defer close(lines)
		for t.in.Scan() {
			line := make([]byte, len(t.in.Bytes()))
			copy(line, t.in.Bytes())
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		scanErr <- t.in.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			if len(line) == 0 {
				continue
			}
			resp, err := handle(ctx, json.RawMessage(line))
			if err != nil {
				resp, _ = json.Marshal(map[string]any{"success": false, "error": err.Error()})
			}
			if writeErr := t.writeLine(resp); writeErr != nil {
				return fmt.Errorf("transport: stdio write: %w", writeErr)
			}
		}
	}
}

func (t *StdioTransport) writeLine(b []byte) error {
	t.outMu.Lock()
	defer t.outMu.Unlock()
	if _, err := t.out.Write(b); err != nil {
		return err
	}
	_, err := t.out.Write([]byte("\n"))
	return err
}
