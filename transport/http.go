package transport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/jonwraymond/sheetbridge/auth"
)

// StreamableHandler implements POST /mcp: a single request/response
// endpoint carrying one JSON body per call, session id in the
// X-Session-ID header (minted and echoed back if absent). identify
// resolves the caller's auth.Identity (spreadsheet scopes included) and
// is attached to the request context via auth.WithIdentity, so
// downstream actions can enforce per-spreadsheet read/write scopes.
func StreamableHandler(manager *Manager, identify func(*http.Request) *auth.Identity, handle func(ctx HTTPRequestContext) (json.RawMessage, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		identity := identify(req)

		sessionID := req.Header.Get("X-Session-ID")
		var sess *Session
		if sessionID != "" {
			if existing, ok := manager.Get(sessionID); ok {
				sess = existing
			}
		}
		if sess == nil {
			newSess, mErr := manager.Open(identity.Principal, KindStreamable)
			if mErr != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(mErr)
				return
			}
			sess = newSess
		}
		w.Header().Set("X-Session-ID", sess.ID)

		body, err := io.ReadAll(req.Body)
		if err != nil {
			http.Error(w, "failed to read body", http.StatusBadRequest)
			return
		}

		ctx := ExtractTraceContext(req.Context(), req.Header)
		ctx = auth.WithIdentity(ctx, identity)
		resp, herr := handle(HTTPRequestContext{ctx: ctx, session: sess, body: body})
		if herr != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]any{"success": false, "error": herr.Error()})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write(resp)
	}
}

// HTTPRequestContext bundles what a streamable-HTTP handler needs without
// exposing the raw http.Request type to the dispatch layer.
type HTTPRequestContext struct {
	ctx     context.Context
	session *Session
	body    []byte
}

// Context returns the request-scoped context (trace-extracted).
func (h HTTPRequestContext) Context() context.Context { return h.ctx }

// Session returns the session the request was attributed to.
func (h HTTPRequestContext) Session() *Session { return h.session }

// Body returns the raw JSON request body.
func (h HTTPRequestContext) Body() []byte { return h.body }

// CloseSessionHandler implements DELETE /session/:id.
func CloseSessionHandler(manager *Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodDelete {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		id := req.PathValue("id")
		if id == "" {
			id = req.URL.Query().Get("id")
		}
		manager.Close(id)
		w.WriteHeader(http.StatusNoContent)
	}
}
