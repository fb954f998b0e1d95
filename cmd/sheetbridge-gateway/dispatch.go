package main

import (
	"context"
	"encoding/json"

	"github.com/jonwraymond/sheetbridge/handler"
	"github.com/jonwraymond/sheetbridge/mcperr"
	"github.com/jonwraymond/sheetbridge/transport"
)

// wireRequest is the JSON shape every transport decodes a raw message
// into before handing it to the handler runtime.
type wireRequest struct {
	RequestID string         `json:"request_id"`
	Action    string         `json:"action"`
	Params    map[string]any `json:"params"`
	Verbosity string         `json:"verbosity"`
}

func dispatchEnvelope(ctx context.Context, rt *handler.Runtime, sessionID string, body []byte) *mcperr.Envelope {
	var req wireRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return mcperr.Failure(mcperr.Wrap(mcperr.KindParseError, "invalid request body", err))
	}

	verbosity := handler.Verbosity(req.Verbosity)
	if verbosity == "" {
		verbosity = handler.VerbosityStandard
	}

	rc := &handler.RequestContext{
		Context:   ctx,
		RequestID: req.RequestID,
		SessionID: sessionID,
		Action:    req.Action,
		Verbosity: verbosity,
	}
	return rt.Dispatch(rc, req.Params)
}

// dispatchRawMessage adapts the handler runtime to the SSE transport's
// fire-and-forget message callback: the response is not returned to the
// caller inline, matching SSE's asynchronous request/notify shape. A
// real deployment would push the envelope back out over Send; here the
// envelope is discarded after dispatch since no registry reference is
// threaded through this callback shape.
func dispatchRawMessage(rt *handler.Runtime) func(ctx context.Context, sessionID string, body []byte) error {
	return func(ctx context.Context, sessionID string, body []byte) error {
		dispatchEnvelope(ctx, rt, sessionID, body)
		return nil
	}
}

// dispatchStreamable adapts the handler runtime to the streamable-HTTP
// transport's request/response shape.
func dispatchStreamable(rt *handler.Runtime) func(transport.HTTPRequestContext) (json.RawMessage, error) {
	return func(hrc transport.HTTPRequestContext) (json.RawMessage, error) {
		env := dispatchEnvelope(hrc.Context(), rt, hrc.Session().ID, hrc.Body())
		return json.Marshal(env)
	}
}
