// Package handler implements the Handler Runtime (C14): action dispatch
// by tag, structured envelope construction, verbosity filtering, and
// range resolution (A1 plus semantic references).
package handler

import (
	"context"
	"fmt"
	"sync"

	"github.com/jonwraymond/sheetbridge/mcperr"
	"github.com/jonwraymond/sheetbridge/observe"
)

// Verbosity controls how much of a success payload survives filtering.
type Verbosity string

const (
	VerbosityMinimal  Verbosity = "minimal"
	VerbosityStandard Verbosity = "standard"
	VerbosityDetailed Verbosity = "detailed"
)

// RequestContext is created per inbound request and destroyed when the
// handler returns; it carries the borrowed references a handler needs
// without giving it ownership of any of them.
type RequestContext struct {
	Context      context.Context
	RequestID    string
	SessionID    string
	Action       string
	Verbosity    Verbosity
	Progress     func(progressToken string, progress, total float64, message string)
	Logger       observe.Logger
}

// Action is one dispatchable tag. Handle returns the payload to embed in
// the success envelope's flattened fields, or a *mcperr.Error to embed in
// the error envelope.
type Action struct {
	Tag    string
	Handle func(rc *RequestContext, params map[string]any) (payload any, meta *mcperr.Meta, err *mcperr.Error)
}

// Runtime is the dispatch table keyed by action tag.
type Runtime struct {
	mu      sync.RWMutex
	actions map[string]Action
}

// New builds an empty Runtime.
func New() *Runtime {
	return &Runtime{actions: make(map[string]Action)}
}

// Register adds an Action to the dispatch table. Registering the same
// tag twice replaces the previous handler.
func (r *Runtime) Register(a Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[a.Tag] = a
}

// Dispatch routes a request by its action tag, applies verbosity
// filtering to a successful payload, and always returns a well-formed
// envelope — dispatch itself never returns a bare Go error.
func (r *Runtime) Dispatch(rc *RequestContext, params map[string]any) *mcperr.Envelope {
	r.mu.RLock()
	action, ok := r.actions[rc.Action]
	r.mu.RUnlock()

	if !ok {
		return mcperr.Failure(mcperr.New(mcperr.KindInvalidRequest, fmt.Sprintf("unknown action %q", rc.Action)).
			WithResolution("check the action tag against the server's advertised tool list"))
	}

	payload, meta, err := action.Handle(rc, params)
	if err != nil {
		return mcperr.Failure(err)
	}

	filtered := FilterVerbosity(payload, rc.Verbosity)
	return mcperr.Success(rc.Action, filtered, meta)
}
