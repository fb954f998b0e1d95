package mcperr

import (
	"encoding/json"
	"time"
)

// Envelope is the wire shape every handler response takes. Success and
// error responses never mix: Success is true with Payload/Meta populated,
// or false with Error populated.
type Envelope struct {
	Success bool   `json:"success"`
	Action  string `json:"action,omitempty"`
	Payload any    `json:"-"`
	Meta    *Meta  `json:"_meta,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

// Meta carries the optional out-of-band information the success envelope
// may attach: warnings, a mutation snapshot reference, pagination, and cost
// estimates.
type Meta struct {
	Warnings   []string  `json:"warnings,omitempty"`
	Snapshot   *Snapshot `json:"snapshot,omitempty"`
	NextCursor string    `json:"next_cursor,omitempty"`
	CostHint   *CostHint `json:"cost_estimate,omitempty"`
}

// Snapshot references a pre-mutation snapshot taken by the safety gate,
// along with human-readable steps to undo the mutation manually.
type Snapshot struct {
	ID               string    `json:"id"`
	CreatedAt        time.Time `json:"created_at"`
	UndoInstructions []string  `json:"undo_instructions,omitempty"`
}

// CostHint estimates the relative expense of an operation (API calls
// consumed, cells touched) so callers can budget subsequent requests.
type CostHint struct {
	APICallsConsumed int `json:"api_calls_consumed,omitempty"`
	CellsTouched     int `json:"cells_touched,omitempty"`
}

// MarshalJSON flattens Payload's fields alongside success/action/_meta, per
// the wire shape {success, action, <payload fields>, _meta?}. Error
// envelopes marshal {success, error} with no payload merged in.
func (e *Envelope) MarshalJSON() ([]byte, error) {
	if !e.Success {
		return json.Marshal(struct {
			Success bool   `json:"success"`
			Error   *Error `json:"error,omitempty"`
		}{Success: e.Success, Error: e.Error})
	}

	out := map[string]any{"success": true}
	if e.Action != "" {
		out["action"] = e.Action
	}
	if e.Payload != nil {
		payloadJSON, err := json.Marshal(e.Payload)
		if err != nil {
			return nil, err
		}
		var fields map[string]any
		if err := json.Unmarshal(payloadJSON, &fields); err == nil {
			for k, v := range fields {
				out[k] = v
			}
		} else {
			out["data"] = e.Payload
		}
	}
	if e.Meta != nil {
		out["_meta"] = e.Meta
	}
	return json.Marshal(out)
}

// Success builds a success envelope for the given action and payload.
func Success(action string, payload any, meta *Meta) *Envelope {
	return &Envelope{Success: true, Action: action, Payload: payload, Meta: meta}
}

// Failure builds an error envelope from an *Error.
func Failure(err *Error) *Envelope {
	return &Envelope{Success: false, Error: err}
}
