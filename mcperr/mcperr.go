// Package mcperr defines the gateway's error taxonomy and the success/error
// response envelopes every handler returns. Every failure path in this
// module ends up constructing an *Error; nothing escapes as a bare Go error
// once it reaches the handler runtime.
package mcperr

import "fmt"

// Kind is a transport-independent error classification. It is a string
// type (unlike the int-based resilience.State), so it marshals to stable
// wire values without a String() switch.
type Kind string

const (
	KindInvalidParams          Kind = "INVALID_PARAMS"
	KindInvalidRequest         Kind = "INVALID_REQUEST"
	KindPreconditionFail       Kind = "PRECONDITION_FAILED"
	KindNotFound               Kind = "NOT_FOUND"
	KindRangeNotFound          Kind = "RANGE_NOT_FOUND"
	KindNoData                 Kind = "NO_DATA"
	KindAuthError              Kind = "AUTH_ERROR"
	KindPermissionDenied       Kind = "PERMISSION_DENIED"
	KindRateLimitExceeded      Kind = "RATE_LIMIT_EXCEEDED"
	KindQuotaExceeded          Kind = "QUOTA_EXCEEDED"
	KindTransactionTimeout     Kind = "TRANSACTION_TIMEOUT"
	KindCircuitOpen            Kind = "CIRCUIT_OPEN"
	KindFeatureUnavailable     Kind = "FEATURE_UNAVAILABLE"
	KindElicitationUnavailable Kind = "ELICITATION_UNAVAILABLE"
	KindSamplingUnavailable    Kind = "SAMPLING_UNAVAILABLE"
	KindInternal               Kind = "INTERNAL_ERROR"
	KindParseError             Kind = "PARSE_ERROR"
	KindConfigError            Kind = "CONFIG_ERROR"
	KindTooManySessions        Kind = "TOO_MANY_SESSIONS"
)

// retryableKinds are the kinds considered retryable by default; callers can
// still override via WithRetry.
var retryableKinds = map[Kind]bool{
	KindRateLimitExceeded: true,
	KindCircuitOpen:       true,
	KindTooManySessions:   true,
	KindQuotaExceeded:     false,
	KindAuthError:         false,
}

// RetryStrategy describes how a caller should retry a retryable error.
type RetryStrategy struct {
	After   string `json:"after,omitempty"`   // e.g. "500ms", "2026-07-31T12:00:00Z"
	Backoff string `json:"backoff,omitempty"` // "exponential", "fixed"
}

// Error is the structured error every handler returns. It implements the
// standard error interface and supports errors.Is against Kind via Is.
type Error struct {
	Code             Kind           `json:"code"`
	Message          string         `json:"message"`
	Retryable        bool           `json:"retryable"`
	RetryStrategy    *RetryStrategy `json:"retry_strategy,omitempty"`
	Resolution       string         `json:"resolution,omitempty"`
	ResolutionSteps  []string       `json:"resolution_steps,omitempty"`
	SuggestedActions []string       `json:"suggested_tools,omitempty"`
	Details          map[string]any `json:"details,omitempty"`

	// IncrementalAuthURL and MissingScopes are populated for
	// PERMISSION_DENIED errors caused by missing OAuth scopes, per the
	// incremental-authorization requirement.
	IncrementalAuthURL string   `json:"incremental_auth_url,omitempty"`
	MissingScopes      []string `json:"missing_scopes,omitempty"`

	wrapped error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause, if any, for errors.As/errors.Is chains.
func (e *Error) Unwrap() error { return e.wrapped }

// Is supports errors.Is(err, mcperr.New(kind, "")) matching purely on Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New constructs an Error of the given kind with a message, defaulting
// Retryable from the kind's usual classification.
func New(kind Kind, message string) *Error {
	return &Error{
		Code:      kind,
		Message:   message,
		Retryable: retryableKinds[kind],
	}
}

// Wrap constructs an Error that carries cause as its unwrap target, so
// errors.As still finds the original error for logging.
func Wrap(kind Kind, message string, cause error) *Error {
	e := New(kind, message)
	e.wrapped = cause
	return e
}

// WithResolution sets a one-line actionable resolution and optional ordered
// steps, satisfying the "every error must be actionable" requirement.
func (e *Error) WithResolution(resolution string, steps ...string) *Error {
	e.Resolution = resolution
	e.ResolutionSteps = steps
	return e
}

// WithRetry marks the error retryable with an explicit strategy.
func (e *Error) WithRetry(after, backoff string) *Error {
	e.Retryable = true
	e.RetryStrategy = &RetryStrategy{After: after, Backoff: backoff}
	return e
}

// WithIncrementalAuth attaches the incremental-authorization URL and the
// exact missing scopes for a PERMISSION_DENIED error.
func (e *Error) WithIncrementalAuth(url string, scopes ...string) *Error {
	e.IncrementalAuthURL = url
	e.MissingScopes = scopes
	return e
}

// WithDetails attaches arbitrary structured context.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// WithSuggestedActions lists alternative actions the caller might try instead.
func (e *Error) WithSuggestedActions(actions ...string) *Error {
	e.SuggestedActions = actions
	return e
}
