// Package apiclient wraps the upstream spreadsheet/drive/query HTTP API
// behind typed method groups, per-endpoint resilience (circuit breaker,
// retry, rate limiting, bulkhead via resilience.Executor), and a
// priority-ordered fallback registry. It is the only package in this
// module that speaks HTTP to the upstream service.
package apiclient

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jonwraymond/sheetbridge/mcperr"
)

// Class is the narrow error classification the retry and circuit-breaker
// layers act on. It is coarser than mcperr.Kind by design: C2 only needs
// to know whether to retry, open the breaker, or refresh a token, not the
// full wire vocabulary a handler response uses.
type Class int

const (
	ClassTransient Class = iota
	ClassRateLimited
	ClassPermissionDenied
	ClassNotFound
	ClassAuthExpired
	ClassInvalid
	ClassInternal
)

func (c Class) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassRateLimited:
		return "rate_limited"
	case ClassPermissionDenied:
		return "permission_denied"
	case ClassNotFound:
		return "not_found"
	case ClassAuthExpired:
		return "auth_expired"
	case ClassInvalid:
		return "invalid"
	case ClassInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Retryable reports whether the breaker/retry layer should treat this
// class as a failure worth retrying. Invalid and PermissionDenied never
// retry; AuthExpired is retried exactly once by the client's own refresh
// path, not by the generic retry loop.
func (c Class) Retryable() bool {
	switch c {
	case ClassTransient, ClassRateLimited, ClassInternal:
		return true
	default:
		return false
	}
}

// Error is the error type every apiclient method returns. It carries
// enough context for C2's IsFailure/RetryIf predicates and for mapping
// onto the handler-facing mcperr.Error at the boundary.
type Error struct {
	Class      Class
	StatusCode int
	Message    string
	RetryAfter time.Duration
	Endpoint   string
	cause      error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("apiclient: %s %s (status %d): %s", e.Endpoint, e.Class, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("apiclient: %s %s: %s", e.Endpoint, e.Class, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// NewError wraps cause as a classified apiclient.Error.
func NewError(endpoint string, class Class, message string, cause error) *Error {
	return &Error{Endpoint: endpoint, Class: class, Message: message, cause: cause}
}

// ClassifyStatus maps an upstream HTTP status code (and an optional
// Retry-After header value) to a Class and, for rate limiting and 5xx
// responses, the server-advised wait.
func ClassifyStatus(status int, retryAfter string) (Class, time.Duration) {
	wait := parseRetryAfter(retryAfter)

	switch {
	case status == http.StatusUnauthorized:
		return ClassAuthExpired, 0
	case status == http.StatusForbidden:
		return ClassPermissionDenied, 0
	case status == http.StatusNotFound:
		return ClassNotFound, 0
	case status == http.StatusTooManyRequests:
		return ClassRateLimited, wait
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return ClassInvalid, 0
	case status >= 500:
		return ClassTransient, wait
	case status >= 400:
		return ClassInvalid, 0
	default:
		return ClassInternal, 0
	}
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if d, err := time.ParseDuration(v + "s"); err == nil {
		return d
	}
	if t, err := http.ParseTime(v); err == nil {
		if until := time.Until(t); until > 0 {
			return until
		}
	}
	return 0
}

// IsFailure is installed on every per-endpoint resilience.CircuitBreaker;
// it treats only retryable classes as breaker failures, so a client
// mistake (Invalid, NotFound) never trips the breaker for other callers.
func IsFailure(err error) bool {
	if err == nil {
		return false
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Class.Retryable()
	}
	return true
}

// RetryIf is installed on every per-endpoint resilience.Retry.
func RetryIf(err error) bool {
	if err == nil {
		return false
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Class.Retryable()
	}
	return true
}

// RetryAfterDelay is installed as every per-endpoint resilience.Retry's
// DelayOverride. A ClassRateLimited error carries the upstream's
// Retry-After, if any; honoring it keeps a retry loop from reattempting a
// quota-exceeded call before the server said it would accept another one.
func RetryAfterDelay(err error) time.Duration {
	var ae *Error
	if errors.As(err, &ae) && ae.Class == ClassRateLimited {
		return ae.RetryAfter
	}
	return 0
}

// ToMCPError maps an apiclient.Error onto the handler-facing error
// taxonomy. Anything that is not an *Error (a dial failure, a context
// deadline) surfaces as KindInternal with the original cause wrapped.
func ToMCPError(err error) *mcperr.Error {
	var ae *Error
	if !errors.As(err, &ae) {
		return mcperr.Wrap(mcperr.KindInternal, err.Error(), err)
	}

	switch ae.Class {
	case ClassRateLimited:
		me := mcperr.Wrap(mcperr.KindRateLimitExceeded, ae.Message, ae)
		if ae.RetryAfter > 0 {
			me.WithRetry(ae.RetryAfter.String(), "fixed")
		}
		return me
	case ClassPermissionDenied:
		return mcperr.Wrap(mcperr.KindPermissionDenied, ae.Message, ae)
	case ClassNotFound:
		return mcperr.Wrap(mcperr.KindNotFound, ae.Message, ae)
	case ClassAuthExpired:
		return mcperr.Wrap(mcperr.KindAuthError, ae.Message, ae)
	case ClassInvalid:
		return mcperr.Wrap(mcperr.KindInvalidParams, ae.Message, ae)
	case ClassTransient:
		return mcperr.Wrap(mcperr.KindInternal, ae.Message, ae).WithRetry("1s", "exponential")
	default:
		return mcperr.Wrap(mcperr.KindInternal, ae.Message, ae)
	}
}
