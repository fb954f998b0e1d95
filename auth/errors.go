package auth

import "errors"

// Sentinel errors for authentication and authorization.
var (
	// Authentication errors
	ErrMissingCredentials = errors.New("auth: missing credentials")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrTokenExpired       = errors.New("auth: token expired")
	ErrTokenMalformed     = errors.New("auth: token malformed")
	ErrKeyNotFound        = errors.New("auth: signing key not found")

	// Authorization errors
	ErrForbidden = errors.New("auth: access denied")

	// ErrScopeDenied indicates the identity lacks the spreadsheet scope
	// (sheets:read, sheets:write, sheets:admin, or a spreadsheet-scoped
	// variant) a gateway action requires.
	ErrScopeDenied = errors.New("auth: spreadsheet scope denied")
)
