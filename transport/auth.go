package transport

import (
	"net/http"

	"github.com/jonwraymond/sheetbridge/auth"
)

// UserIDFromRequest adapts an auth.Authenticator into the userID resolver
// every transport entry point (SSE, streamable HTTP, stdio's bearer
// equivalent) takes. A failed or unsupported authentication attempt
// resolves to the anonymous identity's principal rather than rejecting
// the connection outright; handlers that require an authenticated caller
// enforce that at the action level via auth.IdentityFromContext.
func UserIDFromRequest(authenticator auth.Authenticator) func(*http.Request) string {
	identify := IdentityFromRequest(authenticator)
	return func(req *http.Request) string {
		return identify(req).Principal
	}
}

// IdentityFromRequest runs authenticator against req's headers and
// returns the resulting auth.Identity, or the anonymous identity if the
// request carries no credentials the authenticator supports or
// authentication otherwise fails. StreamableHandler attaches the result
// to the request context via auth.WithIdentity so sheetbridge actions
// can enforce spreadsheet scopes with auth.IdentityFromContext.
func IdentityFromRequest(authenticator auth.Authenticator) func(*http.Request) *auth.Identity {
	return func(req *http.Request) *auth.Identity {
		authReq := &AuthHeaderRequest{Headers: req.Header}
		ar := authReq.toAuthRequest()

		if !authenticator.Supports(req.Context(), ar) {
			return auth.AnonymousIdentity()
		}
		result, err := authenticator.Authenticate(req.Context(), ar)
		if err != nil || result == nil || !result.Authenticated {
			return auth.AnonymousIdentity()
		}
		return result.Identity
	}
}

// AuthHeaderRequest adapts net/http.Header into auth.AuthRequest's
// map[string][]string shape without this package importing net/http
// into auth itself.
type AuthHeaderRequest struct {
	Headers http.Header
}

func (a *AuthHeaderRequest) toAuthRequest() *auth.AuthRequest {
	return &auth.AuthRequest{Headers: map[string][]string(a.Headers)}
}
