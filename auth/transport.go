package auth

import "net/http"

// WithAuthHeaders is HTTP middleware that extracts request headers into
// the context so a sheetbridge authenticator running later in the
// chain can read the bearer token or API key without re-parsing
// http.Request directly.
//
// Usage:
//
//	mux.Handle("/breaker-stats", auth.WithAuthHeaders(statsHandler))
func WithAuthHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithHeaders(r.Context(), r.Header)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireScope is HTTP middleware that denies the request with 403
// unless the identity already attached to its context (by an earlier
// authentication step) holds verb for spreadsheetID. It is meant for
// routes where the spreadsheet ID is fixed by the route itself rather
// than read from a request body, e.g. a per-sheet export endpoint.
func RequireScope(verb, spreadsheetID string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := IdentityFromContext(r.Context())
		if id == nil {
			id = AnonymousIdentity()
		}
		if !id.hasScope(verb, spreadsheetID) {
			http.Error(w, ErrScopeDenied.Error(), http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
