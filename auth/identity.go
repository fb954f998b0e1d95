package auth

import (
	"strings"
	"time"
)

// AuthMethod indicates how authentication was performed.
type AuthMethod string

const (
	AuthMethodNone      AuthMethod = "none"
	AuthMethodJWT       AuthMethod = "jwt"
	AuthMethodAPIKey    AuthMethod = "api_key"
	AuthMethodOAuth2    AuthMethod = "oauth2"
	AuthMethodBasic     AuthMethod = "basic"
	AuthMethodAnonymous AuthMethod = "anonymous"
	AuthMethodComposite AuthMethod = "composite"
)

// Spreadsheet access scopes. A scope is either global ("sheets:read")
// or bound to one spreadsheet ("sheets:write:1a2b3c"). Admin implies
// read and write for the same subject (global or spreadsheet-scoped).
const (
	ScopeSheetsRead  = "sheets:read"
	ScopeSheetsWrite = "sheets:write"
	ScopeSheetsAdmin = "sheets:admin"
)

// Identity represents an authenticated principal.
type Identity struct {
	// Principal is the unique identifier (e.g., user ID, email).
	Principal string

	// TenantID is the tenant this identity belongs to (multi-tenancy).
	TenantID string

	// Roles are the roles assigned to this identity.
	Roles []string

	// Permissions carries the identity's spreadsheet scopes (see the
	// Scope* constants), global or spreadsheet-bound.
	Permissions []string

	// Method indicates how authentication was performed.
	Method AuthMethod

	// Claims contains the raw claims from the token.
	Claims map[string]any

	// ExpiresAt is when this identity expires.
	ExpiresAt time.Time

	// IssuedAt is when this identity was created.
	IssuedAt time.Time
}

// HasRole checks if the identity has a specific role.
func (id *Identity) HasRole(role string) bool {
	for _, r := range id.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasPermission checks if the identity has a specific permission.
func (id *Identity) HasPermission(perm string) bool {
	for _, p := range id.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// hasScope reports whether the identity holds verb globally, scoped to
// spreadsheetID, or via sheets:admin (global or scoped to spreadsheetID).
func (id *Identity) hasScope(verb, spreadsheetID string) bool {
	scoped := verb + ":" + spreadsheetID
	adminScoped := ScopeSheetsAdmin + ":" + spreadsheetID
	for _, p := range id.Permissions {
		switch p {
		case verb, scoped, ScopeSheetsAdmin, adminScoped:
			return true
		}
	}
	return false
}

// CanRead reports whether the identity may read spreadsheetID.
func (id *Identity) CanRead(spreadsheetID string) bool {
	return id.hasScope(ScopeSheetsRead, spreadsheetID)
}

// CanWrite reports whether the identity may write spreadsheetID.
func (id *Identity) CanWrite(spreadsheetID string) bool {
	return id.hasScope(ScopeSheetsWrite, spreadsheetID)
}

// IsExpired checks if the identity has expired.
func (id *Identity) IsExpired() bool {
	if id.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().After(id.ExpiresAt)
}

// IsAnonymous returns true if this is an anonymous identity.
func (id *Identity) IsAnonymous() bool {
	return id.Method == AuthMethodAnonymous || id.Principal == ""
}

// AnonymousIdentity creates a default anonymous identity. It carries no
// write scope; deployments that want anonymous read access grant
// sheets:read through AnonymousIdentityWithScopes instead.
func AnonymousIdentity() *Identity {
	return &Identity{
		Principal: "anonymous",
		Method:    AuthMethodAnonymous,
		Claims:    make(map[string]any),
	}
}

// AnonymousIdentityWithScopes creates an anonymous identity pre-granted
// the given spreadsheet scopes, for deployments that run the gateway
// without an authenticator but still want the safety gate and
// authorizer to see an explicit scope set rather than an empty one.
func AnonymousIdentityWithScopes(scopes ...string) *Identity {
	id := AnonymousIdentity()
	id.Permissions = scopes
	return id
}

// ParseScopeClaim splits a space-delimited OAuth2-style scope claim
// ("sheets:read sheets:write:1a2b3c") into individual permission
// strings, discarding empty tokens.
func ParseScopeClaim(claim string) []string {
	fields := strings.Fields(claim)
	if len(fields) == 0 {
		return nil
	}
	return fields
}
