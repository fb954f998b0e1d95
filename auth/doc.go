// Package auth authenticates callers of the sheetbridge gateway and
// authorizes their spreadsheet reads and writes.
//
// Authentication supports JWT bearer tokens (validated against a static
// key or a JWKS endpoint) and static API keys, composed so a deployment
// can accept either on the same endpoint. Authorization is scope-based:
// an Identity carries spreadsheet scopes (sheets:read, sheets:write,
// sheets:admin, global or bound to one spreadsheet ID), and
// SpreadsheetScopeAuthorizer checks those scopes against the action a
// caller is attempting. The package is transport-agnostic; sheetbridge's
// HTTP transport attaches the resolved Identity to the request context
// so action handlers can authorize without re-running authentication.
package auth
