// Package secret provides a small, dependency-light secret resolution layer.
//
// It supports:
//   - Strict environment expansion (see ExpandEnvStrict)
//   - Pluggable secret providers (see Provider + Registry)
//   - Resolving secret references in configuration values (see Resolver)
//
// References use the prefix "secretref:":
//   - Full value:  secretref:file:google-service-account.json
//   - Inline use:  Bearer secretref:env:SHEETBRIDGE_API_TOKEN
//
// Two providers ship in DefaultRegistry:
//   - [EnvProvider] ("env"): resolves secretref:env:VAR_NAME against the
//     process environment, distinct from $VAR expansion in that it
//     requires the explicit secretref: prefix.
//   - [FileProvider] ("file"): resolves secretref:file:<name> by reading
//     <name> from a base directory, the shape a Kubernetes secret volume
//     or Docker secret mount takes. The gateway points this at the mount
//     holding its Sheets API service-account JSON key.
//
// The gateway builds its Resolver by calling DefaultRegistry.Create for
// both names and registering the results, so config values for the
// upstream API token or JWKS URL can reference either provider.
package secret
