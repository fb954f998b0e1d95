package handler

// VerbosityAware lets a payload type trim itself for a given Verbosity
// instead of relying on the runtime's best-effort map filtering.
type VerbosityAware interface {
	AtVerbosity(v Verbosity) any
}

// essentialKeys are kept in a map payload under VerbosityMinimal when
// the payload does not implement VerbosityAware itself.
var essentialKeys = map[string]bool{
	"range": true, "spreadsheet_id": true, "updated_cells": true,
	"updated_range": true, "value": true, "values": true, "id": true,
	"state": true, "error": true,
}

// FilterVerbosity trims payload per v. VerbosityAware payloads are asked
// to filter themselves; everything else passes through unchanged except
// for plain map[string]any payloads at VerbosityMinimal, which are
// reduced to a conservative set of high-signal keys.
func FilterVerbosity(payload any, v Verbosity) any {
	if aware, ok := payload.(VerbosityAware); ok {
		return aware.AtVerbosity(v)
	}
	if v != VerbosityMinimal {
		return payload
	}

	m, ok := payload.(map[string]any)
	if !ok {
		return payload
	}
	out := make(map[string]any, len(m))
	for k, val := range m {
		if essentialKeys[k] {
			out[k] = val
		}
	}
	return out
}
