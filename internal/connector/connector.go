// Package connector defines the contract every service command executor
// satisfies. Executors are registered in a lookup table keyed by service
// name; each exposes a fixed action table so an unknown action is a map miss,
// not a control-flow fallthrough.
package connector

import (
	"context"
	"fmt"
)

// ActionFunc executes one named action for a connection. It returns the
// action-specific result payload. A non-nil error marks the command result as
// failed; the payload may still carry details (e.g. sent=false) in that case.
type ActionFunc func(ctx context.Context, connectionID string, params map[string]any) (map[string]any, error)

// Executor exposes a service's fixed set of named actions.
type Executor interface {
	Name() string
	Actions() map[string]ActionFunc
}

// StringParam extracts a required string parameter. Missing or non-string
// values report the parameter as absent; action handlers aggregate these into
// their "Missing required parameters" errors.
func StringParam(params map[string]any, name string) (string, bool) {
	v, ok := params[name]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// OptionalString extracts an optional string parameter, empty when absent.
func OptionalString(params map[string]any, name string) string {
	s, _ := StringParam(params, name)
	return s
}

// IntParam extracts an integer parameter, tolerating JSON's float64 decoding,
// falling back to a default when absent or malformed.
func IntParam(params map[string]any, name string, fallback int) int {
	v, ok := params[name]
	if !ok {
		return fallback
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return fallback
	}
}

// MissingParams builds the canonical missing-parameter error.
func MissingParams(names ...string) error {
	out := ""
	for i, n := range names {
		if i > 0 {
			out += ", "
		}
		out += n
	}
	return fmt.Errorf("Missing required parameters: %s", out)
}
