// Package handlers implements the MCP method families: initialize, tools,
// resources, prompts, and the small system surface (ping, logging level,
// completion, roots). Handlers consume the component registry and session
// manager and never let an ability callback failure escape as a panic or a
// raw Go error: every outcome is a result payload or a wire-level error
// object.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hostbridge/mcp-adapter/abilities"
	"github.com/hostbridge/mcp-adapter/internal/jsonrpc"
)

// extractParams accepts either a flat params object or an envelope of the
// form {"params": {...}} and returns the effective parameter map. A missing
// params payload yields an empty map; a non-object payload is an invalid
// params error.
func extractParams(raw json.RawMessage) (map[string]any, *jsonrpc.Error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, jsonrpc.NewError(jsonrpc.ErrorCodeInvalidParams, "Parameters must be an object")
	}
	if inner, ok := m["params"].(map[string]any); ok {
		return inner, nil
	}
	return m, nil
}

// stringParam extracts a required non-empty string field.
func stringParam(params map[string]any, key string) (string, *jsonrpc.Error) {
	v, ok := params[key]
	if !ok {
		return "", jsonrpc.MissingParameter(key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", jsonrpc.MissingParameter(key)
	}
	return s, nil
}

// argumentsParam extracts the optional "arguments" object.
func argumentsParam(params map[string]any) map[string]any {
	if args, ok := params["arguments"].(map[string]any); ok {
		return args
	}
	return map[string]any{}
}

// checkPermission runs an ability permission callback with panic isolation.
func checkPermission(ctx context.Context, a abilities.Ability, args map[string]any) (allowed bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			allowed = false
			err = fmt.Errorf("permission check panic: %v", rec)
		}
	}()
	return a.CheckPermission(ctx, args)
}

// execute runs an ability execute callback with panic isolation.
func execute(ctx context.Context, a abilities.Ability, args map[string]any) (result any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			result = nil
			err = fmt.Errorf("execute panic: %v", rec)
		}
	}()
	return a.Execute(ctx, args)
}
