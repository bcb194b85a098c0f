package handlers

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hostbridge/mcp-adapter/internal/jsonrpc"
	"github.com/hostbridge/mcp-adapter/mcp"
	"github.com/hostbridge/mcp-adapter/router"
)

// System services the small protocol surface that needs no component
// registry: ping, logging/setLevel, completion/complete, and roots/list.
type System struct {
	Log *slog.Logger

	mu    sync.RWMutex
	level mcp.LoggingLevel
}

func (h *System) logger() *slog.Logger {
	if h.Log != nil {
		return h.Log
	}
	return slog.Default()
}

// Ping implements router.HandlerFunc for ping. Always succeeds with an
// empty result.
func (h *System) Ping(_ context.Context, _ *router.Request) (any, *jsonrpc.Error) {
	return map[string]any{}, nil
}

// SetLevel implements router.HandlerFunc for logging/setLevel.
func (h *System) SetLevel(ctx context.Context, req *router.Request) (any, *jsonrpc.Error) {
	params, rpcErr := extractParams(req.Params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	raw, rpcErr := stringParam(params, "level")
	if rpcErr != nil {
		return nil, rpcErr
	}

	level := mcp.LoggingLevel(raw)
	if !mcp.IsValidLoggingLevel(level) {
		return nil, jsonrpc.Errorf(jsonrpc.ErrorCodeInvalidParams, "Invalid logging level: %s", raw)
	}

	h.mu.Lock()
	h.level = level
	h.mu.Unlock()

	h.logger().InfoContext(ctx, "logging.level.set", slog.String("level", raw))
	return map[string]any{}, nil
}

// Level returns the last level set via logging/setLevel, or empty when the
// client never set one.
func (h *System) Level() mcp.LoggingLevel {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.level
}

// Complete implements router.HandlerFunc for completion/complete. Completion
// is advertised but produces no suggestions; the result is an empty object.
func (h *System) Complete(_ context.Context, _ *router.Request) (any, *jsonrpc.Error) {
	return map[string]any{}, nil
}

// ListRoots implements router.HandlerFunc for roots/list.
func (h *System) ListRoots(_ context.Context, _ *router.Request) (any, *jsonrpc.Error) {
	return map[string]any{"roots": []mcp.Root{}}, nil
}
