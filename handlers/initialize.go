package handlers

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hostbridge/mcp-adapter/internal/jsonrpc"
	"github.com/hostbridge/mcp-adapter/mcp"
	"github.com/hostbridge/mcp-adapter/router"
	"github.com/hostbridge/mcp-adapter/sessions"
)

// SessionIDKey is the result field initialize handlers attach for the HTTP
// transport to promote into the Mcp-Session-Id response header. It never
// reaches the client body.
const SessionIDKey = "_session_id"

// Initialize services the MCP initialization handshake. On the HTTP
// transport it also mints the session that all subsequent requests must
// present.
type Initialize struct {
	Sessions     *sessions.Manager
	ServerInfo   mcp.ImplementationInfo
	Instructions string
	Log          *slog.Logger
}

func (h *Initialize) logger() *slog.Logger {
	if h.Log != nil {
		return h.Log
	}
	return slog.Default()
}

// Handle implements router.HandlerFunc for the initialize method.
func (h *Initialize) Handle(ctx context.Context, req *router.Request) (any, *jsonrpc.Error) {
	params, rpcErr := extractParams(req.Params)
	if rpcErr != nil {
		return nil, rpcErr
	}

	pv, rpcErr := stringParam(params, "protocolVersion")
	if rpcErr != nil {
		return nil, rpcErr
	}
	if !mcp.IsSupportedProtocolVersion(pv) {
		e := jsonrpc.Errorf(jsonrpc.ErrorCodeInvalidParams, "Unsupported protocol version: %s", pv)
		e.Data = map[string]any{"supported": mcp.SupportedProtocolVersions}
		return nil, e
	}

	result := map[string]any{
		"protocolVersion": pv,
		"capabilities":    h.capabilities(),
		"serverInfo":      h.ServerInfo,
	}
	if h.Instructions != "" {
		result["instructions"] = h.Instructions
	}

	if req.Transport == router.TransportHTTP && h.Sessions != nil {
		if req.UserID <= 0 {
			return nil, jsonrpc.Unauthorized("Authentication required to establish a session")
		}
		sid, err := h.Sessions.CreateSession(ctx, req.UserID, req.Params)
		if err != nil {
			if errors.Is(err, sessions.ErrInvalidUser) {
				return nil, jsonrpc.Unauthorized("Unknown user")
			}
			h.logger().ErrorContext(ctx, "session.create.fail", slog.String("err", err.Error()))
			return nil, jsonrpc.InternalError(err)
		}
		result[SessionIDKey] = sid
	}

	return result, nil
}

func (h *Initialize) capabilities() mcp.ServerCapabilities {
	return mcp.ServerCapabilities{
		Logging:     &mcp.LoggingCapability{},
		Prompts:     &mcp.PromptsCapability{},
		Resources:   &mcp.ResourcesCapability{},
		Tools:       &mcp.ToolsCapability{},
		Completions: &mcp.CompletionsCapability{},
	}
}
