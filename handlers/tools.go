package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/hostbridge/mcp-adapter/abilities"
	"github.com/hostbridge/mcp-adapter/internal/jsonrpc"
	"github.com/hostbridge/mcp-adapter/mcp"
	"github.com/hostbridge/mcp-adapter/registry"
	"github.com/hostbridge/mcp-adapter/router"
)

// Tools services tools/list and tools/call.
//
// Failures that originate inside a tool (permission denial, execute errors,
// ability-level failures) are reported in-band as {isError:true} results per
// MCP convention. Only failures to locate the tool or its backing ability are
// protocol errors.
type Tools struct {
	Registry *registry.Registry
	Log      *slog.Logger
}

func (h *Tools) logger() *slog.Logger {
	if h.Log != nil {
		return h.Log
	}
	return slog.Default()
}

// List implements router.HandlerFunc for tools/list.
func (h *Tools) List(_ context.Context, _ *router.Request) (any, *jsonrpc.Error) {
	tools := h.Registry.Tools()

	names := make([]string, 0, len(tools))
	for name := range tools {
		names = append(names, name)
	}
	sort.Strings(names)

	descriptors := make([]mcp.Tool, 0, len(names))
	for _, name := range names {
		descriptors = append(descriptors, tools[name].Descriptor())
	}

	return map[string]any{
		"tools": descriptors,
		"_metadata": map[string]any{
			"tools_count": len(descriptors),
		},
	}, nil
}

// Call implements router.HandlerFunc for tools/call.
func (h *Tools) Call(ctx context.Context, req *router.Request) (any, *jsonrpc.Error) {
	params, rpcErr := extractParams(req.Params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	name, rpcErr := stringParam(params, "name")
	if rpcErr != nil {
		return nil, rpcErr
	}

	tool := h.Registry.Tool(name)
	if tool == nil {
		return nil, jsonrpc.ToolNotFound(name)
	}

	ability, ok := h.Registry.Abilities().Get(tool.AbilityName)
	if !ok {
		h.logger().ErrorContext(ctx, "tool.ability.missing",
			slog.String("tool", name),
			slog.String("ability", tool.AbilityName))
		e := jsonrpc.Errorf(jsonrpc.ErrorCodeInternalError, "Ability not found: %s", tool.AbilityName)
		e.Data = map[string]any{"reason": "ability_retrieval_failed"}
		return nil, e
	}

	args := argumentsParam(params)

	allowed, err := checkPermission(ctx, ability, args)
	if err != nil {
		h.logger().WarnContext(ctx, "tool.permission.err", slog.String("tool", name), slog.String("err", err.Error()))
		return toolError(fmt.Sprintf("Permission check failed: %s", err.Error())), nil
	}
	if !allowed {
		return toolError(fmt.Sprintf("Permission denied for tool: %s", name)), nil
	}

	result, err := execute(ctx, ability, args)
	if err != nil {
		h.logger().WarnContext(ctx, "tool.execute.err", slog.String("tool", name), slog.String("err", err.Error()))
		return toolError(err.Error()), nil
	}

	return mcp.CallToolResult{Content: toolContent(result)}, nil
}

// toolError builds the in-band failure result.
func toolError(msg string) mcp.CallToolResult {
	return mcp.CallToolResult{
		IsError: true,
		Content: []mcp.ContentBlock{{Type: "text", Text: msg}},
	}
}

// toolContent wraps an ability execute result into MCP content blocks. Image
// payloads (typed or signaled via a type:"image" map) become base64 image
// blocks; strings pass through as text; everything else is JSON-encoded.
func toolContent(result any) []mcp.ContentBlock {
	switch v := result.(type) {
	case nil:
		return []mcp.ContentBlock{{Type: "text", Text: ""}}
	case abilities.ImageResult:
		return []mcp.ContentBlock{{
			Type:     "image",
			Data:     base64.StdEncoding.EncodeToString(v.Data),
			MimeType: v.MimeType,
		}}
	case *abilities.ImageResult:
		return []mcp.ContentBlock{{
			Type:     "image",
			Data:     base64.StdEncoding.EncodeToString(v.Data),
			MimeType: v.MimeType,
		}}
	case string:
		return []mcp.ContentBlock{{Type: "text", Text: v}}
	case mcp.ContentBlock:
		return []mcp.ContentBlock{v}
	case []mcp.ContentBlock:
		return v
	case map[string]any:
		if t, _ := v["type"].(string); t == "image" {
			data, _ := v["data"].(string)
			mime, _ := v["mimeType"].(string)
			return []mcp.ContentBlock{{Type: "image", Data: data, MimeType: mime}}
		}
	}

	b, err := json.Marshal(result)
	if err != nil {
		return []mcp.ContentBlock{{Type: "text", Text: fmt.Sprintf("%v", result)}}
	}
	return []mcp.ContentBlock{{Type: "text", Text: string(b)}}
}
