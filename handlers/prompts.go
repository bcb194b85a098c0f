package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/hostbridge/mcp-adapter/internal/jsonrpc"
	"github.com/hostbridge/mcp-adapter/mcp"
	"github.com/hostbridge/mcp-adapter/registry"
	"github.com/hostbridge/mcp-adapter/router"
)

// Prompts services prompts/list and prompts/get. Builder-backed prompts
// dispatch to their builder directly, bypassing the ability layer entirely;
// ability-backed prompts follow the same retrieval chain as tools but report
// failures as protocol errors.
type Prompts struct {
	Registry *registry.Registry
	Log      *slog.Logger
}

func (h *Prompts) logger() *slog.Logger {
	if h.Log != nil {
		return h.Log
	}
	return slog.Default()
}

// List implements router.HandlerFunc for prompts/list.
func (h *Prompts) List(_ context.Context, _ *router.Request) (any, *jsonrpc.Error) {
	prompts := h.Registry.Prompts()

	names := make([]string, 0, len(prompts))
	for name := range prompts {
		names = append(names, name)
	}
	sort.Strings(names)

	descriptors := make([]mcp.Prompt, 0, len(names))
	for _, name := range names {
		descriptors = append(descriptors, prompts[name].Descriptor())
	}

	return map[string]any{
		"prompts": descriptors,
		"_metadata": map[string]any{
			"prompts_count": len(descriptors),
		},
	}, nil
}

// Get implements router.HandlerFunc for prompts/get.
func (h *Prompts) Get(ctx context.Context, req *router.Request) (any, *jsonrpc.Error) {
	params, rpcErr := extractParams(req.Params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	name, rpcErr := stringParam(params, "name")
	if rpcErr != nil {
		return nil, rpcErr
	}

	prompt := h.Registry.Prompt(name)
	if prompt == nil {
		return nil, jsonrpc.PromptNotFound(name)
	}

	args := argumentsParam(params)

	if builder, ok := prompt.Builder(); ok {
		return h.getFromBuilder(ctx, prompt, builder, args)
	}
	return h.getFromAbility(ctx, prompt, args)
}

// getFromBuilder dispatches permission and rendering to the builder with
// panic isolation.
func (h *Prompts) getFromBuilder(ctx context.Context, prompt *registry.Prompt, builder registry.PromptBuilder, args map[string]any) (any, *jsonrpc.Error) {
	allowed, err := func() (allowed bool, err error) {
		defer func() {
			if rec := recover(); rec != nil {
				allowed, err = false, fmt.Errorf("permission check panic: %v", rec)
			}
		}()
		return builder.HasPermission(ctx, args)
	}()
	if err != nil {
		h.logger().WarnContext(ctx, "prompt.permission.err", slog.String("prompt", prompt.Name()), slog.String("err", err.Error()))
		return nil, jsonrpc.PermissionDenied(err.Error())
	}
	if !allowed {
		return nil, jsonrpc.PermissionDenied("Permission denied for prompt: " + prompt.Name())
	}

	result, err := func() (result any, err error) {
		defer func() {
			if rec := recover(); rec != nil {
				result, err = nil, fmt.Errorf("handle panic: %v", rec)
			}
		}()
		return builder.Handle(ctx, args)
	}()
	if err != nil {
		h.logger().WarnContext(ctx, "prompt.handle.err", slog.String("prompt", prompt.Name()), slog.String("err", err.Error()))
		return nil, jsonrpc.Errorf(jsonrpc.ErrorCodeInternalError, "Failed to render prompt: %s", err.Error())
	}

	return promptResult(prompt, result), nil
}

// getFromAbility resolves the backing ability and follows the same
// permission/execute chain as tools.
func (h *Prompts) getFromAbility(ctx context.Context, prompt *registry.Prompt, args map[string]any) (any, *jsonrpc.Error) {
	abilityName, err := prompt.AbilityName()
	if err != nil {
		return nil, jsonrpc.InternalError(err)
	}

	ability, ok := h.Registry.Abilities().Get(abilityName)
	if !ok {
		h.logger().ErrorContext(ctx, "prompt.ability.missing",
			slog.String("prompt", prompt.Name()),
			slog.String("ability", abilityName))
		e := jsonrpc.Errorf(jsonrpc.ErrorCodeInternalError, "Ability not found: %s", abilityName)
		e.Data = map[string]any{"reason": "ability_retrieval_failed"}
		return nil, e
	}

	allowed, permErr := checkPermission(ctx, ability, args)
	if permErr != nil {
		h.logger().WarnContext(ctx, "prompt.permission.err", slog.String("prompt", prompt.Name()), slog.String("err", permErr.Error()))
		return nil, jsonrpc.PermissionDenied(permErr.Error())
	}
	if !allowed {
		return nil, jsonrpc.PermissionDenied("Permission denied for prompt: " + prompt.Name())
	}

	result, execErr := execute(ctx, ability, args)
	if execErr != nil {
		h.logger().WarnContext(ctx, "prompt.execute.err", slog.String("prompt", prompt.Name()), slog.String("err", execErr.Error()))
		return nil, jsonrpc.Errorf(jsonrpc.ErrorCodeInternalError, "Failed to render prompt: %s", execErr.Error())
	}

	return promptResult(prompt, result), nil
}

// promptResult wraps a rendering result into the MCP prompt message list.
func promptResult(prompt *registry.Prompt, result any) mcp.GetPromptResult {
	out := mcp.GetPromptResult{Description: prompt.Definition().Description}

	switch v := result.(type) {
	case mcp.GetPromptResult:
		if v.Description == "" {
			v.Description = out.Description
		}
		return v
	case []mcp.PromptMessage:
		out.Messages = v
		return out
	case mcp.PromptMessage:
		out.Messages = []mcp.PromptMessage{v}
		return out
	case string:
		out.Messages = []mcp.PromptMessage{{
			Role:    mcp.RoleUser,
			Content: mcp.ContentBlock{Type: "text", Text: v},
		}}
		return out
	}

	// Last resort: try decoding a {messages: [...]} shaped value, else
	// serialize the whole result into a single text message.
	if b, err := json.Marshal(result); err == nil {
		var decoded mcp.GetPromptResult
		if err := json.Unmarshal(b, &decoded); err == nil && len(decoded.Messages) > 0 {
			if decoded.Description == "" {
				decoded.Description = out.Description
			}
			return decoded
		}
		out.Messages = []mcp.PromptMessage{{
			Role:    mcp.RoleUser,
			Content: mcp.ContentBlock{Type: "text", Text: string(b)},
		}}
		return out
	}

	out.Messages = []mcp.PromptMessage{{
		Role:    mcp.RoleUser,
		Content: mcp.ContentBlock{Type: "text", Text: fmt.Sprintf("%v", result)},
	}}
	return out
}
