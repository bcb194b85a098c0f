package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"sort"

	"github.com/hostbridge/mcp-adapter/internal/jsonrpc"
	"github.com/hostbridge/mcp-adapter/mcp"
	"github.com/hostbridge/mcp-adapter/registry"
	"github.com/hostbridge/mcp-adapter/router"
)

// Resources services resources/list and resources/read. Unlike tools,
// resources have no in-band error convention: permission and execute
// failures surface as protocol-level errors.
type Resources struct {
	Registry *registry.Registry
	Log      *slog.Logger
}

func (h *Resources) logger() *slog.Logger {
	if h.Log != nil {
		return h.Log
	}
	return slog.Default()
}

// List implements router.HandlerFunc for resources/list.
func (h *Resources) List(_ context.Context, _ *router.Request) (any, *jsonrpc.Error) {
	resources := h.Registry.Resources()

	uris := make([]string, 0, len(resources))
	for uri := range resources {
		uris = append(uris, uri)
	}
	sort.Strings(uris)

	descriptors := make([]mcp.Resource, 0, len(uris))
	for _, uri := range uris {
		descriptors = append(descriptors, resources[uri].Descriptor())
	}

	return map[string]any{
		"resources": descriptors,
		"_metadata": map[string]any{
			"resources_count": len(descriptors),
		},
	}, nil
}

// Read implements router.HandlerFunc for resources/read.
func (h *Resources) Read(ctx context.Context, req *router.Request) (any, *jsonrpc.Error) {
	params, rpcErr := extractParams(req.Params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	uri, rpcErr := stringParam(params, "uri")
	if rpcErr != nil {
		return nil, rpcErr
	}

	res := h.Registry.Resource(uri)
	if res == nil {
		return nil, jsonrpc.ResourceNotFound(uri)
	}

	ability, ok := h.Registry.Abilities().Get(res.AbilityName)
	if !ok {
		h.logger().ErrorContext(ctx, "resource.ability.missing",
			slog.String("uri", uri),
			slog.String("ability", res.AbilityName))
		e := jsonrpc.Errorf(jsonrpc.ErrorCodeInternalError, "Ability not found: %s", res.AbilityName)
		e.Data = map[string]any{"reason": "ability_retrieval_failed"}
		return nil, e
	}

	args := map[string]any{"uri": uri}

	allowed, err := checkPermission(ctx, ability, args)
	if err != nil {
		h.logger().WarnContext(ctx, "resource.permission.err", slog.String("uri", uri), slog.String("err", err.Error()))
		return nil, jsonrpc.PermissionDenied(err.Error())
	}
	if !allowed {
		return nil, jsonrpc.PermissionDenied("Permission denied for resource: " + uri)
	}

	result, err := execute(ctx, ability, args)
	if err != nil {
		h.logger().WarnContext(ctx, "resource.execute.err", slog.String("uri", uri), slog.String("err", err.Error()))
		return nil, jsonrpc.Errorf(jsonrpc.ErrorCodeInternalError, "Failed to read resource: %s", err.Error())
	}

	contents := resourceContents(res, result)
	for i := range contents {
		if err := h.Registry.Validator().ValidateResourceContents(&contents[i]); err != nil {
			h.logger().ErrorContext(ctx, "resource.contents.invalid", slog.String("uri", uri), slog.String("err", err.Error()))
			return nil, jsonrpc.Errorf(jsonrpc.ErrorCodeInternalError, "Invalid resource contents: %s", err.Error())
		}
	}

	return mcp.ReadResourceResult{Contents: contents}, nil
}

// resourceContents normalizes an ability execute result into resource
// contents, defaulting URI and MIME type from the descriptor.
func resourceContents(res *registry.Resource, result any) []mcp.ResourceContents {
	fill := func(c mcp.ResourceContents) mcp.ResourceContents {
		if c.URI == "" {
			c.URI = res.URI
		}
		if c.MimeType == "" {
			c.MimeType = res.MimeType
		}
		return c
	}

	switch v := result.(type) {
	case mcp.ResourceContents:
		return []mcp.ResourceContents{fill(v)}
	case *mcp.ResourceContents:
		return []mcp.ResourceContents{fill(*v)}
	case []mcp.ResourceContents:
		out := make([]mcp.ResourceContents, len(v))
		for i, c := range v {
			out[i] = fill(c)
		}
		return out
	case string:
		return []mcp.ResourceContents{fill(mcp.ResourceContents{Text: v})}
	case []byte:
		return []mcp.ResourceContents{fill(mcp.ResourceContents{Blob: base64.StdEncoding.EncodeToString(v)})}
	}

	b, err := json.Marshal(result)
	if err != nil {
		return []mcp.ResourceContents{fill(mcp.ResourceContents{})}
	}
	return []mcp.ResourceContents{fill(mcp.ResourceContents{Text: string(b)})}
}
