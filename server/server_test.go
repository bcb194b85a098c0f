package server_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/hostbridge/mcp-adapter/abilities"
	"github.com/hostbridge/mcp-adapter/internal/jsonrpc"
	"github.com/hostbridge/mcp-adapter/mcp"
	"github.com/hostbridge/mcp-adapter/router"
	"github.com/hostbridge/mcp-adapter/server"
)

func TestNewBridgesPublicAbilities(t *testing.T) {
	reg := abilities.NewRegistry()
	defs := []*abilities.Definition{
		{
			AbilityName:  "demo/echo",
			AbilityLabel: "Echo",
			Metadata:     abilities.Meta{Public: true},
			ExecuteFunc: func(_ context.Context, _ map[string]any) (any, error) {
				return "ok", nil
			},
		},
		{
			AbilityName:  "fs/readme-md",
			AbilityLabel: "readme.md",
			Metadata: abilities.Meta{
				Public:   true,
				Type:     abilities.TypeResource,
				URI:      "file://docs/readme.md",
				MimeType: "text/markdown",
			},
			ExecuteFunc: func(_ context.Context, _ map[string]any) (any, error) {
				return mcp.ResourceContents{URI: "file://docs/readme.md", Text: "hello"}, nil
			},
		},
		{
			AbilityName:  "demo/greeting",
			AbilityLabel: "Greeting",
			Metadata:     abilities.Meta{Public: true, Type: abilities.TypePrompt},
			ExecuteFunc: func(_ context.Context, _ map[string]any) (any, error) {
				return "hi", nil
			},
		},
		{
			AbilityName: "demo/hidden",
			Metadata:    abilities.Meta{Type: abilities.TypeResource, URI: "file://docs/hidden.md"},
		},
	}
	for _, d := range defs {
		if err := reg.Register(d); err != nil {
			t.Fatalf("register %s: %v", d.AbilityName, err)
		}
	}

	srv := server.New(server.WithAbilities(reg))

	if srv.Registry.Tool("demo-echo") == nil {
		t.Error("public tool ability not bridged into the component registry")
	}
	if srv.Registry.Resource("file://docs/readme.md") == nil {
		t.Error("public resource ability not bridged into the component registry")
	}
	if srv.Registry.Prompt("demo-greeting") == nil {
		t.Error("public prompt ability not bridged into the component registry")
	}
	if srv.Registry.Resource("file://docs/hidden.md") != nil {
		t.Error("private ability must not be bridged")
	}
}

func TestResourcesListSurfacesBridgedAbilities(t *testing.T) {
	reg := abilities.NewRegistry()
	err := reg.Register(&abilities.Definition{
		AbilityName:  "fs/guide-md",
		AbilityLabel: "guide.md",
		Metadata: abilities.Meta{
			Public:   true,
			Type:     abilities.TypeResource,
			URI:      "file://docs/guide.md",
			MimeType: "text/markdown",
		},
		ExecuteFunc: func(_ context.Context, _ map[string]any) (any, error) {
			return mcp.ResourceContents{URI: "file://docs/guide.md", Text: "guide"}, nil
		},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	srv := server.New(server.WithAbilities(reg))

	resp := srv.Router.Route(context.Background(), &router.Request{
		Method:    "resources/list",
		ID:        jsonrpc.NewRequestID(1),
		Transport: router.TransportSTDIO,
		UserID:    1,
	})
	if resp == nil || resp.Error != nil {
		t.Fatalf("resources/list response = %+v", resp)
	}

	var result struct {
		Resources []struct {
			URI string `json:"uri"`
		} `json:"resources"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if len(result.Resources) != 1 || result.Resources[0].URI != "file://docs/guide.md" {
		t.Errorf("resources = %+v, want the bridged file resource", result.Resources)
	}
}
