package registry_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hostbridge/mcp-adapter/abilities"
	"github.com/hostbridge/mcp-adapter/mcp"
	"github.com/hostbridge/mcp-adapter/registry"
)

func publicAbility(name string) *abilities.Definition {
	return &abilities.Definition{
		AbilityName:        name,
		AbilityLabel:       name,
		AbilityDescription: "test ability",
		Input:              mcp.Schema{"type": "object"},
		Metadata:           abilities.Meta{Public: true},
		ExecuteFunc: func(context.Context, map[string]any) (any, error) {
			return "ok", nil
		},
	}
}

func newAbilityRegistry(t *testing.T, defs ...*abilities.Definition) *abilities.Registry {
	t.Helper()
	reg := abilities.NewRegistry()
	for _, d := range defs {
		if err := reg.Register(d); err != nil {
			t.Fatalf("register ability %s: %v", d.AbilityName, err)
		}
	}
	return reg
}

func TestRegisterToolsDerivesNames(t *testing.T) {
	ctx := context.Background()
	ab := newAbilityRegistry(t, publicAbility("content/create-post"))
	reg := registry.New(ab)

	reg.RegisterTools(ctx, "content/create-post")

	tool := reg.Tool("content-create-post")
	if tool == nil {
		t.Fatal("expected tool registered under derived name")
	}
	if tool.AbilityName != "content/create-post" {
		t.Errorf("AbilityName = %q", tool.AbilityName)
	}
	if got := len(reg.Tools()); got != 1 {
		t.Errorf("Tools() len = %d, want 1", got)
	}
}

func TestRegisterToolsSkipsMissingAndPrivate(t *testing.T) {
	ctx := context.Background()
	private := publicAbility("hidden/thing")
	private.Metadata.Public = false
	ab := newAbilityRegistry(t, private)
	reg := registry.New(ab)

	reg.RegisterTools(ctx, "hidden/thing", "missing/one")

	if got := len(reg.Tools()); got != 0 {
		t.Fatalf("expected no tools registered, got %d", got)
	}
}

func TestRegisterResourcesRequiresURI(t *testing.T) {
	ctx := context.Background()
	withURI := publicAbility("docs/readme")
	withURI.Metadata.Type = abilities.TypeResource
	withURI.Metadata.URI = "file://docs/readme.md"
	withURI.Metadata.MimeType = "text/markdown"

	withoutURI := publicAbility("docs/orphan")
	withoutURI.Metadata.Type = abilities.TypeResource

	ab := newAbilityRegistry(t, withURI, withoutURI)
	reg := registry.New(ab)

	reg.RegisterResources(ctx, "docs/readme", "docs/orphan")

	if reg.Resource("file://docs/readme.md") == nil {
		t.Error("expected resource with URI to register")
	}
	if got := len(reg.Resources()); got != 1 {
		t.Errorf("Resources() len = %d, want 1", got)
	}
}

func TestStrictValidatorNameCharset(t *testing.T) {
	ctx := context.Background()
	reg := registry.New(abilities.NewRegistry())

	bad := &registry.Tool{Name: "has spaces!", AbilityName: "x/y"}
	if err := reg.AddTool(ctx, bad); err == nil {
		t.Error("expected charset violation to be rejected")
	}
	good := &registry.Tool{Name: "fine_name-1", AbilityName: "x/y"}
	if err := reg.AddTool(ctx, good); err != nil {
		t.Errorf("valid tool rejected: %v", err)
	}

	long := &registry.Tool{Name: strings.Repeat("a", 256), AbilityName: "x/y"}
	if err := reg.AddTool(ctx, long); err == nil {
		t.Error("expected over-long name to be rejected")
	}
}

func TestStrictValidatorResourceURI(t *testing.T) {
	ctx := context.Background()
	reg := registry.New(abilities.NewRegistry())

	if err := reg.AddResource(ctx, &registry.Resource{URI: "not a uri", AbilityName: "x/y"}); err == nil {
		t.Error("expected malformed URI to be rejected")
	}
	if err := reg.AddResource(ctx, &registry.Resource{URI: "file://" + strings.Repeat("a", 2048), AbilityName: "x/y"}); err == nil {
		t.Error("expected over-long URI to be rejected")
	}
	if err := reg.AddResource(ctx, &registry.Resource{URI: "custom+scheme://ok/path", AbilityName: "x/y"}); err != nil {
		t.Errorf("valid URI rejected: %v", err)
	}
}

func TestValidateResourceContentsXOR(t *testing.T) {
	v := registry.Strict{}

	both := &mcp.ResourceContents{URI: "file://x", Text: "t", Blob: "b"}
	err := v.ValidateResourceContents(both)
	if err == nil || !strings.Contains(err.Error(), "cannot have both text and blob content") {
		t.Errorf("both set: err = %v", err)
	}

	neither := &mcp.ResourceContents{URI: "file://x"}
	err = v.ValidateResourceContents(neither)
	if err == nil || !strings.Contains(err.Error(), "must have either text or blob content") {
		t.Errorf("neither set: err = %v", err)
	}

	if err := v.ValidateResourceContents(&mcp.ResourceContents{URI: "file://x", Text: "t"}); err != nil {
		t.Errorf("text only rejected: %v", err)
	}
	if err := v.ValidateResourceContents(&mcp.ResourceContents{URI: "file://x", Blob: "b"}); err != nil {
		t.Errorf("blob only rejected: %v", err)
	}
}

type testBuilder struct {
	def          registry.PromptDefinition
	configureErr error
	panics       bool
}

func (b *testBuilder) Configure() (registry.PromptDefinition, error) {
	if b.panics {
		panic("configure blew up")
	}
	return b.def, b.configureErr
}

func (b *testBuilder) Handle(context.Context, map[string]any) (any, error) {
	return "rendered", nil
}

func (b *testBuilder) HasPermission(context.Context, map[string]any) (bool, error) {
	return true, nil
}

func TestRegisterPromptsMixedEntries(t *testing.T) {
	ctx := context.Background()
	ab := newAbilityRegistry(t, publicAbility("prompts/greet"))
	reg := registry.New(ab)

	ok := &testBuilder{def: registry.PromptDefinition{Name: "built"}}
	failing := &testBuilder{configureErr: errors.New("nope")}
	panicking := &testBuilder{panics: true}

	reg.RegisterPrompts(ctx, "prompts/greet", ok, failing, panicking, 42, nil)

	if reg.Prompt("prompts-greet") == nil {
		t.Error("ability prompt not registered")
	}
	if reg.Prompt("built") == nil {
		t.Error("builder prompt not registered")
	}
	if got := len(reg.Prompts()); got != 2 {
		t.Errorf("Prompts() len = %d, want 2", got)
	}
}

func TestBuilderPromptHasNoAbility(t *testing.T) {
	p := registry.NewBuilderPrompt(registry.PromptDefinition{Name: "b"}, &testBuilder{})
	if _, err := p.AbilityName(); !errors.Is(err, registry.ErrBuilderHasNoAbility) {
		t.Errorf("AbilityName err = %v, want ErrBuilderHasNoAbility", err)
	}
	if _, ok := p.Builder(); !ok {
		t.Error("Builder() should report builder-backed")
	}

	ap := registry.NewAbilityPrompt(registry.PromptDefinition{Name: "a"}, "x/y")
	name, err := ap.AbilityName()
	if err != nil || name != "x/y" {
		t.Errorf("ability prompt AbilityName = %q, %v", name, err)
	}
}

func TestGettersReturnNilForUnknown(t *testing.T) {
	reg := registry.New(abilities.NewRegistry())
	if reg.Tool("nope") != nil {
		t.Error("Tool should be nil for unknown name")
	}
	if reg.Resource("file://nope") != nil {
		t.Error("Resource should be nil for unknown uri")
	}
	if reg.Prompt("nope") != nil {
		t.Error("Prompt should be nil for unknown name")
	}
}

func TestRemoveResourceByAbility(t *testing.T) {
	ctx := context.Background()
	res := publicAbility("docs/readme")
	res.Metadata.Type = abilities.TypeResource
	res.Metadata.URI = "file://docs/readme.md"
	res.Metadata.MimeType = "text/markdown"
	ab := newAbilityRegistry(t, res)
	reg := registry.New(ab)
	reg.RegisterResources(ctx, "docs/readme")

	if reg.Resource("file://docs/readme.md") == nil {
		t.Fatal("resource not registered")
	}
	if !reg.RemoveResourceByAbility(ctx, "docs/readme") {
		t.Fatal("RemoveResourceByAbility should report removal")
	}
	if reg.Resource("file://docs/readme.md") != nil {
		t.Error("resource still present after removal")
	}
	if reg.RemoveResourceByAbility(ctx, "docs/readme") {
		t.Error("repeat removal should report false")
	}
}
