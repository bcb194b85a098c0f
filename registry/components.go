// Package registry holds the adapter's component maps: tools keyed by derived
// name, resources keyed by URI, and prompts keyed by name. Components are
// either backed by a discovered ability or, for prompts, by a self-contained
// builder. Registration is forgiving: entries that fail to resolve or
// validate are logged and skipped, never fatal.
package registry

import (
	"context"
	"errors"
	"strings"

	"github.com/hostbridge/mcp-adapter/mcp"
)

// ErrBuilderHasNoAbility is returned when the backing ability of a
// builder-based prompt is requested; builder prompts bypass the ability layer
// entirely.
var ErrBuilderHasNoAbility = errors.New("builder-based prompt has no backing ability")

// Tool is an MCP tool derived from an ability. Its name is the ability name
// with "/" replaced by "-", which keeps it unique within a server and inside
// the tool-name charset.
type Tool struct {
	Name         string
	Title        string
	Description  string
	InputSchema  mcp.Schema
	OutputSchema mcp.Schema
	Annotations  *mcp.ToolAnnotations

	// AbilityName is the backing ability identifier.
	AbilityName string
}

// ToolNameForAbility derives the wire-level tool name from an ability name.
func ToolNameForAbility(abilityName string) string {
	return strings.ReplaceAll(abilityName, "/", "-")
}

// Descriptor returns the sanitized wire representation: schemas and hints
// only, no callbacks.
func (t *Tool) Descriptor() mcp.Tool {
	in := t.InputSchema
	if in == nil {
		in = mcp.Schema{"type": "object"}
	}
	return mcp.Tool{
		Name:         t.Name,
		Title:        t.Title,
		Description:  t.Description,
		InputSchema:  in,
		OutputSchema: t.OutputSchema,
		Annotations:  t.Annotations,
	}
}

// Resource is an MCP resource identified by URI and backed by an ability
// whose execute callback returns the content.
type Resource struct {
	URI         string
	Name        string
	Description string
	MimeType    string

	AbilityName string
}

// Descriptor returns the wire representation of the resource.
func (r *Resource) Descriptor() mcp.Resource {
	return mcp.Resource{
		URI:         r.URI,
		Name:        r.Name,
		Description: r.Description,
		MimeType:    r.MimeType,
	}
}

// PromptDefinition is the static shape of a prompt: identity plus its ordered
// argument list.
type PromptDefinition struct {
	Name        string
	Title       string
	Description string
	Arguments   []mcp.PromptArgument
}

// PromptBuilder is a self-contained prompt implementation. It bypasses the
// ability layer: Configure supplies the definition, Handle renders the
// prompt, and HasPermission gates access directly.
type PromptBuilder interface {
	Configure() (PromptDefinition, error)
	Handle(ctx context.Context, args map[string]any) (any, error)
	HasPermission(ctx context.Context, args map[string]any) (bool, error)
}

// Prompt is an MCP prompt in one of two variants: ability-backed (delegates
// execute/permission to an ability) or builder-backed (dispatches to a
// PromptBuilder directly).
type Prompt struct {
	def         PromptDefinition
	abilityName string
	builder     PromptBuilder
}

// NewAbilityPrompt builds an ability-backed prompt.
func NewAbilityPrompt(def PromptDefinition, abilityName string) *Prompt {
	return &Prompt{def: def, abilityName: abilityName}
}

// NewBuilderPrompt builds a builder-backed prompt from an already-configured
// definition.
func NewBuilderPrompt(def PromptDefinition, b PromptBuilder) *Prompt {
	return &Prompt{def: def, builder: b}
}

// Name returns the prompt identity.
func (p *Prompt) Name() string { return p.def.Name }

// Definition returns the static prompt definition.
func (p *Prompt) Definition() PromptDefinition { return p.def }

// Descriptor returns the wire representation of the prompt.
func (p *Prompt) Descriptor() mcp.Prompt {
	return mcp.Prompt{
		Name:        p.def.Name,
		Title:       p.def.Title,
		Description: p.def.Description,
		Arguments:   p.def.Arguments,
	}
}

// Builder returns the prompt's builder when it is builder-backed.
func (p *Prompt) Builder() (PromptBuilder, bool) {
	return p.builder, p.builder != nil
}

// AbilityName returns the backing ability name, or ErrBuilderHasNoAbility for
// builder-backed prompts.
func (p *Prompt) AbilityName() (string, error) {
	if p.builder != nil {
		return "", ErrBuilderHasNoAbility
	}
	return p.abilityName, nil
}
