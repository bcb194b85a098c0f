// Package abilities defines the capability abstraction consumed by the MCP
// adapter. An ability is a named unit of host functionality with JSON Schema
// input/output declarations, an execute function, and a permission check. The
// adapter never owns abilities; it consumes them through the Registry and
// exposes the public ones as MCP tools, resources, or prompts.
package abilities

import (
	"context"
	"fmt"

	"github.com/hostbridge/mcp-adapter/mcp"
)

// ComponentType selects which MCP component kind an ability is exposed as.
type ComponentType string

const (
	// TypeTool is the default exposure for an ability.
	TypeTool ComponentType = "tool"
	// TypeResource exposes the ability as a readable resource; Meta.URI is
	// required.
	TypeResource ComponentType = "resource"
	// TypePrompt exposes the ability as a prompt.
	TypePrompt ComponentType = "prompt"
)

// Meta carries the adapter-facing metadata of an ability.
type Meta struct {
	// Public must be true for the ability to be exposed over MCP.
	Public bool
	// Type selects the component kind; the zero value means tool.
	Type ComponentType
	// URI identifies the resource for resource-typed abilities.
	URI string
	// MimeType is the declared media type for resource-typed abilities.
	MimeType string
	// Annotations are behavior hints surfaced on tool descriptors.
	Annotations *mcp.ToolAnnotations
	// Extra holds any additional host metadata, passed through untouched.
	Extra map[string]any
}

// ComponentType returns the effective component kind, defaulting to tool.
func (m Meta) ComponentType() ComponentType {
	if m.Type == "" {
		return TypeTool
	}
	return m.Type
}

// Ability is a host capability: identity, schemas, an execute function, and a
// permission check. Execute and CheckPermission report failures as ordinary
// errors; an *Error return is treated by tool handlers as an in-band failure
// rather than a protocol error.
type Ability interface {
	Name() string
	Label() string
	Description() string
	InputSchema() mcp.Schema
	OutputSchema() mcp.Schema
	Meta() Meta

	Execute(ctx context.Context, params map[string]any) (any, error)
	CheckPermission(ctx context.Context, params map[string]any) (bool, error)
}

// Error is a structured ability-level failure, the analogue of a host error
// object with a machine code and human message.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError builds an ability-level error.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// ImageResult is returned from Execute when the ability produces an image
// payload. Tool handlers encode Data as base64 image content.
type ImageResult struct {
	Data     []byte
	MimeType string
}

// Definition is a struct-literal Ability implementation for abilities
// authored in Go.
type Definition struct {
	AbilityName        string
	AbilityLabel       string
	AbilityDescription string
	Input              mcp.Schema
	Output             mcp.Schema
	Metadata           Meta

	ExecuteFunc    func(ctx context.Context, params map[string]any) (any, error)
	PermissionFunc func(ctx context.Context, params map[string]any) (bool, error)
}

var _ Ability = (*Definition)(nil)

func (d *Definition) Name() string            { return d.AbilityName }
func (d *Definition) Label() string           { return d.AbilityLabel }
func (d *Definition) Description() string     { return d.AbilityDescription }
func (d *Definition) InputSchema() mcp.Schema { return d.Input }
func (d *Definition) OutputSchema() mcp.Schema {
	return d.Output
}
func (d *Definition) Meta() Meta { return d.Metadata }

func (d *Definition) Execute(ctx context.Context, params map[string]any) (any, error) {
	if d.ExecuteFunc == nil {
		return nil, NewError("not_implemented", fmt.Sprintf("ability %s has no execute callback", d.AbilityName))
	}
	return d.ExecuteFunc(ctx, params)
}

// CheckPermission defaults to allow when no permission callback is set.
func (d *Definition) CheckPermission(ctx context.Context, params map[string]any) (bool, error) {
	if d.PermissionFunc == nil {
		return true, nil
	}
	return d.PermissionFunc(ctx, params)
}
