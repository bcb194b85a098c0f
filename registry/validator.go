package registry

import (
	"fmt"
	"regexp"

	"github.com/hostbridge/mcp-adapter/mcp"
)

const maxResourceURILength = 2048

var (
	componentNameRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,255}$`)
	promptArgNameRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	resourceURIRe   = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://\S+$`)
)

// Validator gates component insertion into the registry. The strict validator
// enforces the protocol's shape rules; Nop accepts everything and exists for
// hosts that validate upstream.
type Validator interface {
	ValidateTool(t *Tool) error
	ValidateResource(r *Resource) error
	ValidateResourceContents(c *mcp.ResourceContents) error
	ValidatePrompt(p *Prompt) error
}

// Strict enforces name charsets, URI shape, and the resource text/blob
// exclusivity invariant.
type Strict struct{}

var _ Validator = Strict{}

func (Strict) ValidateTool(t *Tool) error {
	if !componentNameRe.MatchString(t.Name) {
		return fmt.Errorf("invalid tool name %q: must match %s", t.Name, componentNameRe.String())
	}
	if t.InputSchema != nil {
		if typ, ok := t.InputSchema["type"].(string); ok && typ != "object" {
			return fmt.Errorf("tool %q input schema must be an object schema, got %q", t.Name, typ)
		}
	}
	return nil
}

func (Strict) ValidateResource(r *Resource) error {
	if len(r.URI) > maxResourceURILength {
		return fmt.Errorf("resource URI exceeds %d characters", maxResourceURILength)
	}
	if !resourceURIRe.MatchString(r.URI) {
		return fmt.Errorf("invalid resource URI %q: must match scheme://path", r.URI)
	}
	return nil
}

// ValidateResourceContents enforces that exactly one of text and blob is set.
func (Strict) ValidateResourceContents(c *mcp.ResourceContents) error {
	hasText := c.Text != ""
	hasBlob := c.Blob != ""
	if hasText && hasBlob {
		return fmt.Errorf("resource %s cannot have both text and blob content", c.URI)
	}
	if !hasText && !hasBlob {
		return fmt.Errorf("resource %s must have either text or blob content", c.URI)
	}
	return nil
}

func (Strict) ValidatePrompt(p *Prompt) error {
	def := p.Definition()
	if !componentNameRe.MatchString(def.Name) {
		return fmt.Errorf("invalid prompt name %q: must match %s", def.Name, componentNameRe.String())
	}
	for _, arg := range def.Arguments {
		if !promptArgNameRe.MatchString(arg.Name) {
			return fmt.Errorf("invalid prompt argument name %q: must match %s", arg.Name, promptArgNameRe.String())
		}
	}
	return nil
}

// Nop accepts every component without inspection.
type Nop struct{}

var _ Validator = Nop{}

func (Nop) ValidateTool(*Tool) error { return nil }

func (Nop) ValidateResource(*Resource) error { return nil }

func (Nop) ValidateResourceContents(*mcp.ResourceContents) error { return nil }

func (Nop) ValidatePrompt(*Prompt) error { return nil }
