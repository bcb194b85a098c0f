package registry

import (
	"fmt"
	"sort"

	"github.com/hostbridge/mcp-adapter/mcp"
)

func panicError(rec any) error {
	if err, ok := rec.(error); ok {
		return err
	}
	return fmt.Errorf("panic: %v", rec)
}

// promptArgumentsFromSchema derives the ordered prompt argument list from an
// ability's input schema. Only the top-level object properties are
// considered; nested structure is not representable as prompt arguments.
func promptArgumentsFromSchema(schema mcp.Schema) []mcp.PromptArgument {
	if schema == nil {
		return nil
	}
	props, ok := schema["properties"].(map[string]any)
	if !ok {
		return nil
	}

	required := map[string]bool{}
	if raw, ok := schema["required"].([]any); ok {
		for _, v := range raw {
			if s, ok := v.(string); ok {
				required[s] = true
			}
		}
	}

	// Preserve a stable order: the JSON map has no order, so sort by name.
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	args := make([]mcp.PromptArgument, 0, len(names))
	for _, name := range names {
		arg := mcp.PromptArgument{Name: name, Required: required[name]}
		if prop, ok := props[name].(map[string]any); ok {
			if desc, ok := prop["description"].(string); ok {
				arg.Description = desc
			}
		}
		args = append(args, arg)
	}
	return args
}
