package abilities

import (
	"encoding/json"

	"github.com/hostbridge/mcp-adapter/mcp"
	"github.com/invopop/jsonschema"
)

// SchemaFor reflects a JSON Schema from the struct type T and returns it as a
// plain schema map suitable for an ability's input or output declaration.
// Definitions are inlined and the struct is expanded at the schema root so
// the result matches what MCP clients expect of an inputSchema.
func SchemaFor[T any]() mcp.Schema {
	r := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	s := r.Reflect(new(T))
	if s == nil {
		return mcp.Schema{"type": "object"}
	}

	// Round-trip through JSON to flatten the reflector's ordered-map types
	// into the plain map representation used on the wire.
	b, err := json.Marshal(s)
	if err != nil {
		return mcp.Schema{"type": "object"}
	}
	var out mcp.Schema
	if err := json.Unmarshal(b, &out); err != nil {
		return mcp.Schema{"type": "object"}
	}
	delete(out, "$schema")
	return out
}
