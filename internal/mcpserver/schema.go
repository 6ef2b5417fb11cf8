package mcpserver

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// param describes one tool argument.
type param struct {
	name        string
	typ         string
	description string
	required    bool
}

func required(name, typ, description string) param {
	return param{name: name, typ: typ, description: description, required: true}
}

func optional(name, typ, description string) param {
	return param{name: name, typ: typ, description: description}
}

// objectSchema builds an object schema from params, in order.
func objectSchema(params ...param) *jsonschema.Schema {
	schema := &jsonschema.Schema{
		Type:       "object",
		Properties: make(map[string]*jsonschema.Schema, len(params)),
	}

	for _, p := range params {
		schema.Properties[p.name] = &jsonschema.Schema{
			Type:        jsonType(p.typ),
			Description: p.description,
		}

		if p.required {
			schema.Required = append(schema.Required, p.name)
		}
	}

	return schema
}

// jsonType converts a Go type name to a JSON Schema type.
func jsonType(goType string) string {
	switch goType {
	case "int", "int64":
		return "integer"
	case "float64":
		return "number"
	case "bool":
		return "boolean"
	default:
		return "string"
	}
}

// parseArguments decodes the request arguments into T.
func parseArguments[T any](req *mcp.CallToolRequest) (T, error) {
	var args T

	if req == nil || req.Params == nil || len(req.Params.Arguments) == 0 {
		return args, nil
	}

	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		return args, fmt.Errorf("invalid arguments: %w", err)
	}

	return args, nil
}

// textResult creates a CallToolResult with text content.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

// jsonResult encodes v as indented JSON text content.
func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("encode result: %v", err))
	}

	return textResult(string(data))
}

// errorResult creates a CallToolResult indicating an error.
func errorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: message}},
		IsError: true,
	}
}
