// Package tool stores tool definitions for one orchestration run and executes
// model-issued tool calls with schema validation and call bookkeeping.
package tool

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
)

// Tool describes a named, schema-validated function the model may invoke.
type Tool interface {
	Name() string
	Description() string
	Schema() *jsonschema.Schema
	Execute(ctx context.Context, args map[string]any) (any, error)
}

// Func adapts a plain function into a Tool. This is the common registration
// path for run-scoped tools.
type Func struct {
	ToolName   string
	ToolDesc   string
	ToolSchema *jsonschema.Schema
	Fn         func(ctx context.Context, args map[string]any) (any, error)
}

func (f *Func) Name() string { return f.ToolName }

func (f *Func) Description() string { return f.ToolDesc }

func (f *Func) Schema() *jsonschema.Schema { return f.ToolSchema }

func (f *Func) Execute(ctx context.Context, args map[string]any) (any, error) {
	return f.Fn(ctx, args)
}

// Definition is the provider-facing view of a registered tool, shaped as an
// OpenAI style function block.
type Definition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Wire renders the definition in the provider call format.
func (d Definition) Wire() map[string]any {
	fn := map[string]any{"name": d.Name}
	if strings.TrimSpace(d.Description) != "" {
		fn["description"] = d.Description
	}
	if len(d.Parameters) > 0 {
		fn["parameters"] = d.Parameters
	}
	return map[string]any{"type": "function", "function": fn}
}

// SchemaToMap converts a JSON schema into the loose map shape providers accept.
func SchemaToMap(schema *jsonschema.Schema) map[string]any {
	if schema == nil {
		return nil
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

// ObjectSchema builds the common object schema from property definitions.
func ObjectSchema(props map[string]*jsonschema.Schema, required ...string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "object", Properties: props, Required: required}
}

// StringProperty builds a string-typed property schema with a description.
func StringProperty(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Description: desc}
}
