package verify

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"formvoice/native/internal/config"
)

// ToolDefinition is the function tool offered to the realtime provider.
type ToolDefinition struct {
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ValidationError lists schema violations in a tool call's arguments.
type ValidationError struct {
	ToolName string
	Errors   []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("tool %s: %s", e.ToolName, strings.Join(e.Errors, "; "))
}

// Tool couples the verify tool definition with its compiled argument schema.
type Tool struct {
	def    ToolDefinition
	schema *gojsonschema.Schema
}

// NewTool builds the verify tool from the configured fields: one string property per
// field, required unless the field opts out.
func NewTool(name string, fields []config.Field) (*Tool, error) {
	properties := make(map[string]any, len(fields))
	required := make([]string, 0, len(fields))
	for _, f := range fields {
		desc := f.Description
		if desc == "" {
			desc = f.Label
		}
		if desc == "" {
			desc = f.Key
		}
		properties[f.Key] = map[string]any{
			"type":        "string",
			"description": desc,
		}
		if f.IsRequired() {
			required = append(required, f.Key)
		}
	}

	params := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		params["required"] = required
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(params))
	if err != nil {
		return nil, fmt.Errorf("compile %s schema: %w", name, err)
	}

	return &Tool{
		def: ToolDefinition{
			Type:        "function",
			Name:        name,
			Description: "Show verification popup for user to confirm their information",
			Parameters:  params,
		},
		schema: schema,
	}, nil
}

// Definition returns the tool as sent in session.update.
func (t *Tool) Definition() ToolDefinition {
	return t.def
}

// JSON renders the definition for display.
func (t *Tool) JSON() ([]byte, error) {
	return json.MarshalIndent(t.def, "", "  ")
}

// ValidateArgs checks decoded call arguments against the parameter schema.
func (t *Tool) ValidateArgs(args map[string]any) error {
	result, err := t.schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if result.Valid() {
		return nil
	}

	var msgs []string
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return &ValidationError{ToolName: t.def.Name, Errors: msgs}
}
