package verify

import (
	"encoding/json"
	"errors"
	"testing"

	"formvoice/native/internal/config"
)

func TestNewTool_Definition(t *testing.T) {
	optional := false
	fields := []config.Field{
		{Key: "name", Label: "Full name"},
		{Key: "notes", Description: "Anything else", Required: &optional},
	}
	tool, err := NewTool("verify_information", fields)
	if err != nil {
		t.Fatalf("NewTool() error = %v", err)
	}

	def := tool.Definition()
	if def.Type != "function" || def.Name != "verify_information" {
		t.Errorf("definition = %+v", def)
	}
	props := def.Parameters["properties"].(map[string]any)
	if len(props) != 2 {
		t.Fatalf("properties = %v", props)
	}
	if desc := props["name"].(map[string]any)["description"]; desc != "Full name" {
		t.Errorf("name description = %v", desc)
	}
	required := def.Parameters["required"].([]string)
	if len(required) != 1 || required[0] != "name" {
		t.Errorf("required = %v", required)
	}

	raw, err := tool.JSON()
	if err != nil {
		t.Fatalf("JSON() error = %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("JSON() is invalid: %v", err)
	}
	if decoded["name"] != "verify_information" {
		t.Errorf("decoded name = %v", decoded["name"])
	}
}

func TestNewTool_NoRequiredFields(t *testing.T) {
	optional := false
	tool, err := NewTool("verify_information", []config.Field{{Key: "name", Required: &optional}})
	if err != nil {
		t.Fatalf("NewTool() error = %v", err)
	}
	if _, ok := tool.Definition().Parameters["required"]; ok {
		t.Error("expected no required key")
	}
	if err := tool.ValidateArgs(map[string]any{}); err != nil {
		t.Errorf("ValidateArgs() error = %v", err)
	}
}

func TestTool_ValidateArgs(t *testing.T) {
	tool, err := NewTool("verify_information", testFields())
	if err != nil {
		t.Fatalf("NewTool() error = %v", err)
	}

	tests := []struct {
		name    string
		args    map[string]any
		wantErr bool
	}{
		{"complete", map[string]any{"name": "Ada", "qualification": "BSc", "experience": "5"}, false},
		{"missing field", map[string]any{"name": "Ada", "qualification": "BSc"}, true},
		{"wrong type", map[string]any{"name": "Ada", "qualification": "BSc", "experience": 5}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tool.ValidateArgs(tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateArgs() error = %v, wantErr %v", err, tt.wantErr)
			}
			var verr *ValidationError
			if tt.wantErr && !errors.As(err, &verr) {
				t.Errorf("error type = %T, want *ValidationError", err)
			}
		})
	}
}
