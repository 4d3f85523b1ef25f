package manifest

import (
	"errors"
	"strings"
	"testing"
)

func TestDecodeMetadata(t *testing.T) {
	src := map[string]any{
		"name":        "my-resource",
		"description": "A resource.",
		"version":     "1.2.3",
		"tags":        []any{"prod"},
	}

	var meta Metadata
	if err := Decode("Chatbot", "metadata", src, &meta); err != nil {
		t.Fatalf("Failed to decode metadata: %v", err)
	}
	if meta.Name != "my-resource" {
		t.Errorf("Name = %q, want my-resource", meta.Name)
	}
	if len(meta.Tags) != 1 || meta.Tags[0] != "prod" {
		t.Errorf("Tags = %v, want [prod]", meta.Tags)
	}
}

func TestDecodeMetadataViolations(t *testing.T) {
	tests := []struct {
		name     string
		src      map[string]any
		wantPath string
		wantMsg  string
	}{
		{
			"missing version",
			map[string]any{"name": "x", "description": "y"},
			"metadata.version",
			"Field required",
		},
		{
			"bad semver",
			map[string]any{"name": "x", "description": "y", "version": "not-a-version"},
			"metadata.version",
			"semantic version",
		},
		{
			"missing name",
			map[string]any{"description": "y", "version": "1.0.0"},
			"metadata.name",
			"Field required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var meta Metadata
			err := Decode("Chatbot", "metadata", tt.src, &meta)

			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
			found := false
			for _, f := range ve.Fields {
				if f.Path == tt.wantPath && strings.Contains(f.Message, tt.wantMsg) {
					found = true
				}
			}
			if !found {
				t.Errorf("Expected violation at %s containing %q, got %+v", tt.wantPath, tt.wantMsg, ve.Fields)
			}
		})
	}
}

func TestDecodeTypeMismatch(t *testing.T) {
	type spec struct {
		Port int `json:"port"`
	}
	var out spec
	err := Decode("SqlConnection", "spec", map[string]any{"port": "not-a-number"}, &out)

	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}
	if !strings.Contains(ve.Fields[0].Path, "port") {
		t.Errorf("Violation path = %q, want it to name port", ve.Fields[0].Path)
	}
}

func TestValidateAPIVersion(t *testing.T) {
	if err := ValidateAPIVersion("Chatbot", APIVersion); err != nil {
		t.Errorf("Current API version should validate: %v", err)
	}

	err := ValidateAPIVersion("Chatbot", "smarter.sh/v2")
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}
	if !strings.Contains(err.Error(), APIVersion) {
		t.Errorf("Error should enumerate supported versions: %v", err)
	}
}

func TestValidateKind(t *testing.T) {
	if err := ValidateKind("Chatbot", "Chatbot"); err != nil {
		t.Errorf("Matching kind should validate: %v", err)
	}
	if err := ValidateKind("Chatbot", "SqlConnection"); err == nil {
		t.Error("Mismatched kind should fail")
	}
}

func TestEnvelopeToYAML(t *testing.T) {
	env := NewEnvelope("Chatbot",
		Metadata{Name: "bot", Description: "d", Version: "1.0.0"},
		map[string]any{"config": map[string]any{"appName": "Bot"}},
		Status{},
	)

	out, err := env.ToYAML()
	if err != nil {
		t.Fatalf("Failed to render YAML: %v", err)
	}

	// Canonical key ordering: apiVersion first, then kind.
	if !strings.HasPrefix(out, "apiVersion: smarter.sh/v1\nkind: Chatbot\n") {
		t.Errorf("Unexpected YAML prefix:\n%s", out)
	}
	if !strings.Contains(out, "name: bot") {
		t.Errorf("YAML should contain metadata name:\n%s", out)
	}
}
