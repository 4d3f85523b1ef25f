package manifest

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validManifest = `apiVersion: smarter.sh/v1
kind: SqlConnection
metadata:
  name: test-connection
  description: A test connection.
  version: 0.1.0
spec:
  dbEngine: django.db.backends.mysql
  hostname: db.example.com
  port: 3306
  database: smarter
`

func TestLoaderFromInlineText(t *testing.T) {
	loader, err := NewLoader(Source{Manifest: []byte(validManifest)})
	if err != nil {
		t.Fatalf("Failed to load manifest: %v", err)
	}

	if !loader.Ready() {
		t.Error("Loader should be ready")
	}
	if loader.Kind() != "SqlConnection" {
		t.Errorf("Kind = %q, want SqlConnection", loader.Kind())
	}
	if loader.APIVersion() != "smarter.sh/v1" {
		t.Errorf("APIVersion = %q, want smarter.sh/v1", loader.APIVersion())
	}
	if name, _ := loader.Metadata()["name"].(string); name != "test-connection" {
		t.Errorf("metadata.name = %q, want test-connection", name)
	}
	if engine, _ := loader.Spec()["dbEngine"].(string); engine != "django.db.backends.mysql" {
		t.Errorf("spec.dbEngine = %q", engine)
	}
}

func TestLoaderFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.yaml")
	if err := os.WriteFile(path, []byte(validManifest), 0600); err != nil {
		t.Fatalf("Failed to write manifest: %v", err)
	}

	loader, err := NewLoader(Source{FilePath: path})
	if err != nil {
		t.Fatalf("Failed to load manifest from file: %v", err)
	}
	if loader.Kind() != "SqlConnection" {
		t.Errorf("Kind = %q, want SqlConnection", loader.Kind())
	}
}

func TestLoaderFromURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(validManifest))
	}))
	defer srv.Close()

	loader, err := NewLoader(Source{URL: srv.URL})
	if err != nil {
		t.Fatalf("Failed to load manifest from URL: %v", err)
	}
	if loader.Kind() != "SqlConnection" {
		t.Errorf("Kind = %q, want SqlConnection", loader.Kind())
	}
}

func TestLoaderFromURLNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := NewLoader(Source{URL: srv.URL}); err == nil {
		t.Error("Non-200 fetch should fail")
	}
}

func TestLoaderSourceExclusivity(t *testing.T) {
	tests := []struct {
		name string
		src  Source
	}{
		{"no source", Source{}},
		{"text and file", Source{Manifest: []byte(validManifest), FilePath: "/tmp/x.yaml"}},
		{"file and url", Source{FilePath: "/tmp/x.yaml", URL: "http://example.com/x.yaml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoader(tt.src)
			var loaderErr *LoaderError
			if !errors.As(err, &loaderErr) {
				t.Errorf("Expected LoaderError, got %v", err)
			}
		})
	}
}

func TestLoaderMissingRequiredKeys(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		wantMsg  string
	}{
		{
			"missing spec",
			"apiVersion: smarter.sh/v1\nkind: Chatbot\nmetadata:\n  name: x\n  description: y\n",
			"Missing required key spec",
		},
		{
			"missing kind",
			"apiVersion: smarter.sh/v1\nmetadata:\n  name: x\n  description: y\nspec: {}\n",
			"Missing required key kind",
		},
		{
			"missing metadata name",
			"apiVersion: smarter.sh/v1\nkind: Chatbot\nmetadata:\n  description: y\nspec: {}\n",
			"Missing required key name",
		},
		{
			"missing metadata description",
			"apiVersion: smarter.sh/v1\nkind: Chatbot\nmetadata:\n  name: x\nspec: {}\n",
			"Missing required key description",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoader(Source{Manifest: []byte(tt.manifest)})
			if err == nil {
				t.Fatal("Expected load to fail")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("Error = %q, want it to contain %q", err, tt.wantMsg)
			}
		})
	}
}

func TestLoaderMalformedYAML(t *testing.T) {
	_, err := NewLoader(Source{Manifest: []byte("kind: [unclosed")})
	var loaderErr *LoaderError
	if !errors.As(err, &loaderErr) {
		t.Errorf("Expected LoaderError for malformed YAML, got %v", err)
	}
}

func TestLoaderEmptyManifest(t *testing.T) {
	_, err := NewLoader(Source{Manifest: []byte("   \n")})
	if err == nil {
		t.Error("Empty manifest should fail to load")
	}
}
