package manifest

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Required top-level keys of every manifest.
var requiredKeys = []string{"apiVersion", "kind", "metadata", "spec"}

// Required metadata keys, checked structurally at load time so a broker
// never sees a manifest without an identity.
var requiredMetadataKeys = []string{"name", "description"}

// Source identifies where a manifest comes from. Exactly one field must
// be set.
type Source struct {
	Manifest []byte // inline YAML or JSON text
	FilePath string
	URL      string
}

// Loader ingests manifest text from one source, parses it, and performs
// cursory structural validation before any schema instantiation.
type Loader struct {
	raw   []byte
	doc   map[string]any
	ready bool
}

// NewLoader reads, parses and structurally validates a manifest.
// All file and network I/O happens here; a returned Loader is purely
// in-memory.
func NewLoader(src Source) (*Loader, error) {
	raw, err := src.read()
	if err != nil {
		return nil, err
	}

	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, &LoaderError{Msg: "malformed manifest", Err: err}
	}
	if doc == nil {
		return nil, NewLoaderError("manifest is empty")
	}

	for _, key := range requiredKeys {
		if _, ok := doc[key]; !ok {
			return nil, NewLoaderError("Missing required key %s", key)
		}
	}

	meta, ok := doc["metadata"].(map[string]any)
	if !ok {
		return nil, NewLoaderError("metadata must be a mapping")
	}
	for _, key := range requiredMetadataKeys {
		if v, ok := meta[key]; !ok || v == nil || v == "" {
			return nil, NewLoaderError("Missing required key %s", key)
		}
	}

	return &Loader{raw: raw, doc: doc, ready: true}, nil
}

func (s Source) read() ([]byte, error) {
	sources := 0
	if len(s.Manifest) > 0 {
		sources++
	}
	if s.FilePath != "" {
		sources++
	}
	if s.URL != "" {
		sources++
	}
	if sources == 0 {
		return nil, NewLoaderError("no manifest source given: provide inline text, a file path or a URL")
	}
	if sources > 1 {
		return nil, NewLoaderError("conflicting manifest sources: provide exactly one of inline text, a file path or a URL")
	}

	switch {
	case s.FilePath != "":
		raw, err := os.ReadFile(s.FilePath)
		if err != nil {
			return nil, &LoaderError{Msg: fmt.Sprintf("failed to read manifest file %s", s.FilePath), Err: err}
		}
		return raw, nil
	case s.URL != "":
		client := &http.Client{Timeout: 10 * time.Second}
		resp, err := client.Get(s.URL)
		if err != nil {
			return nil, &LoaderError{Msg: fmt.Sprintf("failed to fetch manifest from %s", s.URL), Err: err}
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, NewLoaderError("failed to fetch manifest from %s: status %d", s.URL, resp.StatusCode)
		}
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, &LoaderError{Msg: fmt.Sprintf("failed to read manifest body from %s", s.URL), Err: err}
		}
		return raw, nil
	default:
		return s.Manifest, nil
	}
}

// Ready reports whether structural validation has passed
func (l *Loader) Ready() bool { return l.ready }

// Raw returns the original manifest text
func (l *Loader) Raw() []byte { return l.raw }

// Parsed returns the parsed manifest document
func (l *Loader) Parsed() map[string]any { return l.doc }

// APIVersion returns the manifest apiVersion
func (l *Loader) APIVersion() string {
	v, _ := l.doc["apiVersion"].(string)
	return v
}

// Kind returns the manifest kind
func (l *Loader) Kind() string {
	v, _ := l.doc["kind"].(string)
	return v
}

// Metadata returns the manifest metadata mapping
func (l *Loader) Metadata() map[string]any {
	return l.section("metadata")
}

// Spec returns the manifest spec mapping
func (l *Loader) Spec() map[string]any {
	return l.section("spec")
}

// Status returns the manifest status mapping, if present. Status is
// server-populated; apply ignores anything a client supplies here.
func (l *Loader) Status() map[string]any {
	return l.section("status")
}

func (l *Loader) section(key string) map[string]any {
	v, _ := l.doc[key].(map[string]any)
	return v
}
