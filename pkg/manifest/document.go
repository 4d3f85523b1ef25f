package manifest

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// APIVersion is the manifest API version this build understands.
const APIVersion = "smarter.sh/v1"

// APIVersions is the compatibility set brokers accept.
var APIVersions = []string{APIVersion}

// Metadata is the common metadata sub-schema of every manifest kind.
// Name is the tenant-unique identity and the only stable key shared
// with the persisted record; everything else is freely updatable.
type Metadata struct {
	Name        string            `json:"name" validate:"required"`
	Description string            `json:"description" validate:"required"`
	Version     string            `json:"version" validate:"required,semver"`
	Tags        []string          `json:"tags,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

// Status is the common status sub-schema. Status is server-populated
// from the persisted record when a document is rendered; it is never
// read from client input.
type Status struct {
	Created  time.Time `json:"created,omitempty"`
	Modified time.Time `json:"modified,omitempty"`
}

// validate is a package-level singleton; constructing a validator per
// call is expensive.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report field paths with json tag names so validation errors match
	// the wire format the caller wrote.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateAPIVersion checks a manifest apiVersion against the
// compatibility set.
func ValidateAPIVersion(kind, apiVersion string) error {
	for _, v := range APIVersions {
		if v == apiVersion {
			return nil
		}
	}
	return NewValidationError(kind, "apiVersion",
		"Input should be one of: %s", strings.Join(APIVersions, ", "))
}

// ValidateKind checks that a loaded manifest targets the broker's kind.
func ValidateKind(kind, manifestKind string) error {
	if kind != manifestKind {
		return NewValidationError(kind, "kind",
			"manifest kind %q does not match broker kind %q", manifestKind, kind)
	}
	return nil
}

// Decode converts a parsed manifest section into a typed schema struct
// and validates every field against its declared rules. pathPrefix
// names the section for error reporting ("metadata", "spec").
func Decode(kind, pathPrefix string, src map[string]any, out any) error {
	raw, err := json.Marshal(src)
	if err != nil {
		return NewValidationError(kind, pathPrefix, "not a valid mapping: %v", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return decodeError(kind, pathPrefix, err)
	}
	if err := validate.Struct(out); err != nil {
		return wrapValidatorError(kind, pathPrefix, err)
	}
	return nil
}

// Validate runs schema validation on an already-typed section.
func Validate(kind, pathPrefix string, v any) error {
	if err := validate.Struct(v); err != nil {
		return wrapValidatorError(kind, pathPrefix, err)
	}
	return nil
}

// decodeError maps a json type error onto the offending field path.
func decodeError(kind, pathPrefix string, err error) error {
	if ute, ok := err.(*json.UnmarshalTypeError); ok {
		path := pathPrefix
		if ute.Field != "" {
			path = pathPrefix + "." + ute.Field
		}
		return NewValidationError(kind, path,
			"Input should be a valid %s", ute.Type.Kind())
	}
	return NewValidationError(kind, pathPrefix, "invalid section: %v", err)
}

// Envelope is the generic top-level shape of a rendered document, used
// when a broker serializes its typed sub-schemas back to wire form.
type Envelope struct {
	APIVersion string   `json:"apiVersion"`
	Kind       string   `json:"kind"`
	Metadata   Metadata `json:"metadata"`
	Spec       any      `json:"spec"`
	Status     any      `json:"status,omitempty"`
}

// NewEnvelope builds a wire document for a kind.
func NewEnvelope(kind string, meta Metadata, spec, status any) *Envelope {
	return &Envelope{
		APIVersion: APIVersion,
		Kind:       kind,
		Metadata:   meta,
		Spec:       spec,
		Status:     status,
	}
}

// ToYAML renders the envelope as YAML via its json field names.
func (e *Envelope) ToYAML() (string, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("failed to marshal document: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return "", fmt.Errorf("failed to round-trip document: %w", err)
	}
	return renderYAML(doc)
}
