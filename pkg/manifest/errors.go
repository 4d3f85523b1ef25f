package manifest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// LoaderError reports a manifest that could not be loaded: missing or
// conflicting sources, unparsable content, or absent required keys.
// Loader errors surface before any broker state is touched.
type LoaderError struct {
	Msg string
	Err error
}

func (e *LoaderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *LoaderError) Unwrap() error { return e.Err }

// NewLoaderError creates a LoaderError with a formatted message
func NewLoaderError(format string, args ...any) *LoaderError {
	return &LoaderError{Msg: fmt.Sprintf(format, args...)}
}

// FieldError describes one validation violation, qualified by the full
// field path within the document (e.g. "spec.connection.port").
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
}

// ValidationError reports one or more schema or business-rule
// violations in a manifest. It is returned verbatim to the caller and
// never retried.
type ValidationError struct {
	Kind   string       `json:"kind"`
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Path, f.Message))
	}
	return fmt.Sprintf("%s manifest validation failed: %s", e.Kind, strings.Join(parts, "; "))
}

// NewValidationError creates a single-field ValidationError
func NewValidationError(kind, path, format string, args ...any) *ValidationError {
	return &ValidationError{
		Kind:   kind,
		Fields: []FieldError{{Path: path, Message: fmt.Sprintf(format, args...)}},
	}
}

// wrapValidatorError converts a validator.ValidationErrors into our
// field-path-qualified form. pathPrefix names the document section being
// validated ("metadata", "spec").
func wrapValidatorError(kind, pathPrefix string, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	ve := &ValidationError{Kind: kind}
	for _, fe := range verrs {
		ve.Fields = append(ve.Fields, FieldError{
			Path:    fieldPath(pathPrefix, fe.Namespace()),
			Message: violationMessage(fe),
			Value:   fe.Value(),
		})
	}
	return ve
}

// fieldPath strips the root struct name from a validator namespace and
// prefixes the document section: "Spec.Connection.Port" with prefix
// "spec" becomes "spec.connection.port" when json tag names are in use.
func fieldPath(prefix, namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	if prefix != "" {
		parts = append([]string{prefix}, parts...)
	}
	return strings.Join(parts, ".")
}

// violationMessage renders a human-readable description of the failed
// rule, naming the expected domain where the rule declares one.
func violationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Field required"
	case "oneof":
		return fmt.Sprintf("Input should be one of: %s", strings.Join(strings.Fields(fe.Param()), ", "))
	case "semver":
		return "Input should be a valid semantic version"
	case "hostname_rfc1123", "hostname", "fqdn":
		return "Input should be a valid hostname"
	case "hostname|ip", "fqdn|ip":
		return "Input should be a valid hostname or IP address"
	case "ip":
		return "Input should be a valid IP address"
	case "url":
		return "Input should be a valid URL"
	case "email":
		return "Input should be a valid email address"
	case "datetime":
		return fmt.Sprintf("Input should be a date in the form %s", fe.Param())
	case "min":
		return fmt.Sprintf("Input should be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("Input should be at most %s", fe.Param())
	case "gt":
		return fmt.Sprintf("Input should be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("Input should be greater than or equal to %s", fe.Param())
	case "lt":
		return fmt.Sprintf("Input should be less than %s", fe.Param())
	case "lte":
		return fmt.Sprintf("Input should be less than or equal to %s", fe.Param())
	default:
		return fmt.Sprintf("Input failed %q validation", fe.Tag())
	}
}
