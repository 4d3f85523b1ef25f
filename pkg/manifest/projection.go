package manifest

import (
	"fmt"
	"strings"
	"unicode"
)

// FieldSpec declares the mapping between one document spec field
// (camelCase wire name) and its persisted record field (snake_case).
// Secret marks fields whose plaintext value is replaced by a secret
// reference before anything is written.
type FieldSpec struct {
	Doc    string
	Record string
	Secret bool
}

// FieldMap is the declarative projection table one broker kind owns.
// Fields not listed fall through with automatic case conversion.
type FieldMap []FieldSpec

// reservedRecordFields are server-owned and stripped from any
// document-to-record projection: a manifest can never set them.
var reservedRecordFields = map[string]bool{
	"id":         true,
	"account_id": true,
	"created_at": true,
	"updated_at": true,
}

func (m FieldMap) byDoc(name string) (FieldSpec, bool) {
	for _, f := range m {
		if f.Doc == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

func (m FieldMap) byRecord(name string) (FieldSpec, bool) {
	for _, f := range m {
		if f.Record == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// ResolveFunc converts a secret-marked document value into the value to
// persist (typically a Secret record ID). It receives the field spec
// and the raw document value.
type ResolveFunc func(field FieldSpec, value any) (any, error)

// MaskFunc converts a persisted secret reference back into the value a
// rendered document exposes (typically the secret name, never the
// plaintext).
type MaskFunc func(field FieldSpec, value any) any

// ToRecord projects a document spec mapping into persisted record field
// names. Secret-marked fields go through resolve; server-owned fields
// are dropped.
func (m FieldMap) ToRecord(spec map[string]any, resolve ResolveFunc) (map[string]any, error) {
	record := make(map[string]any, len(spec))
	for key, value := range spec {
		field, mapped := m.byDoc(key)
		if !mapped {
			field = FieldSpec{Doc: key, Record: CamelToSnake(key)}
		}
		if reservedRecordFields[field.Record] {
			continue
		}
		if field.Secret {
			if resolve == nil {
				return nil, fmt.Errorf("no secret resolver for field %s", field.Doc)
			}
			resolved, err := resolve(field, value)
			if err != nil {
				return nil, err
			}
			record[field.Record] = resolved
			continue
		}
		record[field.Record] = value
	}
	return record, nil
}

// ToDocument projects persisted record fields back into document spec
// names. Secret-marked fields go through mask; server-owned fields are
// dropped (they surface through status, not spec).
func (m FieldMap) ToDocument(record map[string]any, mask MaskFunc) map[string]any {
	spec := make(map[string]any, len(record))
	for key, value := range record {
		if reservedRecordFields[key] {
			continue
		}
		field, mapped := m.byRecord(key)
		if !mapped {
			field = FieldSpec{Doc: SnakeToCamel(key), Record: key}
		}
		if field.Secret {
			if mask == nil {
				continue
			}
			spec[field.Doc] = mask(field, value)
			continue
		}
		spec[field.Doc] = value
	}
	return spec
}

// Titles enumerates document field name/type pairs for tabular
// rendering of get responses.
func (m FieldMap) Titles(extra ...string) []string {
	titles := append([]string{"name"}, extra...)
	for _, f := range m {
		titles = append(titles, f.Doc)
	}
	return titles
}

// CamelToSnake converts a camelCase field name to snake_case
func CamelToSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SnakeToCamel converts a snake_case field name to camelCase
func SnakeToCamel(s string) string {
	parts := strings.Split(s, "_")
	var b strings.Builder
	for i, part := range parts {
		if part == "" {
			continue
		}
		if i == 0 {
			b.WriteString(part)
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	return b.String()
}
