// Package schema holds the per-document-type field tables: stable field
// order, value types and the critical subset routed through OCR
// verification.
package schema

import (
	"slices"

	"github.com/sells-group/docextract/internal/model"
)

// ValueType selects the verification strategy for a field.
type ValueType string

const (
	ValueNumeric ValueType = "NUMERIC"
	ValueText    ValueType = "TEXT"
)

// FieldSpec describes one extractable field.
type FieldSpec struct {
	Name     string    `yaml:"name" json:"name"`
	Label    string    `yaml:"label" json:"label"`
	Type     ValueType `yaml:"type" json:"type"`
	Critical bool      `yaml:"critical" json:"critical"`
}

// Schema is the field table for one document type.
type Schema struct {
	Type   model.DocumentType `yaml:"type" json:"type"`
	Name   string             `yaml:"name" json:"name"`
	Fields []FieldSpec        `yaml:"fields" json:"fields"`
}

// FieldOrder returns field names in their persisted order.
func (s *Schema) FieldOrder() []string {
	out := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		out[i] = f.Name
	}
	return out
}

// CriticalFields returns the critical field specs in schema order.
func (s *Schema) CriticalFields() []FieldSpec {
	var out []FieldSpec
	for _, f := range s.Fields {
		if f.Critical {
			out = append(out, f)
		}
	}
	return out
}

// Field returns the spec for name, or nil if the schema does not define it.
func (s *Schema) Field(name string) *FieldSpec {
	i := slices.IndexFunc(s.Fields, func(f FieldSpec) bool { return f.Name == name })
	if i < 0 {
		return nil
	}
	return &s.Fields[i]
}

// IsCritical reports whether name is in the critical set.
func (s *Schema) IsCritical(name string) bool {
	f := s.Field(name)
	return f != nil && f.Critical
}

// FieldType returns the value type of name, defaulting to TEXT.
func (s *Schema) FieldType(name string) ValueType {
	if f := s.Field(name); f != nil && f.Type != "" {
		return f.Type
	}
	return ValueText
}
