package schema

import (
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/docextract/internal/model"
)

// Registry maps document types to their schemas.
type Registry struct {
	byType map[model.DocumentType]*Schema
}

// NewRegistry indexes the given schemas. Later entries replace earlier ones
// with the same type.
func NewRegistry(schemas ...Schema) *Registry {
	r := &Registry{byType: make(map[model.DocumentType]*Schema, len(schemas))}
	for i := range schemas {
		s := schemas[i]
		r.byType[s.Type] = &s
	}
	return r
}

// Lookup returns the schema for t. ok is false for unknown or unsupported
// document types.
func (r *Registry) Lookup(t model.DocumentType) (*Schema, bool) {
	s, ok := r.byType[t]
	return s, ok
}

// Types lists the supported document types, sorted.
func (r *Registry) Types() []model.DocumentType {
	out := make([]model.DocumentType, 0, len(r.byType))
	for t := range r.byType {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// fileFormat is the YAML layout accepted by LoadFile.
type fileFormat struct {
	Schemas []Schema `yaml:"schemas"`
}

// LoadFile reads schema overrides from a YAML file and layers them on top
// of the built-in defaults. A schema in the file replaces the default for
// the same document type entirely.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "schema: read %s", path)
	}

	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "schema: parse")
	}

	merged := Defaults()
	for _, s := range f.Schemas {
		if err := validate(s); err != nil {
			return nil, err
		}
		merged = append(merged, s)
	}
	return NewRegistry(merged...), nil
}

// Load returns the default registry, or the defaults layered with the YAML
// file at path when path is non-empty.
func Load(path string) (*Registry, error) {
	if path == "" {
		return NewRegistry(Defaults()...), nil
	}
	return LoadFile(path)
}

func validate(s Schema) error {
	if s.Type == "" {
		return eris.New("schema: missing document type")
	}
	if s.Type == model.DocumentTypeUnknown {
		return eris.New("schema: document type \"unknown\" cannot have a schema")
	}
	if len(s.Fields) == 0 {
		return eris.Errorf("schema: %s has no fields", s.Type)
	}
	seen := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		if f.Name == "" {
			return eris.Errorf("schema: %s has a field without a name", s.Type)
		}
		if seen[f.Name] {
			return eris.Errorf("schema: %s defines field %q twice", s.Type, f.Name)
		}
		seen[f.Name] = true
		switch f.Type {
		case "", ValueText, ValueNumeric:
		default:
			return eris.Errorf("schema: %s field %q has unknown type %q", s.Type, f.Name, f.Type)
		}
	}
	return nil
}
