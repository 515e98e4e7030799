package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/docextract/internal/model"
)

func TestDefaults_Lookup(t *testing.T) {
	r := NewRegistry(Defaults()...)

	for _, dt := range []model.DocumentType{
		model.DocumentTypeEscritura,
		model.DocumentTypePatenteComercio,
		model.DocumentTypePatenteSociedad,
		model.DocumentTypeDPI,
	} {
		s, ok := r.Lookup(dt)
		require.True(t, ok, "missing schema for %s", dt)
		assert.NotEmpty(t, s.FieldOrder())
		assert.NotEmpty(t, s.CriticalFields(), "%s needs a critical subset", dt)
	}

	_, ok := r.Lookup(model.DocumentTypeUnknown)
	assert.False(t, ok)
	_, ok = r.Lookup("contrato_arrendamiento")
	assert.False(t, ok)
}

func TestDefaults_UniqueFieldNames(t *testing.T) {
	for _, s := range Defaults() {
		require.NoError(t, validate(s), "schema %s", s.Type)
	}
}

func TestSchema_Accessors(t *testing.T) {
	r := NewRegistry(Defaults()...)
	s, ok := r.Lookup(model.DocumentTypePatenteComercio)
	require.True(t, ok)

	assert.Equal(t, "numero_registro", s.FieldOrder()[0])
	assert.True(t, s.IsCritical("numero_registro"))
	assert.False(t, s.IsCritical("propietario"))
	assert.False(t, s.IsCritical("does_not_exist"))
	assert.Equal(t, ValueNumeric, s.FieldType("numero_registro"))
	assert.Equal(t, ValueText, s.FieldType("nombre_comercial"))
	assert.Equal(t, ValueText, s.FieldType("does_not_exist"))
	assert.Nil(t, s.Field("does_not_exist"))
}

func TestRegistry_Types(t *testing.T) {
	r := NewRegistry(Defaults()...)
	assert.Equal(t, []model.DocumentType{
		model.DocumentTypeDPI,
		model.DocumentTypeEscritura,
		model.DocumentTypePatenteComercio,
		model.DocumentTypePatenteSociedad,
	}, r.Types())
}

func TestLoadFile_OverridesAndExtends(t *testing.T) {
	yaml := `
schemas:
  - type: dpi
    name: DPI reducido
    fields:
      - { name: cui, type: NUMERIC, critical: true }
      - { name: nombres, type: TEXT }
  - type: acta_notarial
    name: Acta notarial
    fields:
      - { name: numero_acta, type: NUMERIC, critical: true }
      - { name: requirente }
`
	path := filepath.Join(t.TempDir(), "schemas.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	r, err := LoadFile(path)
	require.NoError(t, err)

	dpi, ok := r.Lookup(model.DocumentTypeDPI)
	require.True(t, ok)
	assert.Equal(t, []string{"cui", "nombres"}, dpi.FieldOrder())
	assert.False(t, dpi.IsCritical("nombres"))

	acta, ok := r.Lookup("acta_notarial")
	require.True(t, ok)
	assert.Equal(t, ValueText, acta.FieldType("requirente"))
	assert.Len(t, acta.CriticalFields(), 1)

	// Untouched defaults remain.
	_, ok = r.Lookup(model.DocumentTypeEscritura)
	assert.True(t, ok)
}

func TestLoadFile_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		msg  string
	}{
		{"missing type", "schemas:\n  - fields: [{name: a}]\n", "missing document type"},
		{"unknown type", "schemas:\n  - type: unknown\n    fields: [{name: a}]\n", "cannot have a schema"},
		{"no fields", "schemas:\n  - type: x\n", "has no fields"},
		{"duplicate field", "schemas:\n  - type: x\n    fields: [{name: a}, {name: a}]\n", "twice"},
		{"bad value type", "schemas:\n  - type: x\n    fields: [{name: a, type: DATE}]\n", "unknown type"},
		{"bad yaml", "schemas: [", "parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "schemas.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0644))
			_, err := LoadFile(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	r, err := Load("")
	require.NoError(t, err)
	assert.Len(t, r.Types(), len(Defaults()))
}

func TestLoadFile_NotFound(t *testing.T) {
	_, err := LoadFile("/nonexistent/schemas.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema: read")
}
