package schema

import "github.com/sells-group/docextract/internal/model"

// Defaults returns the built-in schemas for the supported Guatemalan
// document types.
func Defaults() []Schema {
	return []Schema{
		{
			Type: model.DocumentTypeEscritura,
			Name: "Testimonio de escritura pública",
			Fields: []FieldSpec{
				{Name: "numero_escritura", Label: "Número de escritura", Type: ValueNumeric, Critical: true},
				{Name: "fecha_otorgamiento", Label: "Fecha de otorgamiento", Type: ValueText},
				{Name: "lugar_otorgamiento", Label: "Lugar de otorgamiento", Type: ValueText},
				{Name: "notario", Label: "Notario autorizante", Type: ValueText, Critical: true},
				{Name: "otorgantes", Label: "Otorgantes", Type: ValueText},
				{Name: "tipo_contrato", Label: "Tipo de contrato", Type: ValueText},
				{Name: "numero_finca", Label: "Número de finca", Type: ValueNumeric, Critical: true},
				{Name: "folio", Label: "Folio", Type: ValueNumeric, Critical: true},
				{Name: "libro", Label: "Libro", Type: ValueNumeric, Critical: true},
				{Name: "monto", Label: "Monto", Type: ValueText},
				{Name: "numero_registro", Label: "Número de registro", Type: ValueNumeric, Critical: true},
			},
		},
		{
			Type: model.DocumentTypePatenteComercio,
			Name: "Patente de comercio de empresa",
			Fields: []FieldSpec{
				{Name: "numero_registro", Label: "Número de registro", Type: ValueNumeric, Critical: true},
				{Name: "folio", Label: "Folio", Type: ValueNumeric, Critical: true},
				{Name: "libro", Label: "Libro", Type: ValueNumeric, Critical: true},
				{Name: "numero_expediente", Label: "Número de expediente", Type: ValueNumeric, Critical: true},
				{Name: "nombre_comercial", Label: "Nombre comercial", Type: ValueText, Critical: true},
				{Name: "propietario", Label: "Propietario", Type: ValueText},
				{Name: "direccion", Label: "Dirección comercial", Type: ValueText},
				{Name: "objeto", Label: "Objeto", Type: ValueText},
				{Name: "categoria", Label: "Categoría", Type: ValueText},
				{Name: "fecha_inscripcion", Label: "Fecha de inscripción", Type: ValueText},
			},
		},
		{
			Type: model.DocumentTypePatenteSociedad,
			Name: "Patente de comercio de sociedad",
			Fields: []FieldSpec{
				{Name: "numero_registro", Label: "Número de registro", Type: ValueNumeric, Critical: true},
				{Name: "folio", Label: "Folio", Type: ValueNumeric, Critical: true},
				{Name: "libro", Label: "Libro", Type: ValueNumeric, Critical: true},
				{Name: "numero_expediente", Label: "Número de expediente", Type: ValueNumeric, Critical: true},
				{Name: "razon_social", Label: "Razón social", Type: ValueText, Critical: true},
				{Name: "nombre_comercial", Label: "Nombre comercial", Type: ValueText},
				{Name: "direccion", Label: "Dirección", Type: ValueText},
				{Name: "objeto", Label: "Objeto", Type: ValueText},
				{Name: "fecha_inscripcion", Label: "Fecha de inscripción", Type: ValueText},
			},
		},
		{
			Type: model.DocumentTypeDPI,
			Name: "Documento Personal de Identificación",
			Fields: []FieldSpec{
				{Name: "cui", Label: "CUI", Type: ValueNumeric, Critical: true},
				{Name: "nombres", Label: "Nombres", Type: ValueText, Critical: true},
				{Name: "apellidos", Label: "Apellidos", Type: ValueText, Critical: true},
				{Name: "fecha_nacimiento", Label: "Fecha de nacimiento", Type: ValueText},
				{Name: "lugar_nacimiento", Label: "Lugar de nacimiento", Type: ValueText},
				{Name: "genero", Label: "Género", Type: ValueText},
				{Name: "nacionalidad", Label: "Nacionalidad", Type: ValueText},
				{Name: "estado_civil", Label: "Estado civil", Type: ValueText},
				{Name: "vecindad", Label: "Vecindad", Type: ValueText},
				{Name: "fecha_emision", Label: "Fecha de emisión", Type: ValueText},
				{Name: "fecha_vencimiento", Label: "Fecha de vencimiento", Type: ValueText},
			},
		},
	}
}
