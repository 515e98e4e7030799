package source

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/sells-group/docextract/internal/model"
	"github.com/sells-group/docextract/internal/schema"
)

// ErrInvalidOutput marks a response that is not a field set for the schema.
// It is never retried.
var ErrInvalidOutput = eris.New("source: invalid model output")

// systemPrompt builds the extraction instructions for one document type.
func systemPrompt(s *schema.Schema) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Eres un extractor de datos de documentos legales de Guatemala (%s).\n", s.Name)
	sb.WriteString("Recibirás el texto OCR del documento. Devuelve únicamente un objeto JSON, sin texto adicional, con esta forma:\n")
	sb.WriteString(`{"fields": {"<campo>": "<valor>"}, "words": {"<campo>": "<valor en letras>"}}` + "\n\n")
	sb.WriteString("Reglas:\n")
	sb.WriteString("- Copia cada valor tal como aparece en el documento. Conserva tildes, eñes y mayúsculas.\n")
	sb.WriteString("- Los números se copian dígito por dígito, sin corregirlos ni completarlos.\n")
	fmt.Fprintf(&sb, "- Si un campo no aparece usa %q; si no aplica al documento usa %q; si es ilegible usa %q.\n",
		model.SentinelEmpty, model.SentinelNotApplicable, model.SentinelIllegible)
	sb.WriteString("- En \"words\" incluye solo los campos numéricos que el documento escribe también en letras.\n\n")
	sb.WriteString("Campos:\n")
	for _, f := range s.Fields {
		kind := "texto"
		if f.Type == schema.ValueNumeric {
			kind = "número"
		}
		fmt.Fprintf(&sb, "- %s: %s (%s)\n", f.Name, f.Label, kind)
	}
	return sb.String()
}

func userPrompt(text string) string {
	return "TEXTO OCR:\n" + text
}

// stripCodeFences removes a surrounding markdown code fence.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// outputSchema is the JSON schema a response must satisfy. Unknown field
// names are allowed; every value must be a string.
func outputSchema(s *schema.Schema) map[string]any {
	props := make(map[string]any, len(s.Fields))
	for _, f := range s.Fields {
		props[f.Name] = map[string]any{"type": "string"}
	}
	return map[string]any{
		"type":     "object",
		"required": []string{"fields"},
		"properties": map[string]any{
			"fields": map[string]any{
				"type":                 "object",
				"properties":           props,
				"additionalProperties": map[string]any{"type": "string"},
			},
			"words": map[string]any{
				"type":                 "object",
				"additionalProperties": map[string]any{"type": "string"},
			},
		},
	}
}

var validators sync.Map // model.DocumentType -> *jsonschema.Schema

func validatorFor(s *schema.Schema) (*jsonschema.Schema, error) {
	if v, ok := validators.Load(s.Type); ok {
		return v.(*jsonschema.Schema), nil
	}
	b, err := json.Marshal(outputSchema(s))
	if err != nil {
		return nil, eris.Wrap(err, "source: marshal output schema")
	}
	url := fmt.Sprintf("%s.schema.json", s.Type)
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, bytes.NewReader(b)); err != nil {
		return nil, eris.Wrap(err, "source: add output schema")
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return nil, eris.Wrap(err, "source: compile output schema")
	}
	v, _ := validators.LoadOrStore(s.Type, compiled)
	return v.(*jsonschema.Schema), nil
}

type rawExtraction struct {
	Fields map[string]string `json:"fields"`
	Words  map[string]string `json:"words"`
}

// parseExtraction validates a model response against the schema's output
// shape and converts it into a StructuredExtraction.
func parseExtraction(name, raw string, s *schema.Schema) (*model.StructuredExtraction, error) {
	body := stripCodeFences(raw)
	if body == "" {
		return nil, eris.Wrapf(ErrInvalidOutput, "source %s: empty response", name)
	}

	var doc any
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, eris.Wrapf(ErrInvalidOutput, "source %s: bad JSON: %v", name, err)
	}
	validator, err := validatorFor(s)
	if err != nil {
		return nil, err
	}
	if err := validator.Validate(doc); err != nil {
		return nil, eris.Wrapf(ErrInvalidOutput, "source %s: response does not match schema: %v", name, err)
	}

	var out rawExtraction
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		return nil, eris.Wrapf(ErrInvalidOutput, "source %s: decode fields: %v", name, err)
	}

	ext := &model.StructuredExtraction{Source: name, Fields: out.Fields}
	if ext.Fields == nil {
		ext.Fields = map[string]string{}
	}
	for field, words := range out.Words {
		if _, ok := ext.Fields[field]; !ok || strings.TrimSpace(words) == "" {
			continue
		}
		if ext.Words == nil {
			ext.Words = make(map[string]string)
		}
		ext.Words[field] = words
	}
	return ext, nil
}

// promptVersion tags a configured prompt revision with the document type,
// since each type gets its own field table in the prompt.
func promptVersion(version string, docType model.DocumentType) string {
	return version + "/" + string(docType)
}
