package pipeline

import (
	"context"
	"sync/atomic"

	"github.com/sells-group/docextract/internal/model"
	"github.com/sells-group/docextract/internal/schema"
)

type fakeSource struct {
	name  string
	calls atomic.Int32
	fn    func(ctx context.Context) (*model.StructuredExtraction, error)
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Versions(docType model.DocumentType) model.SourceVersions {
	return model.SourceVersions{Model: f.name + "-model", PromptVersion: "v1/" + string(docType)}
}

func (f *fakeSource) Extract(ctx context.Context, _ string, _ *schema.Schema) (*model.StructuredExtraction, error) {
	f.calls.Add(1)
	return f.fn(ctx)
}

func returning(name string, fields map[string]string) *fakeSource {
	return &fakeSource{name: name, fn: func(context.Context) (*model.StructuredExtraction, error) {
		return &model.StructuredExtraction{Fields: fields}, nil
	}}
}

func failing(name string, err error) *fakeSource {
	return &fakeSource{name: name, fn: func(context.Context) (*model.StructuredExtraction, error) {
		return nil, err
	}}
}

type fakeOCR struct {
	res *model.OcrResult
	err error
}

func (f *fakeOCR) Name() string { return "fake" }

func (f *fakeOCR) Recognize(context.Context, string) (*model.OcrResult, error) {
	return f.res, f.err
}

func testRegistry() *schema.Registry {
	return schema.NewRegistry(schema.Schema{
		Type: model.DocumentTypeEscritura,
		Name: "Testimonio de escritura pública",
		Fields: []schema.FieldSpec{
			{Name: "numero_escritura", Label: "Número de escritura", Type: schema.ValueNumeric, Critical: true},
			{Name: "notario", Label: "Notario autorizante", Type: schema.ValueText, Critical: true},
			{Name: "monto", Label: "Monto", Type: schema.ValueText},
		},
	})
}

func line(page int, top float64, text string) model.OcrToken {
	return model.OcrToken{Text: text, Page: page, Top: top, BlockType: model.BlockTypeLine}
}

func deedOCR() *model.OcrResult {
	return &model.OcrResult{
		Text: "TESTIMONIO\nESCRITURA NÚMERO 12345\nJOSÉ PÉREZ ÁVILA\nQ 50,000.00",
		Blocks: []model.OcrToken{
			line(1, 0.05, "TESTIMONIO"),
			line(1, 0.10, "ESCRITURA NÚMERO 12345"),
			line(1, 0.20, "JOSÉ PÉREZ ÁVILA"),
			line(2, 0.40, "Q 50,000.00"),
		},
	}
}

func agreedFields() map[string]string {
	return map[string]string{
		"numero_escritura": "12345",
		"notario":          "José Pérez Ávila",
		"monto":            "Q 50,000.00",
	}
}
