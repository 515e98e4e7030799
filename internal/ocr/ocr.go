// Package ocr turns a document file into text plus positional line blocks.
package ocr

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/docextract/internal/config"
	"github.com/sells-group/docextract/internal/model"
)

// Provider recognizes the text of a document on disk.
type Provider interface {
	Name() string
	Recognize(ctx context.Context, path string) (*model.OcrResult, error)
}

// NewProvider creates a Provider based on config.
func NewProvider(cfg config.OCRConfig) (Provider, error) {
	switch cfg.Provider {
	case "local", "pdftotext", "":
		return NewPdfToText(cfg.PdfToTextPath), nil
	case "mistral":
		if cfg.MistralKey == "" {
			return nil, eris.New("ocr: mistral provider requires mistral_api_key")
		}
		return NewMistralOCR(cfg.MistralKey, cfg.MistralModel), nil
	case "file":
		return NewFile(), nil
	default:
		return nil, eris.Errorf("ocr: unknown provider %q", cfg.Provider)
	}
}

// pageLines emits one LINE token per non-empty line of a page. Top is the
// line's index divided by the page's line count.
func pageLines(page int, text string) []model.OcrToken {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	n := float64(len(lines))
	var out []model.OcrToken
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, model.OcrToken{
			Text:      line,
			Page:      page,
			Top:       float64(i) / n,
			BlockType: model.BlockTypeLine,
		})
	}
	return out
}

// buildResult assembles an OcrResult from per-page text, pages numbered from 1.
func buildResult(pages []string) *model.OcrResult {
	res := &model.OcrResult{Blocks: []model.OcrToken{}}
	var kept []string
	for i, p := range pages {
		res.Blocks = append(res.Blocks, pageLines(i+1, p)...)
		if strings.TrimSpace(p) != "" {
			kept = append(kept, strings.TrimRight(p, "\n"))
		}
	}
	res.Text = strings.Join(kept, "\n\n")
	return res
}
