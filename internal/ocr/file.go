package ocr

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/docextract/internal/model"
)

// File loads a pre-computed OCR result ({"text": ..., "blocks": [...]})
// from a JSON file. Used to replay OCR output captured elsewhere.
type File struct{}

// NewFile creates a File provider.
func NewFile() *File { return &File{} }

// Name implements Provider.
func (f *File) Name() string { return "file" }

// Recognize reads and decodes the JSON file at path.
func (f *File) Recognize(ctx context.Context, path string) (*model.OcrResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "ocr: load file")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ocr: read %s", path)
	}
	var res model.OcrResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, eris.Wrapf(err, "ocr: decode %s", path)
	}
	if res.Blocks == nil {
		res.Blocks = []model.OcrToken{}
	}
	if res.Text == "" {
		lines := make([]string, 0, len(res.Blocks))
		for _, b := range res.Blocks {
			if b.BlockType == model.BlockTypeLine {
				lines = append(lines, b.Text)
			}
		}
		res.Text = strings.Join(lines, "\n")
	}
	return &res, nil
}
