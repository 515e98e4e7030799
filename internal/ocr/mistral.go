package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/docextract/internal/model"
	"github.com/sells-group/docextract/internal/resilience"
)

const (
	mistralOCREndpoint  = "https://api.mistral.ai/v1/ocr"
	defaultMistralModel = "mistral-ocr-latest"
)

// MistralOCR recognizes scanned documents using the Mistral OCR API.
type MistralOCR struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

// NewMistralOCR creates a MistralOCR provider. If model is empty, the default is used.
func NewMistralOCR(apiKey, model string) *MistralOCR {
	if model == "" {
		model = defaultMistralModel
	}
	return &MistralOCR{
		apiKey:   apiKey,
		model:    model,
		endpoint: mistralOCREndpoint,
		client:   &http.Client{},
	}
}

type mistralOCRRequest struct {
	Model    string             `json:"model"`
	Document mistralOCRDocument `json:"document"`
}

type mistralOCRDocument struct {
	Type        string `json:"type"`
	DocumentURL string `json:"document_url,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

type mistralOCRResponse struct {
	Pages []mistralOCRPage `json:"pages"`
}

type mistralOCRPage struct {
	Index    int    `json:"index"`
	Markdown string `json:"markdown"`
}

// Name implements Provider.
func (m *MistralOCR) Name() string { return "mistral" }

// Recognize sends the file to Mistral OCR and turns each page's markdown
// into LINE tokens.
func (m *MistralOCR) Recognize(ctx context.Context, path string) (*model.OcrResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ocr: read document %s", path)
	}

	doc := documentPayload(path, data)
	bodyBytes, err := json.Marshal(mistralOCRRequest{Model: m.model, Document: doc})
	if err != nil {
		return nil, eris.Wrap(err, "ocr: marshal mistral request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, eris.Wrap(err, "ocr: create mistral request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "ocr: mistral API call")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "ocr: read mistral response")
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := eris.Errorf("ocr: mistral API returned %d: %s", resp.StatusCode, string(respBody))
		return nil, resilience.WithStatus(apiErr, resp.StatusCode)
	}

	var ocrResp mistralOCRResponse
	if err := json.Unmarshal(respBody, &ocrResp); err != nil {
		return nil, eris.Wrap(err, "ocr: unmarshal mistral response")
	}

	pages := make([]string, 0, len(ocrResp.Pages))
	for _, p := range ocrResp.Pages {
		if p.Index < 0 {
			continue
		}
		for len(pages) <= p.Index {
			pages = append(pages, "")
		}
		pages[p.Index] = p.Markdown
	}
	return buildResult(pages), nil
}

// documentPayload embeds the file as a data URL. Images go through image_url,
// everything else is sent as a PDF document.
func documentPayload(path string, data []byte) mistralOCRDocument {
	encoded := base64.StdEncoding.EncodeToString(data)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return mistralOCRDocument{Type: "image_url", ImageURL: "data:image/png;base64," + encoded}
	case ".jpg", ".jpeg":
		return mistralOCRDocument{Type: "image_url", ImageURL: "data:image/jpeg;base64," + encoded}
	default:
		return mistralOCRDocument{Type: "document_url", DocumentURL: "data:application/pdf;base64," + encoded}
	}
}
