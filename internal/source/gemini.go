package source

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/sells-group/docextract/internal/config"
	"github.com/sells-group/docextract/internal/model"
	"github.com/sells-group/docextract/internal/resilience"
	"github.com/sells-group/docextract/internal/schema"
)

// GeminiName identifies Source B.
const GeminiName = "gemini"

// generateFunc sends one system+user prompt pair and returns the response text.
type generateFunc func(ctx context.Context, system, user string) (string, error)

// Gemini is extraction Source B, backed by the Gemini API.
type Gemini struct {
	cfg      config.GeminiConfig
	client   *genai.Client
	generate generateFunc
}

// NewGemini creates Source B. Close releases the underlying client.
func NewGemini(ctx context.Context, cfg config.GeminiConfig) (*Gemini, error) {
	cl, err := genai.NewClient(ctx, option.WithAPIKey(cfg.Key))
	if err != nil {
		return nil, eris.Wrap(err, "source: create gemini client")
	}
	g := &Gemini{cfg: cfg, client: cl}
	g.generate = g.callModel
	return g, nil
}

// Close releases the Gemini client.
func (g *Gemini) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

// Name implements Source.
func (g *Gemini) Name() string { return GeminiName }

// Versions implements Source.
func (g *Gemini) Versions(docType model.DocumentType) model.SourceVersions {
	return model.SourceVersions{Model: g.cfg.Model, PromptVersion: promptVersion(g.cfg.PromptVersion, docType)}
}

// Extract implements Source.
func (g *Gemini) Extract(ctx context.Context, text string, s *schema.Schema) (*model.StructuredExtraction, error) {
	start := time.Now()
	raw, err := g.generate(ctx, systemPrompt(s), userPrompt(text))
	if err != nil {
		return nil, classifyGeminiError(err)
	}
	ext, err := parseExtraction(GeminiName, raw, s)
	if err != nil {
		return nil, err
	}
	zap.L().Debug("source: extraction complete",
		zap.String("source", GeminiName),
		zap.String("document_type", string(s.Type)),
		zap.Int("fields", len(ext.Fields)),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return ext, nil
}

func (g *Gemini) callModel(ctx context.Context, system, user string) (string, error) {
	m := g.client.GenerativeModel(g.cfg.Model)
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:      &g.cfg.Temperature,
		ResponseMIMEType: "application/json",
	}
	m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}

	resp, err := m.GenerateContent(ctx, genai.Text(user))
	if err != nil {
		return "", err
	}
	if resp.UsageMetadata != nil {
		zap.L().Info("cost attribution",
			zap.String("model", g.cfg.Model),
			zap.Int32("input_tokens", resp.UsageMetadata.PromptTokenCount),
			zap.Int32("output_tokens", resp.UsageMetadata.CandidatesTokenCount),
		)
	}
	return firstText(resp), nil
}

// firstText concatenates the text parts of the first candidate with content.
func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		var sb strings.Builder
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				sb.WriteString(string(t))
			}
		}
		if sb.Len() > 0 {
			return sb.String()
		}
	}
	return ""
}

// classifyGeminiError marks retryable API statuses as transient.
func classifyGeminiError(err error) error {
	wrapped := eris.Wrap(err, "source: gemini extract")
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return resilience.WithStatus(wrapped, apiErr.Code)
	}
	return wrapped
}
