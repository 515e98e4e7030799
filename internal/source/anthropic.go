package source

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/docextract/internal/config"
	"github.com/sells-group/docextract/internal/model"
	"github.com/sells-group/docextract/internal/resilience"
	"github.com/sells-group/docextract/internal/schema"
	"github.com/sells-group/docextract/pkg/anthropic"
)

// AnthropicName identifies Source A.
const AnthropicName = "anthropic"

// Anthropic is extraction Source A, backed by the Anthropic Messages API.
type Anthropic struct {
	client anthropic.Client
	cfg    config.AnthropicConfig
}

// NewAnthropic creates Source A.
func NewAnthropic(client anthropic.Client, cfg config.AnthropicConfig) *Anthropic {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	return &Anthropic{client: client, cfg: cfg}
}

// Name implements Source.
func (a *Anthropic) Name() string { return AnthropicName }

// Versions implements Source.
func (a *Anthropic) Versions(docType model.DocumentType) model.SourceVersions {
	return model.SourceVersions{Model: a.cfg.Model, PromptVersion: promptVersion(a.cfg.PromptVersion, docType)}
}

// Extract implements Source.
func (a *Anthropic) Extract(ctx context.Context, text string, s *schema.Schema) (*model.StructuredExtraction, error) {
	start := time.Now()
	temp := 0.0
	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       a.cfg.Model,
		MaxTokens:   a.cfg.MaxTokens,
		System:      anthropic.CachedSystem(systemPrompt(s)),
		Prompt:      userPrompt(text),
		Prefill:     "{",
		Temperature: &temp,
	})
	if err != nil {
		return nil, resilience.WithStatus(eris.Wrap(err, "source: anthropic extract"), anthropic.StatusCode(err))
	}

	resp.Usage.LogCost(a.cfg.Model, string(s.Type))
	if resp.Truncated() {
		return nil, eris.Wrapf(ErrInvalidOutput, "source %s: response truncated at %d tokens", AnthropicName, a.cfg.MaxTokens)
	}

	ext, err := parseExtraction(AnthropicName, resp.Text, s)
	if err != nil {
		return nil, err
	}
	zap.L().Debug("source: extraction complete",
		zap.String("source", AnthropicName),
		zap.String("document_type", string(s.Type)),
		zap.Int("fields", len(ext.Fields)),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return ext, nil
}
