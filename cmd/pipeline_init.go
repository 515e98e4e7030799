package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/docextract/internal/ocr"
	"github.com/sells-group/docextract/internal/pipeline"
	"github.com/sells-group/docextract/internal/resilience"
	"github.com/sells-group/docextract/internal/schema"
	"github.com/sells-group/docextract/internal/source"
	"github.com/sells-group/docextract/internal/store"
	"github.com/sells-group/docextract/internal/verify"
	anthropicpkg "github.com/sells-group/docextract/pkg/anthropic"
)

// pipelineEnv holds the store, both extraction sources and the processor
// needed by the process/run/serve commands.
type pipelineEnv struct {
	Store     store.Store
	Processor *pipeline.Processor
	Schemas   *schema.Registry
	SourceA   *source.Guarded
	SourceB   *source.Guarded

	gemini *source.Gemini
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.gemini != nil {
		_ = pe.gemini.Close()
	}
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initPipeline sets up the store, both extraction sources, the schema
// registry and the OCR provider, and builds the Processor. Callers should
// defer env.Close().
func initPipeline(ctx context.Context, mode string) (*pipelineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	schemas, err := schema.Load(cfg.Schema.Path)
	if err != nil {
		return nil, eris.Wrap(err, "load schemas")
	}

	ocrProvider, err := ocr.NewProvider(cfg.OCR)
	if err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	gemini, err := source.NewGemini(ctx, cfg.Gemini)
	if err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "init gemini source")
	}

	guard := resilience.FromSourcesConfig(cfg.Sources)
	sourceA := source.NewGuarded(source.NewAnthropic(anthropicpkg.NewClient(cfg.Anthropic.Key), cfg.Anthropic), guard)
	sourceB := source.NewGuarded(gemini, guard)

	p := pipeline.New(pipeline.Config{
		SourceTimeout: cfg.Sources.Timeout(),
		Thresholds:    thresholdsFromConfig(),
	}, st, schemas, sourceA, sourceB, ocrProvider)

	zap.L().Info("pipeline initialized",
		zap.String("store", cfg.Store.Driver),
		zap.String("ocr", ocrProvider.Name()),
		zap.Int("schemas", len(schemas.Types())),
	)

	return &pipelineEnv{
		Store:     st,
		Processor: p,
		Schemas:   schemas,
		SourceA:   sourceA,
		SourceB:   sourceB,
		gemini:    gemini,
	}, nil
}

// thresholdsFromConfig maps the verify section onto verifier thresholds,
// keeping the shipped default for any value left unset.
func thresholdsFromConfig() verify.Thresholds {
	th := verify.DefaultThresholds()
	v := cfg.Verify
	if v.TextConfirm > 0 {
		th.TextConfirm = v.TextConfirm
	}
	if v.TextSuspicious > 0 {
		th.TextSuspicious = v.TextSuspicious
	}
	if v.NumericMaxDigitEdits != nil {
		th.NumericMaxDigitEdits = *v.NumericMaxDigitEdits
	}
	if v.NumericSuspiciousSimilarity > 0 {
		th.NumericSuspiciousSimilarity = v.NumericSuspiciousSimilarity
	}
	return th
}
