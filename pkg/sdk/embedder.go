package reportcoach

import (
	"context"
	"fmt"

	"github.com/legojeon/report-coach/internal/domain"
)

// Embedder is a text vectorization provider.
// Implement this interface to plug in any embedding model.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// BatchEmbedder is optionally implemented by embedders with a batch endpoint.
// Ingest uses it when available.
type BatchEmbedder interface {
	BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

// EmbeddingResult is one vector with its token usage.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// BatchEmbeddingResult holds vectors in input order with aggregate token usage.
type BatchEmbeddingResult struct {
	Embeddings   [][]float32
	PromptTokens int
	TotalTokens  int
}

// Generator is a text-generation model used to analyze queries.
type Generator interface {
	Generate(ctx context.Context, prompt string) (Completion, error)
}

// Completion is generated text with its token usage.
type Completion struct {
	Text  string
	Usage TokenUsage
	Model string
}

// embedderAdapter adapts the public Embedder to domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, err //nolint:wrapcheck // caller's embedder error
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

// HealthCheck delegates when the embedder exposes one.
func (a *embedderAdapter) HealthCheck(ctx context.Context) error {
	if hc, ok := a.inner.(interface{ HealthCheck(context.Context) error }); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // caller's health error
	}
	return nil
}

// batchEmbedderAdapter also forwards batch calls.
type batchEmbedderAdapter struct {
	embedderAdapter
	batch BatchEmbedder
}

func (a *batchEmbedderAdapter) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	r, err := a.batch.BatchEmbed(ctx, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, err //nolint:wrapcheck // caller's embedder error
	}
	if len(r.Embeddings) != len(texts) {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed returned %d vectors for %d texts", len(r.Embeddings), len(texts))
	}
	return domain.BatchEmbeddingResult{
		Embeddings:   r.Embeddings,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

func adaptEmbedder(e Embedder) domain.Embedder {
	if be, ok := e.(BatchEmbedder); ok {
		return &batchEmbedderAdapter{embedderAdapter: embedderAdapter{inner: e}, batch: be}
	}
	return &embedderAdapter{inner: e}
}

// generatorAdapter adapts the public Generator to domain.Generator.
type generatorAdapter struct {
	inner Generator
}

func (a *generatorAdapter) Generate(ctx context.Context, prompt string) (domain.Completion, error) {
	c, err := a.inner.Generate(ctx, prompt)
	if err != nil {
		return domain.Completion{}, fmt.Errorf("%w: %w", domain.ErrGenerationProviderError, err)
	}
	return domain.Completion{Text: c.Text, Usage: c.Usage, Model: c.Model}, nil
}

// noGenerator is used without WithGenerator. Every query is searched as typed.
type noGenerator struct{}

func (noGenerator) Generate(context.Context, string) (domain.Completion, error) {
	return domain.Completion{}, fmt.Errorf("%w: no generator configured", domain.ErrGenerationProviderError)
}

// HealthCheck delegates when the generator exposes one.
func (a *generatorAdapter) HealthCheck(ctx context.Context) error {
	if hc, ok := a.inner.(interface{ HealthCheck(context.Context) error }); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // caller's health error
	}
	return nil
}
