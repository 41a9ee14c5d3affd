package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/legojeon/report-coach/internal/domain"
	"github.com/legojeon/report-coach/internal/metrics"
)

// MaxAPIBatchSize caps the number of inputs sent in one embeddings request.
const MaxAPIBatchSize = 256

// Budget is what the instrumented embedder needs from a BudgetTracker.
type Budget interface {
	Check(ctx context.Context) error
	Record(ctx context.Context, tokens int64)
	RemainingDaily() int64
	RemainingMonthly() int64
}

// InstrumentedEmbedder enforces the token budget around an embedder and
// attributes consumed tokens to the request in ctx.
type InstrumentedEmbedder struct {
	inner    domain.Embedder
	provider string
	model    string
	budget   Budget
	logger   *zap.Logger
}

// NewInstrumentedEmbedder wraps inner. budget may be nil.
func NewInstrumentedEmbedder(
	inner domain.Embedder, provider, model string,
	budget Budget, logger *zap.Logger,
) *InstrumentedEmbedder {
	return &InstrumentedEmbedder{
		inner:    inner,
		provider: provider,
		model:    model,
		budget:   budget,
		logger:   logger,
	}
}

// Embed embeds one text.
func (p *InstrumentedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if err := p.checkBudget(ctx, 1); err != nil {
		return domain.EmbeddingResult{}, err
	}

	start := time.Now()
	res, err := p.inner.Embed(ctx, text)
	if err != nil {
		p.logger.Error("embedding request failed",
			zap.String("provider", p.provider),
			zap.String("model", p.model),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}

	p.account(ctx, res.TotalTokens)
	p.logger.Debug("embedding request completed",
		zap.String("model", p.model),
		zap.Duration("duration", time.Since(start)),
		zap.Int("dimensions", len(res.Embedding)),
		zap.Int("total_tokens", res.TotalTokens),
	)
	return res, nil
}

// BatchEmbed embeds texts in sub-batches of MaxAPIBatchSize, re-checking the budget between them.
func (p *InstrumentedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	start := time.Now()
	var out domain.BatchEmbeddingResult
	for offset := 0; offset < len(texts); offset += MaxAPIBatchSize {
		if err := p.checkBudget(ctx, len(texts)); err != nil {
			return domain.BatchEmbeddingResult{}, err
		}

		part := texts[offset:min(offset+MaxAPIBatchSize, len(texts))]
		res, err := domain.EmbedMany(ctx, p.inner, part)
		if err != nil {
			p.logger.Error("batch embedding request failed",
				zap.String("provider", p.provider),
				zap.String("model", p.model),
				zap.Int("offset", offset),
				zap.Int("size", len(part)),
				zap.Error(err),
			)
			return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
		}
		p.account(ctx, res.TotalTokens)

		out.Embeddings = append(out.Embeddings, res.Embeddings...)
		out.PromptTokens += res.PromptTokens
		out.TotalTokens += res.TotalTokens
	}

	p.logger.Debug("batch embedding completed",
		zap.String("model", p.model),
		zap.Duration("duration", time.Since(start)),
		zap.Int("batch_size", len(texts)),
		zap.Int("total_tokens", out.TotalTokens),
	)
	return out, nil
}

// HealthCheck delegates to the inner embedder when it supports health checks.
func (p *InstrumentedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := p.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

func (p *InstrumentedEmbedder) checkBudget(ctx context.Context, size int) error {
	if p.budget == nil {
		return nil
	}
	if err := p.budget.Check(ctx); err != nil {
		p.logger.Error("embedding budget exceeded",
			zap.String("provider", p.provider),
			zap.Int("size", size),
			zap.Error(err),
		)
		return fmt.Errorf("budget check: %w", err)
	}
	return nil
}

func (p *InstrumentedEmbedder) account(ctx context.Context, tokens int) {
	if tokens <= 0 {
		return
	}
	domain.UsageFromContext(ctx).AddEmbeddingTokens(tokens)
	if p.budget == nil {
		return
	}
	p.budget.Record(ctx, int64(tokens))
	g := metrics.EmbeddingBudgetTokensRemaining
	g.WithLabelValues(p.provider, "daily").Set(float64(p.budget.RemainingDaily()))
	g.WithLabelValues(p.provider, "monthly").Set(float64(p.budget.RemainingMonthly()))
}
