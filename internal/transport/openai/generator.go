package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/legojeon/report-coach/internal/domain"
	"github.com/legojeon/report-coach/internal/metrics"
)

// GeneratorConfig holds the chat-completion settings.
type GeneratorConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	TopP        float32
	Timeout     time.Duration // per attempt; zero leaves only the caller's deadline
	Retry       RetryConfig
	Counter     TokenCounter // estimates usage when the provider omits it; may be nil
	Logger      *zap.Logger
}

// Generator calls an OpenAI-compatible /chat/completions endpoint with a
// single user message.
type Generator struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	topP        float32
	timeout     time.Duration
	retry       RetryConfig
	counter     TokenCounter
	logger      *zap.Logger
}

// NewGenerator creates a text-generation adapter.
func NewGenerator(cfg *GeneratorConfig) *Generator {
	return &Generator{
		client:      newClient(cfg.APIKey, cfg.BaseURL),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		topP:        cfg.TopP,
		timeout:     cfg.Timeout,
		retry:       cfg.Retry,
		counter:     cfg.Counter,
		logger:      cfg.Logger,
	}
}

// Generate implements domain.Generator. Transient failures are retried with
// exponential backoff. An empty completion is domain.ErrEmptyCompletion.
func (g *Generator) Generate(ctx context.Context, prompt string) (domain.Completion, error) {
	req := openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
		TopP:        g.topP,
	}

	start := time.Now()
	var resp openai.ChatCompletionResponse
	err := withRetry(ctx, g.retry, func(ctx context.Context) error {
		if g.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, g.timeout)
			defer cancel()
		}
		var callErr error
		resp, callErr = g.client.CreateChatCompletion(ctx, req)
		return callErr
	})
	metrics.GenerationRequestDuration.WithLabelValues(g.model).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.GenerationRequestsTotal.WithLabelValues(g.model, "error").Inc()
		return domain.Completion{}, parseAPIError("generation", err, domain.ErrGenerationProviderError)
	}

	var text string
	if len(resp.Choices) > 0 {
		text = strings.TrimSpace(resp.Choices[0].Message.Content)
	}
	if text == "" {
		metrics.GenerationRequestsTotal.WithLabelValues(g.model, "empty").Inc()
		return domain.Completion{}, domain.ErrEmptyCompletion
	}

	usage := domain.TokenUsage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
	if usage.IsZero() {
		usage = g.estimateUsage(ctx, prompt, text)
	}

	metrics.GenerationRequestsTotal.WithLabelValues(g.model, "success").Inc()
	metrics.GenerationTokensTotal.WithLabelValues(g.model, "prompt").Add(float64(usage.PromptTokens))
	metrics.GenerationTokensTotal.WithLabelValues(g.model, "completion").Add(float64(usage.CompletionTokens))

	model := resp.Model
	if model == "" {
		model = g.model
	}
	return domain.Completion{Text: text, Usage: usage, Model: model}, nil
}

// HealthCheck verifies API availability via ListModels.
func (g *Generator) HealthCheck(ctx context.Context) error {
	if _, err := g.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

func (g *Generator) estimateUsage(ctx context.Context, prompt, completion string) domain.TokenUsage {
	if g.counter == nil {
		return domain.TokenUsage{}
	}
	p, err := g.counter.CountTokens(ctx, prompt)
	if err != nil {
		g.logger.Debug("Token estimate failed", zap.Error(err))
		return domain.TokenUsage{}
	}
	c, err := g.counter.CountTokens(ctx, completion)
	if err != nil {
		g.logger.Debug("Token estimate failed", zap.Error(err))
		return domain.TokenUsage{}
	}
	return domain.TokenUsage{PromptTokens: p, CompletionTokens: c, TotalTokens: p + c}
}
