package analysis

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/legojeon/report-coach/internal/domain"
	domusage "github.com/legojeon/report-coach/internal/domain/usage"
	"github.com/legojeon/report-coach/internal/logger"
	"github.com/legojeon/report-coach/internal/metrics"
)

const queryPlaceholder = "{{query}}"

//go:embed prompts/query_analysis.txt
var defaultTemplate string

// LoadTemplate returns the template at path, or the built-in one when path is empty.
func LoadTemplate(path string) (string, error) {
	if path == "" {
		return defaultTemplate, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read prompt template: %w", err)
	}
	t := string(b)
	if !strings.Contains(t, queryPlaceholder) {
		return "", fmt.Errorf("prompt template %s has no %s placeholder", path, queryPlaceholder)
	}
	return t, nil
}

// Analyzer turns a raw query into a QueryAnalysis with one generation call.
type Analyzer struct {
	gen      domain.Generator
	usage    UsageRecorder
	template string
	logger   *zap.Logger
}

// New creates an Analyzer. usage may be nil; an empty template selects the built-in one.
func New(gen domain.Generator, usage UsageRecorder, template string, logger *zap.Logger) *Analyzer {
	if template == "" {
		template = defaultTemplate
	}
	return &Analyzer{gen: gen, usage: usage, template: template, logger: logger}
}

// Analyze never fails: generation errors degrade to the raw query with no
// sections, keywords or filters.
func (a *Analyzer) Analyze(ctx context.Context, raw string) domain.QueryAnalysis {
	log := logger.FromContext(ctx, a.logger)
	start := time.Now()

	completion, err := a.gen.Generate(ctx, a.render(raw))
	if err != nil {
		metrics.SearchAnalysisDegradedTotal.WithLabelValues("generation_error").Inc()
		log.Warn("query analysis degraded",
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return domain.FallbackAnalysis(raw)
	}

	a.recordUsage(ctx, raw, completion.Usage)

	res := parseResponse(completion.Text)
	res.Usage = completion.Usage
	if res.NormalizedQuery == "" {
		metrics.SearchAnalysisDegradedTotal.WithLabelValues("empty_summary").Inc()
		log.Info("analysis returned no normalized query, using raw query")
		res.NormalizedQuery = raw
	}

	log.Debug("query analyzed",
		zap.Duration("duration", time.Since(start)),
		zap.String("normalized_query", res.NormalizedQuery),
		zap.Strings("priority_sections", res.PrioritySections),
		zap.Strings("keywords", res.Keywords),
		zap.Any("metadata_filters", res.MetadataFilters),
	)
	return res
}

func (a *Analyzer) render(raw string) string {
	return strings.ReplaceAll(a.template, queryPlaceholder, raw)
}

func (a *Analyzer) recordUsage(ctx context.Context, raw string, u domain.TokenUsage) {
	if u.IsZero() {
		return
	}
	domain.UsageFromContext(ctx).AddGenerationTokens(u.TotalTokens)
	if a.usage == nil {
		return
	}
	caller := domain.CallerFromContext(ctx)
	a.usage.Record(domusage.Record{
		UserID:         caller.UserID,
		ServiceName:    domusage.ServiceQuerySummary,
		RequestPrompt:  raw,
		PromptTokens:   u.PromptTokens,
		ResponseTokens: u.CompletionTokens,
		TotalTokens:    u.TotalTokens,
		Hidden:         caller.Hidden,
		At:             time.Now().UTC(),
	})
}
