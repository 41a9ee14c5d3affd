package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/legojeon/report-coach/internal/domain"
	"github.com/legojeon/report-coach/internal/logger"
	"github.com/legojeon/report-coach/internal/metrics"
)

// Defaults applied when Options leave a field at zero.
const (
	DefaultOverfetchFactor = 5
	DefaultMaxK            = 100
)

// Options tune retrieval and ranking.
type Options struct {
	Weights         domain.Weights
	OverfetchFactor int
	MaxK            int
	SnippetLength   int
}

func (o Options) withDefaults() Options {
	if o.OverfetchFactor <= 0 {
		o.OverfetchFactor = DefaultOverfetchFactor
	}
	if o.MaxK <= 0 {
		o.MaxK = DefaultMaxK
	}
	if o.SnippetLength <= 0 {
		o.SnippetLength = DefaultSnippetLength
	}
	return o
}

// Service runs the retrieval and ranking pipeline:
// analyze, retrieve, filter, rerank, then deduplicate and format.
type Service struct {
	analyzer  Analyzer
	embedders Provider[Embedders]
	index     Provider[VectorIndex]
	images    ImageLocator
	opts      Options
	tracer    trace.Tracer
	logger    *zap.Logger
}

// New creates a search service. images may be nil.
func New(
	analyzer Analyzer, embedders Provider[Embedders], index Provider[VectorIndex],
	images ImageLocator, opts Options, logger *zap.Logger,
) *Service {
	return &Service{
		analyzer:  analyzer,
		embedders: embedders,
		index:     index,
		images:    images,
		opts:      opts.withDefaults(),
		tracer:    otel.Tracer("github.com/legojeon/report-coach/internal/usecase/search"),
		logger:    logger,
	}
}

// MaxK returns the largest accepted k.
func (s *Service) MaxK() int { return s.opts.MaxK }

// Search returns at most k results, unique by report number, best first.
func (s *Service) Search(ctx context.Context, query string, k int) (resp domain.SearchResponse, err error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.SearchResponse{}, domain.ErrEmptyQuery
	}
	if k < 1 || k > s.opts.MaxK {
		return domain.SearchResponse{}, fmt.Errorf("%w: got %d, want 1..%d", domain.ErrInvalidK, k, s.opts.MaxK)
	}

	ctx, span := s.tracer.Start(ctx, "search.Search", trace.WithAttributes(attribute.Int("search.k", k)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	log := logger.FromContext(ctx, s.logger)

	start := time.Now()
	analysis := s.analyzer.Analyze(ctx, query)
	observeStage("analyze", start)
	normalized := strings.TrimSpace(analysis.NormalizedQuery)
	if normalized == "" {
		normalized = query
	}

	emb, err := s.embedders.Get(ctx)
	if err != nil {
		return domain.SearchResponse{}, fmt.Errorf("%w: embedding provider: %w", domain.ErrCollaboratorUnavailable, err)
	}
	idx, err := s.index.Get(ctx)
	if err != nil {
		return domain.SearchResponse{}, fmt.Errorf("%w: vector index: %w", domain.ErrCollaboratorUnavailable, err)
	}

	start = time.Now()
	qvec, cands, err := retrieve(ctx, emb.Query, idx, normalized, k*s.opts.OverfetchFactor)
	observeStage("retrieve", start)
	if err != nil {
		return domain.SearchResponse{}, err
	}

	start = time.Now()
	filtered, bypassed := applyFilters(cands, analysis.MetadataFilters, k)
	observeStage("filter", start)
	if bypassed {
		metrics.SearchFilterBypassTotal.Inc()
		log.Info("metadata filters bypassed",
			zap.Any("filters", analysis.MetadataFilters),
			zap.Int("candidates", len(cands)),
			zap.Int("k", k),
		)
	}
	metrics.SearchCandidates.Observe(float64(len(filtered)))

	start = time.Now()
	analysis.NormalizedQuery = normalized
	scored, err := rerank(ctx, emb.Passage, qvec, filtered, newSignals(analysis, query), s.opts.Weights)
	observeStage("rerank", start)
	if err != nil {
		return domain.SearchResponse{}, fmt.Errorf("%w: rerank embeddings: %w", domain.ErrCollaboratorUnavailable, err)
	}

	start = time.Now()
	results := format(scored, k, s.opts.SnippetLength, s.images)
	observeStage("format", start)

	span.SetAttributes(
		attribute.Int("search.candidates", len(cands)),
		attribute.Bool("search.filter_bypassed", bypassed),
		attribute.Bool("search.analysis_degraded", analysis.Degraded),
		attribute.Int("search.results", len(results)),
	)
	log.Debug("search completed",
		zap.String("normalized_query", normalized),
		zap.Int("candidates", len(cands)),
		zap.Int("results", len(results)),
	)

	resp = domain.SearchResponse{
		Query:            query,
		NormalizedQuery:  normalized,
		PrioritySections: nonNil(analysis.PrioritySections),
		MetadataFilters:  analysis.MetadataFilters,
		TotalResults:     len(results),
		Results:          results,
	}
	if resp.MetadataFilters == nil {
		resp.MetadataFilters = map[string]string{}
	}
	if !analysis.Usage.IsZero() {
		u := analysis.Usage
		resp.Usage = &u
	}
	return resp, nil
}

func observeStage(stage string, start time.Time) {
	metrics.SearchStageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
