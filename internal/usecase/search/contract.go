package search

import (
	"context"

	"github.com/legojeon/report-coach/internal/domain"
)

// Analyzer turns a raw query into a QueryAnalysis. It never fails.
type Analyzer interface {
	Analyze(ctx context.Context, raw string) domain.QueryAnalysis
}

// VectorIndex returns the n chunks nearest to a vector, most similar first.
type VectorIndex interface {
	Search(ctx context.Context, vector []float32, n int) ([]domain.Candidate, error)
}

// ImageLocator maps a report number to its image reference, "" when none exists.
type ImageLocator interface {
	Reference(number string) string
}

// Provider yields a lazily built collaborator. *lazy.Value satisfies it.
type Provider[T any] interface {
	Get(ctx context.Context) (T, error)
}

// Embedders pairs the query-side and passage-side embedders of one model.
type Embedders struct {
	Query   domain.Embedder
	Passage domain.Embedder
}
