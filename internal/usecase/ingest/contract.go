package ingest

import (
	"context"

	"github.com/legojeon/report-coach/internal/domain"
)

// Indexer is the write side of a vector index.
type Indexer interface {
	EnsureIndex(ctx context.Context, dim int) error
	Upsert(ctx context.Context, chunks []domain.IndexedChunk) error
}
