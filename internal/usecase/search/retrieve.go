package search

import (
	"context"
	"fmt"

	"github.com/legojeon/report-coach/internal/domain"
)

// retrieve embeds the normalized query and fetches the n nearest chunks.
// The query vector is returned for reuse by the reranker.
func retrieve(
	ctx context.Context, emb domain.Embedder, idx VectorIndex, query string, n int,
) ([]float32, []domain.Candidate, error) {
	res, err := emb.Embed(ctx, query)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: embed query: %w", domain.ErrCollaboratorUnavailable, err)
	}
	cands, err := idx.Search(ctx, res.Embedding, n)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: vector search: %w", domain.ErrCollaboratorUnavailable, err)
	}
	return res.Embedding, cands, nil
}
