package domain

import (
	"context"
	"sync"
)

type requestUsageKey struct{}

// RequestUsage collects token usage for a single search request.
// The transport puts it into the context; embedders and the analyzer add to it.
// Embedding batches run concurrently, so writes are guarded.
type RequestUsage struct {
	mu               sync.Mutex
	embeddingTokens  int
	generationTokens int
}

// NewContextWithUsage returns a context carrying a fresh usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *RequestUsage) {
	u := &RequestUsage{}
	return context.WithValue(ctx, requestUsageKey{}, u), u
}

// UsageFromContext returns the collector or nil.
func UsageFromContext(ctx context.Context) *RequestUsage {
	u, _ := ctx.Value(requestUsageKey{}).(*RequestUsage)
	return u
}

// AddEmbeddingTokens records embedding tokens. Nil-safe.
func (u *RequestUsage) AddEmbeddingTokens(n int) {
	if u == nil {
		return
	}
	u.mu.Lock()
	u.embeddingTokens += n
	u.mu.Unlock()
}

// AddGenerationTokens records generation tokens. Nil-safe.
func (u *RequestUsage) AddGenerationTokens(n int) {
	if u == nil {
		return
	}
	u.mu.Lock()
	u.generationTokens += n
	u.mu.Unlock()
}

// EmbeddingTokens returns the embedding tokens recorded so far.
func (u *RequestUsage) EmbeddingTokens() int {
	if u == nil {
		return 0
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.embeddingTokens
}

// GenerationTokens returns the generation tokens recorded so far.
func (u *RequestUsage) GenerationTokens() int {
	if u == nil {
		return 0
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.generationTokens
}
