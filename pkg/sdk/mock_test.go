package reportcoach

import (
	"context"
	"hash/fnv"

	"github.com/legojeon/report-coach/internal/domain"
	domusage "github.com/legojeon/report-coach/internal/domain/usage"
	healthuc "github.com/legojeon/report-coach/internal/usecase/health"
	ingestuc "github.com/legojeon/report-coach/internal/usecase/ingest"
)

type mockEmbedder struct {
	fn func(ctx context.Context, text string) (EmbeddingResult, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	return m.fn(ctx, text)
}

type mockBatchEmbedder struct {
	mockEmbedder
	batchFn func(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

func (m *mockBatchEmbedder) BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error) {
	return m.batchFn(ctx, texts)
}

type mockGenerator struct {
	text string
	err  error
}

func (m *mockGenerator) Generate(context.Context, string) (Completion, error) {
	if m.err != nil {
		return Completion{}, m.err
	}
	return Completion{Text: m.text, Usage: TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}, Model: "mock"}, nil
}

// runeEmbedder hashes each rune into one of dim buckets, so texts sharing
// characters end up close together.
type runeEmbedder struct{ dim int }

func (e runeEmbedder) Embed(_ context.Context, text string) (EmbeddingResult, error) {
	v := make([]float32, e.dim)
	for _, r := range text {
		h := fnv.New32a()
		_, _ = h.Write([]byte(string(r)))
		v[h.Sum32()%uint32(e.dim)]++
	}
	v[0] += 0.01
	return EmbeddingResult{Embedding: v, TotalTokens: len([]rune(text))}, nil
}

type mockSearchUC struct {
	fn func(ctx context.Context, query string, k int) (domain.SearchResponse, error)
}

func (m *mockSearchUC) Search(ctx context.Context, query string, k int) (domain.SearchResponse, error) {
	return m.fn(ctx, query, k)
}

type mockIngestUC struct {
	fn func(ctx context.Context, dir string) (ingestuc.Result, error)
}

func (m *mockIngestUC) Run(ctx context.Context, dir string) (ingestuc.Result, error) {
	return m.fn(ctx, dir)
}

type mockHealthUC struct{ report healthuc.Report }

func (m *mockHealthUC) Check(context.Context) healthuc.Report { return m.report }

type mockUsageUC struct {
	fn func(ctx context.Context, period domusage.Period) (domusage.Report, error)
}

func (m *mockUsageUC) Report(ctx context.Context, period domusage.Period) (domusage.Report, error) {
	return m.fn(ctx, period)
}
