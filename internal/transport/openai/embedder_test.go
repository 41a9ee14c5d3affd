package openai

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/legojeon/report-coach/internal/domain"
)

func newTestEmbedder(url string) *Embedder {
	return NewEmbedder(&Config{
		APIKey:   "test-key",
		BaseURL:  url,
		Model:    "text-embedding-004",
		Provider: "test",
		Logger:   zap.NewNop(),
	})
}

func TestEmbedder_Embed(t *testing.T) {
	want := []float32{0.1, 0.2, 0.3, 0.4}
	srv := embeddingServer(t, 42, [][]float32{want})

	res, err := newTestEmbedder(srv.URL).Embed(context.Background(), "query: 태양광 발전")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(res.Embedding) != len(want) {
		t.Fatalf("expected %d dimensions, got %d", len(want), len(res.Embedding))
	}
	for i, v := range res.Embedding {
		if v != want[i] {
			t.Errorf("vec[%d] = %f, expected %f", i, v, want[i])
		}
	}
	if res.PromptTokens != 42 || res.TotalTokens != 42 {
		t.Errorf("usage = %d/%d, expected 42/42", res.PromptTokens, res.TotalTokens)
	}
}

func TestEmbedder_SendsAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header: %s", got)
		}
		writeJSON(w, http.StatusOK, embeddingResponse{
			Object: "list",
			Data:   []embeddingItem{{Object: "embedding", Embedding: []float32{1}}},
		})
	}))
	defer srv.Close()

	if _, err := newTestEmbedder(srv.URL).Embed(context.Background(), "x"); err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
}

func TestEmbedder_BatchEmbedRestoresOrder(t *testing.T) {
	// Items come back reversed; Index decides placement.
	srv := embeddingServer(t, 20, [][]float32{{0.3, 0.4}, {0.1, 0.2}}, 1, 0)

	res, err := newTestEmbedder(srv.URL).BatchEmbed(context.Background(), []string{"hello", "world"})
	if err != nil {
		t.Fatalf("BatchEmbed failed: %v", err)
	}
	if len(res.Embeddings) != 2 {
		t.Fatalf("expected 2 embeddings, got %d", len(res.Embeddings))
	}
	if res.Embeddings[0][0] != 0.1 || res.Embeddings[1][0] != 0.3 {
		t.Errorf("order not restored: %v", res.Embeddings)
	}
	if res.TotalTokens != 20 {
		t.Errorf("expected TotalTokens=20, got %d", res.TotalTokens)
	}
}

func TestEmbedder_BatchEmbedEmpty(t *testing.T) {
	res, err := newTestEmbedder("http://unused").BatchEmbed(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Embeddings != nil {
		t.Errorf("expected nil embeddings for empty input, got %v", res.Embeddings)
	}
}

func TestEmbedder_BatchEmbedCountMismatch(t *testing.T) {
	srv := embeddingServer(t, 5, [][]float32{{0.1}})

	_, err := newTestEmbedder(srv.URL).BatchEmbed(context.Background(), []string{"a", "b"})
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected ErrEmbeddingProviderError, got %v", err)
	}
}

func TestEmbedder_DuplicateIndex(t *testing.T) {
	srv := embeddingServer(t, 5, [][]float32{{0.1}, {0.2}}, 0, 0)

	_, err := newTestEmbedder(srv.URL).BatchEmbed(context.Background(), []string{"a", "b"})
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected ErrEmbeddingProviderError, got %v", err)
	}
}

func TestEmbedder_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error": map[string]any{"message": "rate limit exceeded", "type": "rate_limit_error"},
		})
	}))
	defer srv.Close()

	_, err := newTestEmbedder(srv.URL).Embed(context.Background(), "hello")
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected ErrEmbeddingProviderError, got %v", err)
	}
}

func TestExtractDetail(t *testing.T) {
	if got := extractDetail([]byte(`{"detail":"model not found"}`)); got != "model not found" {
		t.Errorf("extractDetail = %q", got)
	}
	if got := extractDetail([]byte(`not json`)); got != "" {
		t.Errorf("extractDetail(invalid) = %q", got)
	}
}
