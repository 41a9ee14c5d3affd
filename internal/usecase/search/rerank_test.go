package search

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/legojeon/report-coach/internal/domain"
)

func TestScore_Components(t *testing.T) {
	w := domain.DefaultWeights()
	ch := chunk("1001", "탐구 결과", "LED 조명과 상추", "빛의 파장에 따라 상추의 생장 속도가 달라졌다",
		domain.MetaAward, domain.AwardPresident,
		domain.MetaField, "생물",
		domain.MetaYear, "2023",
		"custom", "x",
	)
	sig := signals{
		sections:        []string{"탐구 방법", "탐구 결과"},
		normalizedTerms: terms("상추 생장 파장"),
		rawTerms:        terms("LED 상추 a"),
		keywords:        []string{"led", "토마토"},
		filters:         map[string]string{domain.MetaField: "생물", domain.MetaYear: "2022", "custom": "x"},
	}

	b := score(ch, 0.8, 0.5, sig, w)

	assert.InDelta(t, 0.04, b.SectionBoost, 1e-9)
	assert.InDelta(t, 0.15, b.AwardBoost, 1e-9)
	assert.InDelta(t, 0.06+domain.DefaultMetadataWeight, b.MetadataBoost, 1e-9)
	assert.Equal(t, 3, b.NormalizedMatches)
	assert.Equal(t, 2, b.RawMatches)
	assert.Equal(t, 1, b.KeywordMatches)
	assert.Equal(t, 6, b.MatchedTerms)
	assert.InDelta(t, 0.3, b.KeywordBoost, 1e-9)

	want := (0.8 + 1.1*0.5) + 0.04 + 0.3 + 0.15 + 0.11
	assert.InDelta(t, want, b.Total, 1e-9)
	assert.True(t, strings.HasPrefix(b.Calculation, "(0.8000 + 1.1 × 0.5000)"), b.Calculation)
	assert.True(t, strings.HasSuffix(b.Calculation, "= 1.9500"), b.Calculation)
}

func TestSectionBoost_DecreasesWithPriority(t *testing.T) {
	w := domain.DefaultWeights()
	prio := []string{"탐구 결과", "탐구 방법", "결론", "참고 문헌"}

	first := sectionBoost("탐구 결과", prio, w)
	second := sectionBoost("탐구 방법", prio, w)
	third := sectionBoost("결론", prio, w)
	assert.Greater(t, first, second)
	assert.Greater(t, second, third)
	assert.Greater(t, third, 0.0)
	assert.Zero(t, sectionBoost("참고 문헌", prio, w), "beyond the weight table")
	assert.Zero(t, sectionBoost("탐구 동기", prio, w), "not prioritised")
	assert.Zero(t, sectionBoost("", []string{""}, w))
}

func TestScore_UnknownAward(t *testing.T) {
	ch := chunk("1", "s", "t", "c", domain.MetaAward, "인기상")
	assert.Zero(t, score(ch, 0, 0, signals{}, domain.DefaultWeights()).AwardBoost)
}

// Adding a keyword that occurs in the chunk never lowers its total.
func TestScore_KeywordBoostMonotonic(t *testing.T) {
	w := domain.DefaultWeights()
	words := []string{"자석", "전류", "코일", "저항", "전압", "실험"}
	rapid.Check(t, func(t *rapid.T) {
		content := strings.Join(rapid.SliceOfN(rapid.SampledFrom(words), 1, 6).Draw(t, "content"), " ")
		kws := rapid.SliceOfN(rapid.SampledFrom(words), 0, 4).Draw(t, "keywords")
		extra := rapid.SampledFrom(words).Draw(t, "extra")
		ch := chunk("1", "s", "", content)

		before := score(ch, 0.5, 0, signals{keywords: kws}, w).Total
		after := score(ch, 0.5, 0, signals{keywords: append(kws, extra)}, w).Total
		if after < before {
			t.Fatalf("adding keyword %q lowered total %v -> %v", extra, before, after)
		}
	})
}

func TestRerank_SortsByTotalStable(t *testing.T) {
	q := []float32{1, 0}
	emb := &mapEmbedder{
		vecs: map[string][]float32{
			"near": {1, 0},
			"mid":  {1, 1},
			"far":  {0, 1},
		},
		fallback: []float32{0, 0},
	}
	cands := candidates(
		chunk("1", "s", "", "far"),
		chunk("2", "s", "", "near"),
		chunk("3", "s", "", "mid"),
		chunk("4", "s", "", "near"),
	)

	out, err := rerank(context.Background(), emb, q, cands, signals{}, zeroWeights())
	require.NoError(t, err)
	require.Len(t, out, 4)

	var order []string
	for _, sc := range out {
		order = append(order, sc.Chunk.ReportNumber())
	}
	assert.Equal(t, []string{"2", "4", "3", "1"}, order, "ties keep retrieval order")
	assert.Equal(t, 1, out[0].Position)
	assert.Equal(t, 3, out[1].Position)
	for i := 1; i < len(out); i++ {
		assert.GreaterOrEqual(t, out[i-1].Score.Total, out[i].Score.Total)
	}
}

func TestRerank_TitleSimilarity(t *testing.T) {
	q := []float32{1, 0}
	emb := &mapEmbedder{
		vecs:     map[string][]float32{"좋은 제목": {1, 0}},
		fallback: []float32{0, 1},
	}
	cands := candidates(
		chunk("1", "s", "", "본문"),
		chunk("2", "s", "좋은 제목", "본문"),
		chunk("3", "s", "좋은 제목", "본문 2"),
	)
	w := zeroWeights()
	w.Alpha = 1.1

	out, err := rerank(context.Background(), emb, q, cands, signals{}, w)
	require.NoError(t, err)
	assert.Equal(t, "2", out[0].Chunk.ReportNumber())
	assert.InDelta(t, 1.0, out[0].Score.TitleScore, 1e-6)
	assert.InDelta(t, 1.1, out[0].Score.Total, 1e-6)
	assert.Zero(t, out[2].Score.TitleScore, "blank title scores 0")

	// each distinct non-blank title is embedded once, blank titles never
	titleBatches := 0
	for _, batch := range emb.calls {
		if len(batch) == 1 && batch[0] == "좋은 제목" {
			titleBatches++
		}
	}
	assert.Equal(t, 1, titleBatches)
	assert.False(t, emb.embedded(""))
}

func TestRerank_Empty(t *testing.T) {
	emb := &mapEmbedder{}
	out, err := rerank(context.Background(), emb, []float32{1}, nil, signals{}, domain.DefaultWeights())
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Empty(t, emb.calls)
}

func TestRerank_EmbedError(t *testing.T) {
	emb := &mapEmbedder{err: errors.New("provider down")}
	_, err := rerank(context.Background(), emb, []float32{1}, candidates(chunk("1", "s", "t", "c")), signals{}, domain.DefaultWeights())
	assert.Error(t, err)
}

func TestRerank_VectorCountMismatch(t *testing.T) {
	_, err := embedAll(context.Background(), shortEmbedder{}, []string{"a", "b"})
	assert.Error(t, err)
}

type shortEmbedder struct{}

func (shortEmbedder) Embed(context.Context, string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{}, nil
}

func (shortEmbedder) BatchEmbed(context.Context, []string) (domain.BatchEmbeddingResult, error) {
	return domain.BatchEmbeddingResult{Embeddings: [][]float32{{1}}}, nil
}
