package search

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/legojeon/report-coach/internal/domain"
)

// signals are the query-side inputs shared by every candidate's score.
type signals struct {
	sections        []string
	normalizedTerms []string
	rawTerms        []string
	keywords        []string
	filters         map[string]string
}

func newSignals(a domain.QueryAnalysis, raw string) signals {
	return signals{
		sections:        a.PrioritySections,
		normalizedTerms: terms(a.NormalizedQuery),
		rawTerms:        terms(raw),
		keywords:        a.Keywords,
		filters:         a.MetadataFilters,
	}
}

// rerank scores every candidate against the query vector and sorts them by
// total, highest first. Ties keep retrieval order.
func rerank(
	ctx context.Context, emb domain.Embedder, qvec []float32,
	cands []domain.Candidate, sig signals, w domain.Weights,
) ([]domain.ScoredCandidate, error) {
	if len(cands) == 0 {
		return []domain.ScoredCandidate{}, nil
	}

	contents := make([]string, len(cands))
	titleIdx := make(map[string]int)
	var titles []string
	for i, c := range cands {
		contents[i] = c.Chunk.Content
		if t := c.Chunk.Title(); t != "" {
			if _, ok := titleIdx[t]; !ok {
				titleIdx[t] = len(titles)
				titles = append(titles, t)
			}
		}
	}

	var contentVecs, titleVecs [][]float32
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := embedAll(gctx, emb, contents)
		contentVecs = res
		return err
	})
	g.Go(func() error {
		res, err := embedAll(gctx, emb, titles)
		titleVecs = res
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]domain.ScoredCandidate, len(cands))
	for i, c := range cands {
		titleSim := 0.0
		if j, ok := titleIdx[c.Chunk.Title()]; ok {
			titleSim = cosine(qvec, titleVecs[j])
		}
		out[i] = domain.ScoredCandidate{
			Chunk:    c.Chunk,
			Position: i,
			Score:    score(c.Chunk, cosine(qvec, contentVecs[i]), titleSim, sig, w),
		}
	}

	slices.SortStableFunc(out, func(a, b domain.ScoredCandidate) int {
		switch {
		case a.Score.Total > b.Score.Total:
			return -1
		case a.Score.Total < b.Score.Total:
			return 1
		}
		return 0
	})
	return out, nil
}

func embedAll(ctx context.Context, emb domain.Embedder, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	res, err := domain.EmbedMany(ctx, emb, texts)
	if err != nil {
		return nil, err
	}
	if len(res.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(res.Embeddings), len(texts))
	}
	return res.Embeddings, nil
}

// score combines the similarity and boost signals of one chunk.
func score(ch domain.Chunk, contentSim, titleSim float64, sig signals, w domain.Weights) domain.ScoreBreakdown {
	content := strings.ToLower(ch.Content)
	title := strings.ToLower(ch.Title())

	b := domain.ScoreBreakdown{
		ContentScore:      contentSim,
		TitleScore:        titleSim,
		Alpha:             w.Alpha,
		SectionBoost:      sectionBoost(ch.Section(), sig.sections, w),
		AwardBoost:        w.AwardWeight(ch.Award()),
		MetadataBoost:     metadataBoost(ch, sig.filters, w),
		NormalizedMatches: countMatches(sig.normalizedTerms, content, title),
		RawMatches:        countMatches(sig.rawTerms, content, title),
		KeywordMatches:    countMatches(sig.keywords, content, title),
	}
	b.MatchedTerms = b.NormalizedMatches + b.RawMatches + b.KeywordMatches
	b.KeywordBoost = w.Gamma * float64(b.MatchedTerms)
	b.Total = (b.ContentScore + w.Alpha*b.TitleScore) +
		b.SectionBoost + b.KeywordBoost + b.AwardBoost + b.MetadataBoost
	b.Calculation = fmt.Sprintf("(%.4f + %g × %.4f) + %.4f + %.4f + %.4f + %.4f = %.4f",
		b.ContentScore, w.Alpha, b.TitleScore,
		b.SectionBoost, b.KeywordBoost, b.AwardBoost, b.MetadataBoost, b.Total)
	return b
}

func sectionBoost(section string, priorities []string, w domain.Weights) float64 {
	if section == "" {
		return 0
	}
	pos := slices.Index(priorities, section)
	if pos < 0 {
		return 0
	}
	return w.SectionWeight(pos)
}

func metadataBoost(ch domain.Chunk, filters map[string]string, w domain.Weights) float64 {
	sum := 0.0
	for _, field := range slices.Sorted(maps.Keys(filters)) {
		if ch.Meta(field) == strings.TrimSpace(filters[field]) {
			sum += w.MetadataWeight(field)
		}
	}
	return sum
}
