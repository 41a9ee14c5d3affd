package search

import (
	"github.com/legojeon/report-coach/internal/domain"
)

const (
	// DefaultSnippetLength is the content length, in runes, kept in a result.
	DefaultSnippetLength = 500
	ellipsis             = "..."
)

// format walks scored candidates in order, keeps the first chunk of each
// report and stops at k. Ranks are dense from 1.
func format(scored []domain.ScoredCandidate, k, snippetLen int, images ImageLocator) []domain.ResultItem {
	seen := make(map[string]struct{}, k)
	out := make([]domain.ResultItem, 0, min(k, len(scored)))
	for _, sc := range scored {
		if len(out) >= k {
			break
		}
		number := sc.Chunk.ReportNumber()
		if _, dup := seen[number]; dup {
			continue
		}
		seen[number] = struct{}{}

		item := domain.ResultItem{
			Rank:         len(out) + 1,
			Title:        orMissing(sc.Chunk.Title()),
			Section:      orMissing(sc.Chunk.Section()),
			ReportNumber: number,
			Metadata:     projectMetadata(sc.Chunk),
			Score:        sc.Score,
			Content:      truncateRunes(sc.Chunk.Content, snippetLen),
		}
		if images != nil && number != domain.MissingValue {
			item.ImagePath = images.Reference(number)
		}
		out = append(out, item)
	}
	return out
}

func projectMetadata(ch domain.Chunk) domain.ResultMetadata {
	return domain.ResultMetadata{
		Field:      orMissing(ch.Meta(domain.MetaField)),
		Year:       orMissing(ch.Meta(domain.MetaYear)),
		Award:      orMissing(ch.Meta(domain.MetaAward)),
		Authors:    orMissing(ch.Meta(domain.MetaAuthors)),
		Teacher:    orMissing(ch.Meta(domain.MetaTeacher)),
		SourceType: orMissing(ch.Meta(domain.MetaSourceType)),
	}
}

func orMissing(v string) string {
	if v == "" {
		return domain.MissingValue
	}
	return v
}

// truncateRunes keeps the first n runes of s and appends "..." when s is longer.
func truncateRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i] + ellipsis
		}
		count++
	}
	return s
}
