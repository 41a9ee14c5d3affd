package search

import (
	"strings"

	"github.com/legojeon/report-coach/internal/domain"
)

// applyFilters keeps candidates whose metadata matches every filter exactly.
// When fewer than k survive, the unfiltered set is returned with bypassed=true.
func applyFilters(cands []domain.Candidate, filters map[string]string, k int) ([]domain.Candidate, bool) {
	if len(filters) == 0 {
		return cands, false
	}
	kept := make([]domain.Candidate, 0, len(cands))
	for _, c := range cands {
		if matchesAll(c.Chunk, filters) {
			kept = append(kept, c)
		}
	}
	if len(kept) < k {
		return cands, true
	}
	return kept, false
}

func matchesAll(ch domain.Chunk, filters map[string]string) bool {
	for field, want := range filters {
		if ch.Meta(field) != strings.TrimSpace(want) {
			return false
		}
	}
	return true
}
