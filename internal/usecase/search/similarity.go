package search

import (
	"math"
	"strings"
	"unicode/utf8"
)

const cosineEpsilon = 1e-8

// cosine returns 0 for mismatched lengths, an all-zero vector or any
// non-finite component, otherwise dot/(|a||b|+eps) clamped to [-1, 1].
func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 || !finite(dot) || !finite(na) || !finite(nb) {
		return 0
	}
	s := dot / (math.Sqrt(na)*math.Sqrt(nb) + cosineEpsilon)
	if math.IsNaN(s) {
		return 0
	}
	return max(-1, min(1, s))
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// terms splits s on whitespace and keeps lowercased tokens of at least two runes.
func terms(s string) []string {
	fields := strings.Fields(s)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if utf8.RuneCountInString(f) < 2 {
			continue
		}
		out = append(out, strings.ToLower(f))
	}
	return out
}

// countMatches counts terms found as substrings of content or title.
// Both haystacks must already be lowercased.
func countMatches(list []string, content, title string) int {
	n := 0
	for _, t := range list {
		if strings.Contains(content, t) || strings.Contains(title, t) {
			n++
		}
	}
	return n
}
