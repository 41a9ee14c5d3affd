package domain

// FilterFields are the metadata fields the query analyzer may extract as equality filters.
var FilterFields = []string{MetaField, MetaYear, MetaAward, MetaAuthors, MetaTeacher}

// QueryAnalysis is the typed outcome of analyzing a raw query.
type QueryAnalysis struct {
	NormalizedQuery  string
	PrioritySections []string
	Keywords         []string
	MetadataFilters  map[string]string
	Usage            TokenUsage
	// Degraded is set when the generation call failed and defaults were used.
	Degraded bool
}

// FallbackAnalysis returns the analysis used when generation is unavailable.
func FallbackAnalysis(raw string) QueryAnalysis {
	return QueryAnalysis{
		NormalizedQuery:  raw,
		PrioritySections: []string{},
		Keywords:         []string{},
		MetadataFilters:  map[string]string{},
		Degraded:         true,
	}
}

// TokenUsage is the token accounting reported by a generation call.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_token_count"`
	CompletionTokens int `json:"candidates_token_count"`
	TotalTokens      int `json:"total_token_count"`
}

// IsZero reports whether no tokens were recorded.
func (u TokenUsage) IsZero() bool {
	return u.PromptTokens == 0 && u.CompletionTokens == 0 && u.TotalTokens == 0
}
