package domain

// ScoredCandidate is a retrieved chunk with its rerank score components.
type ScoredCandidate struct {
	Chunk    Chunk
	Position int // retrieval order, 0-based
	Score    ScoreBreakdown
}

// ScoreBreakdown keeps every contribution to the total score.
type ScoreBreakdown struct {
	ContentScore      float64 `json:"content_score"`
	TitleScore        float64 `json:"title_score"`
	Alpha             float64 `json:"alpha"`
	SectionBoost      float64 `json:"section_boost_score"`
	KeywordBoost      float64 `json:"keyword_boost_score"`
	AwardBoost        float64 `json:"award_boost_score"`
	MetadataBoost     float64 `json:"metadata_boost"`
	MatchedTerms      int     `json:"matched_terms"`
	NormalizedMatches int     `json:"simplified_matches"`
	RawMatches        int     `json:"original_matches"`
	KeywordMatches    int     `json:"keyword_matches"`
	Total             float64 `json:"total_score"`
	Calculation       string  `json:"calculation"`
}

// ResultMetadata is the metadata projection shown to callers.
type ResultMetadata struct {
	Field      string `json:"field"`
	Year       string `json:"year"`
	Award      string `json:"award"`
	Authors    string `json:"authors"`
	Teacher    string `json:"teacher"`
	SourceType string `json:"source_type"`
}

// ResultItem is one deduplicated, formatted search hit.
type ResultItem struct {
	Rank         int            `json:"rank"`
	Title        string         `json:"title"`
	Section      string         `json:"section"`
	ReportNumber string         `json:"number"`
	Metadata     ResultMetadata `json:"metadata"`
	Score        ScoreBreakdown `json:"score_info"`
	Content      string         `json:"content"`
	ImagePath    string         `json:"image_path"`
}

// SearchResponse is the outcome of one search request.
type SearchResponse struct {
	Query            string            `json:"query"`
	NormalizedQuery  string            `json:"summary_query"`
	PrioritySections []string          `json:"priority_sections"`
	MetadataFilters  map[string]string `json:"metadata_filters"`
	TotalResults     int               `json:"total_results"`
	Results          []ResultItem      `json:"results"`
	Usage            *TokenUsage       `json:"usage_metadata,omitempty"`
}
