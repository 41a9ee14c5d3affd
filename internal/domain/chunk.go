package domain

import "strings"

// Metadata keys written by the corpus builder.
const (
	MetaTitle        = "title"
	MetaSection      = "section"
	MetaReportNumber = "nttSn"
	MetaField        = "field"
	MetaYear         = "year"
	MetaAward        = "award"
	MetaAuthors      = "authors"
	MetaTeacher      = "teacher"
	MetaSourceType   = "source_type"
)

// MissingValue is shown for metadata the chunk does not carry.
const MissingValue = "N/A"

// Chunk is one retrievable unit of report text with its metadata. Read-only.
type Chunk struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
}

// Meta returns the trimmed metadata value for key, or "" when absent.
func (c Chunk) Meta(key string) string {
	return strings.TrimSpace(c.Metadata[key])
}

// Title returns the chunk's title.
func (c Chunk) Title() string { return c.Meta(MetaTitle) }

// Section returns the chunk's section label.
func (c Chunk) Section() string { return c.Meta(MetaSection) }

// Award returns the chunk's award tier.
func (c Chunk) Award() string { return c.Meta(MetaAward) }

// ReportNumber returns the source report identifier, MissingValue when absent.
func (c Chunk) ReportNumber() string {
	if n := c.Meta(MetaReportNumber); n != "" {
		return n
	}
	return MissingValue
}

// Candidate is a chunk returned by the vector index together with its index similarity.
type Candidate struct {
	Chunk Chunk
	Score float64
}

// IndexedChunk is a chunk ready to be written into the vector index.
type IndexedChunk struct {
	Chunk  Chunk
	Vector []float32
}
