package search

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/legojeon/report-coach/internal/domain"
)

func scoredOf(chunks ...domain.Chunk) []domain.ScoredCandidate {
	out := make([]domain.ScoredCandidate, len(chunks))
	for i, c := range chunks {
		out[i] = domain.ScoredCandidate{Chunk: c, Position: i, Score: domain.ScoreBreakdown{Total: float64(len(chunks) - i)}}
	}
	return out
}

func TestFormat_DeduplicatesReportNumbers(t *testing.T) {
	scored := scoredOf(
		chunk("1001", "탐구 방법", "보고서 A", "첫 번째"),
		chunk("1001", "탐구 결과", "보고서 A", "두 번째"),
		chunk("2002", "탐구 동기", "보고서 B", "세 번째"),
		chunk("1001", "결론", "보고서 A", "네 번째"),
	)

	out := format(scored, 10, DefaultSnippetLength, nil)
	require.Len(t, out, 2)
	assert.Equal(t, "1001", out[0].ReportNumber)
	assert.Equal(t, "탐구 방법", out[0].Section, "highest scoring chunk represents the report")
	assert.Equal(t, 1, out[0].Rank)
	assert.Equal(t, "2002", out[1].ReportNumber)
	assert.Equal(t, 2, out[1].Rank)
}

func TestFormat_StopsAtK(t *testing.T) {
	scored := scoredOf(
		chunk("1", "s", "t", "c"),
		chunk("2", "s", "t", "c"),
		chunk("3", "s", "t", "c"),
	)
	out := format(scored, 2, DefaultSnippetLength, nil)
	require.Len(t, out, 2)
	assert.Equal(t, "2", out[1].ReportNumber)
}

func TestFormat_MissingValues(t *testing.T) {
	scored := scoredOf(
		chunk("", "", "", "본문 하나"),
		chunk("", "s", "t", "본문 둘"),
	)
	out := format(scored, 10, DefaultSnippetLength, fakeImages{domain.MissingValue: "bogus.png"})
	require.Len(t, out, 1, "chunks without a report number collapse into one")
	item := out[0]
	assert.Equal(t, domain.MissingValue, item.ReportNumber)
	assert.Equal(t, domain.MissingValue, item.Title)
	assert.Equal(t, domain.MissingValue, item.Section)
	assert.Equal(t, domain.ResultMetadata{
		Field: "N/A", Year: "N/A", Award: "N/A", Authors: "N/A", Teacher: "N/A", SourceType: "N/A",
	}, item.Metadata)
	assert.Empty(t, item.ImagePath)
}

func TestFormat_MetadataAndImage(t *testing.T) {
	scored := scoredOf(chunk("1001", "s", "t", "c",
		domain.MetaField, "생물", domain.MetaYear, "2023", domain.MetaAward, "대통령상",
		domain.MetaAuthors, "홍길동", domain.MetaTeacher, "김선생", domain.MetaSourceType, "report"))
	images := fakeImages{"1001": "1001_image.png"}

	out := format(scored, 1, DefaultSnippetLength, images)
	require.Len(t, out, 1)
	assert.Equal(t, "1001_image.png", out[0].ImagePath)
	assert.Equal(t, "홍길동", out[0].Metadata.Authors)
	assert.Equal(t, "report", out[0].Metadata.SourceType)

	out = format(scoredOf(chunk("2002", "s", "t", "c")), 1, DefaultSnippetLength, images)
	assert.Empty(t, out[0].ImagePath)
}

func TestFormat_TruncatesContent(t *testing.T) {
	long := strings.Repeat("가", 800)
	out := format(scoredOf(chunk("1", "s", "t", long)), 1, DefaultSnippetLength, nil)
	require.Len(t, out, 1)
	assert.Equal(t, 503, utf8.RuneCountInString(out[0].Content))
	assert.Equal(t, strings.Repeat("가", 500)+"...", out[0].Content)
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "abc", truncateRunes("abc", 3))
	assert.Equal(t, "ab...", truncateRunes("abc", 2))
	assert.Equal(t, "", truncateRunes("", 5))
	assert.Equal(t, "한글...", truncateRunes("한글입니다", 2))
	exact := strings.Repeat("x", DefaultSnippetLength)
	assert.Equal(t, exact, truncateRunes(exact, DefaultSnippetLength))
}
