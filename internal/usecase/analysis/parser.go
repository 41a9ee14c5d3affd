package analysis

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/legojeon/report-coach/internal/domain"
)

const (
	labelSummary  = "요약 쿼리"
	labelSections = "우선순위 섹션"
	labelKeywords = "핵심 키워드"

	minTermRunes = 2
)

var (
	summaryRe  = labelRegexp(labelSummary, false)
	sectionsRe = labelRegexp(labelSections, false)
	keywordsRe = labelRegexp(labelKeywords, false)
	filterRes  = func() map[string]*regexp.Regexp {
		m := make(map[string]*regexp.Regexp, len(domain.FilterFields))
		for _, f := range domain.FilterFields {
			m[f] = labelRegexp(f, true)
		}
		return m
	}()

	keywordSplitRe = regexp.MustCompile(`[,\s]+`)
)

// placeholders are values the model writes when a field does not apply.
var placeholders = map[string]struct{}{
	"없음": {}, "n/a": {}, "none": {}, "-": {}, "null": {},
}

// labelRegexp matches "<label>: value" at the start of a line. A leading list
// marker or markdown bold around the label is tolerated.
func labelRegexp(label string, foldCase bool) *regexp.Regexp {
	flags := "(?m)"
	if foldCase {
		flags = "(?im)"
	}
	return regexp.MustCompile(flags +
		`^[ \t]*(?:[-*][ \t]+)?(?:\*\*)?` + regexp.QuoteMeta(label) + `(?:\*\*)?[ \t]*:(?:\*\*)?[ \t]*(.*?)[ \t]*$`)
}

func firstValue(re *regexp.Regexp, text string) string {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// parseResponse extracts the labelled lines of a generation response.
// Missing labels yield empty values.
func parseResponse(text string) domain.QueryAnalysis {
	a := domain.QueryAnalysis{
		NormalizedQuery:  firstValue(summaryRe, text),
		PrioritySections: splitSections(firstValue(sectionsRe, text)),
		Keywords:         splitKeywords(firstValue(keywordsRe, text)),
		MetadataFilters:  map[string]string{},
	}
	for _, field := range domain.FilterFields {
		v := firstValue(filterRes[field], text)
		if v == "" || isPlaceholder(v) {
			continue
		}
		a.MetadataFilters[field] = v
	}
	return a
}

func splitSections(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ">") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func splitKeywords(s string) []string {
	out := []string{}
	for _, kw := range keywordSplitRe.Split(s, -1) {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if utf8.RuneCountInString(kw) < minTermRunes {
			continue
		}
		out = append(out, kw)
	}
	return out
}

func isPlaceholder(v string) bool {
	_, ok := placeholders[strings.ToLower(strings.Trim(v, `"'<> `))]
	return ok
}
