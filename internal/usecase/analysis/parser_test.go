package analysis

import (
	"reflect"
	"testing"
)

const wellFormed = `요약 쿼리: 식물 생장과 빛의 파장 관계
우선순위 섹션: 탐구 방법 > 탐구 결과 > 결론 및 제언
핵심 키워드: 식물, 생장, LED, 파장, a
field: 생물
year: 2023
award: 없음
authors: N/A
teacher: -`

func TestParseResponse_WellFormed(t *testing.T) {
	a := parseResponse(wellFormed)

	if a.NormalizedQuery != "식물 생장과 빛의 파장 관계" {
		t.Errorf("normalized query = %q", a.NormalizedQuery)
	}
	wantSections := []string{"탐구 방법", "탐구 결과", "결론 및 제언"}
	if !reflect.DeepEqual(a.PrioritySections, wantSections) {
		t.Errorf("sections = %v, want %v", a.PrioritySections, wantSections)
	}
	wantKeywords := []string{"식물", "생장", "led", "파장"}
	if !reflect.DeepEqual(a.Keywords, wantKeywords) {
		t.Errorf("keywords = %v, want %v", a.Keywords, wantKeywords)
	}
	wantFilters := map[string]string{"field": "생물", "year": "2023"}
	if !reflect.DeepEqual(a.MetadataFilters, wantFilters) {
		t.Errorf("filters = %v, want %v", a.MetadataFilters, wantFilters)
	}
}

func TestParseResponse_MissingLabels(t *testing.T) {
	a := parseResponse("모델이 형식을 따르지 않은 응답입니다.")

	if a.NormalizedQuery != "" {
		t.Errorf("expected empty normalized query, got %q", a.NormalizedQuery)
	}
	if a.PrioritySections == nil || len(a.PrioritySections) != 0 {
		t.Errorf("expected empty non-nil sections, got %#v", a.PrioritySections)
	}
	if a.Keywords == nil || len(a.Keywords) != 0 {
		t.Errorf("expected empty non-nil keywords, got %#v", a.Keywords)
	}
	if len(a.MetadataFilters) != 0 {
		t.Errorf("expected no filters, got %v", a.MetadataFilters)
	}
}

func TestParseResponse_Variants(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		summary  string
		sections []string
		filters  map[string]string
	}{
		{
			name:     "markdown bullets and bold",
			text:     "- **요약 쿼리:** 미세먼지 측정\n* 우선순위 섹션: 탐구 결과 >  > 탐구 방법",
			summary:  "미세먼지 측정",
			sections: []string{"탐구 결과", "탐구 방법"},
			filters:  map[string]string{},
		},
		{
			name:     "case-insensitive filter labels",
			text:     "요약 쿼리: 자석\nFIELD: 물리\nAward: 대통령상",
			summary:  "자석",
			sections: []string{},
			filters:  map[string]string{"field": "물리", "award": "대통령상"},
		},
		{
			name:     "label must start a line",
			text:     "설명 요약 쿼리: 무시\n요약 쿼리: 채택\nthe field: 화학",
			summary:  "채택",
			sections: []string{},
			filters:  map[string]string{},
		},
		{
			name:     "value does not spill onto next line",
			text:     "요약 쿼리:\n우선순위 섹션: 탐구 동기",
			summary:  "",
			sections: []string{"탐구 동기"},
			filters:  map[string]string{},
		},
		{
			name:     "first occurrence wins",
			text:     "요약 쿼리: 첫째\n요약 쿼리: 둘째",
			summary:  "첫째",
			sections: []string{},
			filters:  map[string]string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := parseResponse(tt.text)
			if a.NormalizedQuery != tt.summary {
				t.Errorf("summary = %q, want %q", a.NormalizedQuery, tt.summary)
			}
			if !reflect.DeepEqual(a.PrioritySections, tt.sections) {
				t.Errorf("sections = %#v, want %#v", a.PrioritySections, tt.sections)
			}
			if !reflect.DeepEqual(a.MetadataFilters, tt.filters) {
				t.Errorf("filters = %v, want %v", a.MetadataFilters, tt.filters)
			}
		})
	}
}

func TestSplitKeywords(t *testing.T) {
	got := splitKeywords("  Python,  데이터\t분석 ,,x, 수 , AI ")
	want := []string{"python", "데이터", "분석", "ai"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("splitKeywords = %v, want %v", got, want)
	}
}

func TestIsPlaceholder(t *testing.T) {
	for _, v := range []string{"없음", "N/A", "none", "-", `"없음"`, "<없음>"} {
		if !isPlaceholder(v) {
			t.Errorf("%q should be a placeholder", v)
		}
	}
	for _, v := range []string{"2023", "생물", "대통령상"} {
		if isPlaceholder(v) {
			t.Errorf("%q should not be a placeholder", v)
		}
	}
}
