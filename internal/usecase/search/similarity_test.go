package search

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"zero vector", []float32{0, 0, 0}, []float32{1, 2, 3}, 0},
		{"both zero", []float32{0, 0}, []float32{0, 0}, 0},
		{"length mismatch", []float32{1, 2}, []float32{1, 2, 3}, 0},
		{"empty", nil, nil, 0},
		{"nan component", []float32{float32(math.NaN()), 1}, []float32{1, 1}, 0},
		{"positive inf", []float32{float32(math.Inf(1)), 1}, []float32{1, 1}, 0},
		{"negative inf", []float32{1, 1}, []float32{1, float32(math.Inf(-1))}, 0},
		{"float32 extremes", []float32{3e38, 3e38}, []float32{3e38, 3e38}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, cosine(tt.a, tt.b), 1e-6)
		})
	}
}

func TestCosine_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 32).Draw(t, "n")
		a := rapid.SliceOfN(anyFloat32(), n, n).Draw(t, "a")
		b := rapid.SliceOfN(anyFloat32(), n, n).Draw(t, "b")

		s := cosine(a, b)
		if math.IsNaN(s) || s < -1 || s > 1 {
			t.Fatalf("cosine out of range: %v", s)
		}
		if d := s - cosine(b, a); d > 1e-9 || d < -1e-9 {
			t.Fatalf("cosine not symmetric: %v vs %v", s, cosine(b, a))
		}
		if cosine(make([]float32, n), b) != 0 {
			t.Fatal("zero vector must score 0")
		}
	})
}

// anyFloat32 draws from the full float32 range plus the special values
// an upstream embedder could hand back.
func anyFloat32() *rapid.Generator[float32] {
	special := []float32{
		float32(math.NaN()), float32(math.Inf(1)), float32(math.Inf(-1)),
		0, math.MaxFloat32, -math.MaxFloat32, math.SmallestNonzeroFloat32,
	}
	return rapid.OneOf(rapid.Float32(), rapid.SampledFrom(special))
}

func TestTerms(t *testing.T) {
	got := terms("  식물의 생장 a LED\t조명  과 ")
	assert.Equal(t, []string{"식물의", "생장", "led", "조명"}, got)
	assert.Empty(t, terms(""))
	assert.Empty(t, terms("a b c"))
}

func TestCountMatches(t *testing.T) {
	content := "빛의 파장에 따른 상추 생장 실험"
	title := "led 조명과 식물"
	assert.Equal(t, 3, countMatches([]string{"파장", "led", "상추", "토마토"}, content, title))
	assert.Equal(t, 0, countMatches(nil, content, title))
	// a term counts once even when it appears in both fields
	assert.Equal(t, 1, countMatches([]string{"식물"}, "식물 관찰", "식물"))
}
