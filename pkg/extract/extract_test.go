package extract

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngredients(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  *string
	}{
		{"Simple", "<p>Ingredientes: chicken, rice</p>", ptr("chicken, rice")},
		{"Multiline", "<p>Ingredientes:\n  pollo,\n  arroz\n</p><p>Other</p>", ptr("pollo,\n  arroz")},
		{"FirstParagraphOnly", "<p>Ingredientes: a</p><p>b</p>", ptr("a")},
		{"NoLabel", "<p>Composição: chicken</p>", nil},
		{"NoClosingParagraph", "Ingredientes: chicken", nil},
		{"Empty", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Ingredients(tt.input)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.want, *got)
		})
	}
}

func TestAnalyticalComponents(t *testing.T) {
	text := "<p>Ingredientes: x</p><p>Componentes analíticos: Proteína 30%, Gordura 18%</p>"
	got := AnalyticalComponents(text)
	require.NotNil(t, got)
	assert.Equal(t, "Proteína 30%, Gordura 18%", *got)

	assert.Nil(t, AnalyticalComponents("<p>Componentes: none</p>"))
}

func TestSectionExtractors_Idempotent(t *testing.T) {
	text := "<p>Ingredientes: chicken, rice</p><p>Componentes analíticos: a</p>"
	first := Ingredients(text)
	second := Ingredients(text)
	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Equal(t, *first, *second)
	assert.Equal(t, *AnalyticalComponents(text), *AnalyticalComponents(text))
}

func TestKeyFeatures(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "TwoItems",
			input: "<strong>Características:</strong></p><ul><li>Grain-free</li><li>High protein</li></ul>",
			want:  []string{"Grain-free", "High protein"},
		},
		{
			name:  "WhitespaceBetweenHeadingAndList",
			input: "<p><strong>Características:</strong></p>\n  <ul>\n<li> Sem cereais </li>\n</ul>",
			want:  []string{"Sem cereais"},
		},
		{
			name:  "HeadingWithEmptyList",
			input: "<strong>Características:</strong></p><ul></ul>",
			want:  []string{},
		},
		{
			name:  "NoHeading",
			input: "<ul><li>Grain-free</li></ul>",
			want:  nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := KeyFeatures(tt.input)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSafeGet(t *testing.T) {
	obj := map[string]any{
		"a": map[string]any{
			"b": []any{map[string]any{"c": float64(1)}},
		},
		"n":    nil,
		"zero": float64(0),
	}

	assert.Equal(t, float64(1), SafeGet(obj, "a.b.0.c", nil))
	assert.Equal(t, "X", SafeGet(map[string]any{}, "a.b.c", "X"))
	assert.Nil(t, SafeGet(obj, "a.b.1.c", nil))
	assert.Equal(t, "d", SafeGet(obj, "a.b.x", "d"))
	assert.Equal(t, "d", SafeGet(obj, "n.deeper", "d"))
	assert.Equal(t, "d", SafeGet(obj, "n", "d"))
	assert.Equal(t, float64(0), SafeGet(obj, "zero", "d"))
	assert.Equal(t, "d", SafeGet(obj, "zero.inner", "d"))
	assert.Equal(t, "d", SafeGet(nil, "a", "d"))
}

func TestGetFloat(t *testing.T) {
	obj := map[string]any{"num": 9.99, "str": " 4.5 ", "bad": "n/a"}

	v, ok := GetFloat(obj, "num")
	assert.True(t, ok)
	assert.Equal(t, 9.99, v)

	v, ok = GetFloat(obj, "str")
	assert.True(t, ok)
	assert.Equal(t, 4.5, v)

	_, ok = GetFloat(obj, "bad")
	assert.False(t, ok)
	_, ok = GetFloat(obj, "missing")
	assert.False(t, ok)
}

func TestGetString(t *testing.T) {
	s, ok := GetString(map[string]any{"c": "EUR", "n": 1.0}, "c")
	assert.True(t, ok)
	assert.Equal(t, "EUR", s)

	_, ok = GetString(map[string]any{"n": 1.0}, "n")
	assert.False(t, ok)
}

func TestScalarString(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, ""},
		{"string", "000123", "000123"},
		{"ean as float", float64(8410650239439), "8410650239439"},
		{"small int float", float64(42), "42"},
		{"fraction", 9.99, "9.99"},
		{"json number", json.Number("8410650239439"), "8410650239439"},
		{"bool", true, "true"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ScalarString(tt.in))
		})
	}
}

func ptr(s string) *string { return &s }
