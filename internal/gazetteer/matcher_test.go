package gazetteer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rights-monitor/backend/internal/storage/models"
)

func testDistricts() []models.District {
	return []models.District{
		{Name: "Ahuachapán", Municipality: "Ahuachapán Centro", Department: "Ahuachapán"},
		{Name: "San Salvador", Municipality: "San Salvador Centro", Department: "San Salvador"},
		{Name: "Santa Ana", Municipality: "Santa Ana Centro", Department: "Santa Ana"},
		{Name: "El Rosario", Municipality: "Cuscatlán Sur", Department: "Cuscatlán"},
		{Name: "El Rosario", Municipality: "La Paz Centro", Department: "La Paz"},
		{Name: "Colón", Municipality: "La Libertad Oeste", Department: "La Libertad"},
	}
}

func TestMatch(t *testing.T) {
	m := NewMatcher(testDistricts())

	tests := []struct {
		name string
		text string
		want []string
	}{
		{"exact word", "... en ahuachapán se reportó ...", []string{"Ahuachapán"}},
		{"case insensitive", "EN AHUACHAPÁN SE REPORTÓ", []string{"Ahuachapán"}},
		{"no partial word", "en ahuachapanense", []string{}},
		{"no prefix match", "los ahuachapánenses", []string{}},
		{"multi word", "vecinos de san salvador denunciaron", []string{"San Salvador"}},
		{"multi word needs spaces", "sansalvador", []string{}},
		{"punctuation boundary", "(santa ana), colón.", []string{"Santa Ana", "Colón"}},
		{"gazetteer order", "colón y luego ahuachapán", []string{"Ahuachapán", "Colón"}},
		{"duplicate name once", "en el rosario hubo lluvias", []string{"El Rosario"}},
		{"accent required", "ahuachapan sin tilde", []string{}},
		{"digits are word characters", "ruta colón2", []string{}},
		{"empty text", "", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Match(tt.text))
		})
	}
}

func TestMatchDecomposedAccents(t *testing.T) {
	m := NewMatcher(testDistricts())
	// "a" followed by a combining acute accent.
	decomposed := "en ahuachapa\u0301n"

	assert.Equal(t, []string{"Ahuachapán"}, m.Match(decomposed))
}

func TestMatchSecondOccurrence(t *testing.T) {
	m := NewMatcher(testDistricts())

	assert.Equal(t, []string{"Santa Ana"}, m.Match("santa anabel y santa ana"))
}

func TestLoadEmbedded(t *testing.T) {
	districts, err := Load("")
	require.NoError(t, err)
	require.NotEmpty(t, districts)

	m := NewMatcher(districts)
	assert.Equal(t, len(districts), m.Len())
	assert.Contains(t, m.Match("hechos ocurridos en ahuachapán"), "Ahuachapán")

	for _, d := range districts {
		assert.NotEmpty(t, d.Municipality, d.Name)
		assert.NotEmpty(t, d.Department, d.Name)
	}
}

func TestParseRejectsEmpty(t *testing.T) {
	_, err := Parse([]byte("[]"))
	assert.Error(t, err)

	_, err = Parse([]byte("not: [valid"))
	assert.Error(t, err)
}
