package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rights-monitor/backend/internal/gazetteer"
	"github.com/rights-monitor/backend/internal/storage/models"
)

func newBuilder() *Builder {
	return NewBuilder(gazetteer.NewMatcher([]models.District{
		{Name: "Ahuachapán"},
		{Name: "Santa Tecla"},
		{Name: "Soyapango"},
	}))
}

func TestBuildIncludesArticleRightsAndCandidates(t *testing.T) {
	b := newBuilder()
	article := models.Article{
		Headline: "H1",
		Content:  "En Ahuachapán se reportó un homicidio.",
	}

	p, err := b.Build(article, "2024-03-01", []string{"derecho a la vida", "derecho a la salud"})
	require.NoError(t, err)

	assert.Contains(t, p, "noticias del día 2024-03-01")
	assert.Contains(t, p, "1. En Ahuachapán se reportó un homicidio.")
	assert.Contains(t, p, "- derecho a la vida\n- derecho a la salud\n")
	assert.Contains(t, p, "- Ahuachapán\n")
	assert.NotContains(t, p, "Soyapango")
	assert.NotContains(t, p, "Santa Tecla")
	assert.Contains(t, p, `"cantidad": 0 y "lugares": []`)
}

func TestBuildWithoutCandidates(t *testing.T) {
	b := newBuilder()

	p, err := b.Build(models.Article{Content: "Sin lugares conocidos."}, "2024-03-01", []string{"derecho a la vida"})
	require.NoError(t, err)

	assert.Contains(t, p, "(ninguno)")
}

func TestBuildBatchNumbersArticlesAndUnionsCandidates(t *testing.T) {
	b := newBuilder()
	articles := []models.Article{
		{Content: "Protesta en Soyapango."},
		{Content: "Inundaciones en Santa Tecla y Soyapango."},
	}

	p, err := b.BuildBatch(articles, "2024-03-02", []string{"derecho a la vivienda"})
	require.NoError(t, err)

	assert.Contains(t, p, "1. Protesta en Soyapango.\n\n2. Inundaciones en Santa Tecla y Soyapango.")
	assert.Equal(t, 1, strings.Count(p, "- Soyapango\n"))
	assert.Contains(t, p, "- Santa Tecla\n")
}

func TestBuildRequiresRights(t *testing.T) {
	_, err := newBuilder().Build(models.Article{Content: "x"}, "2024-03-01", nil)
	assert.Error(t, err)
}
