package batch

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rights-monitor/backend/internal/storage/models"
)

func TestSaveAndReadByDate(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, s.Save("b-1", []models.Article{
		{Headline: "H1", Content: "uno", Date: "2024-03-01"},
		{Headline: "H2", Content: "dos", Date: "2024-03-02"},
	}))
	require.NoError(t, s.Save("b-2", []models.Article{
		{Headline: "H3", Content: "tres", Date: "2024-03-01"},
	}))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0o644))

	got, err := s.ArticlesByDate(context.Background(), "2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, []models.Article{
		{Headline: "H1", Content: "uno", Date: "2024-03-01"},
		{Headline: "H3", Content: "tres", Date: "2024-03-01"},
	}, got)

	none, err := s.ArticlesByDate(context.Background(), "2024-04-01")
	require.NoError(t, err)
	assert.Empty(t, none)

	loaded, err := s.Load("b-2")
	require.NoError(t, err)
	assert.Len(t, loaded, 1)
}

func TestSaveUsesSpanishKeys(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, s.Save("b", []models.Article{{Headline: "H", Content: "C", Date: "2024-03-01"}}))

	data, err := os.ReadFile(filepath.Join(dir, "b.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"titular": "H"`)
	assert.Contains(t, string(data), `"contenido": "C"`)
	assert.Contains(t, string(data), `"fecha": "2024-03-01"`)
}

func TestRejectsUnsafeBatchIDs(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	for _, id := range []string{"", "../escape", "a/b", ".hidden"} {
		assert.ErrorIs(t, s.Save(id, nil), ErrInvalidBatchID, id)
		_, err := s.Load(id)
		assert.ErrorIs(t, err, ErrInvalidBatchID, id)
	}

	assert.NoError(t, s.Save(NewBatchID(), nil))
}
