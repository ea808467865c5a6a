package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rights-monitor/backend/internal/llm"
	"github.com/rights-monitor/backend/internal/storage/batch"
	"github.com/rights-monitor/backend/internal/storage/models"
)

const dump = `<html xmlns="http://www.w3.org/1999/xhtml"><body>
<div class="page"><p>San Salvador, 1 de marzo de 2024</p><p>Homicidio en <b>Ahuachapán</b></p></div>
<div class="page"><p>Segunda página</p></div>
<div class="page"><p>Tercera página</p></div>
</body></html>`

type fakeCompleter struct {
	prompts   []string
	responses []string
	errs      []error
}

func (f *fakeCompleter) Complete(_ context.Context, prompt string) (string, error) {
	i := len(f.prompts)
	f.prompts = append(f.prompts, prompt)
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], err
	}
	return "", err
}

func TestSplitPages(t *testing.T) {
	pages, err := SplitPages(dump)
	require.NoError(t, err)

	require.Len(t, pages, 3)
	assert.Equal(t, "San Salvador, 1 de marzo de 2024\nHomicidio en\nAhuachapán", pages[0])
	assert.Equal(t, "Tercera página", pages[2])

	_, err = SplitPages("<html><body><p>sin páginas</p></body></html>")
	assert.ErrorIs(t, err, ErrNoPages)
}

func TestCleanText(t *testing.T) {
	in := "Título -----\n\n\n   Texto   con\t\tespacios @#\n  ¡Bien! \"citado\""
	assert.Equal(t, "Título Texto con espacios Bien citado ", CleanText(in))
}

func TestExtractDate(t *testing.T) {
	tests := []struct {
		text string
		want string
		ok   bool
	}{
		{"San Salvador, 1 de marzo de 2024", "2024-03-01", true},
		{"VIERNES 15 DE Septiembre DE 2023", "2023-09-15", true},
		{"31 de febrero de 2024", "", false},
		{"sin fecha", "", false},
	}

	for _, tt := range tests {
		got, ok := ExtractDate(tt.text)
		assert.Equal(t, tt.ok, ok, tt.text)
		assert.Equal(t, tt.want, got, tt.text)
	}
}

func TestFormatArticlesNormalizesKeys(t *testing.T) {
	blocks := []string{
		`[{"title":"A","content":"uno \"dos\""},{"titulo":"B","contenido":"tres"},{"titular":"C"},{"titular":"D","contenido":"x","autor":"y"}]`,
		`no json`,
		`[{"Título":"E","contenido":"cuatro"}]`,
	}

	got := FormatArticles("2024-03-01", blocks)

	assert.Equal(t, []models.Article{
		{Headline: "A", Content: "uno dos", Date: "2024-03-01"},
		{Headline: "B", Content: "tres", Date: "2024-03-01"},
		{Headline: "E", Content: "cuatro", Date: "2024-03-01"},
	}, got)
}

func TestProcessDocument(t *testing.T) {
	store, err := batch.NewFileStore(t.TempDir())
	require.NoError(t, err)

	gen := &fakeCompleter{
		responses: []string{
			"Aquí tienes:\n```json\n[{\"titular\":\"Homicidio\",\"contenido\":\"Homicidio en Ahuachapán\"}]\n```",
			"",
		},
		errs: []error{nil, errors.New("connection refused")},
	}
	p := NewProcessor(gen, store)

	batchID, articles, err := p.ProcessDocument(context.Background(), dump, "")
	require.NoError(t, err)

	require.Len(t, gen.prompts, 2)
	assert.True(t, strings.HasPrefix(gen.prompts[0], "Separa el texto"))
	assert.Contains(t, gen.prompts[0], "Página 1")
	assert.Contains(t, gen.prompts[0], "Página 2")
	assert.Contains(t, gen.prompts[1], "Tercera página")

	assert.Equal(t, []models.Article{{Headline: "Homicidio", Content: "Homicidio en Ahuachapán", Date: "2024-03-01"}}, articles)

	stored, err := store.ArticlesByDate(context.Background(), "2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, articles, stored)

	loaded, err := store.Load(batchID)
	require.NoError(t, err)
	assert.Equal(t, articles, loaded)
}

func TestProcessDocumentNeedsDate(t *testing.T) {
	store, err := batch.NewFileStore(t.TempDir())
	require.NoError(t, err)

	p := NewProcessor(&fakeCompleter{}, store)
	_, _, err = p.ProcessDocument(context.Background(), `<div class="page"><p>sin fecha</p></div>`, "")
	assert.ErrorIs(t, err, ErrNoDate)
}

func TestStoreArticlesDropsInvalid(t *testing.T) {
	store, err := batch.NewFileStore(t.TempDir())
	require.NoError(t, err)
	p := NewProcessor(&fakeCompleter{}, store)

	batchID, kept, err := p.StoreArticles([]models.Article{
		{Headline: " H1 ", Content: "c", Date: "2024-03-01"},
		{Headline: "", Content: "c", Date: "2024-03-01"},
		{Headline: "H3", Content: "c", Date: "01-03-2024"},
	})
	require.NoError(t, err)
	assert.Equal(t, []models.Article{{Headline: "H1", Content: "c", Date: "2024-03-01"}}, kept)

	loaded, err := p.LoadBatch(batchID)
	require.NoError(t, err)
	assert.Equal(t, kept, loaded)

	_, _, err = p.StoreArticles(nil)
	assert.ErrorIs(t, err, ErrNoArticles)
}

func TestSeparationRequestKeepsBlankLines(t *testing.T) {
	answer := "Claro.\n\n[\n  {\"titular\":\"Homicidio\",\"contenido\":\"Uno\"},\n\n  {\"titular\":\"Lluvias\",\"contenido\":\"Dos\"}\n]"

	var bodies []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		bodies = append(bodies, body)

		line, _ := json.Marshal(map[string]any{"response": answer, "done": true})
		_, _ = w.Write(append(line, '\n'))
	}))
	defer srv.Close()

	store, err := batch.NewFileStore(t.TempDir())
	require.NoError(t, err)

	p := NewProcessor(llm.NewClient(llm.Options{URL: srv.URL, Model: "m"}), store)
	_, articles, err := p.ProcessDocument(context.Background(), `<div class="page"><p>1 de marzo de 2024</p></div>`, "")
	require.NoError(t, err)

	require.Len(t, bodies, 1)
	assert.NotContains(t, bodies[0], "stop")
	assert.NotContains(t, bodies[0]["options"], "stop")
	assert.Equal(t, []models.Article{
		{Headline: "Homicidio", Content: "Uno", Date: "2024-03-01"},
		{Headline: "Lluvias", Content: "Dos", Date: "2024-03-01"},
	}, articles)
}
