package prompt

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/rights-monitor/backend/internal/storage/models"
)

// Matcher returns the gazetteer names occurring in a text.
type Matcher interface {
	Match(text string) []string
}

const classificationTemplate = `A continuación tienes un conjunto de noticias del día {{.Date}}. Cada noticia está numerada:

{{range $i, $n := .News}}{{if $i}}

{{end}}{{inc $i}}. {{$n}}{{end}}

Tu tarea es analizar *cada noticia por separado* y clasificarla según los siguientes derechos humanos:
{{range .Rights}}- {{.}}
{{end}}
Esta es la lista de distritos de El Salvador que aparecen en el texto:
{{range .Districts}}- {{.}}
{{else}}(ninguno)
{{end}}
INSTRUCCIONES MUY ESTRICTAS:
- Para cada noticia, identifica los derechos humanos aplicables *únicamente* de la lista proporcionada.
- Debes responder por cada uno de los derechos de la lista, y por ningún otro.
- Luego, extrae el lugar o lugares *exactos* donde ocurre la noticia, *pero solo si aparece exactamente como está en la lista de distritos.*
- No adivines lugares. No infieras lugares. No escribas nombres que no estén en la lista de distritos.
- Si no encuentras una coincidencia exacta entre la noticia y la lista de distritos, no escribas ningún lugar.
- Si un derecho no tiene mención en ninguna noticia, inclúyelo con "cantidad": 0 y "lugares": [].
- Nunca uses valores null. Siempre incluye todas las claves: "derecho", "cantidad" y "lugares".
- Devuélveme la respuesta exclusivamente en formato JSON (sin explicaciones ni texto adicional), con esta estructura:
[{"derecho": "derecho", "cantidad": numero_de_noticias_relacionadas, "lugares": ["nombre_del_lugar", ...]}, ...]`

var classification = template.Must(template.New("classification").
	Funcs(template.FuncMap{"inc": func(i int) int { return i + 1 }}).
	Parse(classificationTemplate))

type Builder struct {
	matcher Matcher
}

func NewBuilder(matcher Matcher) *Builder {
	return &Builder{matcher: matcher}
}

type data struct {
	Date      string
	News      []string
	Rights    []string
	Districts []string
}

// Build renders the classification prompt for one article, restricted to
// rights and to the districts found in its content.
func (b *Builder) Build(article models.Article, date string, rights []string) (string, error) {
	return b.BuildBatch([]models.Article{article}, date, rights)
}

// BuildBatch renders one prompt covering several articles of the same date.
// Candidate districts are the union of each article's matches.
func (b *Builder) BuildBatch(articles []models.Article, date string, rights []string) (string, error) {
	if len(rights) == 0 {
		return "", fmt.Errorf("no rights to classify")
	}

	d := data{
		Date:   date,
		Rights: rights,
	}

	seen := make(map[string]bool)
	for _, a := range articles {
		d.News = append(d.News, strings.TrimSpace(a.Content))
		for _, name := range b.Candidates(a.Content) {
			if !seen[name] {
				seen[name] = true
				d.Districts = append(d.Districts, name)
			}
		}
	}

	var sb strings.Builder
	if err := classification.Execute(&sb, d); err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}

	return sb.String(), nil
}

// Candidates returns the gazetteer names found in text.
func (b *Builder) Candidates(text string) []string {
	if b.matcher == nil {
		return nil
	}
	return b.matcher.Match(strings.ToLower(text))
}
