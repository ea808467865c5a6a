package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/rights-monitor/backend/internal/metrics"
	"github.com/rights-monitor/backend/internal/storage/batch"
	"github.com/rights-monitor/backend/internal/storage/models"
	"github.com/rights-monitor/backend/pkg/logger"
)

const pagesPerPrompt = 2

var (
	ErrNoPages    = errors.New("document has no pages")
	ErrNoDate     = errors.New("no edition date found")
	ErrNoArticles = errors.New("no valid articles")
)

var (
	ruleLines      = regexp.MustCompile(`[-=~_*]{3,}`)
	blankLines     = regexp.MustCompile(`\n{2,}`)
	horizontalRuns = regexp.MustCompile(`[ \t]+`)
	indentedLines  = regexp.MustCompile(`\n\s+`)
	disallowed     = regexp.MustCompile(`[^a-zA-ZáéíóúÁÉÍÓÚñÑ0-9.,;:\s]`)
	whitespaceRuns = regexp.MustCompile(`\s+`)

	spanishDate = regexp.MustCompile(`(?i)(\d{1,2})de(enero|febrero|marzo|abril|mayo|junio|julio|agosto|septiembre|octubre|noviembre|diciembre)de(\d{4})`)
)

var spanishMonths = map[string]time.Month{
	"enero":      time.January,
	"febrero":    time.February,
	"marzo":      time.March,
	"abril":      time.April,
	"mayo":       time.May,
	"junio":      time.June,
	"julio":      time.July,
	"agosto":     time.August,
	"septiembre": time.September,
	"octubre":    time.October,
	"noviembre":  time.November,
	"diciembre":  time.December,
}

var keyAliases = map[string]string{
	"title":     "titular",
	"titulo":    "titular",
	"título":    "titular",
	"titular":   "titular",
	"content":   "contenido",
	"contenido": "contenido",
}

const separationInstructions = `Separa el texto en cada artículo informativo que presenta, la salida DEBE ser un arreglo de JSON, donde cada item contenga una clave de "titular" y "contenido".
[
  {
    "titular": "Aquí va el titular",
    "contenido": "Aquí va el contenido"
  }
]
Debes seguir ESTRICTAMENTE el formato JSON, sin agregar ningún texto adicional.
Cada artículo debe ser un objeto con las claves "titular" y "contenido".
TODO debe ir en español.
NO omitas texto.
NO agregues explicaciones.
SOLO devuelve el JSON.
No discrimines reportajes objetivos sobre temas controversiales.
Texto:`

// Completer returns raw model text for a prompt. Separation answers span
// several paragraphs, so implementations must not stop at blank lines.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type Processor struct {
	llm   Completer
	store *batch.FileStore
}

func NewProcessor(llm Completer, store *batch.FileStore) *Processor {
	return &Processor{
		llm:   llm,
		store: store,
	}
}

// ProcessDocument turns an XHTML page dump into stored articles. fallbackDate
// is used when the text carries no recognizable edition date.
func (p *Processor) ProcessDocument(ctx context.Context, xhtml, fallbackDate string) (string, []models.Article, error) {
	pages, err := SplitPages(xhtml)
	if err != nil {
		return "", nil, err
	}

	logger.Info("Processing document", zap.Int("pages", len(pages)))

	date, ok := ExtractDate(strings.Join(pages, "\n"))
	if !ok {
		date = fallbackDate
	}
	if date == "" {
		return "", nil, ErrNoDate
	}

	blocks := p.separate(ctx, pages)
	articles := FormatArticles(date, blocks)
	if len(articles) == 0 {
		return "", nil, ErrNoArticles
	}

	batchID := batch.NewBatchID()
	if err := p.store.Save(batchID, articles); err != nil {
		return "", nil, err
	}
	metrics.ArticlesIngested.Add(float64(len(articles)))

	logger.Info("Document processed successfully",
		zap.String("batch_id", batchID),
		zap.String("date", date),
		zap.Int("articles", len(articles)),
	)

	return batchID, articles, nil
}

// StoreArticles saves ready-made articles as a new batch. Articles without a
// headline, content or a YYYY-MM-DD date are dropped.
func (p *Processor) StoreArticles(articles []models.Article) (string, []models.Article, error) {
	valid := make([]models.Article, 0, len(articles))
	for _, a := range articles {
		a.Headline = strings.TrimSpace(a.Headline)
		a.Content = strings.TrimSpace(a.Content)
		a.Date = strings.TrimSpace(a.Date)

		if a.Headline == "" || a.Content == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", a.Date); err != nil {
			continue
		}
		valid = append(valid, a)
	}

	if len(valid) == 0 {
		return "", nil, ErrNoArticles
	}
	if dropped := len(articles) - len(valid); dropped > 0 {
		logger.Warn("Articles omitted for invalid format", zap.Int("dropped", dropped))
	}

	batchID := batch.NewBatchID()
	if err := p.store.Save(batchID, valid); err != nil {
		return "", nil, err
	}
	metrics.ArticlesIngested.Add(float64(len(valid)))

	return batchID, valid, nil
}

// LoadBatch returns the articles of a stored batch.
func (p *Processor) LoadBatch(batchID string) ([]models.Article, error) {
	return p.store.Load(batchID)
}

// SplitPages returns the text of every div.page, one line per text node.
func SplitPages(xhtml string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(xhtml))
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}

	var pages []string
	doc.Find("div.page").Each(func(_ int, page *goquery.Selection) {
		var lines []string
		collectText(page, &lines)
		pages = append(pages, strings.Join(lines, "\n"))
	})

	if len(pages) == 0 {
		return nil, ErrNoPages
	}
	return pages, nil
}

func collectText(s *goquery.Selection, lines *[]string) {
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		if goquery.NodeName(c) == "#text" {
			if t := strings.TrimSpace(c.Text()); t != "" {
				*lines = append(*lines, t)
			}
			return
		}
		collectText(c, lines)
	})
}

// CleanText strips rules and symbols and collapses whitespace to single spaces.
func CleanText(text string) string {
	text = ruleLines.ReplaceAllString(text, "")
	text = blankLines.ReplaceAllString(text, "\n")
	text = horizontalRuns.ReplaceAllString(text, " ")
	text = indentedLines.ReplaceAllString(text, "\n")
	text = strings.TrimSpace(text)
	text = disallowed.ReplaceAllString(text, " ")
	return whitespaceRuns.ReplaceAllString(text, " ")
}

// ExtractDate finds the first "<day> de <month> de <year>" in text.
func ExtractDate(text string) (string, bool) {
	m := spanishDate.FindStringSubmatch(strings.ReplaceAll(text, " ", ""))
	if m == nil {
		return "", false
	}

	day, _ := strconv.Atoi(m[1])
	year, _ := strconv.Atoi(m[3])
	month := spanishMonths[strings.ToLower(m[2])]

	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if d.Day() != day || d.Month() != month {
		return "", false
	}
	return d.Format("2006-01-02"), true
}

// separate asks the model to split articles out of two pages at a time and
// returns the JSON array text of each answer. Failed blocks are skipped.
func (p *Processor) separate(ctx context.Context, pages []string) []string {
	var blocks []string

	for start := 0; start < len(pages); start += pagesPerPrompt {
		end := start + pagesPerPrompt
		if end > len(pages) {
			end = len(pages)
		}

		parts := make([]string, 0, end-start)
		for i, page := range pages[start:end] {
			parts = append(parts, fmt.Sprintf("Página #%d\n%s", i+1, page))
		}
		prompt := SeparationPrompt(CleanText(strings.Join(parts, "\n\n")))

		response, err := p.llm.Complete(ctx, prompt)
		if err != nil {
			logger.Warn("Article separation failed for block",
				zap.Int("first_page", start+1),
				zap.Error(err),
			)
			if ctx.Err() != nil {
				break
			}
			continue
		}

		open := strings.Index(response, "[")
		closing := strings.LastIndex(response, "]")
		if open < 0 || closing < open {
			logger.Warn("Separation output has no JSON array", zap.Int("first_page", start+1))
			continue
		}
		blocks = append(blocks, response[open:closing+1])
	}

	return blocks
}

func SeparationPrompt(text string) string {
	return separationInstructions + "\n" + text
}

// FormatArticles decodes separation output, normalizes key aliases and keeps
// items that end up with exactly a headline and a content string.
func FormatArticles(date string, blocks []string) []models.Article {
	articles := []models.Article{}
	omitted := 0

	for _, block := range blocks {
		var items []json.RawMessage
		if err := json.Unmarshal([]byte(block), &items); err != nil {
			omitted++
			continue
		}

		for _, item := range items {
			var fields map[string]any
			if err := json.Unmarshal(item, &fields); err != nil || fields == nil {
				omitted++
				continue
			}

			normalized := make(map[string]any, len(fields))
			for k, v := range fields {
				if alias, ok := keyAliases[strings.ToLower(strings.TrimSpace(k))]; ok {
					k = alias
				}
				normalized[k] = v
			}

			headline, okH := normalized["titular"].(string)
			content, okC := normalized["contenido"].(string)
			if len(normalized) != 2 || !okH || !okC {
				omitted++
				continue
			}

			articles = append(articles, models.Article{
				Headline: strings.TrimSpace(headline),
				Content:  strings.ReplaceAll(content, `"`, ""),
				Date:     date,
			})
		}
	}

	if omitted > 0 {
		logger.Warn("Articles omitted for invalid format", zap.Int("omitted", omitted))
	}

	return articles
}
