package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rights-monitor/backend/internal/metrics"
	"github.com/rights-monitor/backend/internal/ports"
	"github.com/rights-monitor/backend/internal/storage/models"
	"github.com/rights-monitor/backend/pkg/logger"
)

// Progress stages and the share of an article's slice each one completes.
const (
	StageHeadline = "headline"
	StageCoverage = "coverage"
	StagePrompt   = "prompt"
	StageModel    = "model"
	StagePersist  = "persist"
	StageDone     = "done"
)

var stageWeight = map[string]int{
	StageHeadline: 5,
	StageCoverage: 20,
	StagePrompt:   40,
	StageModel:    90,
	StagePersist:  100,
}

type PromptBuilder interface {
	Build(article models.Article, date string, rights []string) (string, error)
}

type Report struct {
	Results      []DateResult `json:"results"`
	ProcessedIDs []string     `json:"processed_article_ids"`
	// Completed is false when the batch stopped early on a disconnect.
	Completed bool `json:"completed"`
}

type Orchestrator struct {
	db         ports.TxBeginner
	source     ports.ArticleSource
	builder    PromptBuilder
	classifier ports.Classifier
	resolver   Resolver
	merger     Merger
}

func NewOrchestrator(db ports.TxBeginner, source ports.ArticleSource, builder PromptBuilder, classifier ports.Classifier) *Orchestrator {
	return &Orchestrator{
		db:         db,
		source:     source,
		builder:    builder,
		classifier: classifier,
	}
}

type datedArticle struct {
	date    string
	article models.Article
}

// Run classifies every article of the requested dates, one at a time, and
// commits all writes together at the end. Dates and rights are validated
// before any work starts.
func (o *Orchestrator) Run(ctx context.Context, req Request, sink ports.ProgressSink) (*Report, error) {
	dates, err := req.ResolveDates()
	if err != nil {
		return nil, err
	}
	rights, err := req.ResolveRights()
	if err != nil {
		return nil, err
	}
	if sink == nil {
		sink = NopSink{}
	}

	start := time.Now()
	outcome := "failed"
	defer func() {
		metrics.BatchDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	}()

	sink.Status("Cargando noticias")

	agg := NewAggregator(rights)
	var items []datedArticle
	seen := make(map[string]bool)
	for _, date := range dates {
		agg.Touch(date)

		articles, err := o.source.ArticlesByDate(ctx, date)
		if err != nil {
			return nil, fmt.Errorf("failed to load articles for %s: %w", date, err)
		}
		for _, a := range articles {
			// A news item is keyed by headline and date; repeats count once.
			key := date + "\x00" + a.Headline
			if seen[key] {
				logger.Debug("Skipping repeated article", zap.String("headline", a.Headline), zap.String("date", date))
				continue
			}
			seen[key] = true
			items = append(items, datedArticle{date: date, article: a})
		}
	}

	logger.Info("Batch started",
		zap.Strings("dates", dates),
		zap.Strings("rights", rights),
		zap.Int("articles", len(items)),
	)

	report := &Report{ProcessedIDs: []string{}, Completed: true}

	if len(items) > 0 {
		// Writes outlive a cancelled request: an article that started
		// persisting finishes, and finished articles are still committed.
		storeCtx := context.WithoutCancel(ctx)
		uow, err := o.db.Begin(storeCtx)
		if err != nil {
			return nil, err
		}
		defer uow.Rollback()

		progress := newTracker(len(items), sink)

		for i, item := range items {
			if !sink.Alive() || ctx.Err() != nil {
				logger.Warn("Client gone, stopping batch",
					zap.Int("processed", i),
					zap.Int("total", len(items)),
				)
				report.Completed = false
				break
			}

			out, err := o.processArticle(ctx, storeCtx, uow, rights, item, progress.article(i))
			if err != nil {
				if ctx.Err() != nil {
					logger.Warn("Batch cancelled mid-article", zap.Error(err))
					report.Completed = false
					break
				}
				return nil, fmt.Errorf("failed to process %q: %w", item.article.Headline, err)
			}

			report.ProcessedIDs = append(report.ProcessedIDs, out.id)
			agg.Add(item.date, out.results)
		}

		if err := uow.Commit(); err != nil {
			return nil, err
		}
	}

	report.Results = agg.Results()

	if report.Completed {
		outcome = "completed"
		sink.Progress(StageDone, "Procesamiento completado", 100)
	} else {
		outcome = "stopped"
	}

	logger.Info("Batch finished",
		zap.Bool("completed", report.Completed),
		zap.Int("processed", len(report.ProcessedIDs)),
		zap.Duration("duration", time.Since(start)),
	)

	return report, nil
}

type articleOutcome struct {
	id      string
	results []models.ClassificationResult
}

// processArticle classifies one article. ctx bounds the model call only;
// store calls run on storeCtx so that detail rows and the analysis content
// they feed are written together.
func (o *Orchestrator) processArticle(ctx, storeCtx context.Context, store ports.Store, rights []string, item datedArticle, step func(stage, message string)) (articleOutcome, error) {
	a := item.article
	step(StageHeadline, fmt.Sprintf("Procesando: %s", a.Headline))

	cov, err := o.resolver.Resolve(storeCtx, store, a.Headline, item.date, rights)
	if err != nil {
		return articleOutcome{}, err
	}
	if cov.News.Content == "" && a.Content != "" {
		if err := store.SetNewsContent(storeCtx, cov.News.ID, a.Content); err != nil {
			return articleOutcome{}, err
		}
		cov.News.Content = a.Content
	}
	step(StageCoverage, "Cobertura verificada")

	recovered := o.merger.Recovered(cov.Analysis, rights, cov.Missing)
	result := articleOutcome{id: cov.News.ID, results: recovered}

	if len(cov.Missing) == 0 {
		metrics.ArticlesProcessed.WithLabelValues("storage").Inc()
		step(StagePersist, "Resultados recuperados")
		return result, nil
	}

	prompt, err := o.builder.Build(a, item.date, cov.MissingLabels())
	if err != nil {
		return articleOutcome{}, err
	}
	step(StagePrompt, "Consulta preparada")

	fresh := o.classifier.Classify(ctx, prompt)
	if len(fresh) == 0 && ctx.Err() != nil {
		return articleOutcome{}, ctx.Err()
	}
	step(StageModel, "Respuesta del modelo recibida")

	analysis := cov.Analysis
	if analysis == nil {
		analysis, err = store.CreateAnalysis(storeCtx, cov.News.ID)
		if err != nil {
			return articleOutcome{}, err
		}
	}

	accepted, err := o.merger.Persist(storeCtx, store, analysis, cov.Missing, fresh)
	if err != nil {
		return articleOutcome{}, err
	}
	if len(accepted) < len(cov.Missing) {
		logger.Warn("Some rights were not classified",
			zap.String("headline", a.Headline),
			zap.Int("missing", len(cov.Missing)),
			zap.Int("classified", len(accepted)),
		)
	}
	metrics.ArticlesProcessed.WithLabelValues("model").Inc()
	step(StagePersist, "Resultados guardados")

	result.results = append(result.results, accepted...)
	return result, nil
}

// tracker turns per-article stages into a batch-wide percentage that never
// decreases and stays within 0..100.
type tracker struct {
	total int
	last  int
	sink  ports.ProgressSink
}

func newTracker(total int, sink ports.ProgressSink) *tracker {
	return &tracker{total: total, sink: sink}
}

func (t *tracker) article(index int) func(stage, message string) {
	return func(stage, message string) {
		percent := (index*100 + stageWeight[stage]) / t.total
		if percent > 100 {
			percent = 100
		}
		if percent < t.last {
			percent = t.last
		}
		t.last = percent
		t.sink.Progress(stage, message, percent)
	}
}

// IsRequestError reports whether err came from request validation.
func IsRequestError(err error) bool {
	return errors.Is(err, ErrInvalidDate) || errors.Is(err, ErrNoDates) || errors.Is(err, ErrNoRights)
}
