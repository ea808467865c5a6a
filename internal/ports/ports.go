package ports

import (
	"context"

	"github.com/rights-monitor/backend/internal/storage/models"
)

// Store exposes the relational operations the classification pipeline needs.
// Implementations are scoped to one unit of work.
type Store interface {
	// FindOrCreateNews returns the news item keyed by (headline, date),
	// creating it with empty content when absent.
	FindOrCreateNews(ctx context.Context, headline, date string) (*models.NewsItem, error)
	SetNewsContent(ctx context.Context, newsID, content string) error
	// FindAnalysis returns nil without error when the news item has no analysis.
	FindAnalysis(ctx context.Context, newsID string) (*models.Analysis, error)
	CreateAnalysis(ctx context.Context, newsID string) (*models.Analysis, error)
	RightsByLabels(ctx context.Context, labels []string) ([]models.Right, error)
	CoveredRightIDs(ctx context.Context, analysisID string) (map[string]bool, error)
	InsertDetail(ctx context.Context, detail *models.AnalysisDetail) error
	// DetailResults returns every detail row of an analysis joined to its right label.
	DetailResults(ctx context.Context, analysisID string) ([]models.ClassificationResult, error)
	UpdateAnalysisContent(ctx context.Context, analysisID, content string) error
}

// UnitOfWork is a Store whose writes become visible on Commit.
type UnitOfWork interface {
	Store
	Commit() error
	Rollback() error
}

type TxBeginner interface {
	Begin(ctx context.Context) (UnitOfWork, error)
}

// ArticleSource reads extracted articles tagged with a date.
type ArticleSource interface {
	ArticlesByDate(ctx context.Context, date string) ([]models.Article, error)
}

// Classifier sends a prompt to the model and returns validated results.
// It never fails: any problem yields an empty slice.
type Classifier interface {
	Classify(ctx context.Context, prompt string) []models.ClassificationResult
}

// ProgressSink receives batch progress. Alive reports whether the client
// on the other end is still listening.
type ProgressSink interface {
	Status(message string)
	Progress(stage, message string, percent int)
	Alive() bool
}

// ResponseCache stores raw model output keyed by prompt digest.
type ResponseCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string)
	Invalidate(ctx context.Context) error
}
