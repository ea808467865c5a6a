package handlers

import (
	"context"

	"github.com/rights-monitor/backend/internal/analysis"
	"github.com/rights-monitor/backend/internal/llm"
	"github.com/rights-monitor/backend/internal/ports"
	"github.com/rights-monitor/backend/internal/storage/models"
)

type BatchRunner interface {
	Run(ctx context.Context, req analysis.Request, sink ports.ProgressSink) (*analysis.Report, error)
}

type NewsReader interface {
	NewsDetails(ctx context.Context, ids, rights []string) ([]models.NewsDetail, error)
	ListVisibleRights(ctx context.Context) ([]models.Right, error)
}

type AnalysisReader interface {
	ListAnalyses(ctx context.Context, limit, offset int) ([]models.AnalysisRecord, error)
	ListAnalysisRights(ctx context.Context, analysisID string, limit, offset int) ([]models.AnalysisRight, error)
}

type Ingestor interface {
	ProcessDocument(ctx context.Context, xhtml, fallbackDate string) (string, []models.Article, error)
	StoreArticles(articles []models.Article) (string, []models.Article, error)
	LoadBatch(batchID string) ([]models.Article, error)
}

type CacheAdmin interface {
	Invalidate(ctx context.Context) error
}

// Pinger is implemented by caches backed by a remote server.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Readiness interface {
	EnsureReady(ctx context.Context) bool
	State() llm.State
}
