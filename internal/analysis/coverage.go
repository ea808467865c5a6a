package analysis

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rights-monitor/backend/internal/ports"
	"github.com/rights-monitor/backend/internal/storage/models"
	"github.com/rights-monitor/backend/pkg/logger"
)

// Coverage is what remains to be classified for one news item.
// Analysis is nil until the item has been classified at least once.
type Coverage struct {
	News     *models.NewsItem
	Analysis *models.Analysis
	Missing  []models.Right
}

func (c *Coverage) MissingLabels() []string {
	labels := make([]string, len(c.Missing))
	for i, r := range c.Missing {
		labels[i] = r.Label
	}
	return labels
}

type Resolver struct{}

// Resolve finds or creates the news item for (headline, date) and returns the
// requested rights that have no detail row yet, in request order. Labels
// unknown to the rights table are never missing since they cannot be stored.
func (Resolver) Resolve(ctx context.Context, store ports.Store, headline, date string, rights []string) (*Coverage, error) {
	news, err := store.FindOrCreateNews(ctx, headline, date)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve news: %w", err)
	}

	analysis, err := store.FindAnalysis(ctx, news.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve analysis: %w", err)
	}

	known, err := store.RightsByLabels(ctx, rights)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve rights: %w", err)
	}

	byLabel := make(map[string]models.Right, len(known))
	for _, r := range known {
		byLabel[r.Label] = r
	}

	covered := map[string]bool{}
	if analysis != nil {
		covered, err = store.CoveredRightIDs(ctx, analysis.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve coverage: %w", err)
		}
	}

	missing := make([]models.Right, 0, len(rights))
	for _, label := range rights {
		r, ok := byLabel[label]
		if !ok {
			logger.Warn("Requested right is not in the catalogue", zap.String("right", label))
			continue
		}
		if !covered[r.ID] {
			missing = append(missing, r)
		}
	}

	return &Coverage{News: news, Analysis: analysis, Missing: missing}, nil
}
