package analysis

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/rights-monitor/backend/internal/metrics"
	"github.com/rights-monitor/backend/internal/ports"
	"github.com/rights-monitor/backend/internal/storage/models"
	"github.com/rights-monitor/backend/pkg/logger"
)

type Merger struct{}

// Recovered returns the stored results of analysis for rights that were
// requested and are already covered.
func (Merger) Recovered(analysis *models.Analysis, requested []string, missing []models.Right) []models.ClassificationResult {
	out := []models.ClassificationResult{}
	if analysis == nil || analysis.Content == "" {
		return out
	}

	var stored []models.ClassificationResult
	if err := json.Unmarshal([]byte(analysis.Content), &stored); err != nil {
		logger.Warn("Stored analysis content is not valid JSON",
			zap.String("analysis_id", analysis.ID),
			zap.Error(err),
		)
		return out
	}

	wanted := make(map[string]bool, len(requested))
	for _, label := range requested {
		wanted[label] = true
	}
	for _, r := range missing {
		delete(wanted, r.Label)
	}

	for _, r := range stored {
		if wanted[r.Right] {
			out = append(out, r.Normalized())
			delete(wanted, r.Right)
		}
	}

	return out
}

// Persist stores one detail row per result whose right is among missing and
// rebuilds the analysis content from every detail row. Other results are
// dropped. It returns the accepted results.
func (Merger) Persist(ctx context.Context, store ports.Store, analysis *models.Analysis, missing []models.Right, results []models.ClassificationResult) ([]models.ClassificationResult, error) {
	byLabel := make(map[string]models.Right, len(missing))
	for _, r := range missing {
		byLabel[r.Label] = r
	}

	accepted := []models.ClassificationResult{}
	for _, res := range results {
		right, ok := byLabel[res.Right]
		if !ok {
			metrics.UnexpectedRights.Inc()
			logger.Warn("Discarding result for a right that was not requested",
				zap.String("analysis_id", analysis.ID),
				zap.String("right", res.Right),
			)
			continue
		}
		// A right answered twice keeps its first answer.
		delete(byLabel, res.Right)

		res = res.Normalized()
		err := store.InsertDetail(ctx, &models.AnalysisDetail{
			AnalysisID: analysis.ID,
			RightID:    right.ID,
			Count:      res.Count,
			Places:     res.Places,
		})
		if err != nil {
			return nil, err
		}
		metrics.DetailsPersisted.Inc()
		accepted = append(accepted, res)
	}

	if len(accepted) == 0 {
		return accepted, nil
	}

	all, err := store.DetailResults(ctx, analysis.ID)
	if err != nil {
		return nil, err
	}

	content, err := json.Marshal(all)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal analysis content: %w", err)
	}

	if err := store.UpdateAnalysisContent(ctx, analysis.ID, string(content)); err != nil {
		return nil, err
	}
	analysis.Content = string(content)

	return accepted, nil
}
