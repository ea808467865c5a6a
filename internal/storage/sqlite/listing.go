package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"go.uber.org/zap"

	"github.com/rights-monitor/backend/internal/storage/models"
	"github.com/rights-monitor/backend/pkg/logger"
)

// ListAnalyses pages through analyses, newest first.
func (c *Client) ListAnalyses(ctx context.Context, limit, offset int) ([]models.AnalysisRecord, error) {
	query, args, err := sq.Select("id", "news_id", "content", "created_at").
		From("analysis").
		OrderBy("created_at DESC", "id ASC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build analysis list query: %w", err)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}
	defer rows.Close()

	records := []models.AnalysisRecord{}
	for rows.Next() {
		var r models.AnalysisRecord
		var content string
		var createdAt int64

		if err := rows.Scan(&r.ID, &r.NewsID, &content, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		r.CreatedAt = time.UnixMilli(createdAt).UTC()

		r.Results = []models.ClassificationResult{}
		var stored []models.ClassificationResult
		if err := json.Unmarshal([]byte(content), &stored); err != nil {
			logger.Warn("Stored analysis content is not valid JSON",
				zap.String("analysis_id", r.ID),
				zap.Error(err),
			)
		}
		for _, res := range stored {
			r.Results = append(r.Results, res.Normalized())
		}

		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate analyses: %w", err)
	}

	return records, nil
}

// ListAnalysisRights pages through analysis-to-right links. An empty
// analysisID lists links of every analysis.
func (c *Client) ListAnalysisRights(ctx context.Context, analysisID string, limit, offset int) ([]models.AnalysisRight, error) {
	builder := sq.Select("d.analysis_id", "d.right_id", "r.label", "d.count", "d.places").
		From("analysis_detail d").
		Join("rights r ON r.id = d.right_id").
		OrderBy("d.analysis_id", "r.display_order", "r.label").
		Limit(uint64(limit)).
		Offset(uint64(offset))
	if analysisID != "" {
		builder = builder.Where(sq.Eq{"d.analysis_id": analysisID})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build analysis right query: %w", err)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list analysis rights: %w", err)
	}
	defer rows.Close()

	links := []models.AnalysisRight{}
	for rows.Next() {
		var l models.AnalysisRight
		var places sql.NullString

		if err := rows.Scan(&l.AnalysisID, &l.RightID, &l.Right, &l.Count, &places); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if places.Valid && places.String != "" {
			if err := json.Unmarshal([]byte(places.String), &l.Places); err != nil {
				return nil, fmt.Errorf("failed to decode places: %w", err)
			}
		}
		if l.Places == nil {
			l.Places = []string{}
		}

		links = append(links, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate analysis rights: %w", err)
	}

	return links, nil
}
