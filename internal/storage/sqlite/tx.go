package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rights-monitor/backend/internal/ports"
	"github.com/rights-monitor/backend/internal/storage/models"
	"github.com/rights-monitor/backend/pkg/logger"
)

// Tx is a unit of work over one database transaction. Statements executed
// through it see each other's writes immediately; other connections see them
// after Commit.
type Tx struct {
	tx *sql.Tx
}

var _ ports.UnitOfWork = (*Tx)(nil)

func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (t *Tx) Rollback() error {
	err := t.tx.Rollback()
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	return nil
}

func (t *Tx) FindOrCreateNews(ctx context.Context, headline, date string) (*models.NewsItem, error) {
	query := `SELECT id, headline, content, news_date FROM news WHERE headline = ? AND news_date = ? LIMIT 1`

	var n models.NewsItem
	err := t.tx.QueryRowContext(ctx, query, headline, date).Scan(&n.ID, &n.Headline, &n.Content, &n.Date)
	if err == nil {
		return &n, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get news: %w", err)
	}

	n = models.NewsItem{
		ID:       uuid.New().String(),
		Headline: headline,
		Content:  "",
		Date:     date,
	}

	_, err = t.tx.ExecContext(ctx,
		`INSERT INTO news (id, headline, content, news_date) VALUES (?, ?, ?, ?)`,
		n.ID, n.Headline, n.Content, n.Date,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert news: %w", err)
	}

	logger.Debug("News created", zap.String("news_id", n.ID), zap.String("headline", headline))
	return &n, nil
}

func (t *Tx) SetNewsContent(ctx context.Context, newsID, content string) error {
	_, err := t.tx.ExecContext(ctx, `UPDATE news SET content = ? WHERE id = ?`, content, newsID)
	if err != nil {
		return fmt.Errorf("failed to update news content: %w", err)
	}
	return nil
}

func (t *Tx) FindAnalysis(ctx context.Context, newsID string) (*models.Analysis, error) {
	query := `SELECT id, news_id, content, created_at FROM analysis WHERE news_id = ? ORDER BY created_at ASC LIMIT 1`

	var a models.Analysis
	var createdAt int64

	err := t.tx.QueryRowContext(ctx, query, newsID).Scan(&a.ID, &a.NewsID, &a.Content, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}

	a.CreatedAt = time.UnixMilli(createdAt)
	return &a, nil
}

func (t *Tx) CreateAnalysis(ctx context.Context, newsID string) (*models.Analysis, error) {
	a := models.Analysis{
		ID:        uuid.New().String(),
		NewsID:    newsID,
		Content:   "[]",
		CreatedAt: time.Now(),
	}

	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO analysis (id, news_id, content, created_at) VALUES (?, ?, ?, ?)`,
		a.ID, a.NewsID, a.Content, a.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert analysis: %w", err)
	}

	logger.Debug("Analysis created", zap.String("analysis_id", a.ID), zap.String("news_id", newsID))
	return &a, nil
}

func (t *Tx) RightsByLabels(ctx context.Context, labels []string) ([]models.Right, error) {
	if len(labels) == 0 {
		return nil, nil
	}

	query, args, err := sq.Select("id", "label", "display_order", "visible").
		From("rights").
		Where(sq.Eq{"label": labels}).
		OrderBy("display_order", "label").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build rights query: %w", err)
	}

	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get rights: %w", err)
	}
	defer rows.Close()

	return scanRights(rows)
}

func (t *Tx) CoveredRightIDs(ctx context.Context, analysisID string) (map[string]bool, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT right_id FROM analysis_detail WHERE analysis_id = ?`, analysisID)
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis details: %w", err)
	}
	defer rows.Close()

	covered := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		covered[id] = true
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate analysis details: %w", err)
	}

	return covered, nil
}

func (t *Tx) InsertDetail(ctx context.Context, detail *models.AnalysisDetail) error {
	if detail.ID == "" {
		detail.ID = uuid.New().String()
	}

	places := detail.Places
	if places == nil {
		places = []string{}
	}
	placesJSON, err := json.Marshal(places)
	if err != nil {
		return fmt.Errorf("failed to marshal places: %w", err)
	}

	_, err = t.tx.ExecContext(ctx,
		`INSERT INTO analysis_detail (id, analysis_id, right_id, count, places) VALUES (?, ?, ?, ?, ?)`,
		detail.ID, detail.AnalysisID, detail.RightID, detail.Count, string(placesJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to insert analysis detail: %w", err)
	}

	return nil
}

func (t *Tx) DetailResults(ctx context.Context, analysisID string) ([]models.ClassificationResult, error) {
	query := `
		SELECT r.label, d.count, d.places
		FROM analysis_detail d
		JOIN rights r ON r.id = d.right_id
		WHERE d.analysis_id = ?
		ORDER BY r.display_order ASC, r.label ASC
	`

	rows, err := t.tx.QueryContext(ctx, query, analysisID)
	if err != nil {
		return nil, fmt.Errorf("failed to get detail results: %w", err)
	}
	defer rows.Close()

	results := []models.ClassificationResult{}
	for rows.Next() {
		var r models.ClassificationResult
		var places sql.NullString

		if err := rows.Scan(&r.Right, &r.Count, &places); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		if places.Valid && places.String != "" {
			if err := json.Unmarshal([]byte(places.String), &r.Places); err != nil {
				return nil, fmt.Errorf("failed to decode places: %w", err)
			}
		}

		results = append(results, r.Normalized())
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate detail results: %w", err)
	}

	return results, nil
}

func (t *Tx) UpdateAnalysisContent(ctx context.Context, analysisID, content string) error {
	_, err := t.tx.ExecContext(ctx, `UPDATE analysis SET content = ? WHERE id = ?`, content, analysisID)
	if err != nil {
		return fmt.Errorf("failed to update analysis content: %w", err)
	}
	return nil
}
