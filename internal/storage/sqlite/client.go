package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/rights-monitor/backend/internal/ports"
	"github.com/rights-monitor/backend/internal/storage/models"
	"github.com/rights-monitor/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

var _ ports.TxBeginner = (*Client)(nil)

func NewClient(dbPath string) (*Client, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS rights (
		id TEXT PRIMARY KEY,
		label TEXT UNIQUE NOT NULL,
		display_order INTEGER NOT NULL DEFAULT 0,
		visible INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS news (
		id TEXT PRIMARY KEY,
		headline TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		news_date TEXT NOT NULL,
		UNIQUE (headline, news_date)
	);
	CREATE INDEX IF NOT EXISTS idx_news_date ON news(news_date);

	CREATE TABLE IF NOT EXISTS analysis (
		id TEXT PRIMARY KEY,
		news_id TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '[]',
		created_at INTEGER NOT NULL,
		FOREIGN KEY (news_id) REFERENCES news(id)
	);
	CREATE INDEX IF NOT EXISTS idx_analysis_news ON analysis(news_id);

	CREATE TABLE IF NOT EXISTS analysis_detail (
		id TEXT PRIMARY KEY,
		analysis_id TEXT NOT NULL,
		right_id TEXT NOT NULL,
		count INTEGER NOT NULL,
		places TEXT NOT NULL DEFAULT '[]',
		UNIQUE (analysis_id, right_id),
		FOREIGN KEY (analysis_id) REFERENCES analysis(id),
		FOREIGN KEY (right_id) REFERENCES rights(id)
	);
	CREATE INDEX IF NOT EXISTS idx_detail_analysis ON analysis_detail(analysis_id);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

// SeedRights inserts the given labels, in order, leaving existing rows untouched.
func (c *Client) SeedRights(ctx context.Context, labels []string) error {
	query := `INSERT OR IGNORE INTO rights (id, label, display_order, visible) VALUES (?, ?, ?, 1)`

	for i, label := range labels {
		if _, err := c.db.ExecContext(ctx, query, uuid.New().String(), label, i+1); err != nil {
			return fmt.Errorf("failed to seed right %q: %w", label, err)
		}
	}

	logger.Info("Rights seeded", zap.Int("count", len(labels)))
	return nil
}

func (c *Client) ListVisibleRights(ctx context.Context) ([]models.Right, error) {
	query := `SELECT id, label, display_order, visible FROM rights WHERE visible = 1 ORDER BY display_order ASC, label ASC`

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list rights: %w", err)
	}
	defer rows.Close()

	return scanRights(rows)
}

// NewsDetails returns the requested news items with their latest analysis
// content restricted to the given right labels.
func (c *Client) NewsDetails(ctx context.Context, ids, rights []string) ([]models.NewsDetail, error) {
	if len(ids) == 0 {
		return []models.NewsDetail{}, nil
	}

	query, args, err := sq.Select(
		"n.id", "n.headline", "n.content", "n.news_date",
		"(SELECT a.content FROM analysis a WHERE a.news_id = n.id ORDER BY a.created_at DESC LIMIT 1)",
	).
		From("news n").
		Where(sq.Eq{"n.id": ids}).
		OrderBy("n.news_date", "n.headline").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build news details query: %w", err)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get news details: %w", err)
	}
	defer rows.Close()

	wanted := make(map[string]bool, len(rights))
	for _, r := range rights {
		wanted[r] = true
	}

	details := []models.NewsDetail{}
	for rows.Next() {
		var d models.NewsDetail
		var content sql.NullString

		if err := rows.Scan(&d.ID, &d.Headline, &d.Content, &d.Date, &content); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		d.Analysis = []models.ClassificationResult{}
		if content.Valid && content.String != "" {
			var stored []models.ClassificationResult
			if err := json.Unmarshal([]byte(content.String), &stored); err != nil {
				logger.Warn("Stored analysis content is not valid JSON",
					zap.String("news_id", d.ID),
					zap.Error(err),
				)
			}
			for _, r := range stored {
				if wanted[r.Right] {
					d.Analysis = append(d.Analysis, r.Normalized())
				}
			}
		}

		details = append(details, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate news details: %w", err)
	}

	return details, nil
}

func (c *Client) Begin(ctx context.Context) (ports.UnitOfWork, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &Tx{tx: tx}, nil
}

func scanRights(rows *sql.Rows) ([]models.Right, error) {
	var rights []models.Right
	for rows.Next() {
		var r models.Right
		var visible int
		if err := rows.Scan(&r.ID, &r.Label, &r.DisplayOrder, &visible); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		r.Visible = visible == 1
		rights = append(rights, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rights: %w", err)
	}

	return rights, nil
}
