package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rights-monitor/backend/internal/ports"
	"github.com/rights-monitor/backend/internal/storage/models"
	"github.com/rights-monitor/backend/pkg/logger"
)

var ErrInvalidBatchID = errors.New("invalid batch id")

var batchIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,127}$`)

// FileStore keeps each batch-extraction output as <dir>/<batchID>.json, a
// JSON array of articles.
type FileStore struct {
	dir string
}

var _ ports.ArticleSource = (*FileStore)(nil)

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create batch directory: %w", err)
	}

	logger.Info("Batch store initialized", zap.String("dir", dir))
	return &FileStore{dir: dir}, nil
}

// NewBatchID returns a fresh identifier usable with Save.
func NewBatchID() string {
	return uuid.New().String()
}

// Save writes articles under batchID, replacing any earlier batch with the
// same id.
func (s *FileStore) Save(batchID string, articles []models.Article) error {
	if !batchIDPattern.MatchString(batchID) {
		return fmt.Errorf("%w: %q", ErrInvalidBatchID, batchID)
	}
	if articles == nil {
		articles = []models.Article{}
	}

	data, err := json.MarshalIndent(articles, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal batch: %w", err)
	}

	path := filepath.Join(s.dir, batchID+".json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write batch: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to store batch: %w", err)
	}

	logger.Info("Batch saved", zap.String("batch_id", batchID), zap.Int("articles", len(articles)))
	return nil
}

func (s *FileStore) Load(batchID string) ([]models.Article, error) {
	if !batchIDPattern.MatchString(batchID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBatchID, batchID)
	}
	return s.read(filepath.Join(s.dir, batchID+".json"))
}

// ArticlesByDate returns every stored article whose date equals date, reading
// batches in name order.
func (s *FileStore) ArticlesByDate(ctx context.Context, date string) ([]models.Article, error) {
	paths, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}
	sort.Strings(paths)

	articles := []models.Article{}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		batch, err := s.read(path)
		if err != nil {
			logger.Warn("Skipping unreadable batch", zap.String("path", path), zap.Error(err))
			continue
		}

		for _, a := range batch {
			if strings.TrimSpace(a.Date) == date {
				articles = append(articles, a)
			}
		}
	}

	return articles, nil
}

func (s *FileStore) read(path string) ([]models.Article, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch: %w", err)
	}

	var articles []models.Article
	if err := json.Unmarshal(data, &articles); err != nil {
		return nil, fmt.Errorf("failed to decode batch %s: %w", filepath.Base(path), err)
	}

	return articles, nil
}
