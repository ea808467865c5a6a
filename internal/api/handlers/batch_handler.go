package handlers

import (
	"errors"
	"io/fs"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/rights-monitor/backend/internal/ingestion"
	"github.com/rights-monitor/backend/internal/storage/batch"
	"github.com/rights-monitor/backend/internal/storage/models"
	"github.com/rights-monitor/backend/pkg/logger"
)

type BatchHandler struct {
	ingestor Ingestor
}

func NewBatchHandler(ingestor Ingestor) *BatchHandler {
	return &BatchHandler{
		ingestor: ingestor,
	}
}

// CreateBatch stores ready-made articles, or extracts them from an XHTML
// page dump when xhtml is given.
func (h *BatchHandler) CreateBatch(c *fiber.Ctx) error {
	var req struct {
		Articles []models.Article `json:"articles"`
		XHTML    string           `json:"xhtml"`
		Date     string           `json:"date"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	var (
		batchID  string
		articles []models.Article
		err      error
	)
	if req.XHTML != "" {
		batchID, articles, err = h.ingestor.ProcessDocument(c.UserContext(), req.XHTML, req.Date)
	} else {
		batchID, articles, err = h.ingestor.StoreArticles(req.Articles)
	}

	if err != nil {
		if errors.Is(err, ingestion.ErrNoPages) || errors.Is(err, ingestion.ErrNoDate) || errors.Is(err, ingestion.ErrNoArticles) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		logger.Error("Failed to create batch", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create batch",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"batch_id": batchID,
		"count":    len(articles),
		"articles": articles,
	})
}

func (h *BatchHandler) GetBatch(c *fiber.Ctx) error {
	batchID := c.Params("id")

	articles, err := h.ingestor.LoadBatch(batchID)
	if err != nil {
		switch {
		case errors.Is(err, batch.ErrInvalidBatchID):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid batch id",
			})
		case errors.Is(err, fs.ErrNotExist):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Batch not found",
			})
		}
		logger.Error("Failed to load batch", zap.String("batch_id", batchID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load batch",
		})
	}

	return c.JSON(fiber.Map{
		"batch_id": batchID,
		"count":    len(articles),
		"articles": articles,
	})
}
