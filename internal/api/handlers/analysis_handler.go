package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/rights-monitor/backend/pkg/logger"
)

const (
	defaultPageSize = 100
	maxPageSize     = 500
)

type AnalysisHandler struct {
	reader AnalysisReader
}

func NewAnalysisHandler(reader AnalysisReader) *AnalysisHandler {
	return &AnalysisHandler{reader: reader}
}

func (h *AnalysisHandler) List(c *fiber.Ctx) error {
	limit, offset, ok := page(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "limit must be 1-500 and offset must not be negative",
		})
	}

	records, err := h.reader.ListAnalyses(c.UserContext(), limit, offset)
	if err != nil {
		logger.Error("Failed to list analyses", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list analyses",
		})
	}

	return c.JSON(records)
}

// ListRights lists analysis-to-right links, optionally for one analysis_id.
func (h *AnalysisHandler) ListRights(c *fiber.Ctx) error {
	limit, offset, ok := page(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "limit must be 1-500 and offset must not be negative",
		})
	}

	links, err := h.reader.ListAnalysisRights(c.UserContext(), c.Query("analysis_id"), limit, offset)
	if err != nil {
		logger.Error("Failed to list analysis rights", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list analysis rights",
		})
	}

	return c.JSON(links)
}

func page(c *fiber.Ctx) (limit, offset int, ok bool) {
	limit = c.QueryInt("limit", defaultPageSize)
	offset = c.QueryInt("offset", 0)
	if limit < 1 || limit > maxPageSize || offset < 0 {
		return 0, 0, false
	}
	return limit, offset, true
}
