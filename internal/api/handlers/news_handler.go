package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/rights-monitor/backend/internal/analysis"
	"github.com/rights-monitor/backend/internal/middleware/validation"
	"github.com/rights-monitor/backend/pkg/logger"
)

type NewsHandler struct {
	runner BatchRunner
	reader NewsReader
}

func NewNewsHandler(runner BatchRunner, reader NewsReader) *NewsHandler {
	return &NewsHandler{
		runner: runner,
		reader: reader,
	}
}

// Process runs one batch without a live session and answers with the
// per-date tallies and the ids of the processed news items.
func (h *NewsHandler) Process(c *fiber.Ctx) error {
	req, ok := validation.ProcessRequest(c)
	if !ok {
		if err := c.BodyParser(&req); err != nil {
			logger.Error("Failed to parse request body", zap.Error(err))
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}
	}

	report, err := h.runner.Run(c.UserContext(), req, analysis.NopSink{})
	if err != nil {
		if analysis.IsRequestError(err) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		logger.Error("Failed to process news", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process news",
		})
	}

	return c.JSON(fiber.Map{
		"results":  report.Results,
		"noticias": report.ProcessedIDs,
	})
}

func (h *NewsHandler) Details(c *fiber.Ctx) error {
	var req struct {
		IDs    []string `json:"ids"`
		Rights []string `json:"rights"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	details, err := h.reader.NewsDetails(c.UserContext(), req.IDs, req.Rights)
	if err != nil {
		logger.Error("Failed to get news details", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get news details",
		})
	}

	return c.JSON(details)
}

func (h *NewsHandler) Rights(c *fiber.Ctx) error {
	rights, err := h.reader.ListVisibleRights(c.UserContext())
	if err != nil {
		logger.Error("Failed to list rights", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list rights",
		})
	}

	if rights == nil {
		return c.JSON([]struct{}{})
	}
	return c.JSON(rights)
}
