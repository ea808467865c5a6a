package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/rights-monitor/backend/pkg/logger"
)

type CacheHandler struct {
	cache CacheAdmin
}

func NewCacheHandler(cache CacheAdmin) *CacheHandler {
	return &CacheHandler{cache: cache}
}

// Invalidate drops cached model output so the next run asks the model again.
func (h *CacheHandler) Invalidate(c *fiber.Ctx) error {
	if err := h.cache.Invalidate(c.UserContext()); err != nil {
		logger.Error("Failed to invalidate model cache", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to invalidate cache",
		})
	}
	return c.SendStatus(fiber.StatusNoContent)
}
