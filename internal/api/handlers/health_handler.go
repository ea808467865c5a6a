package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/rights-monitor/backend/pkg/logger"
)

type HealthHandler struct {
	model Readiness
	cache Pinger
}

// NewHealthHandler takes a nil cache when model output is cached in process.
func NewHealthHandler(model Readiness, cache Pinger) *HealthHandler {
	return &HealthHandler{model: model, cache: cache}
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// Ready reports 503 while the model server cannot be reached. An unreachable
// cache only degrades the report; runs still work without it.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	cache := "memory"
	if h.cache != nil {
		cache = "ok"
		if err := h.cache.Ping(c.UserContext()); err != nil {
			logger.Warn("Cache server unreachable", zap.Error(err))
			cache = "unreachable"
		}
	}

	if h.model != nil && !h.model.EnsureReady(c.UserContext()) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unavailable",
			"model":  h.model.State().String(),
			"cache":  cache,
		})
	}

	model := "disabled"
	if h.model != nil {
		model = h.model.State().String()
	}
	return c.JSON(fiber.Map{
		"status": "ready",
		"model":  model,
		"cache":  cache,
	})
}
