package validation

import (
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/rights-monitor/backend/internal/analysis"
)

// LocalProcessRequest is the fiber.Ctx local holding a validated analysis.Request.
const LocalProcessRequest = "process_request"

type Config struct {
	MaxRights           int
	MaxIDs              int
	MaxDocumentSize     int
	AllowedContentTypes []string
	Logger              *zap.Logger
}

func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxRights == 0 {
		cfg.MaxRights = 100
	}
	if cfg.MaxIDs == 0 {
		cfg.MaxIDs = 1000
	}
	if cfg.MaxDocumentSize == 0 {
		cfg.MaxDocumentSize = 50 * 1024 * 1024
	}
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{"application/json"}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost && c.Method() != fiber.MethodPut {
			return c.Next()
		}

		contentType := c.Get(fiber.HeaderContentType)
		if contentType != "" {
			allowed := false
			for _, allowedType := range cfg.AllowedContentTypes {
				if strings.Contains(contentType, allowedType) {
					allowed = true
					break
				}
			}
			if !allowed {
				return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
					"error": "Unsupported content type",
				})
			}
		}

		path := strings.TrimSuffix(c.Path(), "/")

		switch {
		case strings.HasSuffix(path, "/news/process"):
			var req analysis.Request
			if err := json.Unmarshal(c.Body(), &req); err != nil {
				return badRequest(c, "Invalid JSON format")
			}

			for i, r := range req.Rights {
				req.Rights[i] = sanitizeString(r)
			}

			if _, err := req.ResolveDates(); err != nil {
				cfg.Logger.Warn("Rejected process request", zap.String("ip", c.IP()), zap.Error(err))
				return badRequest(c, err.Error())
			}
			rights, err := req.ResolveRights()
			if err != nil {
				return badRequest(c, err.Error())
			}
			if len(rights) > cfg.MaxRights {
				return badRequest(c, "Too many rights requested")
			}

			c.Locals(LocalProcessRequest, req)

		case strings.HasSuffix(path, "/news/details"):
			var req struct {
				IDs    []string `json:"ids"`
				Rights []string `json:"rights"`
			}
			if err := json.Unmarshal(c.Body(), &req); err != nil {
				return badRequest(c, "Invalid JSON format")
			}
			if len(req.IDs) == 0 {
				return badRequest(c, "ids is required")
			}
			if len(req.IDs) > cfg.MaxIDs {
				return badRequest(c, "Too many ids requested")
			}
			if len(req.Rights) == 0 {
				return badRequest(c, "rights is required")
			}

		case strings.HasSuffix(path, "/batches"):
			var req struct {
				Articles []json.RawMessage `json:"articles"`
				XHTML    string            `json:"xhtml"`
			}
			if err := json.Unmarshal(c.Body(), &req); err != nil {
				return badRequest(c, "Invalid JSON format")
			}
			if len(req.Articles) == 0 && strings.TrimSpace(req.XHTML) == "" {
				return badRequest(c, "articles or xhtml is required")
			}
			if len(req.XHTML) > cfg.MaxDocumentSize {
				return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
					"error": "Document content exceeds maximum size",
				})
			}
		}

		return c.Next()
	}
}

// ProcessRequest returns the request stored by Middleware, if any.
func ProcessRequest(c *fiber.Ctx) (analysis.Request, bool) {
	req, ok := c.Locals(LocalProcessRequest).(analysis.Request)
	return req, ok
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": msg,
	})
}

func sanitizeString(input string) string {
	input = strings.TrimSpace(input)
	return strings.ReplaceAll(input, "\x00", "")
}
