package validation

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp() *fiber.App {
	app := fiber.New()
	app.Use(Middleware(Config{MaxRights: 2}))

	echo := func(c *fiber.Ctx) error {
		if req, ok := ProcessRequest(c); ok {
			return c.JSON(req)
		}
		return c.SendString("ok")
	}
	app.Post("/api/v1/news/process", echo)
	app.Post("/api/v1/news/details", echo)
	app.Post("/api/v1/batches", echo)
	return app
}

func post(t *testing.T, app *fiber.App, path, contentType, body string) (int, string) {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	resp, err := app.Test(req)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(data)
}

func TestProcessRequestValidation(t *testing.T) {
	app := newApp()

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"valid", `{"dates":["2024-03-01"],"rights":["derecho a la vida"]}`, fiber.StatusOK},
		{"valid range", `{"start_date":"2024-03-01","end_date":"2024-03-03","rights":["derecho a la vida"]}`, fiber.StatusOK},
		{"malformed date", `{"dates":["03/01/2024"],"rights":["derecho a la vida"]}`, fiber.StatusBadRequest},
		{"no dates", `{"dates":[],"rights":["derecho a la vida"]}`, fiber.StatusBadRequest},
		{"no rights", `{"dates":["2024-03-01"],"rights":["  "]}`, fiber.StatusBadRequest},
		{"too many rights", `{"dates":["2024-03-01"],"rights":["a","b","c"]}`, fiber.StatusBadRequest},
		{"not json", `dates=2024`, fiber.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := post(t, app, "/api/v1/news/process", "application/json", tt.body)
			assert.Equal(t, tt.status, status)
		})
	}
}

func TestProcessRequestIsSanitizedAndStored(t *testing.T) {
	status, body := post(t, newApp(), "/api/v1/news/process", "application/json",
		`{"dates":["2024-03-01"],"rights":[" derecho a la vida\u0000 "]}`)

	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, body, `"rights":["derecho a la vida"]`)
}

func TestUnsupportedContentType(t *testing.T) {
	status, _ := post(t, newApp(), "/api/v1/news/process", "text/plain", `{}`)
	assert.Equal(t, fiber.StatusUnsupportedMediaType, status)
}

func TestDetailsAndBatchesValidation(t *testing.T) {
	app := newApp()

	status, _ := post(t, app, "/api/v1/news/details", "application/json", `{"ids":[],"rights":["a"]}`)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = post(t, app, "/api/v1/news/details", "application/json", `{"ids":["x"],"rights":["a"]}`)
	assert.Equal(t, fiber.StatusOK, status)

	status, _ = post(t, app, "/api/v1/batches", "application/json", `{}`)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = post(t, app, "/api/v1/batches", "application/json", `{"xhtml":"<div class=\"page\">x</div>"}`)
	assert.Equal(t, fiber.StatusOK, status)
}
