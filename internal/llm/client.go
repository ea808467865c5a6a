package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/rights-monitor/backend/internal/metrics"
	"github.com/rights-monitor/backend/internal/ports"
	"github.com/rights-monitor/backend/internal/storage/models"
	"github.com/rights-monitor/backend/pkg/logger"
	"github.com/rights-monitor/backend/pkg/utils"
)

var ErrEmptyResponse = errors.New("model returned an empty response")

type Client struct {
	httpClient *http.Client
	url        string
	model      string
	supervisor *Supervisor
	cache      ports.ResponseCache
}

type Options struct {
	URL        string
	Model      string
	Timeout    time.Duration
	Supervisor *Supervisor
	// Cache is optional. Only responses that parse are stored.
	Cache      ports.ResponseCache
	HTTPClient *http.Client
}

type generateRequest struct {
	Model       string         `json:"model"`
	Prompt      string         `json:"prompt"`
	Temperature float64        `json:"temperature"`
	TopP        float64        `json:"top_p"`
	Stop        []string       `json:"stop,omitempty"`
	Options     map[string]any `json:"options"`
}

type generateChunk struct {
	Response string `json:"response"`
	Error    string `json:"error"`
	Done     bool   `json:"done"`
}

func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Minute
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	logger.Info("Model client initialized",
		zap.String("url", opts.URL),
		zap.String("model", opts.Model),
		zap.Bool("cache", opts.Cache != nil),
	)

	return &Client{
		httpClient: httpClient,
		url:        opts.URL,
		model:      opts.Model,
		supervisor: opts.Supervisor,
		cache:      opts.Cache,
	}
}

// Generate sends prompt with deterministic sampling and returns the
// concatenated response text. Generation stops at the first blank line.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, prompt, []string{"\n\n"})
}

// Complete is Generate without a stop sequence, for answers that span
// several paragraphs.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, prompt, nil)
}

func (c *Client) generate(ctx context.Context, prompt string, stop []string) (string, error) {
	if c.supervisor != nil && !c.supervisor.EnsureReady(ctx) {
		return "", ErrModelUnavailable
	}

	options := map[string]any{
		"temperature": 0,
		"top_p":       1,
	}
	if len(stop) > 0 {
		options["stop"] = stop
	}

	body, err := json.Marshal(generateRequest{
		Model:       c.model,
		Prompt:      prompt,
		Temperature: 0,
		TopP:        1,
		Stop:        stop,
		Options:     options,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if c.supervisor != nil && ctx.Err() == nil {
			c.supervisor.Invalidate()
		}
		return "", fmt.Errorf("failed to call model: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read model response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("model returned status %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	return joinChunks(string(raw))
}

// Classify never fails. Unavailable servers, transport errors and invalid
// output all yield an empty slice.
func (c *Client) Classify(ctx context.Context, prompt string) []models.ClassificationResult {
	key := utils.HashString(c.model, prompt)

	if c.cache != nil {
		if raw, ok := c.cache.Get(ctx, key); ok {
			if v, ok := Parse(raw).(Valid); ok {
				metrics.ModelCalls.WithLabelValues("cached").Inc()
				return Results(v)
			}
		}
	}

	start := time.Now()
	raw, err := c.Generate(ctx, prompt)
	metrics.ModelCallDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		status := "error"
		if errors.Is(err, ErrModelUnavailable) {
			status = "unavailable"
		}
		metrics.ModelCalls.WithLabelValues(status).Inc()
		logger.Warn("Model call failed, using empty result", zap.Error(err))
		return []models.ClassificationResult{}
	}

	switch o := Parse(raw).(type) {
	case Invalid:
		metrics.ModelCalls.WithLabelValues("invalid").Inc()
		metrics.ParseFailures.WithLabelValues(o.Reason).Inc()
		logger.Warn("Model output rejected",
			zap.String("reason", o.Reason),
			zap.String("detail", o.Detail),
			zap.String("output", truncate(raw, 500)),
		)
		return []models.ClassificationResult{}
	case Valid:
		metrics.ModelCalls.WithLabelValues("ok").Inc()
		if c.cache != nil {
			c.cache.Set(ctx, key, raw)
		}
		return Results(o)
	}

	return []models.ClassificationResult{}
}

// ClassifyAsync runs Classify in its own goroutine. The channel yields one
// value and is then closed.
func (c *Client) ClassifyAsync(ctx context.Context, prompt string) <-chan []models.ClassificationResult {
	out := make(chan []models.ClassificationResult, 1)

	go func() {
		defer close(out)
		out <- c.Classify(ctx, prompt)
	}()

	return out
}

// joinChunks accepts either one JSON object or newline-delimited objects and
// concatenates their response fields.
func joinChunks(body string) (string, error) {
	if strings.TrimSpace(body) == "" {
		return "", ErrEmptyResponse
	}

	var sb strings.Builder
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var chunk generateChunk
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			return "", fmt.Errorf("failed to decode model response line: %w", err)
		}
		if chunk.Error != "" {
			return "", fmt.Errorf("model error: %s", chunk.Error)
		}
		sb.WriteString(chunk.Response)
	}

	return strings.TrimSpace(sb.String()), nil
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
