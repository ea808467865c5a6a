package handlers

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/rights-monitor/backend/internal/analysis"
	"github.com/rights-monitor/backend/pkg/logger"
)

var errClientGone = errors.New("client disconnected")

type jsonWriter interface {
	WriteJSON(v interface{}) error
}

type statusEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type progressEvent struct {
	Type    string `json:"type"`
	Stage   string `json:"stage"`
	Message string `json:"message"`
	Percent int    `json:"percent"`
}

type resultEvent struct {
	Type         string                `json:"type"`
	Results      []analysis.DateResult `json:"results"`
	ProcessedIDs []string              `json:"processed_article_ids"`
}

// socketSink forwards batch progress to a websocket client. Once a write
// fails, or the reader sees the client leave, the sink reports not alive.
type socketSink struct {
	conn jsonWriter
	mu   sync.Mutex
	gone atomic.Bool
}

func newSocketSink(conn jsonWriter) *socketSink {
	return &socketSink{conn: conn}
}

func (s *socketSink) send(v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gone.Load() {
		return errClientGone
	}
	if err := s.conn.WriteJSON(v); err != nil {
		s.gone.Store(true)
		return err
	}
	return nil
}

func (s *socketSink) Status(message string) {
	s.send(statusEvent{Type: "status", Message: message})
}

func (s *socketSink) Progress(stage, message string, percent int) {
	s.send(progressEvent{Type: "progress", Stage: stage, Message: message, Percent: percent})
}

func (s *socketSink) Ping() error {
	return s.send(map[string]string{"type": "ping"})
}

func (s *socketSink) Error(message string) {
	s.send(statusEvent{Type: "error", Message: message})
}

func (s *socketSink) Result(report *analysis.Report) error {
	return s.send(resultEvent{
		Type:         "result",
		Results:      report.Results,
		ProcessedIDs: report.ProcessedIDs,
	})
}

func (s *socketSink) Alive() bool {
	return !s.gone.Load()
}

func (s *socketSink) markGone() {
	s.gone.Store(true)
}

type WebSocketHandler struct {
	runner       BatchRunner
	pingInterval time.Duration
}

func NewWebSocketHandler(runner BatchRunner, pingInterval time.Duration) *WebSocketHandler {
	if pingInterval <= 0 {
		pingInterval = 15 * time.Second
	}
	return &WebSocketHandler{
		runner:       runner,
		pingInterval: pingInterval,
	}
}

// Upgrade rejects plain HTTP requests on websocket routes.
func Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// HandleProcess reads one process request, streams progress while the batch
// runs and always closes the connection when done.
func (h *WebSocketHandler) HandleProcess(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	sink := newSocketSink(c)

	var req analysis.Request
	if err := c.ReadJSON(&req); err != nil {
		logger.Warn("Failed to read WebSocket message", zap.Error(err))
		sink.Error("Solicitud inválida")
		return
	}

	if _, err := req.ResolveDates(); err != nil {
		sink.Error(err.Error())
		return
	}
	if _, err := req.ResolveRights(); err != nil {
		sink.Error(err.Error())
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				sink.markGone()
				cancel()
				return
			}
		}
	}()

	go h.keepAlive(ctx, sink)

	report, err := h.runner.Run(ctx, req, sink)
	if err != nil {
		logger.Error("Failed to process batch", zap.Error(err))
		sink.Error("Error al procesar las noticias")
		return
	}

	if !report.Completed {
		logger.Info("Batch stopped early", zap.Int("processed", len(report.ProcessedIDs)))
	}

	if err := sink.Result(report); err != nil {
		logger.Warn("Failed to deliver result", zap.Error(err))
	}
}

func (h *WebSocketHandler) keepAlive(ctx context.Context, sink *socketSink) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sink.Ping(); err != nil {
				return
			}
		}
	}
}
