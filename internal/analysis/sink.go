package analysis

import (
	"go.uber.org/zap"

	"github.com/rights-monitor/backend/pkg/logger"
)

// NopSink discards progress and never reports a disconnect.
type NopSink struct{}

func (NopSink) Status(string)                {}
func (NopSink) Progress(string, string, int) {}
func (NopSink) Alive() bool                  { return true }

// LogSink writes progress to the application log.
type LogSink struct{}

func (LogSink) Status(message string) {
	logger.Info(message)
}

func (LogSink) Progress(stage, message string, percent int) {
	logger.Info(message, zap.String("stage", stage), zap.Int("percent", percent))
}

func (LogSink) Alive() bool { return true }
