package notify

import (
	"time"

	"go.uber.org/zap"

	"astroconsole-backend/pkg/logger"
)

// LogSink is the headless sink used when no UI or push provider is wired.
// Every effect is recorded in the log instead of shown to an operator.
type LogSink struct{}

func (LogSink) Notify(title, body string, meta map[string]string) error {
	logger.Info("desktop notification",
		zap.String("title", title),
		zap.String("body", body),
		zap.Any("meta", meta))
	return nil
}

func (LogSink) PlayAlertSound() error {
	logger.Debug("alert sound")
	return nil
}

func (LogSink) ShowToast(text string, duration time.Duration) error {
	logger.Info("toast", zap.String("text", text), zap.Duration("duration", duration))
	return nil
}
