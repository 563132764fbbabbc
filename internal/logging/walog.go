package logging

import (
	"context"
	"fmt"
	"log/slog"

	waLog "go.mau.fi/whatsmeow/util/log"
)

// WALogger routes whatsmeow log output into slog.
type WALogger struct {
	logger *slog.Logger
}

var _ waLog.Logger = (*WALogger)(nil)

// NewWALogger wraps logger for the given whatsmeow module.
func NewWALogger(logger *slog.Logger, module string) *WALogger {
	return &WALogger{logger: logger.With("module", module)}
}

func (l *WALogger) Debugf(msg string, args ...any) { l.log(slog.LevelDebug, msg, args) }
func (l *WALogger) Infof(msg string, args ...any)  { l.log(slog.LevelInfo, msg, args) }
func (l *WALogger) Warnf(msg string, args ...any)  { l.log(slog.LevelWarn, msg, args) }
func (l *WALogger) Errorf(msg string, args ...any) { l.log(slog.LevelError, msg, args) }

// Sub returns a logger for a nested module.
func (l *WALogger) Sub(module string) waLog.Logger {
	return &WALogger{logger: l.logger.With("submodule", module)}
}

func (l *WALogger) log(level slog.Level, msg string, args []any) {
	ctx := context.Background()
	if !l.logger.Enabled(ctx, level) {
		return
	}
	l.logger.Log(ctx, level, fmt.Sprintf(msg, args...))
}
