package logger

import "context"

// LoggerContext accumulates key/value pairs over the course of an operation so
// that every subsequent log line carries them.
type LoggerContext struct {
	logger *Logger
}

// NewLoggerContext wraps l in a LoggerContext.
func NewLoggerContext(l *Logger) *LoggerContext { return &LoggerContext{logger: l} }

// Add appends key/value pairs to all future log lines.
func (lc *LoggerContext) Add(args ...any) { lc.logger = lc.logger.With(args...) }

// Logger returns the accumulated logger.
func (lc *LoggerContext) Logger() *Logger { return lc.logger }

func (lc *LoggerContext) Debug(ctx context.Context, msg string, args ...any) {
	lc.logger.write(ctx, LevelDebug, 3, msg, args...)
}

func (lc *LoggerContext) Info(ctx context.Context, msg string, args ...any) {
	lc.logger.write(ctx, LevelInfo, 3, msg, args...)
}

func (lc *LoggerContext) Warn(ctx context.Context, msg string, args ...any) {
	lc.logger.write(ctx, LevelWarn, 3, msg, args...)
}

func (lc *LoggerContext) Error(ctx context.Context, msg string, args ...any) {
	lc.logger.write(ctx, LevelError, 3, msg, args...)
}
