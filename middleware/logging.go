package middleware

import (
	"context"
	"log/slog"
	"time"
)

// Logger is the interface for structured logging.
type Logger interface {
	Info(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Debug(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
}

// Field represents a key-value pair for structured logging.
type Field struct {
	Key   string
	Value any
}

// F creates a new Field with the given key and value.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Logging returns middleware that logs request details once the rest of the
// chain has settled. Successful requests are logged at info level, failures
// at error level.
func Logging(logger Logger) Handler {
	return func(c *Context, next Next) error {
		start := time.Now()

		err := next()

		fields := []Field{
			F("duration", time.Since(start)),
		}
		if c.Request != nil {
			fields = append(fields,
				F("method", c.Request.Method),
				F("path", c.Request.URL.Path),
			)
		}

		// Add request ID if present
		if requestID := RequestIDFrom(c); requestID != "" {
			fields = append(fields, F("request_id", requestID))
		}

		if err != nil {
			fields = append(fields, F("error", err.Error()))
			logger.Error("request failed", fields...)
		} else {
			fields = append(fields, F("status", c.Status))
			logger.Info("request completed", fields...)
		}

		return err
	}
}

// NopLogger is a logger that discards all log entries.
type NopLogger struct{}

func (NopLogger) Info(msg string, fields ...Field)  {}
func (NopLogger) Error(msg string, fields ...Field) {}
func (NopLogger) Debug(msg string, fields ...Field) {}
func (NopLogger) Warn(msg string, fields ...Field)  {}

// SlogLogger adapts a *slog.Logger to Logger.
func SlogLogger(l *slog.Logger) Logger {
	return slogLogger{l: l}
}

type slogLogger struct {
	l *slog.Logger
}

func (s slogLogger) Info(msg string, fields ...Field)  { s.log(slog.LevelInfo, msg, fields) }
func (s slogLogger) Error(msg string, fields ...Field) { s.log(slog.LevelError, msg, fields) }
func (s slogLogger) Debug(msg string, fields ...Field) { s.log(slog.LevelDebug, msg, fields) }
func (s slogLogger) Warn(msg string, fields ...Field)  { s.log(slog.LevelWarn, msg, fields) }

func (s slogLogger) log(level slog.Level, msg string, fields []Field) {
	attrs := make([]slog.Attr, len(fields))
	for i, f := range fields {
		attrs[i] = slog.Any(f.Key, f.Value)
	}
	s.l.LogAttrs(context.Background(), level, msg, attrs...)
}
