package logging

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Level represents the severity of a log entry.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// ParseLevel accepts the level names above, case-insensitively.
func ParseLevel(value string) (Level, error) {
	switch level := Level(strings.ToLower(strings.TrimSpace(value))); level {
	case LevelDebug, LevelInfo, LevelWarn, LevelError:
		return level, nil
	case "warning":
		return LevelWarn, nil
	}
	return "", fmt.Errorf("logging: unknown level %q", value)
}

func (l Level) zerolog() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelInfo:
		return zerolog.InfoLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.WarnLevel
	}
}

// LogField represents a key-value pair in structured logging.
type LogField struct {
	Key   string
	Value any
}

// Field creates a LogField from a key-value pair.
func Field(key string, value any) LogField {
	return LogField{Key: key, Value: value}
}

// Logger provides structured logging capabilities with context support.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...LogField)
	Info(ctx context.Context, msg string, fields ...LogField)
	Warn(ctx context.Context, msg string, fields ...LogField)
	Error(ctx context.Context, msg string, err error, fields ...LogField)
	WithFields(fields ...LogField) Logger
}

// NoOpLogger is a logger that discards all log entries.
type NoOpLogger struct{}

func (n *NoOpLogger) Debug(_ context.Context, _ string, _ ...LogField)          {}
func (n *NoOpLogger) Info(_ context.Context, _ string, _ ...LogField)           {}
func (n *NoOpLogger) Warn(_ context.Context, _ string, _ ...LogField)           {}
func (n *NoOpLogger) Error(_ context.Context, _ string, _ error, _ ...LogField) {}
func (n *NoOpLogger) WithFields(_ ...LogField) Logger                           { return n }

// OrNoOp returns logger, or a NoOpLogger when logger is nil.
func OrNoOp(logger Logger) Logger {
	if logger == nil {
		return &NoOpLogger{}
	}
	return logger
}

// ZerologLogger writes structured entries through zerolog. It includes the
// trace ID from the context when one is present.
type ZerologLogger struct {
	logger zerolog.Logger
}

// New creates a JSON logger with the given minimum level. A nil writer
// discards everything.
func New(level Level, writer io.Writer) *ZerologLogger {
	if writer == nil {
		writer = io.Discard
	}
	return &ZerologLogger{
		logger: zerolog.New(writer).Level(level.zerolog()).With().Timestamp().Logger(),
	}
}

// NewConsole creates a human-readable logger for terminals.
func NewConsole(level Level, writer io.Writer, noColor bool) *ZerologLogger {
	if writer == nil {
		writer = io.Discard
	}
	console := zerolog.ConsoleWriter{
		Out:        writer,
		TimeFormat: time.Kitchen,
		NoColor:    noColor,
	}
	return &ZerologLogger{
		logger: zerolog.New(console).Level(level.zerolog()).With().Timestamp().Logger(),
	}
}

func (z *ZerologLogger) write(ctx context.Context, event *zerolog.Event, msg string, fields []LogField) {
	if event == nil {
		return
	}
	for _, f := range fields {
		event = event.Interface(f.Key, f.Value)
	}
	if traceID := TraceID(ctx); traceID != "" {
		event = event.Str("trace_id", traceID)
	}
	event.Msg(msg)
}

func (z *ZerologLogger) Debug(ctx context.Context, msg string, fields ...LogField) {
	z.write(ctx, z.logger.Debug(), msg, fields)
}

func (z *ZerologLogger) Info(ctx context.Context, msg string, fields ...LogField) {
	z.write(ctx, z.logger.Info(), msg, fields)
}

func (z *ZerologLogger) Warn(ctx context.Context, msg string, fields ...LogField) {
	z.write(ctx, z.logger.Warn(), msg, fields)
}

func (z *ZerologLogger) Error(ctx context.Context, msg string, err error, fields ...LogField) {
	z.write(ctx, z.logger.Error().Err(err), msg, fields)
}

func (z *ZerologLogger) WithFields(fields ...LogField) Logger {
	child := z.logger.With()
	for _, f := range fields {
		child = child.Interface(f.Key, f.Value)
	}
	return &ZerologLogger{logger: child.Logger()}
}

// traceIDKey is the context key for trace IDs.
type traceIDKey struct{}

// WithTraceID adds a trace ID to the context for request correlation.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

// TraceID extracts the trace ID from context, if present.
func TraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(traceIDKey{}).(string); ok {
		return id
	}
	return ""
}

// NewTraceID creates a new trace ID for request correlation.
func NewTraceID() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}
