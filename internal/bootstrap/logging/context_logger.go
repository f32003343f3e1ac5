package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

type ctxLoggerKey struct{}
type ctxAttrsKey struct{}

var (
	defaultLogger     *slog.Logger
	defaultLoggerOnce sync.Once
)

func baseLogger() *slog.Logger {
	defaultLoggerOnce.Do(func() {
		defaultLogger = New(os.Stderr, "info")
	})

	return defaultLogger
}

// New builds the text logger used by the CLI. Unknown levels fall back to info.
func New(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
	}))
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		return ctx
	}

	return context.WithValue(ctx, ctxLoggerKey{}, logger)
}

// WithAttrs returns a context whose records carry attrs. Later keys replace earlier ones.
func WithAttrs(ctx context.Context, attrs ...slog.Attr) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(attrs) == 0 {
		return ctx
	}

	return context.WithValue(ctx, ctxAttrsKey{}, mergeAttrs(Attrs(ctx), attrs))
}

func WithComponent(ctx context.Context, component string) context.Context {
	return WithAttrs(ctx, slog.String("component", component))
}

func Logger(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(ctxLoggerKey{}).(*slog.Logger); ok && logger != nil {
			return logger
		}
	}

	return baseLogger()
}

func Attrs(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}

	attrs, ok := ctx.Value(ctxAttrsKey{}).([]slog.Attr)
	if !ok || len(attrs) == 0 {
		return nil
	}

	cloned := make([]slog.Attr, len(attrs))
	copy(cloned, attrs)
	return cloned
}

func Debug(ctx context.Context, msg string, attrs ...slog.Attr) {
	log(ctx, slog.LevelDebug, msg, attrs...)
}

func Info(ctx context.Context, msg string, attrs ...slog.Attr) {
	log(ctx, slog.LevelInfo, msg, attrs...)
}

func Warn(ctx context.Context, msg string, attrs ...slog.Attr) {
	log(ctx, slog.LevelWarn, msg, attrs...)
}

func Error(ctx context.Context, msg string, attrs ...slog.Attr) {
	log(ctx, slog.LevelError, msg, attrs...)
}

func log(ctx context.Context, level slog.Level, msg string, attrs ...slog.Attr) {
	if ctx == nil {
		ctx = context.Background()
	}

	logger := Logger(ctx)
	if !logger.Enabled(ctx, level) {
		return
	}
	logger.LogAttrs(ctx, level, msg, mergeAttrs(Attrs(ctx), attrs)...)
}

func mergeAttrs(base []slog.Attr, extra []slog.Attr) []slog.Attr {
	merged := make([]slog.Attr, 0, len(base)+len(extra))
	indexByKey := make(map[string]int, len(base)+len(extra))

	for _, attr := range append(base[:len(base):len(base)], extra...) {
		if attr.Key != "" {
			if idx, ok := indexByKey[attr.Key]; ok {
				merged[idx] = attr
				continue
			}
			indexByKey[attr.Key] = len(merged)
		}
		merged = append(merged, attr)
	}

	return merged
}
