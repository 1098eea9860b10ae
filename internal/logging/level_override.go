package logging

import (
	"context"
	"log/slog"
)

// minLevelHandler drops records below min before they reach the wrapped
// handler. --quiet uses it to keep only warnings and errors.
type minLevelHandler struct {
	slog.Handler
	min slog.Level
}

func (h minLevelHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.min && h.Handler.Enabled(ctx, level)
}

func (h minLevelHandler) Handle(ctx context.Context, record slog.Record) error {
	if record.Level < h.min {
		return nil
	}
	return h.Handler.Handle(ctx, record)
}

func (h minLevelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return minLevelHandler{Handler: h.Handler.WithAttrs(attrs), min: h.min}
}

func (h minLevelHandler) WithGroup(name string) slog.Handler {
	return minLevelHandler{Handler: h.Handler.WithGroup(name), min: h.min}
}

// WithLevelOverride returns a logger that drops records below level. An
// earlier override on logger is replaced, not stacked.
func WithLevelOverride(logger *slog.Logger, level slog.Level) *slog.Logger {
	if logger == nil {
		return NewNop()
	}
	base := logger.Handler()
	if existing, ok := base.(minLevelHandler); ok {
		base = existing.Handler
	}
	return slog.New(minLevelHandler{Handler: base, min: level})
}
