package logging

import (
	"context"
	"log/slog"
	"maps"
)

// FieldSessionID is the structured logging key for the run identifier.
const FieldSessionID = "session_id"

// runHandler stamps every record with the run's session_id. Records logged
// with a task context also get its task, stage and correlation fields unless
// the logger was already scoped with them through WithContext.
type runHandler struct {
	base      slog.Handler
	sessionID string
	scoped    map[string]struct{}
}

func newRunHandler(base slog.Handler, sessionID string) slog.Handler {
	if base == nil {
		return NoopHandler{}
	}
	return &runHandler{base: base, sessionID: sessionID}
}

func (h *runHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

func (h *runHandler) Handle(ctx context.Context, record slog.Record) error {
	if h.sessionID != "" {
		record.AddAttrs(slog.String(FieldSessionID, h.sessionID))
	}
	for _, attr := range ContextFields(ctx) {
		if _, ok := h.scoped[attr.Key]; !ok {
			record.AddAttrs(attr)
		}
	}
	return h.base.Handle(ctx, record)
}

func (h *runHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	scoped := maps.Clone(h.scoped)
	for _, attr := range attrs {
		switch attr.Key {
		case FieldTaskID, FieldStage, FieldCorrelationID:
			if scoped == nil {
				scoped = make(map[string]struct{}, 3)
			}
			scoped[attr.Key] = struct{}{}
		}
	}
	return &runHandler{base: h.base.WithAttrs(attrs), sessionID: h.sessionID, scoped: scoped}
}

func (h *runHandler) WithGroup(name string) slog.Handler {
	return &runHandler{base: h.base.WithGroup(name), sessionID: h.sessionID, scoped: h.scoped}
}
