package logger

import (
	"context"
	"log/slog"
	"strings"
)

const timeFormatMillis = "2006-01-02T15:04:05.000Z07:00"

// handlerOptions renames the built-in keys to the schema used across the bots
// (ts, level, event) and renders durations as integer milliseconds.
func handlerOptions(level slog.Leveler) *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 {
				switch a.Key {
				case slog.TimeKey:
					return slog.String("ts", a.Value.Time().UTC().Format(timeFormatMillis))
				case slog.MessageKey:
					// event is always added by contextHandler.
					return slog.Attr{}
				}
			}
			if a.Value.Kind() == slog.KindDuration {
				return slog.Int64(durationKey(a.Key), RoundMS(a.Value.Duration()).Milliseconds())
			}
			if a.Value.Kind() == slog.KindString {
				return slog.String(a.Key, strings.TrimSpace(a.Value.String()))
			}
			return a
		},
	}
}

func durationKey(key string) string {
	switch {
	case key == "duration":
		return "duration_ms"
	case strings.HasSuffix(key, "_duration"):
		return key + "_ms"
	case strings.HasSuffix(key, "_ms"):
		return key
	default:
		return key + "_ms"
	}
}

// contextHandler enriches records with correlation metadata stored in the
// context and guarantees the presence of component and event attributes.
type contextHandler struct {
	inner        slog.Handler
	hasComponent bool
}

func newContextHandler(inner slog.Handler) *contextHandler {
	return &contextHandler{inner: inner}
}

// Enabled reports whether the wrapped handler accepts the level.
func (h *contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle adds component, event and context fields before delegating.
func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	present := make(map[string]bool, 8)
	r.Attrs(func(a slog.Attr) bool {
		present[a.Key] = true
		return true
	})

	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	if !h.hasComponent && !present["component"] {
		out.AddAttrs(slog.String("component", "app"))
	}
	if !present["event"] {
		event := r.Message
		if event == "" {
			event = "unknown"
		}
		out.AddAttrs(slog.String("event", event))
	}
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(a)
		return true
	})
	for _, a := range contextAttrs(ctx) {
		if !present[a.Key] {
			out.AddAttrs(a)
		}
	}
	return h.inner.Handle(ctx, out)
}

// WithAttrs returns a handler that remembers whether a component is bound.
func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := &contextHandler{inner: h.inner.WithAttrs(attrs), hasComponent: h.hasComponent}
	for _, a := range attrs {
		if a.Key == "component" {
			clone.hasComponent = true
		}
	}
	return clone
}

// WithGroup delegates grouping to the wrapped handler.
func (h *contextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &contextHandler{inner: h.inner.WithGroup(name), hasComponent: h.hasComponent}
}

func contextAttrs(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	var attrs []slog.Attr
	if rid := RIDFrom(ctx); rid != "" {
		attrs = append(attrs, slog.String("rid", CompactRID(rid)))
	}
	if updateID := UpdateIDFrom(ctx); updateID != 0 {
		attrs = append(attrs, slog.Int("update_id", updateID))
	}
	if uid := UserIDFrom(ctx); uid != 0 {
		attrs = append(attrs, slog.Int64("user_id", uid))
	}
	if cid := ChatIDFrom(ctx); cid != 0 {
		attrs = append(attrs, slog.Int64("chat_id", cid))
	}
	if hid := HandlerFrom(ctx); hid != "" {
		attrs = append(attrs, slog.String("handler", hid))
	}
	return attrs
}

