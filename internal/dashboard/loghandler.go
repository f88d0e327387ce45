package dashboard

import (
	"context"
	"log/slog"
	"time"
)

// BroadcastHandler wraps a slog.Handler and broadcasts logs to a Hub.
type BroadcastHandler struct {
	inner slog.Handler
	hub   *Hub
	attrs []slog.Attr // from WithAttrs, keys already group-qualified
	group string
}

// NewBroadcastHandler creates a handler that broadcasts to hub and delegates to inner.
func NewBroadcastHandler(hub *Hub, inner slog.Handler) *BroadcastHandler {
	return &BroadcastHandler{
		inner: inner,
		hub:   hub,
	}
}

// Enabled reports whether the handler handles records at the given level.
func (h *BroadcastHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle broadcasts the log record and delegates to inner handler.
func (h *BroadcastHandler) Handle(ctx context.Context, r slog.Record) error {
	attrs := make(map[string]string, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		attrs[a.Key] = a.Value.Resolve().String()
	}
	r.Attrs(func(a slog.Attr) bool {
		attrs[h.qualify(a.Key)] = a.Value.Resolve().String()
		return true
	})

	h.hub.Broadcast(Message{
		Type:  "log",
		Level: r.Level.String(),
		Msg:   r.Message,
		Time:  r.Time.Format(time.RFC3339),
		Attrs: attrs,
	})

	return h.inner.Handle(ctx, r)
}

// WithAttrs returns a new handler with the given attributes.
func (h *BroadcastHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	for _, a := range attrs {
		merged = append(merged, slog.Attr{Key: h.qualify(a.Key), Value: a.Value})
	}
	return &BroadcastHandler{
		inner: h.inner.WithAttrs(attrs),
		hub:   h.hub,
		attrs: merged,
		group: h.group,
	}
}

// WithGroup returns a new handler with the given group.
func (h *BroadcastHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &BroadcastHandler{
		inner: h.inner.WithGroup(name),
		hub:   h.hub,
		attrs: h.attrs,
		group: h.qualify(name),
	}
}

func (h *BroadcastHandler) qualify(key string) string {
	if h.group == "" {
		return key
	}
	return h.group + "." + key
}
