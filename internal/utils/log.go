package utils

import (
	"context"
	"log/slog"
)

// FanoutLogHandler forwards each record to every handler that accepts its
// level. Used to log to the terminal and a file at once.
type FanoutLogHandler struct {
	handlers []slog.Handler
}

func NewFanoutLogHandler(handlers ...slog.Handler) *FanoutLogHandler {
	return &FanoutLogHandler{handlers: handlers}
}

func (h *FanoutLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, hd := range h.handlers {
		if hd.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *FanoutLogHandler) Handle(ctx context.Context, r slog.Record) error {
	var err error
	for _, hd := range h.handlers {
		if hd.Enabled(ctx, r.Level) {
			if e := hd.Handle(ctx, r); e != nil {
				err = e
			}
		}
	}
	return err
}

func (h *FanoutLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, hd := range h.handlers {
		next[i] = hd.WithAttrs(attrs)
	}
	return NewFanoutLogHandler(next...)
}

func (h *FanoutLogHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, hd := range h.handlers {
		next[i] = hd.WithGroup(name)
	}
	return NewFanoutLogHandler(next...)
}
