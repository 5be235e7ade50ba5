package logger

import (
	"context"
	"log/slog"
)

// fanout dispatches each record to every wrapped handler that accepts its level.
type fanout []slog.Handler

// Multi returns a logger writing through the handlers of all given loggers.
// serve uses it to keep pretty console output while also appending JSON
// records to a log file.
func Multi(loggers ...*slog.Logger) *slog.Logger {
	hs := make(fanout, 0, len(loggers))
	for _, l := range loggers {
		hs = append(hs, l.Handler())
	}
	return slog.New(hs)
}

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			return err
		}
	}
	return nil
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
