package logger

import (
	"io"
	"log/slog"
)

// Option configures a logger built by New.
type Option func(*config)

// WithDebug lowers the level to Debug.
func WithDebug(debug bool) Option {
	return func(c *config) {
		c.level = slog.LevelInfo
		if debug {
			c.level = slog.LevelDebug
		}
	}
}

// WithPretty selects the colorized charmbracelet/log handler used for
// interactive CLI output.
func WithPretty(pretty bool) Option {
	return func(c *config) { c.pretty = pretty }
}

// WithJSON selects slog's JSON handler, the default for `chatrelay serve`
// when stdout is not a terminal.
func WithJSON(json bool) Option {
	return func(c *config) { c.json = json }
}

// WithWriter replaces the output writer (stdout by default).
func WithWriter(w io.Writer) Option {
	return func(c *config) { c.writers = []io.Writer{w} }
}

// WithWriters writes every record to all of w.
func WithWriters(w ...io.Writer) Option {
	return func(c *config) { c.writers = w }
}

// WithSource adds file:line to each record.
func WithSource(source bool) Option {
	return func(c *config) { c.source = source }
}
