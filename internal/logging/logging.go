// Package logging configures the process-wide structured logger.
//
// One log record is one JSON object on a single line with the fields
// timestamp (ISO-8601 UTC), level, module, message, plus any extra
// key/value attributes. Debug and info records go to stdout; warn and
// error records go to stderr. The minimum level is read from LOG_LEVEL
// (case-insensitive, default "info").
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// EnvLogLevel is the environment variable controlling the minimum level.
const EnvLogLevel = "LOG_LEVEL"

// ParseLevel maps a LOG_LEVEL value to a slog.Level. Unknown values fall
// back to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// replaceAttrs normalizes slog's built-in record fields to the wire format:
// time → timestamp in RFC 3339 UTC, msg → message, level → lowercase.
func replaceAttrs(_ []string, a slog.Attr) slog.Attr {
	switch a.Key {
	case slog.TimeKey:
		return slog.String("timestamp", a.Value.Time().UTC().Format(time.RFC3339Nano))
	case slog.MessageKey:
		return slog.String("message", a.Value.String())
	case slog.LevelKey:
		lvl, ok := a.Value.Any().(slog.Level)
		if !ok {
			return a
		}
		return slog.String("level", strings.ToLower(lvl.String()))
	}
	return a
}

// splitHandler routes records below warn to one handler and warn-and-above
// to another, so operational noise and diagnostics land on separate
// streams.
type splitHandler struct {
	min  slog.Level
	out  slog.Handler
	errs slog.Handler
}

// NewSplitHandler builds a handler emitting JSON lines at or above min,
// writing debug/info to out and warn/error to errOut.
func NewSplitHandler(out, errOut io.Writer, min slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: min, ReplaceAttr: replaceAttrs}
	return &splitHandler{
		min:  min,
		out:  slog.NewJSONHandler(out, opts),
		errs: slog.NewJSONHandler(errOut, opts),
	}
}

func (h *splitHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.min
}

func (h *splitHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelWarn {
		return h.errs.Handle(ctx, r)
	}
	return h.out.Handle(ctx, r)
}

func (h *splitHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &splitHandler{min: h.min, out: h.out.WithAttrs(attrs), errs: h.errs.WithAttrs(attrs)}
}

func (h *splitHandler) WithGroup(name string) slog.Handler {
	return &splitHandler{min: h.min, out: h.out.WithGroup(name), errs: h.errs.WithGroup(name)}
}

// Setup installs the default logger from the LOG_LEVEL environment
// variable. Called once at process start.
func Setup() {
	SetupWithLevel(os.Getenv(EnvLogLevel))
}

// SetupWithLevel installs the default logger at the given level string.
func SetupWithLevel(level string) {
	slog.SetDefault(slog.New(NewSplitHandler(os.Stdout, os.Stderr, ParseLevel(level))))
}

// Module returns a logger tagged with the component name. All log records
// from a component carry its module attribute.
func Module(name string) *slog.Logger {
	return slog.Default().With("module", name)
}
