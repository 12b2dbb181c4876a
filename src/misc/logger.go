package misc

import (
	"io"
	"log/slog"
	"os"
)

func init() {
	runtimeLogLevel.Set(slog.LevelWarn)
}

// LevelForVerbose maps the verbose option: 0 warn, 1 info, 2 and above
// debug.
func LevelForVerbose(verbose int) slog.Level {
	switch {
	case verbose <= 0:
		return slog.LevelWarn
	case verbose == 1:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

// NewLogger returns a text logger on stderr that follows the runtime level.
func NewLogger() *slog.Logger {
	return NewLoggerTo(os.Stderr)
}

func NewLoggerTo(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: runtimeLogLevel}))
}

// DiscardLogger drops every record.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 4}))
}

// OrDiscard returns logger, or a discarding logger when it is nil.
func OrDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return DiscardLogger()
	}
	return logger
}
