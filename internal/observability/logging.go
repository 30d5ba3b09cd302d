package observability

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

// NewLogger builds the process logger and installs it as the slog default.
// format is "json" (default), "text", or "tint" for colourised console output.
func NewLogger(level, format string) *slog.Logger {
	if !strings.EqualFold(format, "tint") {
		return sharedobs.NewLogger(level, format)
	}
	logger := newTintLogger(os.Stdout, level)
	slog.SetDefault(logger)
	return logger
}

func newTintLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      lvl,
		TimeFormat: time.Kitchen,
	}))
}
