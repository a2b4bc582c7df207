package logger

import (
	"io"
	"log/slog"
	"os"
)

// Initialize installs a JSON logger writing to stdout as the process default.
func Initialize(level slog.Level) {
	InitializeWithWriter(os.Stdout, level)
}

// InitializeWithWriter installs a JSON logger writing to w as the process default.
func InitializeWithWriter(w io.Writer, level slog.Level) {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))

	slog.SetDefault(logger)
}

func Named(name string) *slog.Logger {
	logger := slog.Default()
	if logger == nil {
		return nil
	}

	return logger.With("name", name)
}

// ParseLevel maps a textual level to slog, defaulting to info.
func ParseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}
