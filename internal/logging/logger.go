package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mindflavor/gallerysrv/internal/config"
)

// slog has no built-in notion of Trace/Off, so the enumerated LogLevel is
// mapped onto slog's integer level space: lower means more verbose, and Off
// is pushed above LevelError so nothing is ever enabled.
func slogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogLevelTrace:
		return slog.Level(-8)
	case config.LogLevelDebug:
		return slog.LevelDebug
	case config.LogLevelInfo:
		return slog.LevelInfo
	case config.LogLevelWarn:
		return slog.LevelWarn
	case config.LogLevelError:
		return slog.LevelError
	case config.LogLevelOff:
		return slog.Level(slog.LevelError + 4)
	default:
		return slog.LevelInfo
	}
}

// New opens logPath for append (failing fast with a descriptive error if the
// process lacks the privileges to write there, the same up-front check the
// original implementation performs before installing its dispatcher) and
// returns a logger that writes structured records to both the log file and
// stdout at the configured level.
func New(logPath string, level config.LogLevel) (*slog.Logger, func() error, error) {
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("logging: could not open log file %s: %w", logPath, err)
	}

	writer := io.MultiWriter(os.Stdout, f)
	handler := slog.NewTextHandler(writer, &slog.HandlerOptions{Level: slogLevel(level)})
	logger := slog.New(handler).With(slog.String("component", "gallery"))

	return logger, f.Close, nil
}
