// Package logging initializes the process-wide structured logger, the
// way the teacher's internal/log/logger.go sets up slog.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Init sets the default slog logger. level is one of
// debug/info/warn/error (spec §6 logging_level); logdir, when non-empty,
// adds a rotating file writer alongside stdout (spec §6 logdir).
func Init(level, logdir, runID string) error {
	lvl, err := parseLevel(level)
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}

	writers := []io.Writer{os.Stdout}
	if logdir != "" {
		if err := os.MkdirAll(logdir, 0o755); err != nil {
			return fmt.Errorf("logging: creating logdir %q: %w", logdir, err)
		}
		writers = append(writers, &lumberjack.Logger{
			Filename:   logdir + "/interchange.log",
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     30,
			Compress:   true,
		})
	}

	handler := slog.NewJSONHandler(io.MultiWriter(writers...), &slog.HandlerOptions{Level: lvl})
	logger := slog.New(handler)
	if runID != "" {
		logger = logger.With("run_id", runID)
	}
	slog.SetDefault(logger)
	return nil
}

func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown logging level %q", level)
	}
}
