package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Logger is the shared logger for all packages. It discards output until
// Initialize is called.
var Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))

// Initialize configures Logger. With debug off, debug records are filtered and
// info and above are written. When logFile is empty output goes to stderr.
func Initialize(debug bool, logFile string) error {
	level := slog.LevelInfo
	if debug || os.Getenv("STRIDE_DEBUG") == "1" {
		level = slog.LevelDebug
	}

	var out io.Writer = os.Stderr
	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		out = f
	}

	Logger = slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level}))
	Logger.Debug("Debug logging initialized", "log_file", logFile)
	return nil
}
