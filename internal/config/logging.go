package config

import (
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

// SetupLogger logs JSON to out. With a log file it also writes text lines
// there. The cleanup function closes the file.
func SetupLogger(out io.Writer, level slog.Level, logFile string) (*slog.Logger, func() error) {
	outHandler := slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
	if logFile == "" {
		return slog.New(outHandler), func() error { return nil }
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logger := slog.New(outHandler)
		logger.Error("failed to open log file, logging to out only", "err", err, "file", logFile)
		return logger, func() error { return nil }
	}

	return SetupLoggerWithWriters(out, file, level), file.Close
}

// SetupLoggerWithWriters logs JSON to stdout and text lines to file.
func SetupLoggerWithWriters(stdout, file io.Writer, level slog.Level) *slog.Logger {
	stdoutHandler := slog.NewJSONHandler(stdout, &slog.HandlerOptions{Level: level})
	fileHandler := slog.NewTextHandler(file, &slog.HandlerOptions{Level: level})
	return slog.New(slogmulti.Fanout(stdoutHandler, fileHandler))
}
