package cli

import (
	"io"
	"log/slog"
)

// enableDebugLoggingTo installs a debug-level text handler as the default
// logger. Without --debug the CLI logs nowhere.
func enableDebugLoggingTo(w io.Writer) *slog.Logger {
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
	return logger
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
