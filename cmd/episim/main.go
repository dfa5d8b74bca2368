// Command episim runs agent-based epidemic simulations and archives them.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("episim failed", "error", err)
		os.Exit(1)
	}
}

// setupLogging installs a text logger on stderr so stdout stays free for
// reports.
func setupLogging(level string) error {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "", "info":
		lvl = slog.LevelInfo
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return fmt.Errorf("unknown log level %q", level)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: lvl,
	}))
	slog.SetDefault(logger)
	return nil
}
