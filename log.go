package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dgnsrekt/ttspeaker/pkg/logging"
	gap "github.com/muesli/go-app-paths"
)

// logger is the process logger. It starts as a file-only logger and gets
// a console sink once flags are parsed.
var logger = logging.Nop()

func getLogFilePath() (string, error) {
	if p := os.Getenv("TTSPEAKER_LOG_FILE"); p != "" {
		return p, nil
	}
	dir, err := gap.NewScope(gap.User, "ttspeaker").CacheDir()
	if err != nil {
		return "", fmt.Errorf("unable to get cache dir: %w", err)
	}
	return filepath.Join(dir, "ttspeaker.log"), nil
}

func setupLog() (func() error, error) {
	logFile, err := getLogFilePath()
	if err != nil {
		return nil, err
	}
	sink, err := logging.NewFileSink(logFile, logging.DebugLevel)
	if err != nil {
		return nil, fmt.Errorf("unable to set up logging: %w", err)
	}
	logger = logging.New(logging.WithSink(sink), logging.WithLevel(logging.DebugLevel))
	return logger.Close, nil
}

// configureConsole adds a stderr sink at the configured level.
func configureConsole(level string, verbose bool) error {
	lvl, err := logging.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	if verbose {
		lvl = logging.DebugLevel
	}
	logger.AddSink(logging.NewConsoleSink(os.Stderr, lvl))
	return nil
}
