package replay

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/epidash/pkg/logger"
)

// SetupLogging sends logs to both stdout and a file. An empty logFile gets a
// timestamped name.
func SetupLogging(logFile string) error {
	if logFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		logFile = "replay_log_" + timestamp + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	if err := logger.Init(logger.WithWriter(io.MultiWriter(os.Stdout, file))); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information for the replay tool.
func ShowHelp() {
	os.Stdout.WriteString(`epidash replay
==============

Plays the timeline animation on a running epidash server, records every frame
pushed over the websocket and checks it against the REST API.

Usage:
  go run ./cmd/replay [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -interval int
        Pause between frames in milliseconds (default 0)
  -top int
        Leaderboard entries to cross-check against /api/rank (default 20)
  -workers int
        Concurrent rank lookups (default CPU cores)
  -timeout duration
        HTTP request timeout (default 30s)
  -output string
        JSON lines file for received frames (default: replay_frames_TIMESTAMP.jsonl)
  -log string
        Log file for run output (default: replay_log_TIMESTAMP.log)
  -verbose
        Log every frame
  -help
        Show this help message

Examples:
  go run ./cmd/replay -url http://localhost:8080 -interval 50
`)
}
