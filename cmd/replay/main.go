package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/epidash/internal/replay"
)

// Default configuration constants.
const (
	defaultTopN          = 20
	defaultTimeout       = 30 * time.Second
	defaultReplayTimeout = 30 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		interval   = flag.Int("interval", 0, "Pause between frames in milliseconds")
		topN       = flag.Int("top", defaultTopN, "Leaderboard entries to cross-check")
		workers    = flag.Int("workers", runtime.NumCPU(), "Concurrent rank lookups")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		outputFile = flag.String("output", "", "JSON lines file for received frames (default: replay_frames_TIMESTAMP.jsonl)")
		logFile    = flag.String("log", "", "Log file for run output (default: replay_log_TIMESTAMP.log)")
		verbose    = flag.Bool("verbose", false, "Log every frame")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		replay.ShowHelp()
		return
	}

	if err := replay.SetupLogging(*logFile); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	if *outputFile == "" {
		*outputFile = "replay_frames_" + time.Now().Format("20060102_150405") + ".jsonl"
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultReplayTimeout)
	defer cancel()

	config := &replay.Config{
		BaseURL:    *baseURL,
		IntervalMs: *interval,
		TopN:       *topN,
		Workers:    *workers,
		Timeout:    *timeout,
		OutputFile: *outputFile,
		LogFile:    *logFile,
		Verbose:    *verbose,
	}

	if _, err := replay.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Replay failed: " + err.Error() + "\n")
		cancel()
		stop()
		os.Exit(1)
	}
}
