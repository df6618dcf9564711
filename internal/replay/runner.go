package replay

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"

	"github.com/okian/epidash/internal/domain/model"
	"github.com/okian/epidash/pkg/logger"
)

// Run plays the animation once on the service at config.BaseURL and verifies
// what it received.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	client := newHTTPClient(config.Timeout)

	logger.Get().Info(ctx, "starting epidash replay",
		logger.String("baseURL", config.BaseURL),
		logger.Int("intervalMs", config.IntervalMs),
		logger.Int("topN", config.TopN),
		logger.Int("workers", config.Workers),
		logger.Duration("timeout", config.Timeout),
		logger.Bool("verbose", config.Verbose))

	if err := checkServiceHealth(ctx, client, config); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	var dates DatesResponse
	if err := client.getJSON(ctx, config.BaseURL+"/api/dates", &dates); err != nil {
		return stats, fmt.Errorf("failed to get dates: %w", err)
	}
	stats.DatesExpected = len(dates.Dates)

	leaderboard, err := getLeaderboard(ctx, client, config, stats)
	if err != nil {
		return stats, err
	}
	ranks := retrieveRanks(ctx, client, config, leaderboard, stats)

	stream, err := openStream(ctx, config.BaseURL)
	if err != nil {
		return stats, fmt.Errorf("failed to open frame stream: %w", err)
	}
	defer stream.Close()

	var started StartResponse
	body := map[string]int{"interval_ms": config.IntervalMs}
	if err := client.postJSON(ctx, config.BaseURL+"/api/animation", body, http.StatusAccepted, &started); err != nil {
		return stats, fmt.Errorf("failed to start animation: %w", err)
	}
	logger.Get().Info(ctx, "animation started",
		logger.String("runID", started.RunID),
		logger.Int("dates", len(dates.Dates)))

	wait := time.Duration(len(dates.Dates)*config.IntervalMs)*time.Millisecond + frameWaitSlack
	frames, err := stream.Collect(ctx, len(dates.Dates), time.Now().Add(wait), func(f model.AnimationFrame) {
		if config.Verbose {
			logger.Get().Info(ctx, "frame received",
				logger.Int("index", f.Index),
				logger.String("date", f.Date),
				logger.Int("points", len(f.Confirmed.Points)))
		}
	})
	stats.FramesReceived = len(frames)
	if err != nil {
		return stats, fmt.Errorf("frame stream failed: %w", err)
	}

	if err := verifyResults(ctx, dates.Dates, frames, leaderboard, ranks); err != nil {
		return stats, err
	}

	if config.OutputFile != "" {
		if err := saveFramesToFile(ctx, config.OutputFile, frames); err != nil {
			logger.Get().Warn(ctx, "failed to save frames to file", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)

	logger.Get().Info(ctx, "replay completed successfully")
	return stats, nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, client *HTTPClient, config *Config) error {
	resp, err := client.Get(ctx, config.BaseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// The endpoint serves Prometheus metrics; any 200 is healthy.
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}
	return nil
}

// saveFramesToFile writes one JSON frame per line.
func saveFramesToFile(ctx context.Context, filename string, frames []model.AnimationFrame) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close file", logger.Error(err))
		}
	}()

	enc := json.NewEncoder(file)
	for i, frame := range frames {
		if err := enc.Encode(frame); err != nil {
			return fmt.Errorf("failed to write frame %d: %w", i, err)
		}
	}

	logger.Get().Info(ctx, "frames saved to file", logger.String("filename", filename))
	return nil
}

func displayFinalStats(ctx context.Context, stats *Stats) {
	var coverage, framesPerSecond float64
	if stats.DatesExpected > 0 {
		coverage = float64(stats.FramesReceived) / float64(stats.DatesExpected) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		framesPerSecond = float64(stats.FramesReceived) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("datesExpected", stats.DatesExpected),
		logger.Int("framesReceived", stats.FramesReceived),
		logger.Int("leaderboardEntries", stats.LeaderboardEntries),
		logger.Int("ranksRetrieved", stats.RanksRetrieved),
		logger.Int("ranksFailed", stats.RanksFailed),
		logger.Duration("duration", stats.Duration),
		logger.Float64("coverage", coverage),
		logger.Float64("framesPerSecond", framesPerSecond))
}
