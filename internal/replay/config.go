package replay

import (
	"time"

	"github.com/okian/epidash/internal/domain/types"
)

// Config holds configuration for a replay run.
type Config struct {
	BaseURL    string        // Base URL of the service
	IntervalMs int           // Pause between frames requested from the service
	TopN       int           // Leaderboard entries to cross-check
	Workers    int           // Concurrent rank lookups
	Timeout    time.Duration // HTTP request timeout
	OutputFile string        // JSON lines file for received frames
	LogFile    string        // Log file for run output
	Verbose    bool          // Enable verbose logging
}

// Entry is a ranking row as served by the API.
type Entry = types.RegionEntry

// DatesResponse is the body of GET /api/dates.
type DatesResponse struct {
	Dates    []string       `json:"dates"`
	Midpoint types.Midpoint `json:"midpoint"`
}

// StartResponse is the body of POST /api/animation.
type StartResponse struct {
	RunID      string `json:"runId"`
	IntervalMs int64  `json:"intervalMs"`
}

// Stats holds run statistics.
type Stats struct {
	DatesExpected      int
	FramesReceived     int
	LeaderboardEntries int
	RanksRetrieved     int
	RanksFailed        int
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
}
