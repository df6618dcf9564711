// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers defaults, an optional YAML file and EPIDASH_ env vars.
// - Validation errors wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"time"
)

// Default feed locations (JHU CSSE COVID-19 repository).
const (
	DefaultDailyReportURL = "https://raw.githubusercontent.com/CSSEGISandData/COVID-19/master/csse_covid_19_data/csse_covid_19_daily_reports/03-18-2020.csv"
	DefaultConfirmedURL   = "https://raw.githubusercontent.com/CSSEGISandData/COVID-19/master/csse_covid_19_data/csse_covid_19_time_series/time_series_covid19_confirmed_global.csv"
	DefaultRecoveredURL   = "https://raw.githubusercontent.com/CSSEGISandData/COVID-19/master/csse_covid_19_data/csse_covid_19_time_series/time_series_covid19_recovered_global.csv"
	DefaultDeathsURL      = "https://raw.githubusercontent.com/CSSEGISandData/COVID-19/master/csse_covid_19_data/csse_covid_19_time_series/time_series_covid19_deaths_global.csv"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Feed URLs.
	DailyReportURL string `koanf:"daily_report_url"`
	ConfirmedURL   string `koanf:"confirmed_url"`
	RecoveredURL   string `koanf:"recovered_url"`
	DeathsURL      string `koanf:"deaths_url"`

	// GeometryPath points at a GeoJSON FeatureCollection of country
	// boundaries. Empty disables the choropleth.
	GeometryPath      string   `koanf:"geometry_path"`
	GeometryNameProp  string   `koanf:"geometry_name_prop"`
	GeometryCodeProp  string   `koanf:"geometry_code_prop"`
	GeometryDropCodes []string `koanf:"geometry_drop_codes"`

	// FetchTimeoutMS bounds a single feed download.
	FetchTimeoutMS int `koanf:"fetch_timeout_ms"`

	// BreakerTimeoutMS is how long the fetch circuit stays open.
	BreakerTimeoutMS int `koanf:"breaker_timeout_ms"`

	// CacheTTLMS expires cached feeds; 0 keeps them for the process lifetime.
	CacheTTLMS int `koanf:"cache_ttl_ms"`

	// AnimationIntervalMS is the pause before each frame; 0 disables it.
	AnimationIntervalMS int `koanf:"animation_interval_ms"`

	// FrameQueueSize bounds the frame queue between stepper and renderer.
	FrameQueueSize int `koanf:"frame_queue_size"`

	// RenderWorkerCount sets the number of render workers. Values above one
	// lose frame ordering.
	RenderWorkerCount int `koanf:"render_worker_count"`

	// MaxLeaderboardLimit caps GET /api/leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// FocusCountry selects the per-country case table.
	FocusCountry string `koanf:"focus_country"`
}

// New creates a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		Addr:                ":9080",
		DailyReportURL:      DefaultDailyReportURL,
		ConfirmedURL:        DefaultConfirmedURL,
		RecoveredURL:        DefaultRecoveredURL,
		DeathsURL:           DefaultDeathsURL,
		GeometryNameProp:    "ADMIN",
		GeometryCodeProp:    "ADM0_A3",
		GeometryDropCodes:   []string{"ATA"},
		FetchTimeoutMS:      30_000,
		BreakerTimeoutMS:    60_000,
		CacheTTLMS:          0,
		AnimationIntervalMS: 100,
		FrameQueueSize:      16,
		RenderWorkerCount:   1,
		MaxLeaderboardLimit: 100,
		FocusCountry:        "US",
	}
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.DailyReportURL == "" || c.ConfirmedURL == "" || c.RecoveredURL == "" || c.DeathsURL == "":
		return fmt.Errorf("%w: feed urls must not be empty", ErrInvalidConfig)
	case c.FetchTimeoutMS <= 0:
		return fmt.Errorf("%w: fetch_timeout_ms must be positive", ErrInvalidConfig)
	case c.BreakerTimeoutMS <= 0:
		return fmt.Errorf("%w: breaker_timeout_ms must be positive", ErrInvalidConfig)
	case c.CacheTTLMS < 0:
		return fmt.Errorf("%w: cache_ttl_ms must not be negative", ErrInvalidConfig)
	case c.AnimationIntervalMS < 0:
		return fmt.Errorf("%w: animation_interval_ms must not be negative", ErrInvalidConfig)
	case c.FrameQueueSize < 1:
		return fmt.Errorf("%w: frame_queue_size must be at least 1", ErrInvalidConfig)
	case c.RenderWorkerCount < 1:
		return fmt.Errorf("%w: render_worker_count must be at least 1", ErrInvalidConfig)
	case c.MaxLeaderboardLimit < 1:
		return fmt.Errorf("%w: max_leaderboard_limit must be at least 1", ErrInvalidConfig)
	}
	return nil
}

// FetchTimeout returns FetchTimeoutMS as a duration.
func (c *Config) FetchTimeout() time.Duration { return ms(c.FetchTimeoutMS) }

// BreakerTimeout returns BreakerTimeoutMS as a duration.
func (c *Config) BreakerTimeout() time.Duration { return ms(c.BreakerTimeoutMS) }

// CacheTTL returns CacheTTLMS as a duration.
func (c *Config) CacheTTL() time.Duration { return ms(c.CacheTTLMS) }

// AnimationInterval returns AnimationIntervalMS as a duration.
func (c *Config) AnimationInterval() time.Duration { return ms(c.AnimationIntervalMS) }

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }
