package service

import (
	"time"

	"github.com/okian/epidash/internal/adapters/source"
	"github.com/okian/epidash/internal/config"
	"github.com/okian/epidash/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithFetcher replaces the HTTP fetcher behind the feed cache.
func WithFetcher(f source.Fetcher) Option {
	return func(s *Service) {
		if f != nil {
			s.fetcher = f
		}
	}
}

// WithFeeds sets the daily report and the three time-series URLs.
func WithFeeds(daily, confirmed, recovered, deaths string) Option {
	return func(s *Service) {
		s.dailyURL = daily
		s.confirmedURL = confirmed
		s.recoveredURL = recovered
		s.deathsURL = deaths
	}
}

// WithGeometry configures the country boundaries file. An empty path
// disables the choropleth.
func WithGeometry(path, nameProp, codeProp string, dropCodes ...string) Option {
	return func(s *Service) {
		s.geometryPath = path
		s.geometryNameProp = nameProp
		s.geometryCodeProp = codeProp
		s.geometryDropCodes = append([]string(nil), dropCodes...)
	}
}

// WithFetchTimeout bounds each feed download.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.fetchTimeout = d
		}
	}
}

// WithBreakerTimeout sets how long the fetch circuit stays open.
func WithBreakerTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.breakerTimeout = d
		}
	}
}

// WithCacheTTL sets the feed cache lifetime; zero keeps entries forever.
func WithCacheTTL(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.cacheTTL = d
		}
	}
}

// WithFrameQueueSize bounds the frame queue.
func WithFrameQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.frameQueueSize = size
		}
	}
}

// WithRenderWorkerCount sets the number of render workers.
func WithRenderWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.renderWorkers = count
		}
	}
}

// WithAnimationInterval sets the default pause between frames.
func WithAnimationInterval(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.animationInterval = d
		}
	}
}

// WithFocusCountry selects the country of the per-country case table.
func WithFocusCountry(country string) Option {
	return func(s *Service) {
		s.focusCountry = country
	}
}

// FromConfig maps a loaded Config onto service options.
func FromConfig(cfg *config.Config) []Option {
	return []Option{
		WithFeeds(cfg.DailyReportURL, cfg.ConfirmedURL, cfg.RecoveredURL, cfg.DeathsURL),
		WithGeometry(cfg.GeometryPath, cfg.GeometryNameProp, cfg.GeometryCodeProp, cfg.GeometryDropCodes...),
		WithFetchTimeout(cfg.FetchTimeout()),
		WithBreakerTimeout(cfg.BreakerTimeout()),
		WithCacheTTL(cfg.CacheTTL()),
		WithFrameQueueSize(cfg.FrameQueueSize),
		WithRenderWorkerCount(cfg.RenderWorkerCount),
		WithAnimationInterval(cfg.AnimationInterval()),
		WithFocusCountry(cfg.FocusCountry),
	}
}
