// Package source fetches and caches the CSV feeds and decodes them into
// typed records.
package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/okian/epidash/internal/domain/model"
	"github.com/okian/epidash/pkg/logger"
	"github.com/okian/epidash/pkg/metrics"
)

// Default fetcher configuration constants.
const (
	DefaultTimeout        = 30 * time.Second
	DefaultBreakerTimeout = time.Minute
	breakerTripFailures   = 5
	breakerName           = "csv-source"
)

// Fetcher downloads a CSV document and parses it into a Table.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*model.Table, error)
}

// HTTPFetcher is a Fetcher backed by net/http and guarded by a circuit
// breaker. It never retries.
type HTTPFetcher struct {
	client         *http.Client
	timeout        time.Duration
	breakerTimeout time.Duration
	breaker        *gobreaker.CircuitBreaker[*model.Table]
	logger         logger.Logger
}

// FetcherOption configures an HTTPFetcher.
type FetcherOption func(*HTTPFetcher)

// WithTimeout bounds each fetch. Non-positive values keep the default.
func WithTimeout(d time.Duration) FetcherOption {
	return func(f *HTTPFetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithBreakerTimeout sets how long the breaker stays open before a probe.
func WithBreakerTimeout(d time.Duration) FetcherOption {
	return func(f *HTTPFetcher) {
		if d > 0 {
			f.breakerTimeout = d
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *HTTPFetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// WithFetcherLogger sets a custom logger.
func WithFetcherLogger(l logger.Logger) FetcherOption {
	return func(f *HTTPFetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// NewHTTPFetcher creates a fetcher.
func NewHTTPFetcher(opts ...FetcherOption) *HTTPFetcher {
	f := &HTTPFetcher{
		client:         &http.Client{},
		timeout:        DefaultTimeout,
		breakerTimeout: DefaultBreakerTimeout,
		logger:         logger.Get().Named("source"),
	}
	for _, opt := range opts {
		opt(f)
	}

	metrics.UpdateBreakerState(breakerName, 0)
	f.breaker = gobreaker.NewCircuitBreaker[*model.Table](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     f.breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerTripFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			f.logger.Warn(context.Background(), "circuit breaker state change",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
			metrics.UpdateBreakerState(name, breakerStateValue(to))
		},
	})
	return f
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// BreakerState reports the current circuit state.
func (f *HTTPFetcher) BreakerState() string {
	return f.breaker.State().String()
}

// Fetch downloads url and parses it. Every failure matches
// ErrSourceUnavailable and mentions the URL.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*model.Table, error) {
	start := time.Now()
	t, err := f.breaker.Execute(func() (*model.Table, error) {
		return f.fetch(ctx, url)
	})
	latency := float64(time.Since(start).Milliseconds())

	if err != nil {
		outcome := "error"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			outcome = "rejected"
			err = fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, url, err)
		}
		metrics.RecordFetch(outcome, latency)
		metrics.RecordErrorByComponent("source", outcome)
		f.logger.Error(ctx, "fetch failed", logger.String("url", url), logger.Error(err))
		return nil, err
	}

	metrics.RecordFetch("success", latency)
	return t, nil
}

func (f *HTTPFetcher) fetch(ctx context.Context, url string) (*model.Table, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, url, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s: status %d", ErrSourceUnavailable, url, resp.StatusCode)
	}

	res, err := ParseCSV(url, resp.Body)
	if res.Skipped > 0 {
		metrics.RecordRowsSkipped("field_count", res.Skipped)
		f.logger.Warn(ctx, "skipped malformed rows",
			logger.String("url", url),
			logger.Int("skipped", res.Skipped),
		)
	}
	if err != nil {
		return nil, err
	}

	f.logger.Debug(ctx, "fetched",
		logger.String("url", url),
		logger.Int("rows", res.Table.Len()),
	)
	return res.Table, nil
}
