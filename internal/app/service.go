// Package service wires the feed cache, the aggregation and alignment
// steps, the region ranking, and the animation pipeline into the
// dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	framequeue "github.com/okian/epidash/internal/adapters/mq/queue"
	renderpool "github.com/okian/epidash/internal/adapters/mq/worker"
	"github.com/okian/epidash/internal/adapters/repository"
	"github.com/okian/epidash/internal/adapters/source"
	"github.com/okian/epidash/internal/config"
	"github.com/okian/epidash/internal/domain/aggregate"
	"github.com/okian/epidash/internal/domain/animation"
	"github.com/okian/epidash/internal/domain/geojoin"
	"github.com/okian/epidash/internal/domain/model"
	"github.com/okian/epidash/internal/domain/state"
	"github.com/okian/epidash/internal/domain/timeseries"
	"github.com/okian/epidash/internal/domain/types"
	"github.com/okian/epidash/pkg/logger"
	"github.com/okian/epidash/pkg/metrics"
)

// dataset is everything derived from one successful load. It is replaced
// as a whole, never mutated.
type dataset struct {
	records    []model.RawRecord
	regions    map[string]model.AggregatedRegion
	sorted     []model.AggregatedRegion
	aligned    *timeseries.AlignedSet
	geoms      []model.RegionGeometry
	joined     []model.JoinedRegion
	choropleth []byte
	loadedAt   time.Time
}

// Service implements the API dependencies for the dashboard.
type Service struct {
	mu sync.Mutex

	// Core components
	fetcher source.Fetcher
	cache   *source.Cache
	store   repository.Store
	state   *state.State
	queue   *framequeue.InMemoryQueue
	pool    *renderpool.Pool
	stepper *animation.Stepper

	data atomic.Pointer[dataset]

	// Configuration
	dailyURL          string
	confirmedURL      string
	recoveredURL      string
	deathsURL         string
	geometryPath      string
	geometryNameProp  string
	geometryCodeProp  string
	geometryDropCodes []string
	fetchTimeout      time.Duration
	breakerTimeout    time.Duration
	cacheTTL          time.Duration
	frameQueueSize    int
	renderWorkers     int
	animationInterval time.Duration
	focusCountry      string

	// State
	started    atomic.Bool
	stopWorker context.CancelFunc

	anim animationTracker

	// Logging
	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		dailyURL:          config.DefaultDailyReportURL,
		confirmedURL:      config.DefaultConfirmedURL,
		recoveredURL:      config.DefaultRecoveredURL,
		deathsURL:         config.DefaultDeathsURL,
		geometryNameProp:  geojoin.DefaultNameProp,
		geometryCodeProp:  geojoin.DefaultCodeProp,
		geometryDropCodes: []string{"ATA"},
		fetchTimeout:      source.DefaultTimeout,
		breakerTimeout:    source.DefaultBreakerTimeout,
		frameQueueSize:    16,
		renderWorkers:     1, // one worker keeps frames in order
		animationInterval: 100 * time.Millisecond,
		focusCountry:      "US",
		state:             state.New(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start fetches and prepares every dataset, then starts the render workers.
// Any fetch, schema, alignment or geometry error aborts startup.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started.Load() {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting dashboard service...")

	if s.fetcher == nil {
		s.fetcher = source.NewHTTPFetcher(
			source.WithTimeout(s.fetchTimeout),
			source.WithBreakerTimeout(s.breakerTimeout),
		)
	}
	s.cache = source.NewCache(s.fetcher, source.WithTTL(s.cacheTTL))
	s.store = repository.NewSnapshotStore()
	s.stepper = animation.NewStepper(animation.WithObserver(frameMetrics{}))

	ds, err := s.load(ctx)
	if err != nil {
		s.logger.Error(ctx, "initial load failed", logger.Error(err))
		return err
	}
	if err := s.install(ctx, ds); err != nil {
		return err
	}

	s.queue = framequeue.NewInMemoryQueue(
		framequeue.WithCapacity(s.frameQueueSize),
		framequeue.WithBufferSize(s.frameQueueSize),
	)
	s.pool = renderpool.NewPool(s.renderWorkers, s.queue, renderpool.RendererFunc(s.render))

	// Workers outlive the request that started the service.
	workerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.stopWorker = cancel
	s.pool.Start(workerCtx)

	s.started.Store(true)
	s.logger.Info(ctx, "dashboard service started",
		logger.Int("records", len(ds.records)),
		logger.Int("regions", len(ds.regions)),
		logger.Int("dates", ds.aligned.DateCount()),
		logger.Int("geometries", len(ds.joined)),
		logger.Int("workers", s.renderWorkers),
		logger.Int("queueSize", s.frameQueueSize),
	)

	return nil
}

// Stop cancels a running animation and shuts the render workers down.
func (s *Service) Stop() {
	s.StopAnimation()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started.Load() {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping dashboard service...")

	if s.pool != nil {
		if err := s.pool.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "render pool shutdown", logger.Error(err))
		}
	}
	if s.stopWorker != nil {
		s.stopWorker()
	}

	s.started.Store(false)
	s.logger.Info(ctx, "dashboard service stopped")
}

// Refresh drops every cached feed and reloads all datasets. The previous
// datasets stay in place when the reload fails. Refresh is refused while an
// animation runs.
func (s *Service) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started.Load() {
		return ErrNotStarted
	}
	if s.anim.active() {
		return ErrAnimationRunning
	}

	s.cache.Purge()
	metrics.UpdateCacheEntries(0)

	ds, err := s.load(ctx)
	if err != nil {
		s.logger.Error(ctx, "refresh failed", logger.Error(err))
		return err
	}
	if err := s.install(ctx, ds); err != nil {
		return err
	}
	s.logger.Info(ctx, "datasets refreshed",
		logger.Int("regions", len(ds.regions)),
		logger.Int("dates", ds.aligned.DateCount()),
	)
	return nil
}

// load fetches the four feeds concurrently and derives every dataset.
func (s *Service) load(ctx context.Context) (*dataset, error) {
	var daily, confirmed, recovered, deaths *model.Table

	g, gctx := errgroup.WithContext(ctx)
	fetch := func(url string, dst **model.Table) {
		g.Go(func() error {
			t, err := s.cache.Get(gctx, url)
			if err != nil {
				return err
			}
			*dst = t
			return nil
		})
	}
	fetch(s.dailyURL, &daily)
	fetch(s.confirmedURL, &confirmed)
	fetch(s.recoveredURL, &recovered)
	fetch(s.deathsURL, &deaths)
	if err := g.Wait(); err != nil {
		return nil, err
	}
	metrics.UpdateCacheEntries(s.cache.Len())

	records, err := source.DecodeDailyReport(daily)
	if err != nil {
		return nil, fmt.Errorf("daily report: %w", err)
	}

	series := make([]*model.WideTimeSeries, 0, 3)
	for _, feed := range []struct {
		name  string
		table *model.Table
	}{
		{"confirmed", confirmed},
		{"recovered", recovered},
		{"deaths", deaths},
	} {
		ts, err := source.DecodeTimeSeries(feed.table)
		if err != nil {
			return nil, fmt.Errorf("%s series: %w", feed.name, err)
		}
		series = append(series, ts)
	}

	aligned, err := timeseries.Align(series[0], series[1], series[2])
	if err != nil {
		return nil, err
	}

	regions := aggregate.Aggregate(records)

	geoms, err := s.loadGeometries()
	if err != nil {
		return nil, err
	}
	drop := geojoin.AnyOf(geojoin.DropMissingGeometry, geojoin.DropCodes(s.geometryDropCodes...))
	joined := geojoin.Join(geoms, regions, drop)

	var choropleth []byte
	if s.geometryPath != "" {
		choropleth, err = geojoin.FeatureCollection(joined)
		if err != nil {
			return nil, err
		}
	}

	return &dataset{
		records:    records,
		regions:    regions,
		sorted:     aggregate.Sorted(regions),
		aligned:    aligned,
		geoms:      geoms,
		joined:     joined,
		choropleth: choropleth,
		loadedAt:   time.Now(),
	}, nil
}

func (s *Service) loadGeometries() ([]model.RegionGeometry, error) {
	if s.geometryPath == "" {
		return nil, nil
	}
	f, err := os.Open(s.geometryPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", geojoin.ErrInvalidGeometry, err)
	}
	defer func() { _ = f.Close() }()

	geoms, err := geojoin.LoadGeometries(f, s.geometryNameProp, s.geometryCodeProp)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.geometryPath, err)
	}
	return geoms, nil
}

// install publishes a loaded dataset to the store, the state, and readers.
func (s *Service) install(ctx context.Context, ds *dataset) error {
	if err := s.store.Replace(ctx, ds.sorted); err != nil {
		return err
	}
	s.state.Load(ds.aligned.Dates())
	s.data.Store(ds)

	metrics.UpdateRegionsTotal(len(ds.regions))
	metrics.UpdateDatesTotal(ds.aligned.DateCount())
	metrics.UpdateGeometriesTotal(len(ds.joined))
	return nil
}

func (s *Service) dataset() (*dataset, error) {
	ds := s.data.Load()
	if ds == nil || !s.started.Load() {
		return nil, ErrNotStarted
	}
	return ds, nil
}

// CasesView is the raw case table for the world or one country, with the
// mean coordinate used to centre its map.
type CasesView struct {
	Country  string            `json:"country,omitempty"`
	Midpoint types.Midpoint    `json:"midpoint"`
	Records  []model.RawRecord `json:"records"`
}

// Cases returns the daily-report rows in feed order. An empty country
// returns every row.
func (s *Service) Cases(country string) (CasesView, error) {
	ds, err := s.dataset()
	if err != nil {
		return CasesView{}, err
	}
	records := ds.records
	if country != "" {
		records = aggregate.FilterCountry(records, country)
	}
	return CasesView{
		Country:  country,
		Midpoint: aggregate.Midpoint(records),
		Records:  records,
	}, nil
}

// Regions returns the aggregated regions ordered by name.
func (s *Service) Regions() ([]model.AggregatedRegion, error) {
	ds, err := s.dataset()
	if err != nil {
		return nil, err
	}
	return append([]model.AggregatedRegion(nil), ds.sorted...), nil
}

// TopN returns the n regions with the most confirmed cases.
func (s *Service) TopN(ctx context.Context, n int) ([]types.RegionEntry, error) {
	if _, err := s.dataset(); err != nil {
		return nil, err
	}
	return s.store.TopN(ctx, n)
}

// Rank returns the ranking entry of a region. The name is normalized the
// same way the aggregation normalizes feed names.
func (s *Service) Rank(ctx context.Context, region string) (types.RegionEntry, error) {
	if _, err := s.dataset(); err != nil {
		return types.RegionEntry{}, err
	}
	return s.store.Rank(ctx, aggregate.NormalizeRegion(region))
}

// Dates returns the ordered date labels of the aligned series.
func (s *Service) Dates() ([]string, error) {
	ds, err := s.dataset()
	if err != nil {
		return nil, err
	}
	return ds.aligned.Dates(), nil
}

// TimelineMidpoint returns the centre of the animated map.
func (s *Service) TimelineMidpoint() (types.Midpoint, error) {
	ds, err := s.dataset()
	if err != nil {
		return types.Midpoint{}, err
	}
	return ds.aligned.Midpoint(), nil
}

// Frame projects the aligned series at date index i.
func (s *Service) Frame(i int) (model.AnimationFrame, error) {
	ds, err := s.dataset()
	if err != nil {
		return model.AnimationFrame{}, err
	}
	return ds.aligned.Project(i)
}

// Choropleth returns the joined countries as a GeoJSON FeatureCollection.
func (s *Service) Choropleth() ([]byte, error) {
	ds, err := s.dataset()
	if err != nil {
		return nil, err
	}
	if s.geometryPath == "" {
		return nil, ErrChoroplethDisabled
	}
	return ds.choropleth, nil
}

// ChoroplethRange is the colour-bar domain of the choropleth.
type ChoroplethRange struct {
	Low  int64 `json:"low"`
	High int64 `json:"high"`
	OK   bool  `json:"ok"`
}

// ChoroplethRange returns the min and max confirmed count over the matched
// countries.
func (s *Service) ChoroplethRange() (ChoroplethRange, error) {
	ds, err := s.dataset()
	if err != nil {
		return ChoroplethRange{}, err
	}
	if s.geometryPath == "" {
		return ChoroplethRange{}, ErrChoroplethDisabled
	}
	low, high, ok := geojoin.Range(ds.joined)
	return ChoroplethRange{Low: low, High: high, OK: ok}, nil
}

// FocusCountry is the country of the per-country case table.
func (s *Service) FocusCountry() string { return s.focusCountry }

// AnimationInterval is the default pause between frames.
func (s *Service) AnimationInterval() time.Duration { return s.animationInterval }

// State exposes the dashboard state for observers such as the websocket hub.
func (s *Service) State() *state.State { return s.state }

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	stats := map[string]interface{}{
		"started":       s.started.Load(),
		"workerCount":   s.renderWorkers,
		"queueSize":     s.frameQueueSize,
		"focusCountry":  s.focusCountry,
		"choropleth":    s.geometryPath != "",
		"cacheTtlMs":    s.cacheTTL.Milliseconds(),
		"intervalMs":    s.animationInterval.Milliseconds(),
		"animationLive": s.anim.active(),
	}

	ds, err := s.dataset()
	if err != nil {
		return stats
	}

	ctx := context.Background()
	queueLen := s.queue.Len(ctx)
	snap := s.state.Snapshot()

	stats["records"] = len(ds.records)
	stats["regions"] = s.store.Count(ctx)
	stats["dates"] = ds.aligned.DateCount()
	stats["geometries"] = len(ds.joined)
	stats["loadedAt"] = ds.loadedAt.UTC().Format(time.RFC3339)
	stats["cachedFeeds"] = s.cache.Len()
	stats["queueLength"] = queueLen
	stats["queueCapacity"] = s.queue.Capacity()
	stats["workerCount"] = s.pool.Size()
	stats["framesRendered"] = s.pool.Processed()
	stats["currentIndex"] = snap.CurrentIndex
	stats["observers"] = snap.Observers
	if hf, ok := s.fetcher.(interface{ BreakerState() string }); ok {
		stats["breaker"] = hf.BreakerState()
	}

	metrics.UpdateQueueSize(queueLen)
	metrics.UpdateRegionsTotal(len(ds.regions))

	return stats
}

// frameMetrics records stepper callbacks.
type frameMetrics struct{}

func (frameMetrics) FrameRendered(_ int, latency time.Duration) {
	metrics.RecordFrameRendered(float64(latency.Microseconds()) / 1000.0)
}
