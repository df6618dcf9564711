package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/epidash/internal/adapters/http/api"
	"github.com/okian/epidash/internal/adapters/http/site"
	"github.com/okian/epidash/internal/adapters/http/swagger"
	"github.com/okian/epidash/internal/adapters/http/ws"
	service "github.com/okian/epidash/internal/app"
	"github.com/okian/epidash/internal/config"
	"github.com/okian/epidash/pkg/logger"
	"github.com/okian/epidash/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 30 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

// Process exit codes.
const (
	exitOK      = 0
	exitFailure = 1
)

func main() {
	os.Exit(run())
}

// run serves the dashboard until SIGINT or SIGTERM and returns the exit
// code. Deferred cleanup has finished by the time it returns.
func run(logOpts ...logger.Option) int {
	// Custom system metrics replace the default Go collectors.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(logOpts...); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return exitFailure
	}
	loggerInstance := logger.Get()
	defer func() {
		if err := logger.Sync(); err != nil {
			loggerInstance.Error(context.Background(), "failed to sync logger", logger.Error(err))
		}
	}()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// defaults -> optional file -> env
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return exitFailure
	}

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	svc := service.New(append(service.FromConfig(cfg), service.WithLogger(loggerInstance.Named("service")))...)

	// The hub subscribes before Start so no frame of an early run is missed.
	hub := ws.NewHub(
		ws.WithLogger(loggerInstance.Named("ws")),
		ws.WithSnapshot(func() any { return svc.State().Snapshot() }),
	)
	unsubscribe := svc.State().Subscribe(hub)
	defer unsubscribe()
	defer hub.Close()

	loggerInstance.Info(ctx, "loading datasets",
		logger.String("daily", cfg.DailyReportURL),
		logger.String("geometry", cfg.GeometryPath),
	)
	if err := svc.Start(ctx); err != nil {
		loggerInstance.Error(ctx, "failed to start service", logger.Error(err))
		return exitFailure
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	hub.Register(ctx, mux)
	api.NewServer(svc, cfg.MaxLeaderboardLimit).Register(ctx, mux)
	site.Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveFailed := make(chan struct{})
	go func() {
		loggerInstance.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			loggerInstance.Error(ctx, "HTTP server failed", logger.Error(err))
			close(serveFailed)
			stop()
		}
	}()

	<-ctx.Done()
	loggerInstance.Info(context.WithoutCancel(ctx), "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	code := exitOK
	if err := srv.Shutdown(shutdownCtx); err != nil {
		loggerInstance.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
		code = exitFailure
	}
	select {
	case <-serveFailed:
		code = exitFailure
	default:
	}

	loggerInstance.Info(shutdownCtx, "server stopped")
	return code
}

// startSystemMetricsUpdater updates system metrics until ctx is done.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater updates service metrics until ctx is done.
func startServiceMetricsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

func updateServiceMetrics(svc *service.Service) {
	stats := svc.GetStats()

	if queueLen, ok := stats["queueLength"].(int); ok {
		metrics.UpdateQueueSize(queueLen)
	}
	if regions, ok := stats["regions"].(int); ok {
		metrics.UpdateRegionsTotal(regions)
	}
	if dates, ok := stats["dates"].(int); ok {
		metrics.UpdateDatesTotal(dates)
	}
}
