package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
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
	"github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	_ = logger.Init(logger.WithWriter(io.Discard))
	os.Exit(m.Run())
}

func TestMainFunction(t *testing.T) {
	convey.Convey("Given the main application", t, func() {
		convey.Convey("When loading configuration from the environment", func() {
			t.Setenv("EPIDASH_ADDR", ":8080")
			t.Setenv("EPIDASH_FRAME_QUEUE_SIZE", "32")
			t.Setenv("EPIDASH_RENDER_WORKER_COUNT", "2")

			convey.Convey("Then the overrides should apply", func() {
				cfg, err := config.Load(context.Background())
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.FrameQueueSize, convey.ShouldEqual, 32)
				convey.So(cfg.RenderWorkerCount, convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When building the service from configuration", func() {
			svc := service.New(service.FromConfig(config.New())...)

			convey.Convey("Then it should carry the configured defaults", func() {
				convey.So(svc, convey.ShouldNotBeNil)
				convey.So(svc.FocusCountry(), convey.ShouldEqual, "US")
				convey.So(svc.AnimationInterval(), convey.ShouldEqual, 100*time.Millisecond)
			})
		})

		convey.Convey("When testing metrics initialization", func() {
			manager := metrics.NewManager(metrics.WithPrometheusRegistry(prometheus.NewRegistry()))
			convey.So(manager, convey.ShouldNotBeNil)
		})
	})
}

func TestMainApplicationComponents(t *testing.T) {
	convey.Convey("Given main application components", t, func() {
		convey.Convey("The system metrics updater should return when ctx is done", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			convey.So(func() { startSystemMetricsUpdater(ctx) }, convey.ShouldNotPanic)
		})

		convey.Convey("The service metrics updater should return when ctx is done", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			convey.So(func() { startServiceMetricsUpdater(ctx, service.New()) }, convey.ShouldNotPanic)
		})

		convey.Convey("Single updates should not panic on an unstarted service", func() {
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
			convey.So(func() { updateServiceMetrics(service.New()) }, convey.ShouldNotPanic)
		})
	})
}

func TestMainApplicationRouting(t *testing.T) {
	convey.Convey("Given every adapter registered on one mux", t, func() {
		ctx := context.Background()
		svc := service.New()
		hub := ws.NewHub(ws.WithSnapshot(func() any { return svc.State().Snapshot() }))
		defer hub.Close()

		mux := http.NewServeMux()
		swagger.Register(ctx, mux)
		hub.Register(ctx, mux)
		api.NewServer(svc, 0).Register(ctx, mux)
		site.Register(ctx, mux)

		serve := func(method, target string) int {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
			return rec.Code
		}

		convey.Convey("Then static routes should answer before datasets load", func() {
			convey.So(serve(http.MethodGet, "/"), convey.ShouldEqual, http.StatusOK)
			convey.So(serve(http.MethodGet, "/api-docs"), convey.ShouldEqual, http.StatusOK)
			convey.So(serve(http.MethodGet, "/openapi.yaml"), convey.ShouldEqual, http.StatusOK)
			convey.So(serve(http.MethodGet, "/healthz"), convey.ShouldEqual, http.StatusOK)
			convey.So(serve(http.MethodGet, "/stats"), convey.ShouldEqual, http.StatusOK)
		})

		convey.Convey("Then data routes should report the service is not started", func() {
			convey.So(serve(http.MethodGet, "/api/regions"), convey.ShouldEqual, http.StatusServiceUnavailable)
			convey.So(serve(http.MethodPost, "/api/animation"), convey.ShouldEqual, http.StatusServiceUnavailable)
		})

		convey.Convey("Then a plain GET on the websocket route should be rejected", func() {
			convey.So(serve(http.MethodGet, "/ws"), convey.ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestMainApplicationErrorHandling(t *testing.T) {
	convey.Convey("Given an invalid configuration", t, func() {
		t.Setenv("EPIDASH_ADDR", "")

		convey.Convey("Then configuration loading should fail", func() {
			cfg, err := config.Load(context.Background())
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(cfg, convey.ShouldBeNil)
		})

		convey.Convey("Then the process should exit non-zero", func() {
			convey.So(run(logger.WithWriter(io.Discard)), convey.ShouldEqual, exitFailure)
		})
	})

	convey.Convey("Given feeds that cannot be fetched", t, func() {
		feeds := httptest.NewServer(http.NotFoundHandler())
		defer feeds.Close()
		t.Setenv("EPIDASH_ADDR", "127.0.0.1:0")
		t.Setenv("EPIDASH_DAILY_REPORT_URL", feeds.URL+"/daily")
		t.Setenv("EPIDASH_CONFIRMED_URL", feeds.URL+"/confirmed")
		t.Setenv("EPIDASH_RECOVERED_URL", feeds.URL+"/recovered")
		t.Setenv("EPIDASH_DEATHS_URL", feeds.URL+"/deaths")

		convey.Convey("Then startup should fail with a non-zero exit code", func() {
			convey.So(run(logger.WithWriter(io.Discard)), convey.ShouldEqual, exitFailure)
		})
	})
}
