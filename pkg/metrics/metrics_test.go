package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given a custom registry", t, func() {
		registry := prometheus.NewRegistry()

		Convey("When creating a manager with options", func() {
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{1, 10, 100}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then collectors are registered under the namespace", func() {
				So(manager, ShouldNotBeNil)
				manager.cacheHits.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() == "test_unit_cache_hits_total" {
						found = true
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When registering the same manager twice on one registry", func() {
			NewManager(WithPrometheusRegistry(registry))

			Convey("Then the second registration panics", func() {
				So(func() { NewManager(WithPrometheusRegistry(registry)) }, ShouldPanic)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording cache activity", func() {
			before := testutil.ToFloat64(globalManager.cacheHits)
			RecordCacheHit()
			RecordCacheHit()
			RecordCacheMiss()
			UpdateCacheEntries(4)

			So(testutil.ToFloat64(globalManager.cacheHits)-before, ShouldEqual, 2)
			So(testutil.ToFloat64(globalManager.cacheEntries), ShouldEqual, 4)
		})

		Convey("When recording skipped rows", func() {
			before := testutil.ToFloat64(globalManager.rowsSkipped.WithLabelValues("field_count"))
			RecordRowsSkipped("field_count", 3)
			RecordRowsSkipped("field_count", 0)
			So(testutil.ToFloat64(globalManager.rowsSkipped.WithLabelValues("field_count"))-before, ShouldEqual, 3)
		})

		Convey("When recording animation state", func() {
			UpdateAnimationActive(true)
			So(testutil.ToFloat64(globalManager.animationActive), ShouldEqual, 1)
			UpdateAnimationActive(false)
			So(testutil.ToFloat64(globalManager.animationActive), ShouldEqual, 0)

			UpdateAnimationIndex(7)
			So(testutil.ToFloat64(globalManager.animationIndex), ShouldEqual, 7)
		})

		Convey("When recording the rest", func() {
			So(func() {
				RecordFetch("ok", 12)
				UpdateBreakerState("source", 0)
				UpdateRegionsTotal(10)
				UpdateDatesTotal(50)
				UpdateGeometriesTotal(176)
				RecordFrameRendered(3)
				RecordAnimationRun("completed")
				UpdateQueueSize(1)
				UpdateQueueCapacity(8)
				UpdateQueueUtilization(0.125)
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				UpdateWorkerActiveCount(1)
				RecordWorkerProcessingLatency(2)
				RecordWorkerError()
				RecordHTTPRequest("regions", "GET", "200")
				RecordHTTPRequestDuration("regions", "GET", "200", 1)
				UpdateWebsocketClients(2)
				RecordWebsocketMessage()
				RecordErrorByComponent("source", "unavailable")
				RecordErrorByType("client_error", "medium")
				RecordErrorByEndpoint("regions", "GET", "not_found")
				UpdateSystemMemoryUsage(1024)
				UpdateSystemGoroutineCount(10)
				RecordSystemGCPauseTime(0.5)
			}, ShouldNotPanic)
		})

		Convey("Then the custom registry is exposed", func() {
			So(GetRegistry(), ShouldNotBeNil)
		})
	})
}
