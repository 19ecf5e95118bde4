package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should use the default refresh interval", func() {
				So(manager, ShouldNotBeNil)
				So(manager.RefreshInterval(), ShouldEqual, defaultRefreshInterval)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("forms"),
				WithMetricPrefix("pre"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithRefreshInterval(5*time.Second),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)
			manager.submissions.WithLabelValues("abx", OutcomeStored).Inc()

			Convey("Then metric names should carry namespace, subsystem and prefix", func() {
				So(manager.RefreshInterval(), ShouldEqual, 5*time.Second)
				families, err := registry.Gather()
				So(err, ShouldBeNil)

				var found bool
				for _, f := range families {
					if f.GetName() == "test_forms_pre_submissions_total" {
						found = true
						So(f.GetMetric()[0].GetLabel(), ShouldNotBeEmpty)
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When ignoring empty option values", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace(""),
				WithHistogramBuckets(nil),
				WithRefreshInterval(0),
				WithPrometheusRegistry(registry),
			)

			Convey("Then defaults should remain", func() {
				So(manager.namespace, ShouldEqual, "listeval")
				So(manager.histogramBuckets, ShouldResemble, prometheus.DefBuckets)
				So(manager.RefreshInterval(), ShouldEqual, defaultRefreshInterval)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording submissions", func() {
			before := testutil.ToFloat64(globalManager.submissions.WithLabelValues("mos", OutcomeInvalid))
			RecordSubmission("mos", OutcomeInvalid)
			RecordSubmission("mos", OutcomeInvalid)

			Convey("Then the counter should advance", func() {
				after := testutil.ToFloat64(globalManager.submissions.WithLabelValues("mos", OutcomeInvalid))
				So(after-before, ShouldEqual, 2)
			})
		})

		Convey("When recording written records", func() {
			before := testutil.ToFloat64(globalManager.recordsWritten.WithLabelValues("abx"))
			RecordRecordsWritten("abx", 6)

			Convey("Then the counter should grow by the batch size", func() {
				So(testutil.ToFloat64(globalManager.recordsWritten.WithLabelValues("abx"))-before, ShouldEqual, 6)
			})
		})

		Convey("When updating gauges", func() {
			UpdateActiveSessions(3)
			UpdateStimulusItems("abx", 12)

			Convey("Then they should hold the last value", func() {
				So(testutil.ToFloat64(globalManager.activeSessions), ShouldEqual, 3)
				So(testutil.ToFloat64(globalManager.stimulusItems.WithLabelValues("abx")), ShouldEqual, 12)
			})
		})

		Convey("When recording an aggregation", func() {
			before := testutil.ToFloat64(globalManager.aggregations)
			RecordAggregation(12.5, 40, 4)

			Convey("Then count, records and files should be updated", func() {
				So(testutil.ToFloat64(globalManager.aggregations)-before, ShouldEqual, 1)
				So(testutil.ToFloat64(globalManager.aggregationRecords), ShouldEqual, 40)
				So(testutil.ToFloat64(globalManager.resultFilesLoaded), ShouldEqual, 4)
			})
		})

		Convey("When recording the remaining metrics", func() {
			Convey("Then nothing should panic", func() {
				So(func() {
					RecordPageServed("mos")
					RecordAggregationError()
					RecordResultFileError()
					RecordHTTPRequest("/abx", "GET", "200")
					RecordHTTPRequestDuration("/abx", "GET", "200", 5.0)
					RecordErrorByType("validation_error", "warning")
					RecordErrorByEndpoint("/mos", "POST", "validation_error")
					RecordErrorLatency("http", "internal_error", 3.0)
					UpdateSystemMemoryUsage(1024)
					UpdateSystemGoroutineCount(10)
					RecordSystemGCPauseTime(0.5)
				}, ShouldNotPanic)
			})
		})

		Convey("Then the registry should be exposed", func() {
			So(GetRegistry(), ShouldEqual, customRegistry)
			So(RefreshInterval(), ShouldEqual, defaultRefreshInterval)
		})
	})
}
