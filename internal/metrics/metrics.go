package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Series outcomes.
const (
	SeriesOK          = "ok"
	SeriesParseError  = "parse_error"
	SeriesUnsupported = "unsupported"
	SeriesIncomplete  = "incomplete"
)

var (
	feedBuilds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eventfeed_feed_builds_total",
		Help: "Feed builds by outcome",
	}, []string{"outcome"}) // outcome=success|failure

	feedBuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "eventfeed_feed_build_duration_seconds",
		Help:    "Duration of feed builds",
		Buckets: prometheus.DefBuckets,
	})

	feedItems = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "eventfeed_feed_items",
		Help: "Number of items in the last successful feed build",
	})

	seriesResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eventfeed_series_total",
		Help: "Series processed during feed builds by outcome",
	}, []string{"outcome"}) // outcome=ok|parse_error|unsupported|incomplete

	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eventfeed_cache_lookups_total",
		Help: "Feed cache lookups by result",
	}, []string{"result"}) // result=hit|miss

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eventfeed_http_requests_total",
		Help: "HTTP requests by method, route and status",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "eventfeed_http_request_duration_seconds",
		Help:    "HTTP request latencies in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// RecordSeries counts one processed series.
func RecordSeries(outcome string) {
	seriesResolved.WithLabelValues(outcome).Inc()
}

// RecordBuild records a finished feed build.
func RecordBuild(err error, took time.Duration, items int) {
	feedBuildDuration.Observe(took.Seconds())
	if err != nil {
		feedBuilds.WithLabelValues("failure").Inc()
		return
	}
	feedBuilds.WithLabelValues("success").Inc()
	feedItems.Set(float64(items))
}

// RecordCacheLookup counts a cache hit or miss.
func RecordCacheLookup(hit bool) {
	if hit {
		cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	cacheLookups.WithLabelValues("miss").Inc()
}

// RecordHTTP records one served request. route should be the router pattern,
// not the raw path, to keep label cardinality bounded.
func RecordHTTP(method, route string, status int, took time.Duration) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(took.Seconds())
}
