// Package metrics exposes Prometheus collectors for the archiver service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	providerCallsTotal          *prometheus.CounterVec
	providerCallDurationSeconds *prometheus.HistogramVec
	storeFlushesTotal           *prometheus.CounterVec
	storeFlushDurationSeconds   prometheus.Histogram
	storedRecords               prometheus.Gauge
	httpRequestsTotal           *prometheus.CounterVec
	httpRequestDurationSeconds  *prometheus.HistogramVec
	archiveInFlight             prometheus.Gauge
	rateLimitDelaysSeconds      *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		providerCallsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archiver_provider_calls_total",
				Help: "Total number of provider calls, labeled by provider, phase and outcome.",
			},
			[]string{"provider", "phase", "outcome"},
		)

		providerCallDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "archiver_provider_call_duration_seconds",
				Help:    "Histogram of provider call latencies, labeled by provider and phase.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"provider", "phase"},
		)

		storeFlushesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archiver_store_flushes_total",
				Help: "Total number of store flushes, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		storeFlushDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "archiver_store_flush_duration_seconds",
				Help:    "Histogram of store flush latencies.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
		)

		storedRecords = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "archiver_stored_records",
				Help: "Number of archive records currently held by the store.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		archiveInFlight = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "archiver_in_flight",
				Help: "Number of (record, provider) workflows currently running.",
			},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "archiver_rate_limit_delays_seconds",
				Help:    "Histogram of outbound rate limit wait durations.",
				Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"host"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveProviderCall records one check or request call against a provider.
func ObserveProviderCall(provider, phase, outcome string, duration time.Duration) {
	Init()
	providerCallsTotal.WithLabelValues(provider, phase, outcome).Inc()
	providerCallDurationSeconds.WithLabelValues(provider, phase).Observe(duration.Seconds())
}

// ObserveStoreFlush records a store flush attempt.
func ObserveStoreFlush(outcome string, duration time.Duration) {
	Init()
	storeFlushesTotal.WithLabelValues(outcome).Inc()
	storeFlushDurationSeconds.Observe(duration.Seconds())
}

// SetStoredRecords sets the stored records gauge.
func SetStoredRecords(n int) {
	Init()
	storedRecords.Set(float64(n))
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// IncInFlight increments the in-flight workflow gauge.
func IncInFlight() {
	Init()
	archiveInFlight.Inc()
}

// DecInFlight decrements the in-flight workflow gauge.
func DecInFlight() {
	Init()
	archiveInFlight.Dec()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(host string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(host).Observe(duration.Seconds())
}
