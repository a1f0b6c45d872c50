// Package metrics exposes Prometheus collectors for the enrichment service.
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
	enrichFetchesTotal         *prometheus.CounterVec
	enrichFetchSeconds         *prometheus.HistogramVec
	enrichAntiBotTotal         *prometheus.CounterVec
	enrichSocialLinksTotal     *prometheus.CounterVec
	enrichResolutionsTotal     *prometheus.CounterVec
	enrichMirrorFailuresTotal  *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	enrichActiveSessions       prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		enrichFetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "enrich_fetches_total",
				Help: "Total number of page fetches, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		)

		enrichFetchSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "enrich_fetch_duration_seconds",
				Help:    "Histogram of fetch attempt durations, labeled by site.",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 45, 90},
			},
			[]string{"site"},
		)

		enrichAntiBotTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "enrich_antibot_detections_total",
				Help: "Total anti-bot detections, labeled by site and kind.",
			},
			[]string{"site", "kind"},
		)

		enrichSocialLinksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "enrich_social_links_total",
				Help: "Total social links extracted, labeled by key.",
			},
			[]string{"key"},
		)

		enrichResolutionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "enrich_profile_resolutions_total",
				Help: "Total profile resolutions, labeled by source and outcome.",
			},
			[]string{"source", "outcome"},
		)

		enrichMirrorFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "enrich_mirror_failures_total",
				Help: "Total mirror instance failures, labeled by instance.",
			},
			[]string{"instance"},
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

		enrichActiveSessions = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "enrich_active_browser_sessions",
				Help: "Number of browser sessions currently open.",
			},
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

// ObserveFetch records one fetch attempt.
func ObserveFetch(site, outcome string, duration time.Duration) {
	sanitized := SanitizeSite(site)
	enrichFetchesTotal.WithLabelValues(sanitized, outcome).Inc()
	enrichFetchSeconds.WithLabelValues(sanitized).Observe(duration.Seconds())
}

// ObserveAntiBot records an anti-bot detection.
func ObserveAntiBot(site, kind string) {
	enrichAntiBotTotal.WithLabelValues(SanitizeSite(site), kind).Inc()
}

// ObserveSocialLink increments the extracted-link counter for a key.
func ObserveSocialLink(key string) {
	enrichSocialLinksTotal.WithLabelValues(key).Inc()
}

// ObserveResolution records one profile resolution.
func ObserveResolution(source, outcome string) {
	enrichResolutionsTotal.WithLabelValues(source, outcome).Inc()
}

// ObserveMirrorFailure counts a failed mirror instance attempt.
func ObserveMirrorFailure(instance string) {
	enrichMirrorFailuresTotal.WithLabelValues(SanitizeSite(instance)).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// IncActiveSessions increments the open session gauge.
func IncActiveSessions() {
	enrichActiveSessions.Inc()
}

// DecActiveSessions decrements the open session gauge.
func DecActiveSessions() {
	enrichActiveSessions.Dec()
}
