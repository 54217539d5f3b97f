// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts handled requests by method, route and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "setlist_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "setlist_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "setlist_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// PlaylistOperations counts service operations by name and outcome.
	PlaylistOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "setlist_playlist_operations_total",
			Help: "Total number of playlist operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	SongsAdded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "setlist_playlist_songs_added_total",
			Help: "Total number of membership rows inserted",
		},
	)

	ArchivesPurged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "setlist_archives_purged_total",
			Help: "Archived playlists permanently deleted, by trigger",
		},
		[]string{"trigger"},
	)

	ReaperRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "setlist_archive_reaper_runs_total",
			Help: "Total number of archive reaper runs by result",
		},
		[]string{"result"},
	)

	ReaperLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "setlist_archive_reaper_last_run_timestamp",
			Help: "Timestamp of the last archive reaper run",
		},
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "setlist_events_published_total",
			Help: "Playlist events sent to Redis by type and result",
		},
		[]string{"type", "result"},
	)
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
