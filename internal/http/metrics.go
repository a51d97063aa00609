package http

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the prometheus instruments for the service. Each server owns
// its registry so repeated construction (tests included) never collides.
type Metrics struct {
	registry *prometheus.Registry

	FetchesTotal    *prometheus.CounterVec
	TracksFlowed    *prometheus.CounterVec
	PageErrorsTotal *prometheus.CounterVec
	SearchesBlocked prometheus.Counter
	TracksPlayed    prometheus.Counter
	QueueRemaining  prometheus.Gauge
	DraftSize       prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		FetchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "driftdj_fetches_total",
				Help: "Total number of catalog fetch rounds",
			},
			[]string{"mode"},
		),
		TracksFlowed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "driftdj_tracks_fetched_total",
				Help: "Total number of tracks surviving the filter pipeline",
			},
			[]string{"mode"},
		),
		PageErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "driftdj_page_errors_total",
				Help: "Total number of failed fan-out result pages",
			},
			[]string{"mode"},
		),
		SearchesBlocked: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "driftdj_searches_blocked_total",
				Help: "Total number of searches rejected by the rate limiter",
			},
		),
		TracksPlayed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "driftdj_tracks_played_total",
				Help: "Total number of tracks that started playing",
			},
		),
		QueueRemaining: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "driftdj_queue_remaining",
				Help: "Tracks left in the active queue",
			},
		),
		DraftSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "driftdj_draft_playlist_size",
				Help: "Current number of tracks in the draft playlist",
			},
		),
	}

	m.registry.MustRegister(
		m.FetchesTotal,
		m.TracksFlowed,
		m.PageErrorsTotal,
		m.SearchesBlocked,
		m.TracksPlayed,
		m.QueueRemaining,
		m.DraftSize,
	)

	return m
}

// RecordFetch counts a completed fetch round and its surviving tracks.
func (m *Metrics) RecordFetch(mode string, tracks int) {
	m.FetchesTotal.WithLabelValues(mode).Inc()
	m.TracksFlowed.WithLabelValues(mode).Add(float64(tracks))
}

// RecordTrackPlayed counts a track transitioning into playback.
func (m *Metrics) RecordTrackPlayed() {
	m.TracksPlayed.Inc()
}

// RecordPageError counts a failed result page inside a fan-out.
func (m *Metrics) RecordPageError(mode string) {
	m.PageErrorsTotal.WithLabelValues(mode).Inc()
}

// Handler serves the registry in prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
