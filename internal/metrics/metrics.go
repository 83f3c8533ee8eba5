package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the insights service.
type Metrics struct {
	// Event ingestion
	EventsRecorded *prometheus.CounterVec
	Views          *prometheus.CounterVec
	Bounces        prometheus.Counter
	RecordLatency  *prometheus.HistogramVec

	// Rewards
	BadgesAwarded *prometheus.CounterVec
	BadgeFailures *prometheus.CounterVec
	PointsGranted prometheus.Counter
	PointsRevoked prometheus.Counter
	LevelUps      prometheus.Counter

	// Store health
	StoreErrors  *prometheus.CounterVec
	RedisLatency *prometheus.HistogramVec

	// Rate limiting
	RateLimitHits *prometheus.CounterVec
}

var (
	// DefaultMetrics is the global metrics instance
	DefaultMetrics *Metrics
)

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		EventsRecorded: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_recorded_total",
				Help:      "Interaction events recorded by kind",
			},
			[]string{"kind"},
		),
		Views: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "views_total",
				Help:      "Listing views by traffic source, device and novelty",
			},
			[]string{"source", "device", "novelty"},
		),
		Bounces: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bounces_total",
				Help:      "Sessions classified as bounces",
			},
		),
		RecordLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "record_latency_seconds",
				Help:      "Latency of event recording by kind",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"kind"},
		),
		BadgesAwarded: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "badges_awarded_total",
				Help:      "Badges awarded by slug",
			},
			[]string{"slug"},
		),
		BadgeFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "badge_failures_total",
				Help:      "Badge evaluation failures by slug",
			},
			[]string{"slug"},
		),
		PointsGranted: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "points_granted_total",
				Help:      "Points granted across all users",
			},
		),
		PointsRevoked: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "points_revoked_total",
				Help:      "Points revoked across all users",
			},
		),
		LevelUps: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "level_ups_total",
				Help:      "Level advancements across all users",
			},
		),
		StoreErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_errors_total",
				Help:      "Persistence errors by store",
			},
			[]string{"store"},
		),
		RedisLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "redis_latency_seconds",
				Help:      "Redis operation latency",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
			},
			[]string{"operation"},
		),
		RateLimitHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_hits_total",
				Help:      "Rate limit rejections",
			},
			[]string{"endpoint"},
		),
	}

	DefaultMetrics = m
	return m
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordEvent records one ingested interaction event.
func (m *Metrics) RecordEvent(kind string, latency time.Duration) {
	m.EventsRecorded.WithLabelValues(kind).Inc()
	m.RecordLatency.WithLabelValues(kind).Observe(latency.Seconds())
}

// RecordView records a classified view.
func (m *Metrics) RecordView(source, device, novelty string) {
	m.Views.WithLabelValues(source, device, novelty).Inc()
}

// RecordBadgeAwarded records a badge award.
func (m *Metrics) RecordBadgeAwarded(slug string) {
	m.BadgesAwarded.WithLabelValues(slug).Inc()
}

// RecordBadgeFailure records a failed badge evaluation.
func (m *Metrics) RecordBadgeFailure(slug string) {
	m.BadgeFailures.WithLabelValues(slug).Inc()
}

// RecordPoints records a point grant or revocation and any level-ups.
func (m *Metrics) RecordPoints(delta int64, levelUps int) {
	if delta >= 0 {
		m.PointsGranted.Add(float64(delta))
	} else {
		m.PointsRevoked.Add(float64(-delta))
	}
	for i := 0; i < levelUps; i++ {
		m.LevelUps.Inc()
	}
}

// RecordStoreError records a persistence failure.
func (m *Metrics) RecordStoreError(store string) {
	m.StoreErrors.WithLabelValues(store).Inc()
}

// RecordRateLimitHit records a rejected request.
func (m *Metrics) RecordRateLimitHit(endpoint string) {
	m.RateLimitHits.WithLabelValues(endpoint).Inc()
}
