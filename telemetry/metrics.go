// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	DetectorFramesTotal     prometheus.Counter
	DetectorFramesMalformed prometheus.Counter
	DetectorStreamErrors    prometheus.Counter
	DetectorSessionsStarted prometheus.Counter
	CandidatesTotal         prometheus.Counter
	MomentsAccepted         prometheus.Counter
	DuplicatesDropped       prometheus.Counter
	FeedMessagesRecorded    prometheus.Counter
	OrchestratorRequests    prometheus.Counter

	// Histograms (seconds)
	GenAIDuration prometheus.Observer

	// Gauges
	TimelineDepth prometheus.Gauge
	WSClients     prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		DetectorFramesTotal = promauto.NewCounter(prometheus.CounterOpts{Name: "detector_frames_total", Help: "Frames received from the detector stream"})
		DetectorFramesMalformed = promauto.NewCounter(prometheus.CounterOpts{Name: "detector_frames_malformed_total", Help: "Frames that failed to parse"})
		DetectorStreamErrors = promauto.NewCounter(prometheus.CounterOpts{Name: "detector_stream_errors_total", Help: "Error frames received from the detector"})
		DetectorSessionsStarted = promauto.NewCounter(prometheus.CounterOpts{Name: "detector_sessions_started_total", Help: "Detection sessions started"})
		CandidatesTotal = promauto.NewCounter(prometheus.CounterOpts{Name: "timeline_candidates_total", Help: "Candidate moments received"})
		MomentsAccepted = promauto.NewCounter(prometheus.CounterOpts{Name: "timeline_moments_accepted_total", Help: "Moments accepted into the timeline"})
		DuplicatesDropped = promauto.NewCounter(prometheus.CounterOpts{Name: "timeline_duplicates_dropped_total", Help: "Duplicate moments absorbed by the dedup invariant"})
		FeedMessagesRecorded = promauto.NewCounter(prometheus.CounterOpts{Name: "feed_messages_recorded_total", Help: "Live chat messages recorded into the feed"})
		OrchestratorRequests = promauto.NewCounter(prometheus.CounterOpts{Name: "ai_orchestrator_requests_total", Help: "Prompts routed through the AI orchestrator"})
		GenAIDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "genai_request_duration_seconds", Help: "Generative API request duration seconds", Buckets: prometheus.DefBuckets})
		TimelineDepth = promauto.NewGauge(prometheus.GaugeOpts{Name: "timeline_depth", Help: "Current number of reconciled moments"})
		WSClients = promauto.NewGauge(prometheus.GaugeOpts{Name: "timeline_ws_clients", Help: "Connected websocket clients"})
	})
}

// Inc increments a counter if metrics are initialized.
func Inc(c prometheus.Counter) {
	if c != nil {
		c.Inc()
	}
}

// SetGauge records a gauge value if metrics are initialized.
func SetGauge(g prometheus.Gauge, v float64) {
	if g != nil {
		g.Set(v)
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding correlation id (if absent) and the id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
