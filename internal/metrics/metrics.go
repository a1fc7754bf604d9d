package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "readtrack",
		Name:      "sessions_started_total",
		Help:      "Reading sessions opened.",
	})

	SessionsEnded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "readtrack",
		Name:      "sessions_ended_total",
		Help:      "Reading sessions finalized, by completion.",
	}, []string{"completed"})

	ScrollSamples = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "readtrack",
		Name:      "scroll_samples_total",
		Help:      "Scroll samples recorded across all sessions.",
	})

	PersistFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "readtrack",
		Name:      "persist_failures_total",
		Help:      "Persistence calls that failed and were dropped.",
	}, []string{"op"})

	SessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "readtrack",
		Name:      "session_duration_seconds",
		Help:      "Wall-clock duration of finalized reading sessions.",
		Buckets:   []float64{10, 30, 60, 120, 300, 600, 1200, 1800, 3600},
	})

	ActiveTrackers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "readtrack",
		Name:      "active_trackers",
		Help:      "Readers currently held in the tracker registry.",
	})
)

// Persist failure ops.
const (
	OpCreate   = "create"
	OpFlush    = "flush"
	OpFinalize = "finalize"
	OpProfile  = "profile"
	OpPublish  = "publish"
)
