package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scheduling",
		Name:      "session_rejections_total",
		Help:      "Session violations reported by validation, by violation code.",
	}, []string{"code"})

	SessionWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scheduling",
		Name:      "session_writes_total",
		Help:      "Persisted session changes, by operation.",
	}, []string{"op"})

	AssignmentRegenerations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scheduling",
		Name:      "assignment_regenerations_total",
		Help:      "Full lecture assignment regenerations, by whether overrides were reapplied.",
	}, []string{"preserve_overrides"})

	AssignmentOverrides = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "scheduling",
		Name:      "assignment_overrides_total",
		Help:      "Manual edits to single lecture assignments.",
	})

	LockWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "scheduling",
		Name:      "group_lock_wait_seconds",
		Help:      "Time spent waiting for a group write lock.",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 3},
	})
)
