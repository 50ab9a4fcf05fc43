package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MutationsProcessed tracks every push attempt by outcome and mutation type
	// outcome: pushed, dropped, auth_expired, transient
	MutationsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_sync_mutations_processed_total",
		Help: "Total number of queued mutations processed by the reconciler",
	}, []string{"outcome", "type"})

	// CycleDuration measures a whole drain, from first peek to the final queue count
	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pos_sync_cycle_duration_seconds",
		Help:    "Duration of a reconciliation cycle in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// PushDuration tracks the latency of single remote calls
	// Buckets stop around the push timeout because slower calls are cut off anyway
	PushDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pos_sync_push_duration_seconds",
		Help:    "Latency of remote push calls",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 9},
	}, []string{"status"})

	// QueueBacklog is the number of mutations still waiting to be pushed
	// This is what the UI shows as the pending-operations indicator
	QueueBacklog = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pos_sync_queue_backlog",
		Help: "Current number of queued mutations awaiting push",
	})

	// DeadLetters counts dropped mutations nobody has acknowledged yet
	DeadLetters = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pos_sync_dead_letters",
		Help: "Current number of unacknowledged permanently dropped mutations",
	})

	// RemoteHealthy is 1 when the last remote call got an HTTP response, 0 after a network failure
	RemoteHealthy = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pos_sync_remote_healthy",
		Help: "Whether the remote API answered the last call (1) or not (0)",
	})

	// AuthExpirations counts 401 responses that halted a cycle
	AuthExpirations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pos_sync_auth_expired_total",
		Help: "Total number of cycles halted by an expired credential",
	})

	// RoomDiscoveries counts live room lookups by result (found, empty, error)
	RoomDiscoveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_sync_room_discoveries_total",
		Help: "Total number of remote room discovery calls",
	}, []string{"result"})
)
