package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Listener Metrics
var (
	// ListenersCurrent tracks the number of registered stream listeners
	ListenersCurrent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "radiocast_listeners_current",
			Help: "Number of listeners currently registered with the broadcaster",
		},
	)

	// ListenerConnectionsTotal tracks total listener connections
	ListenerConnectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "radiocast_listener_connections_total",
			Help: "Total stream listener connections",
		},
	)

	// ListenerEvictionsTotal tracks listeners removed during broadcast by reason (closed, slow, write_error)
	ListenerEvictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "radiocast_listener_evictions_total",
			Help: "Listeners pruned by the broadcaster by reason",
		},
		[]string{"reason"},
	)

	// ListenerConnectionDuration tracks how long listeners stay connected
	ListenerConnectionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "radiocast_listener_connection_duration_seconds",
			Help:    "Stream listener connection lifetime in seconds",
			Buckets: []float64{1, 10, 60, 300, 900, 1800, 3600, 7200},
		},
	)
)

// Broadcast Metrics
var (
	// BroadcastBytesTotal tracks bytes read from the paced source
	BroadcastBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "radiocast_broadcast_bytes_total",
			Help: "Total bytes read from the paced program source",
		},
	)

	// BroadcastChunksTotal tracks chunks fanned out to listeners
	BroadcastChunksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "radiocast_broadcast_chunks_total",
			Help: "Total chunks fanned out to listeners",
		},
	)

	// BroadcastFanoutDuration tracks how long one chunk takes to reach every listener
	BroadcastFanoutDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "radiocast_broadcast_fanout_duration_seconds",
			Help:    "Time to hand one chunk to every registered listener",
			Buckets: []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05},
		},
	)
)

// Playback Metrics
var (
	// PlaybackState is 1 for the current state and 0 for every other state
	PlaybackState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "radiocast_playback_state",
			Help: "Current playback state (1 = active state)",
		},
		[]string{"state"},
	)

	// PlaybackTransitionsTotal tracks state transitions by target state
	PlaybackTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "radiocast_playback_transitions_total",
			Help: "Playback state transitions by target state",
		},
		[]string{"state"},
	)

	// PlaybackBitrate tracks the bitrate the pipeline is paced at
	PlaybackBitrate = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "radiocast_playback_bitrate_bits_per_second",
			Help: "Bitrate the active pipeline is paced at",
		},
	)

	// OverlaysTotal tracks overlay commands by result (mixed, not_found, failed, aborted)
	OverlaysTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "radiocast_overlays_total",
			Help: "Effect overlay attempts by result",
		},
		[]string{"result"},
	)

	// CommandsTotal tracks operator commands by command and result
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "radiocast_commands_total",
			Help: "Operator commands by command and result",
		},
		[]string{"command", "result"},
	)
)

// Audio Subprocess Metrics
var (
	// BitrateProbesTotal tracks bitrate probes by result (ok, fallback, short_circuit)
	BitrateProbesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "radiocast_bitrate_probes_total",
			Help: "Bitrate probes by result",
		},
		[]string{"result"},
	)

	// SubprocessDuration tracks audio subprocess runtime by operation
	SubprocessDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "radiocast_subprocess_duration_seconds",
			Help:    "Audio subprocess runtime in seconds by operation",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 5, 30, 120, 600},
		},
		[]string{"operation"},
	)

	// SubprocessFailuresTotal tracks audio subprocess failures by operation
	SubprocessFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "radiocast_subprocess_failures_total",
			Help: "Audio subprocess failures by operation",
		},
		[]string{"operation"},
	)

	// CircuitBreakerState tracks probe circuit breaker state (0=closed, 1=half-open, 2=open)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"component"},
	)
)

// Status Feed Metrics
var (
	// StatusClientsCurrent tracks connected WebSocket status clients
	StatusClientsCurrent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "radiocast_status_clients_current",
			Help: "Connected WebSocket status feed clients",
		},
	)

	// StatusSlowClientsEvicted tracks status clients evicted because their buffer was full
	StatusSlowClientsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "radiocast_status_slow_clients_evicted_total",
			Help: "Total number of slow WebSocket status clients evicted due to buffer full",
		},
	)
)

// Build Information Metrics
var (
	// BuildInfo is a gauge that always returns 1, with build metadata as labels
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Build information with version, commit, build_time, and go_version labels (value is always 1)",
		},
		[]string{"version", "commit", "build_time", "go_version"},
	)
)
