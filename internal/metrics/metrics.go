// Jellyfin MPV Session Runtime
// SPDX-License-Identifier: AGPL-3.0-or-later

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MpvCommandsTotal is registered for commands sent to mpv over the IPC
	// channel; no code path in this module increments it.
	MpvCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mpv_ipc_commands_total",
			Help: "Total number of commands sent to mpv over the IPC channel",
		},
		[]string{"command", "result"}, // result: "success", "command_failed", "timeout", "disconnected"
	)

	// MpvCommandDuration is registered for round-trip latency of mpv IPC
	// commands; no code path in this module observes into it.
	MpvCommandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mpv_ipc_command_duration_seconds",
			Help:    "Round-trip duration of mpv IPC commands",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)

	// MpvEventsDropped counts mpv events dropped because the bounded event channel was full.
	MpvEventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mpv_ipc_events_dropped_total",
			Help: "Total number of mpv IPC events dropped due to a full event channel",
		},
	)

	// JellyfinConnectionState reports whether the WebSocket control channel is up.
	JellyfinConnectionState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "jellyfin_connection_state",
			Help: "1 if the Jellyfin WebSocket is connected, 0 otherwise",
		},
	)

	// JellyfinReconnectAttempts counts WebSocket reconnect attempts.
	JellyfinReconnectAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jellyfin_reconnect_attempts_total",
			Help: "Total number of WebSocket reconnect attempts",
		},
	)

	// JellyfinProgressReports is registered for progress reports sent to
	// the server; no code path in this module increments it.
	JellyfinProgressReports = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jellyfin_progress_reports_total",
			Help: "Total number of playback progress reports sent",
		},
		[]string{"trigger", "result"}, // trigger: "time-pos", "state-change"; result: "success", "error"
	)

	// CircuitBreakerState mirrors the gobreaker state for the Jellyfin REST client.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// CircuitBreakerRequests counts requests observed by the circuit breaker.
	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through the circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	// CircuitBreakerTransitions counts circuit breaker state transitions.
	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)
)
