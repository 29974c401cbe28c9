// Jellyfin MPV Session Runtime
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package metrics provides Prometheus instrumentation for the session core.

Metrics are registered against the default Prometheus registry via
promauto, the same pattern used for HTTP/database instrumentation in
server-side Jellyfin tooling. cmd/jmsr serves them in the Prometheus
text format through promhttp.Handler on the configured metrics
address, as a supervised HTTP service in the link layer.

# Available Metrics

Player IPC:
  - mpv_ipc_commands_total: commands sent to mpv (counter, labels: command, result)
  - mpv_ipc_command_duration_seconds: round-trip latency for mpv commands (histogram)
  - mpv_ipc_events_dropped_total: events dropped because the event channel was full (counter)

Server Link:
  - jellyfin_connection_state: 1 if the WebSocket is connected, else 0 (gauge)
  - jellyfin_reconnect_attempts_total: reconnect attempts made (counter)
  - jellyfin_progress_reports_total: progress reports sent, by trigger (counter, labels: trigger, result)

Circuit Breaker:
  - circuit_breaker_state: current state, 0=closed 1=half-open 2=open (gauge, labels: name)
  - circuit_breaker_requests_total: requests observed by the breaker (counter, labels: name, result)
  - circuit_breaker_state_transitions_total: state transitions (counter, labels: name, from_state, to_state)

mpv_ipc_commands_total, mpv_ipc_command_duration_seconds and
jellyfin_progress_reports_total are registered, but no code path in this
module updates them, so they expose no samples.
*/
package metrics
