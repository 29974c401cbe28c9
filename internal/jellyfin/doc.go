// Jellyfin MPV Session Runtime
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package jellyfin implements the Server Link (C3): the REST client used
// for authentication, playback metadata, and progress reporting, wrapped
// in a circuit breaker, and the WebSocket client used to receive
// Play/Playstate/GeneralCommand remote-control messages.
//
// The REST client (Client) and its breaker-guarded wrapper
// (CircuitBreakerClient) are long-lived: they survive WebSocket
// reconnects, since only the push channel needs to be recreated when the
// server connection drops. WebSocketClient owns its own reconnect loop
// with a capped [1, 2, 5, 10, 30, 60]s backoff schedule, and forwards
// decoded commands to the session manager over a bounded channel so a
// stalled consumer cannot block the socket's read loop.
//
// Example:
//
//	client, _ := jellyfin.NewClient(serverURL, deviceID, "JMSR")
//	auth, _ := client.Authenticate(ctx, username, password)
//	guarded := jellyfin.NewCircuitBreakerClient(client)
//	ws := jellyfin.NewWebSocketClient(client)
//	_ = ws.Connect(ctx)
//	for cmd := range ws.Commands() {
//	    // dispatch cmd to the session manager
//	}
package jellyfin
