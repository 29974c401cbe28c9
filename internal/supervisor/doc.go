// Jellyfin MPV Session Runtime
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package supervisor provides process supervision for the session core using suture v4.

The runtime is a single long-lived process with three independently
restartable subsystems. A crash in one must not take the others down:
the player can die and be respawned without losing the WebSocket
connection, and a WebSocket drop must not kill the player.

	RootSupervisor ("jmsr")
	├── PlayerSupervisor ("player-layer")
	│   └── PlayerService (owns the mpv process + IPC connection)
	├── LinkSupervisor ("link-layer")
	│   └── HTTPServerService (metrics endpoint; the WebSocket link reconnects on its own, outside the tree)
	└── SessionSupervisor ("session-layer")
	    └── SessionService (the C4 state machine: command + event + action consumers)

# Usage

	logger := slog.Default()
	tree, err := supervisor.NewSupervisorTree(logger, supervisor.DefaultTreeConfig())
	if err != nil {
	    log.Fatal(err)
	}
	tree.AddPlayerService(playerService)
	tree.AddSessionService(sessionService)
	if err := tree.Serve(ctx); err != nil {
	    log.Printf("supervisor stopped: %v", err)
	}

# Failure Handling

Each service failure increments a decaying counter; once the counter
exceeds FailureThreshold within FailureDecay seconds, the supervisor
waits FailureBackoff before restarting again. Defaults match suture's
own production defaults (5 failures / 30s decay / 15s backoff).

# Service Interface

All services implement suture.Service:

	type Service interface {
	    Serve(ctx context.Context) error
	}

Returning nil means "stopped cleanly, do not restart"; returning an
error means "crashed, restart me"; observing context cancellation
must cause a prompt return either way.
*/
package supervisor
