// Jellyfin MPV Session Runtime
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package services provides a suture.Service wrapper for the runtime's
long-lived components.

# Overview

LifecycleService adapts a StartStopper (Start(ctx)/Stop()) to suture's
context-aware Serve pattern:

	type Service interface {
	    Serve(ctx context.Context) error
	}

The player and session components expose a Start/Stop lifecycle rather
than suture.Service directly, so they stay ignorant of the supervision
library:

  - the mpv process + IPC connection (player layer)
  - the session state machine (session layer)

The Jellyfin WebSocket link's own lifetime is driven by login/logout
through the facade rather than by the supervisor (it only exists once
a server connection has been established), so the link layer instead
hosts HTTPServerService for process-local auxiliary endpoints such as
metrics.

# Usage

	player := player.NewManager(cfg)
	tree.AddPlayerService(services.NewLifecycleService(player, "mpv-player"))

	sess := session.New(cfg, player, rest, ws, prefs)
	tree.AddSessionService(services.NewLifecycleService(sess, "session-manager"))

	tree.AddLinkService(services.NewHTTPServerService(metricsServer, 5*time.Second))

	tree.Serve(ctx)

# Error Handling

Return values determine supervisor behavior:

	nil         -> Service stopped cleanly, will not restart
	error       -> Service crashed, supervisor will restart
	ctx.Err()   -> Shutdown requested, normal termination

# Service Identification

LifecycleService implements fmt.Stringer for logging, so suture's event
hook can name the failing component:

	INFO mpv-player: starting
	WARN mpv-player: restarting after failure
*/
package services
