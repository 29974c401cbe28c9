// Jellyfin MPV Session Runtime
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"

	"github.com/hewel/jmsr/internal/ipc"
	"github.com/hewel/jmsr/internal/jellyfin"
	"github.com/hewel/jmsr/internal/logging"
	"github.com/hewel/jmsr/internal/models"
)

// handlePlaystate dispatches a decoded Playstate command.
func (m *Manager) handlePlaystate(ctx context.Context, cmd jellyfin.Command) {
	switch cmd.PlaystateCommand {
	case "Pause":
		m.setPausedState(true)
		m.enqueue(MpvAction{Kind: ActionPause})
	case "Unpause":
		m.setPausedState(false)
		m.enqueue(MpvAction{Kind: ActionResume})
	case "PlayPause":
		m.togglePause(ctx)
	case "Seek":
		seconds := models.TicksToSeconds(cmd.SeekPositionTicks)
		m.mu.Lock()
		if m.playback != nil {
			m.playback.PositionTicks = cmd.SeekPositionTicks
		}
		m.mu.Unlock()
		m.enqueue(MpvAction{Kind: ActionSeek, SeekSeconds: seconds})
	case "Stop":
		m.stopPlayback(ctx)
	case "NextTrack":
		m.advanceTrack(ctx, true)
	case "PreviousTrack":
		m.advanceTrack(ctx, false)
	default:
		logging.Warn().Str("command", cmd.PlaystateCommand).Msg("session: unrecognized playstate command")
	}
}

func (m *Manager) setPausedState(paused bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.playback != nil {
		m.playback.IsPaused = paused
	}
}

// togglePause queries mpv's live pause property rather than the
// session's cached copy, since the user may have toggled pause
// directly via mpv's own keyboard shortcuts.
func (m *Manager) togglePause(ctx context.Context) {
	client := m.playerMgr.Client()
	if client == nil {
		return
	}

	prop, err := client.GetProperty(ctx, "pause")
	if err != nil {
		logging.Warn().Err(err).Msg("session: failed to query live pause state")
		return
	}

	live := prop.Kind == ipc.PropertyBool && prop.Bool
	m.setPausedState(!live)
	if live {
		m.enqueue(MpvAction{Kind: ActionResume})
	} else {
		m.enqueue(MpvAction{Kind: ActionPause})
	}
}

// stopPlayback implements the Playstate Stop command: report Stopped,
// drop the session, and enqueue Stop to the player.
func (m *Manager) stopPlayback(ctx context.Context) {
	session := m.currentPlayback()
	if session != nil {
		if err := m.rest.ReportStopped(ctx, jellyfin.StoppedReport{
			ItemID:        session.ItemID,
			MediaSourceID: session.MediaSourceID,
			PlaySessionID: session.PlaySessionID,
			PositionTicks: session.PositionTicks,
		}); err != nil {
			logging.Warn().Err(err).Msg("session: failed to report stopped")
		}
	}
	m.clearPlaybackContext()
	m.enqueue(MpvAction{Kind: ActionStop})
}
