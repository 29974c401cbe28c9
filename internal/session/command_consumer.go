// Jellyfin MPV Session Runtime
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"

	"github.com/hewel/jmsr/internal/jellyfin"
	"github.com/hewel/jmsr/internal/logging"
	"github.com/hewel/jmsr/internal/models"
)

// runCommandConsumer drains the Server Link's decoded command stream
// and turns each into player actions and REST side effects. The command
// channel closes only when the WebSocket client itself is closed; its
// reconnect loop retries without limit and keeps the channel open, so a
// dropped connection that is being retried does not reach this path.
// On close, playback context is cleared per the loss-of-transport
// policy so the UI does not show a session believed to still be live.
func (m *Manager) runCommandConsumer(ctx context.Context) {
	defer m.wg.Done()

	for cmd := range m.ws.Commands() {
		switch cmd.Kind {
		case jellyfin.CommandPlay:
			if len(cmd.ItemIDs) == 0 {
				logging.Warn().Msg("session: Play command with no item ids")
				continue
			}
			m.play(ctx, cmd.ItemIDs[0], cmd.StartPositionTicks, cmd.AudioStreamIndex, cmd.SubtitleStreamIndex)
		case jellyfin.CommandPlaystate:
			m.handlePlaystate(ctx, cmd)
		case jellyfin.CommandGeneralCommand:
			m.handleGeneralCommand(ctx, cmd)
		}
	}

	m.handleTransportLost()
}

// handleTransportLost implements the WS-loss branch of "Loss of
// transport (both directions)": clear playback context identically to
// a player loss, and notify the UI. Automatic playback resumption is
// explicitly out of scope.
func (m *Manager) handleTransportLost() {
	session := m.currentPlayback()
	if session != nil {
		ctx, cancel := context.WithTimeout(context.Background(), playerCommandTimeout)
		if err := m.rest.ReportStopped(ctx, jellyfin.StoppedReport{
			ItemID:        session.ItemID,
			MediaSourceID: session.MediaSourceID,
			PlaySessionID: session.PlaySessionID,
			PositionTicks: session.PositionTicks,
		}); err != nil {
			logging.Warn().Err(err).Msg("session: failed to report stopped on transport loss")
		}
		cancel()
	}
	m.clearPlaybackContext()
	m.notify(models.NotificationWarning, "Lost connection to server")
}
