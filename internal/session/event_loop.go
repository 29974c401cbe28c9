// Jellyfin MPV Session Runtime
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"time"

	"github.com/hewel/jmsr/internal/ipc"
	"github.com/hewel/jmsr/internal/jellyfin"
	"github.com/hewel/jmsr/internal/logging"
	"github.com/hewel/jmsr/internal/models"
)

// runEventConsumer drains mpv's asynchronous event stream: property
// changes drive progress reports, end-file triggers auto-advance, and
// the remapped next/previous keybindings arrive as client-message
// events.
func (m *Manager) runEventConsumer(ctx context.Context) {
	defer m.wg.Done()

	for {
		client := m.playerMgr.Client()
		if client == nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(500 * time.Millisecond):
				continue
			}
		}

		m.drainEvents(ctx, client.Events())
	}
}

// drainEvents consumes one player client's event channel until it
// closes, which signals the player died: per the loss-of-transport
// policy, any live session is reported Stopped and context is cleared
// before control returns to runEventConsumer to wait for a respawn.
func (m *Manager) drainEvents(ctx context.Context, events <-chan ipc.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				m.handlePlayerLost(ctx)
				return
			}
			m.handleEvent(ctx, ev)
		}
	}
}

func (m *Manager) handlePlayerLost(ctx context.Context) {
	session := m.currentPlayback()
	if session != nil {
		if err := m.rest.ReportStopped(ctx, jellyfin.StoppedReport{
			ItemID:        session.ItemID,
			MediaSourceID: session.MediaSourceID,
			PlaySessionID: session.PlaySessionID,
			PositionTicks: session.PositionTicks,
		}); err != nil {
			logging.Warn().Err(err).Msg("session: failed to report stopped on player loss")
		}
	}
	m.clearPlaybackContext()
	m.playerMgr.HandleDisconnect()
}

func (m *Manager) handleEvent(ctx context.Context, ev ipc.Event) {
	switch ev.Event {
	case "property-change":
		m.handlePropertyChange(ctx, ev)
	case "end-file":
		if ev.Reason == "eof" {
			m.onEndOfFile(ctx)
		}
	case "client-message":
		m.handleClientMessage(ctx, ev.Args)
	}
}

func (m *Manager) handlePropertyChange(ctx context.Context, ev ipc.Event) {
	value, err := ipc.ParsePropertyValue(ev.Data)
	if err != nil {
		logging.Warn().Err(err).Str("property", ev.Name).Msg("session: failed to parse property value")
		return
	}

	m.mu.Lock()
	session := m.playback
	if session == nil {
		m.mu.Unlock()
		return
	}

	immediate := true
	switch ev.Name {
	case "pause":
		session.IsPaused = value.Kind == ipc.PropertyBool && value.Bool
	case "volume":
		if value.Kind == ipc.PropertyNumber {
			session.Volume = int(value.Number)
		}
	case "mute":
		session.IsMuted = value.Kind == ipc.PropertyBool && value.Bool
	case "time-pos":
		if value.Kind == ipc.PropertyNumber {
			session.PositionTicks = models.SecondsToTicks(value.Number)
		}
		immediate = false
	default:
		m.mu.Unlock()
		return
	}

	shouldReport := immediate
	if !immediate {
		if time.Since(m.lastProgressReport) >= m.cfg.ProgressInterval {
			shouldReport = true
			m.lastProgressReport = time.Now()
		}
	}
	reportCopy := *session
	m.mu.Unlock()

	if shouldReport {
		m.reportProgress(ctx, reportCopy)
	}
}

func (m *Manager) reportProgress(ctx context.Context, session models.PlaybackSession) {
	if err := m.rest.ReportProgress(ctx, jellyfin.PlayingReport{
		ItemID:              session.ItemID,
		MediaSourceID:       session.MediaSourceID,
		PlaySessionID:       session.PlaySessionID,
		PositionTicks:       session.PositionTicks,
		IsPaused:            session.IsPaused,
		IsMuted:             session.IsMuted,
		VolumeLevel:         session.Volume,
		AudioStreamIndex:    session.AudioStreamIndex,
		SubtitleStreamIndex: session.SubtitleStreamIndex,
	}); err != nil {
		logging.Warn().Err(err).Msg("session: progress report failed")
	}
}

func (m *Manager) onEndOfFile(ctx context.Context) {
	m.advanceTrack(ctx, true)
}

// handleClientMessage responds to the remapped jmsr-next/jmsr-prev
// keybindings forwarded from mpv's input.conf script-message bindings.
func (m *Manager) handleClientMessage(ctx context.Context, args []string) {
	if len(args) == 0 {
		return
	}
	switch args[0] {
	case "jmsr-next":
		m.advanceTrack(ctx, true)
	case "jmsr-prev":
		m.advanceTrack(ctx, false)
	}
}
