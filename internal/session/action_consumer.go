// Jellyfin MPV Session Runtime
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"time"

	"github.com/hewel/jmsr/internal/logging"
	"github.com/hewel/jmsr/internal/player"
)

const playerCommandTimeout = 5 * time.Second

// runActionConsumer is the single task that serializes all access to
// the player: it drains the action channel and invokes C2, ensuring
// mpv is running before the first Play.
func (m *Manager) runActionConsumer(ctx context.Context) {
	defer m.wg.Done()

	for action := range m.actions {
		m.applyAction(ctx, action)
	}
}

func (m *Manager) applyAction(ctx context.Context, action MpvAction) {
	cctx, cancel := context.WithTimeout(ctx, playerCommandTimeout)
	defer cancel()

	switch action.Kind {
	case ActionPlay:
		client, err := m.playerMgr.EnsureRunning(cctx)
		if err != nil {
			logging.Error().Err(err).Msg("session: failed to start mpv for play")
			return
		}
		m.loadFile(cctx, client, action)
	case ActionPause:
		m.withClient(cctx, func(c *player.Client) error { return c.SetPause(cctx, true) })
	case ActionResume:
		m.withClient(cctx, func(c *player.Client) error { return c.SetPause(cctx, false) })
	case ActionSeek:
		m.withClient(cctx, func(c *player.Client) error { return c.Seek(cctx, action.SeekSeconds) })
	case ActionStop:
		// mpv's lifetime outlives the session: stopping playback pauses
		// mpv and leaves the file loaded, it does not quit the player.
		m.withClient(cctx, func(c *player.Client) error { return c.SetPause(cctx, true) })
	case ActionSetVolume:
		m.withClient(cctx, func(c *player.Client) error { return c.SetVolume(cctx, action.Volume) })
	case ActionToggleMute:
		m.withClient(cctx, func(c *player.Client) error { return c.Cycle(cctx, "mute") })
	case ActionToggleFullscreen:
		m.withClient(cctx, func(c *player.Client) error { return c.Cycle(cctx, "fullscreen") })
	case ActionSetAudioTrack:
		m.withClient(cctx, func(c *player.Client) error { return c.SetAudioTrack(cctx, action.TrackID) })
	case ActionSetSubtitleTrack:
		m.withClient(cctx, func(c *player.Client) error { return c.SetSubtitleTrack(cctx, action.TrackID) })
	}
}

func (m *Manager) loadFile(ctx context.Context, client *player.Client, action MpvAction) {
	opts := player.LoadFileOptions{StartSeconds: action.StartSeconds}
	if action.AudioID != 0 {
		opts.HasAudioTrack = true
		opts.AudioTrackID = action.AudioID
	}
	if action.SubtitleID != 0 {
		opts.HasSubtitleTrack = true
		opts.SubtitleTrackID = action.SubtitleID
	}

	if err := client.LoadFileWithOptions(ctx, action.URL, opts); err != nil {
		logging.Error().Err(err).Msg("session: loadfile failed")
		return
	}
	if err := client.SetMediaTitle(ctx, action.Title); err != nil {
		logging.Warn().Err(err).Msg("session: failed to set media title")
	}

	m.subscribeProperties(ctx, client)
}

func (m *Manager) subscribeProperties(ctx context.Context, client *player.Client) {
	observations := []struct {
		id   int64
		name string
	}{
		{propertyObserverPause, "pause"},
		{propertyObserverVol, "volume"},
		{propertyObserverMute, "mute"},
		{propertyObserverTime, "time-pos"},
	}
	for _, obs := range observations {
		if err := client.ObserveProperty(ctx, obs.id, obs.name); err != nil {
			logging.Warn().Err(err).Str("property", obs.name).Msg("session: failed to observe property")
		}
	}
}

// withClient runs fn against the live player client, logging and
// no-op'ing if mpv is not currently running.
func (m *Manager) withClient(ctx context.Context, fn func(*player.Client) error) {
	client := m.playerMgr.Client()
	if client == nil {
		logging.Debug().Msg("session: action dropped, player not running")
		return
	}
	if err := fn(client); err != nil {
		logging.Warn().Err(err).Msg("session: player action failed")
	}
}
