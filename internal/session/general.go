// Jellyfin MPV Session Runtime
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"strconv"

	"github.com/hewel/jmsr/internal/jellyfin"
	"github.com/hewel/jmsr/internal/logging"
	"github.com/hewel/jmsr/internal/models"
)

// handleGeneralCommand dispatches a decoded GeneralCommand message.
func (m *Manager) handleGeneralCommand(ctx context.Context, cmd jellyfin.Command) {
	switch cmd.GeneralName {
	case "SetVolume":
		volume, err := strconv.Atoi(cmd.Arguments["Volume"])
		if err != nil {
			logging.Warn().Err(err).Msg("session: invalid SetVolume argument")
			return
		}
		m.mu.Lock()
		if m.playback != nil {
			m.playback.Volume = volume
		}
		m.mu.Unlock()
		m.enqueue(MpvAction{Kind: ActionSetVolume, Volume: volume})
	case "ToggleMute":
		m.mu.Lock()
		if m.playback != nil {
			m.playback.IsMuted = !m.playback.IsMuted
		}
		m.mu.Unlock()
		m.enqueue(MpvAction{Kind: ActionToggleMute})
	case "ToggleFullscreen":
		m.enqueue(MpvAction{Kind: ActionToggleFullscreen})
	case "SetAudioStreamIndex":
		m.setStreamIndex(ctx, models.StreamAudio, cmd.Arguments["Index"])
	case "SetSubtitleStreamIndex":
		m.setStreamIndex(ctx, models.StreamSubtitle, cmd.Arguments["Index"])
	default:
		logging.Warn().Str("command", cmd.GeneralName).Msg("session: unrecognized general command")
	}
}

// setStreamIndex updates the session's audio/subtitle index, persists a
// track preference for the current series if one is active, and
// enqueues the translated player action.
func (m *Manager) setStreamIndex(ctx context.Context, kind models.StreamType, rawIndex string) {
	index, err := strconv.Atoi(rawIndex)
	if err != nil {
		logging.Warn().Err(err).Str("raw", rawIndex).Msg("session: invalid stream index argument")
		return
	}

	m.mu.Lock()
	if m.playback != nil {
		if kind == models.StreamAudio {
			m.playback.AudioStreamIndex = intPtrIfSet(index)
		} else {
			m.playback.SubtitleStreamIndex = intPtrIfSet(index)
		}
	}
	seriesID := m.currentSeriesID
	streams := m.currentStreams
	m.mu.Unlock()

	if seriesID != "" {
		m.savePreference(seriesID, streams, kind, index)
	}

	playerIndex := JellyfinToPlayerTrackIndex(streams, kind, index)
	if kind == models.StreamAudio {
		m.enqueue(MpvAction{Kind: ActionSetAudioTrack, TrackID: playerIndex})
	} else {
		m.enqueue(MpvAction{Kind: ActionSetSubtitleTrack, TrackID: playerIndex})
	}
}

func (m *Manager) savePreference(seriesID string, streams []models.MediaStream, kind models.StreamType, index int) {
	if m.prefs == nil {
		return
	}

	pref, err := m.prefs.LoadTrackPreference(seriesID)
	if err != nil {
		logging.Warn().Err(err).Msg("session: failed to load track preference for update")
		pref = models.TrackPreference{}
	}

	if kind == models.StreamAudio {
		if stream := findStreamByIndex(streams, index); stream != nil {
			pref.AudioLanguage = stream.Language
			pref.AudioTitle = stream.DisplayTitle
		}
	} else {
		if index == DisableTrack {
			pref.IsSubtitleEnabled = false
			pref.SubtitleLanguage = ""
			pref.SubtitleTitle = ""
		} else if stream := findStreamByIndex(streams, index); stream != nil {
			pref.SubtitleLanguage = stream.Language
			pref.SubtitleTitle = stream.DisplayTitle
			pref.IsSubtitleEnabled = true
		}
	}

	if err := m.prefs.SaveTrackPreference(seriesID, pref); err != nil {
		logging.Warn().Err(err).Msg("session: failed to persist track preference")
	}
}

func findStreamByIndex(streams []models.MediaStream, index int) *models.MediaStream {
	for i := range streams {
		if streams[i].Index == index {
			return &streams[i]
		}
	}
	return nil
}
