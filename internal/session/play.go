// Jellyfin MPV Session Runtime
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"

	"github.com/hewel/jmsr/internal/jellyfin"
	"github.com/hewel/jmsr/internal/logging"
	"github.com/hewel/jmsr/internal/models"
)

// play runs the Play command algorithm for a single item id, chosen as
// the first of the request's ItemIds, with an optional start position
// and any stream indices the server specified in the Play command.
func (m *Manager) play(ctx context.Context, itemID string, startTicks int64, serverAudioIndex, serverSubtitleIndex *int) {
	item, err := m.rest.GetItem(ctx, itemID)
	if err != nil {
		logging.Error().Err(err).Str("item_id", itemID).Msg("session: failed to fetch media item")
		m.notify(models.NotificationError, "Could not load media item")
		return
	}

	info, err := m.rest.GetPlaybackInfo(ctx, itemID, serverAudioIndex, serverSubtitleIndex)
	if err != nil {
		logging.Error().Err(err).Str("item_id", itemID).Msg("session: failed to fetch playback info")
		m.notify(models.NotificationError, "Could not load playback info")
		return
	}
	if len(info.MediaSources) == 0 {
		logging.Error().Str("item_id", itemID).Msg("session: server returned no media sources")
		m.notify(models.NotificationError, "Server returned no playable media sources")
		return
	}
	source := info.MediaSources[0]

	resolvedAudio, resolvedSubtitle := -1, -1
	if serverAudioIndex != nil {
		resolvedAudio = *serverAudioIndex
	}
	if serverSubtitleIndex != nil {
		resolvedSubtitle = *serverSubtitleIndex
	}

	if item.SeriesID != "" && m.prefs != nil {
		pref, prefErr := m.prefs.LoadTrackPreference(item.SeriesID)
		if prefErr != nil {
			logging.Warn().Err(prefErr).Msg("session: failed to load track preference")
		} else {
			if resolvedAudio == -1 && pref.AudioLanguage != "" {
				resolvedAudio = FindStreamByPreference(source.MediaStreams, models.StreamAudio, pref.AudioLanguage, pref.AudioTitle)
			}
			if resolvedSubtitle == -1 {
				if !pref.IsSubtitleEnabled && pref.SubtitleLanguage != "" {
					resolvedSubtitle = DisableTrack
				} else if pref.SubtitleLanguage != "" {
					resolvedSubtitle = FindStreamByPreference(source.MediaStreams, models.StreamSubtitle, pref.SubtitleLanguage, pref.SubtitleTitle)
				}
			}
		}
	}

	streamURL := m.rest.Unwrap().StreamURL(itemID, source.ID, source.Container)

	m.mu.Lock()
	m.playback = &models.PlaybackSession{
		ItemID:              itemID,
		MediaSourceID:       source.ID,
		PlaySessionID:       info.PlaySessionID,
		PositionTicks:       startTicks,
		IsPaused:            false,
		Volume:              100,
		AudioStreamIndex:    intPtrIfSet(resolvedAudio),
		SubtitleStreamIndex: intPtrIfSet(resolvedSubtitle),
	}
	m.currentItem = item
	m.currentSeriesID = item.SeriesID
	m.currentStreams = source.MediaStreams
	m.mu.Unlock()

	playMethod := source.ChoosePlayMethod()
	if err := m.rest.ReportPlaying(ctx, jellyfin.PlayingReport{
		ItemID:              itemID,
		MediaSourceID:       source.ID,
		PlaySessionID:       info.PlaySessionID,
		PositionTicks:       startTicks,
		VolumeLevel:         100,
		PlayMethod:          playMethod,
		AudioStreamIndex:    intPtrIfSet(resolvedAudio),
		SubtitleStreamIndex: intPtrIfSet(resolvedSubtitle),
	}); err != nil {
		logging.Warn().Err(err).Msg("session: failed to report playing")
	}

	playerAudio := JellyfinToPlayerTrackIndex(source.MediaStreams, models.StreamAudio, resolvedAudio)
	playerSubtitle := JellyfinToPlayerTrackIndex(source.MediaStreams, models.StreamSubtitle, resolvedSubtitle)

	m.enqueue(MpvAction{
		Kind:         ActionPlay,
		URL:          streamURL,
		StartSeconds: models.TicksToSeconds(startTicks),
		Title:        item.DisplayTitle(),
		AudioID:      playerAudio,
		SubtitleID:   playerSubtitle,
	})
}

func intPtrIfSet(v int) *int {
	if v == -1 {
		return nil
	}
	return &v
}

// advanceTrack implements NextTrack/PreviousTrack: report Stopped,
// look up the adjacent episode, and recurse into play if one exists.
func (m *Manager) advanceTrack(ctx context.Context, forward bool) {
	session := m.currentPlayback()
	if session == nil {
		return
	}

	if err := m.rest.ReportStopped(ctx, jellyfin.StoppedReport{
		ItemID:        session.ItemID,
		MediaSourceID: session.MediaSourceID,
		PlaySessionID: session.PlaySessionID,
		PositionTicks: session.PositionTicks,
	}); err != nil {
		logging.Warn().Err(err).Msg("session: failed to report stopped before advancing track")
	}

	m.mu.Lock()
	item := m.currentItem
	m.mu.Unlock()
	if item == nil || item.SeriesID == "" {
		m.clearPlaybackContext()
		return
	}

	var next *models.MediaItem
	var err error
	if forward {
		next, err = m.rest.NextEpisode(ctx, item.SeriesID, item.ID)
	} else {
		next, err = m.rest.PreviousEpisode(ctx, item.SeriesID, item.ID)
	}
	if err != nil {
		logging.Warn().Err(err).Msg("session: failed to look up adjacent episode")
		m.clearPlaybackContext()
		return
	}
	if next == nil {
		m.clearPlaybackContext()
		return
	}

	m.play(ctx, next.ID, 0, nil, nil)
}
