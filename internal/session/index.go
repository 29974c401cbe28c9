// Jellyfin MPV Session Runtime
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session implements the Session Manager (C4): the state
// machine that mediates between the Server Link's inbound commands and
// the Player's mpv actions, owns the single in-memory Playback Session,
// and drives track-index translation, auto-advance, and reconnect
// recovery.
package session

import "github.com/hewel/jmsr/internal/models"

// DisableTrack is the sentinel player-space index meaning "no track
// selected", passed through to mpv as the string "no".
const DisableTrack = -1

// fallbackTrackIndex is used when a requested Jellyfin stream index
// cannot be found among the source's streams.
const fallbackTrackIndex = 1

// JellyfinToPlayerTrackIndex converts an absolute Jellyfin stream index
// into mpv's 1-based, type-scoped track numbering. It counts streams of
// the same kind encountered at or before jIndex, in source order; the
// count is the player index. jIndex == DisableTrack always yields
// DisableTrack. A jIndex not found among the streams yields
// fallbackTrackIndex rather than 0, since mpv's track ids start at 1.
func JellyfinToPlayerTrackIndex(streams []models.MediaStream, kind models.StreamType, jIndex int) int {
	if jIndex == DisableTrack {
		return DisableTrack
	}

	count := 0
	for _, s := range streams {
		if s.Type != kind {
			continue
		}
		count++
		if s.Index == jIndex {
			return count
		}
	}

	return fallbackTrackIndex
}

// FindStreamByPreference locates the stream of the given kind whose
// language and, optionally, display title match a saved preference.
// It prefers a match on both language and title, falling back to a
// language-only match. Returns -1 if no stream matches.
func FindStreamByPreference(streams []models.MediaStream, kind models.StreamType, language, title string) int {
	languageOnly := -1

	for _, s := range streams {
		if s.Type != kind || s.Language == "" || s.Language != language {
			continue
		}
		if title != "" && s.DisplayTitle == title {
			return s.Index
		}
		if languageOnly == -1 {
			languageOnly = s.Index
		}
	}

	return languageOnly
}
