// Jellyfin MPV Session Runtime
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"testing"

	"github.com/hewel/jmsr/internal/models"
)

func testStreams() []models.MediaStream {
	return []models.MediaStream{
		{Index: 0, Type: models.StreamVideo},
		{Index: 1, Type: models.StreamAudio, Language: "eng", DisplayTitle: "English"},
		{Index: 2, Type: models.StreamAudio, Language: "jpn", DisplayTitle: "Japanese"},
		{Index: 3, Type: models.StreamSubtitle, Language: "eng", DisplayTitle: "English"},
		{Index: 4, Type: models.StreamSubtitle, Language: "spa", DisplayTitle: "Spanish"},
	}
}

func TestJellyfinToPlayerTrackIndex(t *testing.T) {
	streams := testStreams()

	cases := []struct {
		name string
		kind models.StreamType
		j    int
		want int
	}{
		{"first audio", models.StreamAudio, 1, 1},
		{"second audio", models.StreamAudio, 2, 2},
		{"first subtitle", models.StreamSubtitle, 3, 1},
		{"second subtitle", models.StreamSubtitle, 4, 2},
		{"disable sentinel", models.StreamAudio, DisableTrack, DisableTrack},
		{"not found falls back to 1", models.StreamAudio, 99, fallbackTrackIndex},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := JellyfinToPlayerTrackIndex(streams, tc.kind, tc.j)
			if got != tc.want {
				t.Errorf("JellyfinToPlayerTrackIndex(%v, %d) = %d, want %d", tc.kind, tc.j, got, tc.want)
			}
		})
	}
}

// TestJellyfinToPlayerTrackIndexOrderInvariant exercises spec invariant
// 3 directly: the player index equals the count of same-kind streams at
// or before the target, for arbitrary stream layouts.
func TestJellyfinToPlayerTrackIndexOrderInvariant(t *testing.T) {
	streams := []models.MediaStream{
		{Index: 0, Type: models.StreamVideo},
		{Index: 1, Type: models.StreamAudio},
		{Index: 2, Type: models.StreamSubtitle},
		{Index: 3, Type: models.StreamAudio},
		{Index: 4, Type: models.StreamSubtitle},
		{Index: 5, Type: models.StreamAudio},
	}

	for _, s := range streams {
		if s.Type == models.StreamVideo {
			continue
		}
		want := 0
		for _, other := range streams {
			if other.Type == s.Type && other.Index <= s.Index {
				want++
			}
		}
		got := JellyfinToPlayerTrackIndex(streams, s.Type, s.Index)
		if got != want {
			t.Errorf("index %d kind %v: got %d, want %d", s.Index, s.Type, got, want)
		}
	}
}

func TestFindStreamByPreference(t *testing.T) {
	streams := testStreams()

	if got := FindStreamByPreference(streams, models.StreamAudio, "eng", "English"); got != 1 {
		t.Errorf("exact match: got %d, want 1", got)
	}
	if got := FindStreamByPreference(streams, models.StreamAudio, "eng", "Nonexistent Title"); got != 1 {
		t.Errorf("language fallback: got %d, want 1", got)
	}
	if got := FindStreamByPreference(streams, models.StreamSubtitle, "fre", ""); got != -1 {
		t.Errorf("no match: got %d, want -1", got)
	}
}
