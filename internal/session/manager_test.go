// Jellyfin MPV Session Runtime
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/hewel/jmsr/internal/jellyfin"
	"github.com/hewel/jmsr/internal/models"
	"github.com/hewel/jmsr/internal/player"
	"github.com/hewel/jmsr/internal/store"
)

// testServer builds a fake Jellyfin REST server backing the endpoints
// the session manager's command handlers exercise, keyed by item id.
type testServer struct {
	mux   *http.ServeMux
	items map[string]models.MediaItem
	next  map[string]models.MediaItem // currentItemID -> next episode

	stopped atomic.Int32 // Stopped reports received
}

func newTestServer() *testServer {
	ts := &testServer{
		mux:   http.NewServeMux(),
		items: map[string]models.MediaItem{},
		next:  map[string]models.MediaItem{},
	}
	ts.mux.HandleFunc("/System/Info/Public", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ServerName":"Test Server"}`))
	})
	ts.mux.HandleFunc("/Users/u1/Items/", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Path[len("/Users/u1/Items/"):]
		item, ok := ts.items[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, item)
	})
	ts.mux.HandleFunc("/Items/", func(w http.ResponseWriter, r *http.Request) {
		// /Items/{id}/PlaybackInfo
		id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/Items/"), "/PlaybackInfo")
		writeJSON(w, jellyfin.PlaybackInfoResult{
			PlaySessionID: "play-session-1",
			MediaSources: []models.MediaSource{{
				ID:        "ms-" + id,
				Container: "mp4",
				MediaStreams: []models.MediaStream{
					{Index: 0, Type: models.StreamVideo},
					{Index: 1, Type: models.StreamAudio, Language: "eng", DisplayTitle: "English", IsDefault: true},
					{Index: 2, Type: models.StreamAudio, Language: "jpn", DisplayTitle: "Japanese"},
					{Index: 3, Type: models.StreamSubtitle, Language: "eng", DisplayTitle: "English"},
				},
			}},
		})
	})
	ts.mux.HandleFunc("/Sessions/Playing", func(w http.ResponseWriter, r *http.Request) {})
	ts.mux.HandleFunc("/Sessions/Playing/Progress", func(w http.ResponseWriter, r *http.Request) {})
	ts.mux.HandleFunc("/Sessions/Playing/Stopped", func(w http.ResponseWriter, r *http.Request) { ts.stopped.Add(1) })
	ts.mux.HandleFunc("/Shows/", func(w http.ResponseWriter, r *http.Request) {
		// path carries the currentItemID via StartItemId for NextEpisode,
		// and we just always return the configured next item.
		startItemID := r.URL.Query().Get("StartItemId")
		if n, ok := ts.next[startItemID]; ok {
			writeJSON(w, struct {
				Items []models.MediaItem `json:"Items"`
			}{Items: []models.MediaItem{{ID: startItemID}, n}})
			return
		}
		writeJSON(w, struct {
			Items []models.MediaItem `json:"Items"`
		}{})
	})
	return ts
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestManager(t *testing.T, ts *testServer) (*Manager, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(ts.mux)
	t.Cleanup(srv.Close)

	client, err := jellyfin.NewClient(srv.URL, "jmsr-TEST", "Test")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if err := client.RestoreSession(context.Background(), models.SavedSession{
		UserID: "u1", UserName: "tester", AccessToken: "tok",
	}); err != nil {
		t.Fatalf("RestoreSession: %v", err)
	}
	rest := jellyfin.NewCircuitBreakerClient(client)
	ws := jellyfin.NewWebSocketClient(client)

	db, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	prefs := store.NewPreferencesStore(db)

	playerMgr := player.NewManager(player.ManagerConfig{})

	m := New(DefaultConfig(), playerMgr, rest, ws, prefs)
	return m, srv
}

func drainAction(t *testing.T, m *Manager) MpvAction {
	t.Helper()
	select {
	case a := <-m.actions:
		return a
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for enqueued action")
		return MpvAction{}
	}
}

func TestPlayPopulatesSessionAndEnqueuesPlay(t *testing.T) {
	ts := newTestServer()
	ts.items["it1"] = models.MediaItem{ID: "it1", Name: "Pilot", ItemType: "Episode", SeriesID: "s1"}

	m, _ := newTestManager(t, ts)
	m.play(context.Background(), "it1", 0, nil, nil)

	session := m.currentPlayback()
	if session == nil || session.ItemID != "it1" {
		t.Fatalf("currentPlayback() = %+v, want ItemID it1", session)
	}
	if session.MediaSourceID != "ms-it1" {
		t.Errorf("MediaSourceID = %q, want ms-it1", session.MediaSourceID)
	}

	action := drainAction(t, m)
	if action.Kind != ActionPlay {
		t.Fatalf("action.Kind = %v, want ActionPlay", action.Kind)
	}
	if action.Title != "Pilot" {
		t.Errorf("action.Title = %q, want Pilot", action.Title)
	}
	// No server-supplied index and no saved preference: audio stays disabled.
	if action.AudioID != DisableTrack {
		t.Errorf("action.AudioID = %d, want %d (disabled)", action.AudioID, DisableTrack)
	}
}

// TestPlayHonorsServerSuppliedStreamIndices grounds spec.md's Play
// algorithm step 2/3: a server-specified AudioStreamIndex must reach
// GetPlaybackInfo and be used as-is, short-circuiting preference
// resolution entirely.
func TestPlayHonorsServerSuppliedStreamIndices(t *testing.T) {
	ts := newTestServer()
	ts.items["it1"] = models.MediaItem{ID: "it1", Name: "Pilot", ItemType: "Episode", SeriesID: "s1"}

	m, _ := newTestManager(t, ts)
	if err := m.prefs.SaveTrackPreference("s1", models.TrackPreference{
		AudioLanguage: "eng", AudioTitle: "English", IsSubtitleEnabled: true,
	}); err != nil {
		t.Fatalf("SaveTrackPreference: %v", err)
	}

	serverAudio := 2 // jpn, index 2 among the fake server's media streams
	m.play(context.Background(), "it1", 0, &serverAudio, nil)

	// Audio streams at jellyfin indices 1 (eng) and 2 (jpn) are the 1st
	// and 2nd audio-type streams walking in order, so index 2 translates
	// to player index 2 — the saved eng preference must NOT override it.
	action := drainAction(t, m)
	if action.AudioID != 2 {
		t.Errorf("action.AudioID = %d, want 2 (server-supplied index honored over preference)", action.AudioID)
	}
}

// TestPlayResolvesAudioFromPreferenceWhenServerOmitsIndex grounds
// spec.md's Play algorithm step 3: when the server does not specify an
// index, a saved series preference resolves it.
func TestPlayResolvesAudioFromPreferenceWhenServerOmitsIndex(t *testing.T) {
	ts := newTestServer()
	ts.items["it1"] = models.MediaItem{ID: "it1", Name: "Pilot", ItemType: "Episode", SeriesID: "s1"}

	m, _ := newTestManager(t, ts)
	if err := m.prefs.SaveTrackPreference("s1", models.TrackPreference{
		AudioLanguage: "jpn", IsSubtitleEnabled: true,
	}); err != nil {
		t.Fatalf("SaveTrackPreference: %v", err)
	}

	m.play(context.Background(), "it1", 0, nil, nil)

	action := drainAction(t, m)
	if action.AudioID != 2 {
		t.Errorf("action.AudioID = %d, want 2 (jpn preference resolved)", action.AudioID)
	}
}

func TestHandlePlaystatePauseUnpause(t *testing.T) {
	ts := newTestServer()
	m, _ := newTestManager(t, ts)
	m.mu.Lock()
	m.playback = &models.PlaybackSession{ItemID: "it1"}
	m.mu.Unlock()

	m.handlePlaystate(context.Background(), jellyfin.Command{Kind: jellyfin.CommandPlaystate, PlaystateCommand: "Pause"})
	if !m.currentPlayback().IsPaused {
		t.Error("expected IsPaused=true after Pause")
	}
	if a := drainAction(t, m); a.Kind != ActionPause {
		t.Errorf("action.Kind = %v, want ActionPause", a.Kind)
	}

	m.handlePlaystate(context.Background(), jellyfin.Command{Kind: jellyfin.CommandPlaystate, PlaystateCommand: "Unpause"})
	if m.currentPlayback().IsPaused {
		t.Error("expected IsPaused=false after Unpause")
	}
	if a := drainAction(t, m); a.Kind != ActionResume {
		t.Errorf("action.Kind = %v, want ActionResume", a.Kind)
	}
}

func TestHandlePlaystateSeekUpdatesPosition(t *testing.T) {
	ts := newTestServer()
	m, _ := newTestManager(t, ts)
	m.mu.Lock()
	m.playback = &models.PlaybackSession{ItemID: "it1"}
	m.mu.Unlock()

	m.handlePlaystate(context.Background(), jellyfin.Command{
		Kind: jellyfin.CommandPlaystate, PlaystateCommand: "Seek", SeekPositionTicks: 50_000_000,
	})

	if m.currentPlayback().PositionTicks != 50_000_000 {
		t.Errorf("PositionTicks = %d, want 50000000", m.currentPlayback().PositionTicks)
	}
	if a := drainAction(t, m); a.Kind != ActionSeek || a.SeekSeconds != 5 {
		t.Errorf("action = %+v, want ActionSeek at 5s", a)
	}
}

func TestStopPlaybackClearsContextAndReportsStopped(t *testing.T) {
	ts := newTestServer()
	m, _ := newTestManager(t, ts)
	m.mu.Lock()
	m.playback = &models.PlaybackSession{ItemID: "it1"}
	m.currentItem = &models.MediaItem{ID: "it1"}
	m.mu.Unlock()

	m.handlePlaystate(context.Background(), jellyfin.Command{Kind: jellyfin.CommandPlaystate, PlaystateCommand: "Stop"})

	if m.currentPlayback() != nil {
		t.Error("expected playback session cleared after Stop")
	}
	if a := drainAction(t, m); a.Kind != ActionStop {
		t.Errorf("action.Kind = %v, want ActionStop", a.Kind)
	}
	if got := ts.stopped.Load(); got != 1 {
		t.Errorf("Stopped reports = %d, want 1", got)
	}
}

func TestHandleGeneralCommandSetVolume(t *testing.T) {
	ts := newTestServer()
	m, _ := newTestManager(t, ts)
	m.mu.Lock()
	m.playback = &models.PlaybackSession{ItemID: "it1", Volume: 100}
	m.mu.Unlock()

	m.handleGeneralCommand(context.Background(), jellyfin.Command{
		Kind: jellyfin.CommandGeneralCommand, GeneralName: "SetVolume",
		Arguments: map[string]string{"Volume": "42"},
	})

	if m.currentPlayback().Volume != 42 {
		t.Errorf("Volume = %d, want 42", m.currentPlayback().Volume)
	}
	if a := drainAction(t, m); a.Kind != ActionSetVolume || a.Volume != 42 {
		t.Errorf("action = %+v, want ActionSetVolume(42)", a)
	}
}

func TestSetStreamIndexPersistsTrackPreference(t *testing.T) {
	// Invariant 6: a track selection persists to the store under the
	// current series and must be readable afterward.
	ts := newTestServer()
	m, _ := newTestManager(t, ts)

	streams := []models.MediaStream{
		{Index: 1, Type: models.StreamAudio, Language: "jpn", DisplayTitle: "Japanese"},
		{Index: 2, Type: models.StreamAudio, Language: "eng", DisplayTitle: "English"},
	}
	m.mu.Lock()
	m.playback = &models.PlaybackSession{ItemID: "it1"}
	m.currentSeriesID = "s1"
	m.currentStreams = streams
	m.mu.Unlock()

	m.setStreamIndex(context.Background(), models.StreamAudio, "2")

	pref, err := m.prefs.LoadTrackPreference("s1")
	if err != nil {
		t.Fatalf("LoadTrackPreference: %v", err)
	}
	if pref.AudioLanguage != "eng" || pref.AudioTitle != "English" {
		t.Errorf("persisted preference = %+v, want eng/English", pref)
	}

	a := drainAction(t, m)
	if a.Kind != ActionSetAudioTrack || a.TrackID != 2 {
		t.Errorf("action = %+v, want ActionSetAudioTrack(2)", a)
	}
}

func TestAdvanceTrackAutoPlaysNextEpisode(t *testing.T) {
	// S4: end-of-file on an episode with a series advances to the next
	// episode automatically.
	ts := newTestServer()
	ts.items["it1"] = models.MediaItem{ID: "it1", Name: "Episode 1", ItemType: "Episode", SeriesID: "s1"}
	ts.items["it2"] = models.MediaItem{ID: "it2", Name: "Episode 2", ItemType: "Episode", SeriesID: "s1"}
	ts.next["it1"] = models.MediaItem{ID: "it2", Name: "Episode 2", SeriesID: "s1"}

	m, _ := newTestManager(t, ts)
	m.mu.Lock()
	m.playback = &models.PlaybackSession{ItemID: "it1"}
	m.currentItem = &models.MediaItem{ID: "it1", SeriesID: "s1"}
	m.mu.Unlock()

	m.advanceTrack(context.Background(), true)

	session := m.currentPlayback()
	if session == nil || session.ItemID != "it2" {
		t.Fatalf("currentPlayback() = %+v, want ItemID it2", session)
	}

	a := drainAction(t, m)
	if a.Kind != ActionPlay || a.Title != "Episode 2" {
		t.Errorf("action = %+v, want ActionPlay for Episode 2", a)
	}
}

func TestHandleTransportLostClearsSessionAndNotifies(t *testing.T) {
	// Invariant 8: WS disconnect while a session is active reports
	// Stopped and clears context before the UI is told the link is gone.
	ts := newTestServer()
	m, _ := newTestManager(t, ts)
	m.mu.Lock()
	m.playback = &models.PlaybackSession{ItemID: "it1"}
	m.mu.Unlock()

	m.handleTransportLost()

	if m.currentPlayback() != nil {
		t.Error("expected playback session cleared on transport loss")
	}
	if got := ts.stopped.Load(); got != 1 {
		t.Errorf("Stopped reports = %d, want 1", got)
	}

	select {
	case n := <-m.notifications:
		if n.Level != models.NotificationWarning {
			t.Errorf("notification level = %v, want Warning", n.Level)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected a notification on transport loss")
	}
}
