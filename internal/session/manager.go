// Jellyfin MPV Session Runtime
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"sync"
	"time"

	"github.com/hewel/jmsr/internal/jellyfin"
	"github.com/hewel/jmsr/internal/logging"
	"github.com/hewel/jmsr/internal/models"
	"github.com/hewel/jmsr/internal/player"
	"github.com/hewel/jmsr/internal/store"
)

const (
	actionQueueDepth      = 64
	defaultProgressPeriod = 5 * time.Second
	propertyObserverPause = 1
	propertyObserverVol   = 2
	propertyObserverMute  = 3
	propertyObserverTime  = 4
)

// Config controls the manager's progress-reporting cadence.
type Config struct {
	ProgressInterval time.Duration
}

// DefaultConfig returns the configuration used before any user edits.
func DefaultConfig() Config {
	return Config{ProgressInterval: defaultProgressPeriod}
}

// Manager is the Session Manager (C4): it owns the single in-memory
// Playback Session, serializes player actions through a bounded
// channel, and mediates between inbound server commands and outbound
// mpv actions and progress reports.
type Manager struct {
	cfg Config

	playerMgr *player.Manager
	rest      *jellyfin.CircuitBreakerClient
	ws        *jellyfin.WebSocketClient
	prefs     *store.PreferencesStore

	actions       chan MpvAction
	notifications chan models.AppNotification

	mu                 sync.Mutex
	playback           *models.PlaybackSession
	currentItem        *models.MediaItem
	currentSeriesID    string
	currentStreams     []models.MediaStream
	lastProgressReport time.Time

	wg sync.WaitGroup
}

// New constructs a session manager over an already-configured player
// manager and Server Link. The playback session starts empty.
func New(cfg Config, playerMgr *player.Manager, rest *jellyfin.CircuitBreakerClient, ws *jellyfin.WebSocketClient, prefs *store.PreferencesStore) *Manager {
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = defaultProgressPeriod
	}
	return &Manager{
		cfg:           cfg,
		playerMgr:     playerMgr,
		rest:          rest,
		ws:            ws,
		prefs:         prefs,
		actions:       make(chan MpvAction, actionQueueDepth),
		notifications: make(chan models.AppNotification, 16),
	}
}

// Notifications exposes the UI-facing notification stream.
func (m *Manager) Notifications() <-chan models.AppNotification {
	return m.notifications
}

func (m *Manager) notify(level models.NotificationLevel, message string) {
	select {
	case m.notifications <- models.AppNotification{Level: level, Message: message}:
	default:
		logging.Warn().Str("message", message).Msg("session: notification channel full, dropping")
	}
}

// Start launches the manager's three consumer tasks: the player action
// consumer, the server command consumer, and the mpv event consumer.
// It implements the StartStopper lifecycle expected by the supervisor
// tree.
func (m *Manager) Start(ctx context.Context) error {
	m.wg.Add(3)
	go m.runActionConsumer(ctx)
	go m.runCommandConsumer(ctx)
	go m.runEventConsumer(ctx)
	return nil
}

// Stop implements the public stop() surface: best-effort report of any
// live session as Stopped, then disconnects the WS link. mpv itself is
// left running, since its lifetime is independent of the session's.
func (m *Manager) Stop() error {
	m.mu.Lock()
	session := m.playback
	m.playback = nil
	m.currentItem = nil
	m.currentSeriesID = ""
	m.currentStreams = nil
	m.mu.Unlock()

	if session != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = m.rest.ReportStopped(ctx, jellyfin.StoppedReport{
			ItemID:        session.ItemID,
			MediaSourceID: session.MediaSourceID,
			PlaySessionID: session.PlaySessionID,
			PositionTicks: session.PositionTicks,
		})
		cancel()
	}

	_ = m.ws.Close()
	close(m.actions)
	m.wg.Wait()
	return nil
}

// enqueue submits an action to the player consumer without blocking
// forever: a full queue indicates a stuck player consumer, which is
// better surfaced as a dropped action than a hung caller.
func (m *Manager) enqueue(action MpvAction) {
	select {
	case m.actions <- action:
	default:
		logging.Warn().Int("kind", int(action.Kind)).Msg("session: action queue full, dropping action")
	}
}

// currentPlayback returns a copy of the live playback session, or nil.
func (m *Manager) currentPlayback() *models.PlaybackSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.playback == nil {
		return nil
	}
	cp := *m.playback
	return &cp
}

// GetPlaybackSession exposes the current playback session to the UI facade.
func (m *Manager) GetPlaybackSession() *models.PlaybackSession {
	return m.currentPlayback()
}

// clearPlaybackContext drops the live session and the cached item/series
// context. Used by both explicit Stop and loss-of-transport recovery.
func (m *Manager) clearPlaybackContext() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playback = nil
	m.currentItem = nil
	m.currentSeriesID = ""
	m.currentStreams = nil
}
