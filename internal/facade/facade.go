// Jellyfin MPV Session Runtime
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package facade implements the Core API surface exposed to the UI: a
// thin, validating command layer over the player, server link, and
// config stores. Names mirror intent rather than any particular
// transport, since the UI may be a native shell, a CLI, or an embedded
// webview.
package facade

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hewel/jmsr/internal/ipc"
	"github.com/hewel/jmsr/internal/jellyfin"
	"github.com/hewel/jmsr/internal/models"
	"github.com/hewel/jmsr/internal/player"
	"github.com/hewel/jmsr/internal/session"
	"github.com/hewel/jmsr/internal/store"
)

// ErrorCode tags a facade error for the UI boundary.
type ErrorCode string

const (
	CodeNotConnected ErrorCode = "NotConnected"
	CodeNotFound     ErrorCode = "NotFound"
	CodeInvalidInput ErrorCode = "InvalidInput"
	CodeNetwork      ErrorCode = "Network"
	CodeAuthFailed   ErrorCode = "AuthFailed"
	CodeInternal     ErrorCode = "Internal"
)

// Error is the typed error surfaced across the facade boundary.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func invalidInput(message string) *Error {
	return &Error{Code: CodeInvalidInput, Message: message}
}

// Facade wires the player manager, session manager, Server Link, and
// preferences store into the UI-facing operation set.
type Facade struct {
	playerMgr     *player.Manager
	sessionMgr    *session.Manager
	restClient    *jellyfin.Client
	wsClient      *jellyfin.WebSocketClient
	prefs         *store.PreferencesStore
	inputConfPath string
}

// New constructs a facade over the runtime's already-wired components.
// inputConfPath is the mpv keybinding file SetConfig rewrites whenever
// the user changes keybinds; it is optional, since a UI embedding the
// facade purely for the Player/Server surfaces may not use it.
func New(playerMgr *player.Manager, sessionMgr *session.Manager, restClient *jellyfin.Client, wsClient *jellyfin.WebSocketClient, prefs *store.PreferencesStore, inputConfPath string) *Facade {
	return &Facade{
		playerMgr:     playerMgr,
		sessionMgr:    sessionMgr,
		restClient:    restClient,
		wsClient:      wsClient,
		prefs:         prefs,
		inputConfPath: inputConfPath,
	}
}

// --- Player surface ---

// StartPlayer ensures mpv is spawned and connected.
func (f *Facade) StartPlayer(ctx context.Context) error {
	if _, err := f.playerMgr.EnsureRunning(ctx); err != nil {
		return &Error{Code: CodeInternal, Message: "failed to start player", Cause: err}
	}
	return nil
}

// StopPlayer quits mpv.
func (f *Facade) StopPlayer() error {
	if err := f.playerMgr.Stop(); err != nil {
		return &Error{Code: CodeInternal, Message: "failed to stop player", Cause: err}
	}
	return nil
}

// LoadFile validates and loads a URL for direct playback, bypassing
// the session's server-driven Play algorithm.
func (f *Facade) LoadFile(ctx context.Context, rawURL string) error {
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return invalidInput("url must start with http:// or https://")
	}
	client, err := f.requirePlayer(ctx)
	if err != nil {
		return err
	}
	if err := client.LoadFile(ctx, rawURL); err != nil {
		return &Error{Code: CodeInternal, Message: "loadfile failed", Cause: err}
	}
	return nil
}

// Seek validates and performs an absolute seek.
func (f *Facade) Seek(ctx context.Context, seconds float64) error {
	if seconds < 0 {
		return invalidInput("seek position must not be negative")
	}
	client, err := f.requirePlayer(ctx)
	if err != nil {
		return err
	}
	if err := client.Seek(ctx, seconds); err != nil {
		return &Error{Code: CodeInternal, Message: "seek failed", Cause: err}
	}
	return nil
}

// SetPause pauses or resumes playback.
func (f *Facade) SetPause(ctx context.Context, paused bool) error {
	client, err := f.requirePlayer(ctx)
	if err != nil {
		return err
	}
	if err := client.SetPause(ctx, paused); err != nil {
		return &Error{Code: CodeInternal, Message: "set_pause failed", Cause: err}
	}
	return nil
}

// SetVolume validates and sets playback volume in [0,100].
func (f *Facade) SetVolume(ctx context.Context, volume int) error {
	if volume < 0 || volume > 100 {
		return invalidInput("volume must be in [0,100]")
	}
	client, err := f.requirePlayer(ctx)
	if err != nil {
		return err
	}
	if err := client.SetVolume(ctx, volume); err != nil {
		return &Error{Code: CodeInternal, Message: "set_volume failed", Cause: err}
	}
	return nil
}

// SetAudioTrack switches the active audio track.
func (f *Facade) SetAudioTrack(ctx context.Context, id int) error {
	client, err := f.requirePlayer(ctx)
	if err != nil {
		return err
	}
	if err := client.SetAudioTrack(ctx, id); err != nil {
		return &Error{Code: CodeInternal, Message: "set_audio_track failed", Cause: err}
	}
	return nil
}

// SetSubtitleTrack switches the active subtitle track.
func (f *Facade) SetSubtitleTrack(ctx context.Context, id int) error {
	client, err := f.requirePlayer(ctx)
	if err != nil {
		return err
	}
	if err := client.SetSubtitleTrack(ctx, id); err != nil {
		return &Error{Code: CodeInternal, Message: "set_subtitle_track failed", Cause: err}
	}
	return nil
}

// GetProperty fetches a raw mpv property value.
func (f *Facade) GetProperty(ctx context.Context, name string) (any, error) {
	client, err := f.requirePlayer(ctx)
	if err != nil {
		return nil, err
	}
	value, err := client.GetProperty(ctx, name)
	if err != nil {
		return nil, &Error{Code: CodeInternal, Message: "get_property failed", Cause: err}
	}
	return value, nil
}

// IsPlayerConnected reports whether mpv is running and connected.
func (f *Facade) IsPlayerConnected() bool {
	return f.playerMgr.IsRunning()
}

// GetPlayerState reports the UI-facing snapshot of player/session state.
func (f *Facade) GetPlayerState() models.PlayerState {
	state := models.PlayerState{Connected: f.playerMgr.IsRunning()}
	if session := f.sessionMgr.GetPlaybackSession(); session != nil {
		state.ItemID = session.ItemID
		state.IsPaused = session.IsPaused
		state.IsMuted = session.IsMuted
		state.Volume = session.Volume
		state.Position = models.TicksToSeconds(session.PositionTicks)
	}
	return state
}

func (f *Facade) requirePlayer(ctx context.Context) (*player.Client, error) {
	client := f.playerMgr.Client()
	if client != nil {
		return client, nil
	}
	return nil, &Error{Code: CodeNotConnected, Message: "player is not running"}
}

// --- Server surface ---

// Credentials carries the fields needed to authenticate against a
// Jellyfin server.
type Credentials struct {
	ServerURL string
	Username  string
	Password  string
}

// Connect authenticates against the server and reports capabilities
// both over REST and, once established, over the WebSocket.
func (f *Facade) Connect(ctx context.Context, creds Credentials) (*models.SavedSession, error) {
	if err := f.restClient.SetServerURL(creds.ServerURL); err != nil {
		return nil, invalidInput("server_url must start with http:// or https://")
	}

	auth, err := f.restClient.Authenticate(ctx, creds.Username, creds.Password)
	if err != nil {
		if errors.Is(err, jellyfin.ErrAuthFailed) {
			return nil, &Error{Code: CodeAuthFailed, Message: "authentication failed", Cause: err}
		}
		return nil, &Error{Code: CodeNetwork, Message: "connection failed", Cause: err}
	}

	if err := f.restClient.ReportCapabilities(ctx, jellyfin.DefaultCapabilities()); err != nil {
		return nil, &Error{Code: CodeNetwork, Message: "failed to report capabilities", Cause: err}
	}

	saved := models.SavedSession{
		ServerURL:   f.restClient.ServerURL(),
		AccessToken: auth.AccessToken,
		UserID:      auth.UserID,
		UserName:    auth.UserName,
		ServerName:  auth.ServerName,
		DeviceID:    f.restClient.DeviceID(),
	}
	if err := f.prefs.SaveSession(saved); err != nil {
		return nil, &Error{Code: CodeInternal, Message: "failed to persist session", Cause: err}
	}

	if err := f.wsClient.Connect(ctx); err != nil {
		return &saved, &Error{Code: CodeNetwork, Message: "authenticated but websocket connect failed", Cause: err}
	}

	return &saved, nil
}

// Disconnect tears down the WebSocket link.
func (f *Facade) Disconnect() error {
	if err := f.wsClient.Close(); err != nil {
		return &Error{Code: CodeInternal, Message: "disconnect failed", Cause: err}
	}
	return nil
}

// GetConnectionState reports the observable server link state.
func (f *Facade) GetConnectionState() models.ConnectionState {
	return models.ConnectionState{
		Connected:  f.restClient.AccessToken() != "",
		ServerURL:  f.restClient.ServerURL(),
		ServerName: f.restClient.ServerName(),
	}
}

// IsServerConnected reports whether the REST client holds a session token.
func (f *Facade) IsServerConnected() bool {
	return f.restClient.AccessToken() != ""
}

// GetSavedSession returns the persisted session, if any.
func (f *Facade) GetSavedSession() (*models.SavedSession, error) {
	saved, err := f.prefs.LoadSavedSession()
	if err != nil {
		return nil, &Error{Code: CodeInternal, Message: "failed to load saved session", Cause: err}
	}
	return saved, nil
}

// RestoreSession re-authenticates using a previously saved session and,
// on success, re-establishes the WebSocket link, mirroring Connect.
func (f *Facade) RestoreSession(ctx context.Context, saved models.SavedSession) error {
	if err := f.restClient.RestoreSession(ctx, saved); err != nil {
		if errors.Is(err, jellyfin.ErrAuthFailed) {
			return &Error{Code: CodeAuthFailed, Message: "saved session is no longer valid", Cause: err}
		}
		return &Error{Code: CodeNetwork, Message: "failed to restore session", Cause: err}
	}
	if err := f.wsClient.Connect(ctx); err != nil {
		return &Error{Code: CodeNetwork, Message: "restored session but websocket connect failed", Cause: err}
	}
	return nil
}

// ClearSession wipes both the in-memory and persisted session.
func (f *Facade) ClearSession() error {
	f.restClient.ClearSession()
	if err := f.prefs.ClearSession(); err != nil {
		return &Error{Code: CodeInternal, Message: "failed to clear persisted session", Cause: err}
	}
	return nil
}

// --- Config surface ---

// GetConfig returns the persisted app configuration.
func (f *Facade) GetConfig() (models.AppConfig, error) {
	cfg, err := f.prefs.LoadAppConfig()
	if err != nil {
		return models.AppConfig{}, &Error{Code: CodeInternal, Message: "failed to load config", Cause: err}
	}
	return cfg, nil
}

// SetConfig validates and persists a new app configuration.
func (f *Facade) SetConfig(cfg models.AppConfig) error {
	if strings.TrimSpace(cfg.DeviceName) == "" {
		return invalidInput("device_name must not be empty")
	}
	if cfg.ProgressInterval < 1 || cfg.ProgressInterval > 60 {
		return invalidInput("progress_interval must be in [1,60]")
	}
	if strings.TrimSpace(cfg.KeybindNext) == "" || strings.TrimSpace(cfg.KeybindPrev) == "" {
		return invalidInput("keybinds must not be empty")
	}
	if err := f.prefs.SaveAppConfig(cfg); err != nil {
		return &Error{Code: CodeInternal, Message: "failed to persist config", Cause: err}
	}
	if f.inputConfPath != "" {
		if err := ipc.EnsureInputConf(f.inputConfPath, cfg.KeybindNext, cfg.KeybindPrev); err != nil {
			return &Error{Code: CodeInternal, Message: "failed to update keybinding file", Cause: err}
		}
	}
	return nil
}

// DefaultConfig returns the configuration used before any user edits.
func (f *Facade) DefaultConfig() models.AppConfig {
	return models.DefaultAppConfig()
}

// DetectMpv reports the mpv binary path that would be used, without
// spawning it.
func (f *Facade) DetectMpv(configuredPath string) (string, error) {
	path, err := ipc.FindMpv(configuredPath)
	if err != nil {
		return "", &Error{Code: CodeNotFound, Message: "mpv executable not found", Cause: err}
	}
	return path, nil
}
