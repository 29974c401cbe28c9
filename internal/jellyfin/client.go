// Jellyfin MPV Session Runtime
// SPDX-License-Identifier: AGPL-3.0-or-later

package jellyfin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/hewel/jmsr/internal/logging"
	"github.com/hewel/jmsr/internal/models"
)

const (
	deviceIDPrefix      = "jmsr-"
	defaultDeviceName   = "JMSR"
	clientName          = "Jellyfin MPV Session Runtime"
	clientVersion       = "1.0.0"
	maxStreamingBitrate = 140_000_000
	httpClientTimeout   = 30 * time.Second
)

// Error kinds surfaced by this package.
var (
	ErrAuthFailed      = errors.New("jellyfin authentication failed")
	ErrNotConnected    = errors.New("jellyfin client not connected")
	ErrInvalidURL      = errors.New("invalid jellyfin server url")
	ErrSessionNotFound = errors.New("jellyfin session not found in /Sessions")
)

// HTTPStatusError wraps a non-2xx REST response.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("jellyfin returned status %d: %s", e.StatusCode, e.Body)
}

// Client is the REST half of the Server Link: identity plus one HTTP
// client. It survives WebSocket reconnects; only the socket is
// recreated on each reconnect cycle.
type Client struct {
	httpClient *http.Client

	serverURL  string
	deviceID   string
	deviceName string

	userID      string
	userName    string
	accessToken string
	serverName  string
}

// GenerateDeviceID creates a new stable device identity, persisted
// alongside the saved session so the server recognizes this
// installation across restarts.
func GenerateDeviceID() string {
	return deviceIDPrefix + uuid.NewString()
}

// NewClient creates an unauthenticated REST client bound to a server
// and device identity. deviceID should be generated once per
// installation and persisted with the saved session.
func NewClient(serverURL, deviceID, deviceName string) (*Client, error) {
	parsed, err := url.Parse(serverURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, ErrInvalidURL
	}
	if deviceName == "" {
		deviceName = defaultDeviceName
	}

	return &Client{
		httpClient: &http.Client{Timeout: httpClientTimeout},
		serverURL:  strings.TrimSuffix(serverURL, "/"),
		deviceID:   deviceID,
		deviceName: deviceName,
	}, nil
}

// DeviceID returns the stable client identity used for command routing.
func (c *Client) DeviceID() string {
	return c.deviceID
}

// AccessToken returns the current session token, empty if unauthenticated.
func (c *Client) AccessToken() string {
	return c.accessToken
}

// ServerName returns the cached human-readable server name.
func (c *Client) ServerName() string {
	return c.serverName
}

// ServerURL returns the configured base URL.
func (c *Client) ServerURL() string {
	return c.serverURL
}

// SetServerURL retargets the client at a new server, clearing any
// existing session: a client can only ever be authenticated against
// the server it currently points at.
func (c *Client) SetServerURL(serverURL string) error {
	parsed, err := url.Parse(serverURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return ErrInvalidURL
	}
	c.clearState()
	c.serverURL = strings.TrimSuffix(serverURL, "/")
	return nil
}

func (c *Client) authHeader() string {
	header := fmt.Sprintf(`MediaBrowser Client="%s", Device="%s", DeviceId="%s", Version="%s"`,
		clientName, c.deviceName, c.deviceID, clientVersion)
	if c.accessToken != "" {
		header += fmt.Sprintf(`, Token="%s"`, c.accessToken)
	}
	return header
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.serverURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Emby-Authorization", c.authHeader())
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("jellyfin request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return &HTTPStatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode jellyfin response: %w", err)
	}
	return nil
}

// authenticateRequest/authenticateResponse mirror the AuthenticateByName wire shapes.
type authenticateRequest struct {
	Username string `json:"Username"`
	Pw       string `json:"Pw"`
}

type authenticateUser struct {
	ID   string `json:"Id"`
	Name string `json:"Name"`
}

type authenticateResponse struct {
	User        authenticateUser `json:"User"`
	AccessToken string           `json:"AccessToken"`
	ServerID    string           `json:"ServerId"`
}

// publicSystemInfo mirrors GET /System/Info/Public.
type publicSystemInfo struct {
	ServerName string `json:"ServerName"`
}

// AuthResult carries the outcome of a successful authentication.
type AuthResult struct {
	UserID      string
	UserName    string
	AccessToken string
	ServerName  string
}

// Authenticate logs in with username/password and populates the
// client's session state plus the cached server name.
func (c *Client) Authenticate(ctx context.Context, username, password string) (*AuthResult, error) {
	var authResp authenticateResponse
	err := c.do(ctx, http.MethodPost, "/Users/AuthenticateByName",
		authenticateRequest{Username: username, Pw: password}, &authResp)
	if err != nil {
		var statusErr *HTTPStatusError
		if errors.As(err, &statusErr) {
			return nil, fmt.Errorf("%w: %v", ErrAuthFailed, err)
		}
		return nil, err
	}

	c.userID = authResp.User.ID
	c.userName = authResp.User.Name
	c.accessToken = authResp.AccessToken

	if err := c.fetchServerName(ctx); err != nil {
		logWarnServerNameFetch(err)
	}

	return &AuthResult{
		UserID:      c.userID,
		UserName:    c.userName,
		AccessToken: c.accessToken,
		ServerName:  c.serverName,
	}, nil
}

func (c *Client) fetchServerName(ctx context.Context) error {
	var info publicSystemInfo
	if err := c.do(ctx, http.MethodGet, "/System/Info/Public", nil, &info); err != nil {
		return err
	}
	c.serverName = info.ServerName
	return nil
}

// RestoreSession validates a previously saved session by probing a
// cheap endpoint. On failure, client state is cleared and ErrAuthFailed
// is returned: a stale token must never leave the client in a zombie
// "connected" state.
func (c *Client) RestoreSession(ctx context.Context, saved models.SavedSession) error {
	c.userID = saved.UserID
	c.userName = saved.UserName
	c.accessToken = saved.AccessToken

	if err := c.fetchServerName(ctx); err != nil {
		c.clearState()
		return fmt.Errorf("%w: session validation failed: %v", ErrAuthFailed, err)
	}
	return nil
}

func (c *Client) clearState() {
	c.userID = ""
	c.userName = ""
	c.accessToken = ""
	c.serverName = ""
}

// ClearSession wipes client identity, used on explicit logout.
func (c *Client) ClearSession() {
	c.clearState()
}

// GetItem fetches a single media item by id.
func (c *Client) GetItem(ctx context.Context, itemID string) (*models.MediaItem, error) {
	var item models.MediaItem
	path := fmt.Sprintf("/Users/%s/Items/%s", c.userID, itemID)
	if err := c.do(ctx, http.MethodGet, path, nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

type playbackInfoRequest struct {
	UserID              string `json:"UserId"`
	DeviceID            string `json:"DeviceId"`
	MaxStreamingBitrate int    `json:"MaxStreamingBitrate"`
	EnableDirectPlay    bool   `json:"EnableDirectPlay"`
	EnableDirectStream  bool   `json:"EnableDirectStream"`
	EnableTranscoding   bool   `json:"EnableTranscoding"`
	AudioStreamIndex    *int   `json:"AudioStreamIndex,omitempty"`
	SubtitleStreamIndex *int   `json:"SubtitleStreamIndex,omitempty"`
}

// PlaybackInfoResult carries the media sources and server-assigned play
// session id for a playback request.
type PlaybackInfoResult struct {
	MediaSources  []models.MediaSource `json:"MediaSources"`
	PlaySessionID string               `json:"PlaySessionId"`
}

// GetPlaybackInfo requests the delivery options the server authorizes
// for an item, optionally pinning the audio/subtitle indices.
func (c *Client) GetPlaybackInfo(ctx context.Context, itemID string, audioIndex, subtitleIndex *int) (*PlaybackInfoResult, error) {
	var result PlaybackInfoResult
	path := fmt.Sprintf("/Items/%s/PlaybackInfo", itemID)
	body := playbackInfoRequest{
		UserID:              c.userID,
		DeviceID:            c.deviceID,
		MaxStreamingBitrate: maxStreamingBitrate,
		EnableDirectPlay:    true,
		EnableDirectStream:  true,
		EnableTranscoding:   true,
		AudioStreamIndex:    audioIndex,
		SubtitleStreamIndex: subtitleIndex,
	}
	if err := c.do(ctx, http.MethodPost, path, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// StreamURL builds the direct media URL for a source. The server-side
// path is never handed to mpv directly, even for File-protocol sources:
// the path lives on the server, not on this machine.
func (c *Client) StreamURL(itemID, mediaSourceID, container string) string {
	if container == "" {
		container = "mkv"
	}
	return fmt.Sprintf("%s/Videos/%s/stream.%s?Static=true&MediaSourceId=%s&api_key=%s",
		c.serverURL, itemID, container, mediaSourceID, c.accessToken)
}

// PlayingReport mirrors the body for POST /Sessions/Playing and
// /Sessions/Playing/Progress.
type PlayingReport struct {
	ItemID              string            `json:"ItemId"`
	MediaSourceID       string            `json:"MediaSourceId,omitempty"`
	PlaySessionID       string            `json:"PlaySessionId,omitempty"`
	PositionTicks       int64             `json:"PositionTicks"`
	IsPaused            bool              `json:"IsPaused"`
	IsMuted             bool              `json:"IsMuted"`
	VolumeLevel         int               `json:"VolumeLevel"`
	PlayMethod          models.PlayMethod `json:"PlayMethod,omitempty"`
	AudioStreamIndex    *int              `json:"AudioStreamIndex,omitempty"`
	SubtitleStreamIndex *int              `json:"SubtitleStreamIndex,omitempty"`
}

// ReportPlaying announces the start of playback.
func (c *Client) ReportPlaying(ctx context.Context, report PlayingReport) error {
	return c.do(ctx, http.MethodPost, "/Sessions/Playing", report, nil)
}

// ReportProgress reports an in-progress position/state update.
func (c *Client) ReportProgress(ctx context.Context, report PlayingReport) error {
	return c.do(ctx, http.MethodPost, "/Sessions/Playing/Progress", report, nil)
}

// StoppedReport mirrors the body for POST /Sessions/Playing/Stopped.
type StoppedReport struct {
	ItemID        string `json:"ItemId"`
	MediaSourceID string `json:"MediaSourceId,omitempty"`
	PlaySessionID string `json:"PlaySessionId,omitempty"`
	PositionTicks int64  `json:"PositionTicks"`
}

// ReportStopped announces the end of a playback session.
func (c *Client) ReportStopped(ctx context.Context, report StoppedReport) error {
	return c.do(ctx, http.MethodPost, "/Sessions/Playing/Stopped", report, nil)
}

// Capabilities mirrors the body reported both over HTTP and, identically,
// over the WebSocket (see sendCapabilities in websocket.go).
type Capabilities struct {
	PlayableMediaTypes           []string `json:"PlayableMediaTypes"`
	SupportedCommands            []string `json:"SupportedCommands"`
	SupportsMediaControl         bool     `json:"SupportsMediaControl"`
	SupportsPersistentIdentifier bool     `json:"SupportsPersistentIdentifier"`
}

// DefaultCapabilities returns the fixed capability set this client
// always advertises.
func DefaultCapabilities() Capabilities {
	return Capabilities{
		PlayableMediaTypes: []string{"Video", "Audio"},
		SupportedCommands: []string{
			"MoveUp", "MoveDown", "MoveLeft", "MoveRight", "PageUp", "PageDown",
			"PreviousLetter", "NextLetter", "ToggleOsd", "ToggleContextMenu", "Select",
			"Back", "SendKey", "SendString", "GoHome", "GoToSettings", "VolumeUp",
			"VolumeDown", "Mute", "Unmute", "ToggleMute",
		},
		SupportsMediaControl:         true,
		SupportsPersistentIdentifier: true,
	}
}

// ReportCapabilities registers this client as a remote-controllable
// cast target. The identical payload is also echoed over the
// WebSocket as a ReportCapabilities frame, because server versions
// vary in which channel they honor (see websocket.go).
func (c *Client) ReportCapabilities(ctx context.Context, caps Capabilities) error {
	return c.do(ctx, http.MethodPost, "/Sessions/Capabilities/Full", caps, nil)
}

type sessionInfo struct {
	DeviceID             string `json:"DeviceId"`
	SupportsMediaControl bool   `json:"SupportsMediaControl"`
}

// ValidateSession confirms the server has registered this device as a
// controllable session. A failure here is a warning, not an abort: the
// session can still function once the server catches up.
func (c *Client) ValidateSession(ctx context.Context) error {
	var sessions []sessionInfo
	if err := c.do(ctx, http.MethodGet, "/Sessions", nil, &sessions); err != nil {
		return err
	}
	for _, s := range sessions {
		if s.DeviceID == c.deviceID && s.SupportsMediaControl {
			return nil
		}
	}
	return ErrSessionNotFound
}

type episodesResponse struct {
	Items []models.MediaItem `json:"Items"`
}

// NextEpisode fetches the episode immediately after the given one.
func (c *Client) NextEpisode(ctx context.Context, seriesID, currentItemID string) (*models.MediaItem, error) {
	path := fmt.Sprintf("/Shows/%s/Episodes?UserId=%s&StartItemId=%s&Limit=2&Fields=MediaSources,MediaStreams",
		seriesID, c.userID, currentItemID)
	var resp episodesResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	for i := range resp.Items {
		if resp.Items[i].ID != currentItemID {
			return &resp.Items[i], nil
		}
	}
	return nil, nil
}

// PreviousEpisode fetches the episode immediately before the given one
// by walking the full series episode list.
func (c *Client) PreviousEpisode(ctx context.Context, seriesID, currentItemID string) (*models.MediaItem, error) {
	path := fmt.Sprintf("/Shows/%s/Episodes?UserId=%s&Fields=MediaSources,MediaStreams", seriesID, c.userID)
	var resp episodesResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	for i, item := range resp.Items {
		if item.ID == currentItemID && i > 0 {
			return &resp.Items[i-1], nil
		}
	}
	return nil, nil
}

func logWarnServerNameFetch(err error) {
	// Fetching the server name is best-effort; authentication already
	// succeeded, so a failure here only leaves ServerName blank.
	logging.Warn().Err(err).Msg("jellyfin: failed to fetch server name")
}
