// Jellyfin MPV Session Runtime
// SPDX-License-Identifier: AGPL-3.0-or-later

package jellyfin

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/hewel/jmsr/internal/logging"
	"github.com/hewel/jmsr/internal/metrics"
)

const (
	wsHandshakeTimeout = 10 * time.Second
	wsPingInterval     = 30 * time.Second
	wsJoinTimeout      = 2 * time.Second
)

// reconnectSchedule is the capped backoff sequence between WebSocket
// reconnect attempts. The last entry repeats indefinitely.
var reconnectSchedule = []time.Duration{
	1 * time.Second,
	2 * time.Second,
	5 * time.Second,
	10 * time.Second,
	30 * time.Second,
	60 * time.Second,
}

func reconnectDelay(attempt int) time.Duration {
	if attempt >= len(reconnectSchedule) {
		return reconnectSchedule[len(reconnectSchedule)-1]
	}
	return reconnectSchedule[attempt]
}

// CommandKind identifies which remote-control message a Command carries.
type CommandKind string

const (
	CommandPlay            CommandKind = "Play"
	CommandPlaystate       CommandKind = "Playstate"
	CommandGeneralCommand  CommandKind = "GeneralCommand"
)

// Command is the decoded form of an inbound WebSocket remote-control
// message, normalized across Play/Playstate/GeneralCommand shapes.
type Command struct {
	Kind CommandKind

	// Play
	ItemIDs             []string
	StartPositionTicks  int64
	PlayCommand         string
	MediaSourceID       *string
	AudioStreamIndex    *int
	SubtitleStreamIndex *int

	// Playstate
	PlaystateCommand string // "Stop", "Pause", "Unpause", "PlayPause", "NextTrack", "PreviousTrack", "Seek"
	SeekPositionTicks int64

	// GeneralCommand
	GeneralName string
	Arguments   map[string]string
}

type inboundMessage struct {
	MessageType string          `json:"MessageType"`
	Data        json.RawMessage `json:"Data"`
}

type playData struct {
	ItemIDs             []string `json:"ItemIds"`
	StartPositionTicks  int64    `json:"StartPositionTicks"`
	PlayCommand         string   `json:"PlayCommand"`
	MediaSourceID       *string  `json:"MediaSourceId"`
	AudioStreamIndex    *int     `json:"AudioStreamIndex"`
	SubtitleStreamIndex *int     `json:"SubtitleStreamIndex"`
}

type playstateData struct {
	Command            string `json:"Command"`
	SeekPositionTicks  int64  `json:"SeekPositionTicks"`
}

// generalCommandData models Arguments.Index as either a string or a
// number: different server versions encode it differently, and the
// session layer only ever needs its string form.
type generalCommandData struct {
	Name      string            `json:"Name"`
	Arguments map[string]any    `json:"Arguments"`
}

// WebSocketClient is the push half of the Server Link: it receives
// remote-control commands and forwards them to the session manager over
// a channel, independent of the REST client's lifetime.
type WebSocketClient struct {
	client *Client

	commands chan Command

	connMu sync.RWMutex
	conn   *websocket.Conn

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewWebSocketClient creates a WebSocket client bound to an
// authenticated REST client. Connect must be called to start the
// connection loop.
func NewWebSocketClient(client *Client) *WebSocketClient {
	return &WebSocketClient{
		client:   client,
		commands: make(chan Command, 32),
		stopCh:   make(chan struct{}),
	}
}

// Commands returns the channel of decoded inbound remote-control commands.
func (w *WebSocketClient) Commands() <-chan Command {
	return w.commands
}

func (w *WebSocketClient) wsURL() (string, error) {
	parsed, err := url.Parse(w.client.ServerURL())
	if err != nil {
		return "", err
	}
	switch parsed.Scheme {
	case "http":
		parsed.Scheme = "ws"
	case "https":
		parsed.Scheme = "wss"
	default:
		return "", ErrInvalidURL
	}
	parsed.Path = strings.TrimSuffix(parsed.Path, "/") + "/socket"
	q := parsed.Query()
	q.Set("api_key", w.client.AccessToken())
	q.Set("deviceId", w.client.DeviceID())
	parsed.RawQuery = q.Encode()
	return parsed.String(), nil
}

// Connect establishes the WebSocket connection and starts the
// listen/ping loops in the background. It blocks only for the initial
// dial; reconnection after that runs on its own goroutine.
func (w *WebSocketClient) Connect(ctx context.Context) error {
	conn, err := w.dial(ctx)
	if err != nil {
		return err
	}

	w.connMu.Lock()
	w.conn = conn
	w.connMu.Unlock()

	if err := w.sendSessionsStart(); err != nil {
		logging.Warn().Err(err).Msg("jellyfin ws: failed to send SessionsStart")
	}
	if err := w.sendCapabilities(); err != nil {
		logging.Warn().Err(err).Msg("jellyfin ws: failed to send capabilities over websocket")
	}

	metrics.JellyfinConnectionState.Set(1)

	w.wg.Add(2)
	go w.listenLoop(ctx)
	go w.pingLoop()

	return nil
}

func (w *WebSocketClient) dial(ctx context.Context) (*websocket.Conn, error) {
	target, err := w.wsURL()
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: wsHandshakeTimeout,
		EnableCompression: true,
	}
	conn, _, err := dialer.DialContext(ctx, target, nil)
	if err != nil {
		return nil, fmt.Errorf("jellyfin websocket dial: %w", err)
	}
	return conn, nil
}

func (w *WebSocketClient) sendSessionsStart() error {
	return w.writeJSON(map[string]string{
		"MessageType": "SessionsStart",
		"Data":        "1000,1000",
	})
}

func (w *WebSocketClient) sendCapabilities() error {
	return w.writeJSON(map[string]any{
		"MessageType": "ReportCapabilities",
		"Data":        DefaultCapabilities(),
	})
}

func (w *WebSocketClient) writeJSON(v any) error {
	w.connMu.RLock()
	conn := w.conn
	w.connMu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}
	encoded, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, encoded)
}

// listenLoop reads inbound frames and reconnects on failure using the
// capped [1,2,5,10,30,60]s schedule, until ctx is done or Close is called.
func (w *WebSocketClient) listenLoop(ctx context.Context) {
	defer w.wg.Done()

	for {
		w.connMu.RLock()
		conn := w.conn
		w.connMu.RUnlock()

		if conn == nil {
			if !w.reconnect(ctx) {
				return
			}
			continue
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			metrics.JellyfinConnectionState.Set(0)
			logging.Warn().Err(err).Msg("jellyfin ws: read failed, reconnecting")
			w.connMu.Lock()
			_ = w.conn.Close()
			w.conn = nil
			w.connMu.Unlock()
			if !w.reconnect(ctx) {
				return
			}
			continue
		}

		w.handleMessage(raw)
	}
}

func (w *WebSocketClient) reconnect(ctx context.Context) bool {
	for attempt := 0; ; attempt++ {
		select {
		case <-ctx.Done():
			return false
		case <-w.stopCh:
			return false
		case <-time.After(reconnectDelay(attempt)):
		}

		metrics.JellyfinReconnectAttempts.Inc()

		conn, err := w.dial(ctx)
		if err != nil {
			logging.Warn().Err(err).Int("attempt", attempt+1).Msg("jellyfin ws: reconnect failed")
			continue
		}

		w.connMu.Lock()
		w.conn = conn
		w.connMu.Unlock()

		if err := w.sendSessionsStart(); err != nil {
			logging.Warn().Err(err).Msg("jellyfin ws: failed to resend SessionsStart")
		}
		if err := w.sendCapabilities(); err != nil {
			logging.Warn().Err(err).Msg("jellyfin ws: failed to resend capabilities")
		}
		metrics.JellyfinConnectionState.Set(1)
		return true
	}
}

func (w *WebSocketClient) handleMessage(raw []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		logging.Warn().Err(err).Msg("jellyfin ws: failed to parse message envelope")
		return
	}

	switch msg.MessageType {
	case "Play":
		var data playData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			logging.Warn().Err(err).Msg("jellyfin ws: failed to parse Play data")
			return
		}
		w.emit(Command{
			Kind:                CommandPlay,
			ItemIDs:             data.ItemIDs,
			StartPositionTicks:  data.StartPositionTicks,
			PlayCommand:         data.PlayCommand,
			MediaSourceID:       data.MediaSourceID,
			AudioStreamIndex:    data.AudioStreamIndex,
			SubtitleStreamIndex: data.SubtitleStreamIndex,
		})
	case "Playstate":
		var data playstateData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			logging.Warn().Err(err).Msg("jellyfin ws: failed to parse Playstate data")
			return
		}
		w.emit(Command{
			Kind:              CommandPlaystate,
			PlaystateCommand:  data.Command,
			SeekPositionTicks: data.SeekPositionTicks,
		})
	case "GeneralCommand":
		var data generalCommandData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			logging.Warn().Err(err).Msg("jellyfin ws: failed to parse GeneralCommand data")
			return
		}
		w.emit(Command{
			Kind:        CommandGeneralCommand,
			GeneralName: data.Name,
			Arguments:   stringifyArguments(data.Arguments),
		})
	case "ForceKeepAlive", "KeepAlive":
		// no-op: liveness only.
	default:
		logging.Debug().Str("message_type", msg.MessageType).Msg("jellyfin ws: unhandled message type")
	}
}

// stringifyArguments normalizes Arguments values to strings: servers
// encode numeric fields like Index as either a JSON string or number
// depending on version.
func stringifyArguments(args map[string]any) map[string]string {
	out := make(map[string]string, len(args))
	for k, v := range args {
		switch val := v.(type) {
		case string:
			out[k] = val
		case float64:
			out[k] = fmt.Sprintf("%g", val)
		default:
			out[k] = fmt.Sprintf("%v", val)
		}
	}
	return out
}

func (w *WebSocketClient) emit(cmd Command) {
	select {
	case w.commands <- cmd:
	default:
		logging.Warn().Str("kind", string(cmd.Kind)).Msg("jellyfin ws: command channel full, dropping command")
	}
}

func (w *WebSocketClient) pingLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			if err := w.writeJSON(map[string]string{"MessageType": "KeepAlive"}); err != nil {
				logging.Warn().Err(err).Msg("jellyfin ws: keepalive failed")
			}
		}
	}
}

// Close stops the reconnect loop and closes the active connection,
// waiting up to wsJoinTimeout for both goroutines to exit.
func (w *WebSocketClient) Close() error {
	w.stopOnce.Do(func() {
		close(w.stopCh)

		w.connMu.Lock()
		if w.conn != nil {
			_ = w.conn.Close()
		}
		w.connMu.Unlock()

		done := make(chan struct{})
		go func() {
			w.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(wsJoinTimeout):
			logging.Warn().Msg("jellyfin ws: close timed out waiting for loops to exit")
		}

		metrics.JellyfinConnectionState.Set(0)
		close(w.commands)
	})
	return nil
}
