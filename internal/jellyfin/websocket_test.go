// Jellyfin MPV Session Runtime
// SPDX-License-Identifier: AGPL-3.0-or-later

package jellyfin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestReconnectDelaySchedule(t *testing.T) {
	// Invariant 7: backoff matches [1,2,5,10,30,60]s, capped at 60s.
	want := []time.Duration{
		1 * time.Second, 2 * time.Second, 5 * time.Second,
		10 * time.Second, 30 * time.Second, 60 * time.Second,
	}
	for i, w := range want {
		if got := reconnectDelay(i); got != w {
			t.Errorf("reconnectDelay(%d) = %v, want %v", i, got, w)
		}
	}
	for _, attempt := range []int{6, 7, 100} {
		if got := reconnectDelay(attempt); got != 60*time.Second {
			t.Errorf("reconnectDelay(%d) = %v, want capped 60s", attempt, got)
		}
	}
}

func TestWsURLDerivation(t *testing.T) {
	c, err := NewClient("https://s.example", "jmsr-TEST", "Test")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	c.accessToken = "tok"
	w := NewWebSocketClient(c)

	got, err := w.wsURL()
	if err != nil {
		t.Fatalf("wsURL: %v", err)
	}
	if !strings.HasPrefix(got, "wss://s.example/socket?") {
		t.Errorf("wsURL() = %q, want wss scheme and /socket path", got)
	}
	if !strings.Contains(got, "api_key=tok") || !strings.Contains(got, "deviceId=jmsr-TEST") {
		t.Errorf("wsURL() missing query params: %q", got)
	}
}

func TestWsURLRejectsInvalidScheme(t *testing.T) {
	c := &Client{serverURL: "ftp://nope"}
	w := NewWebSocketClient(c)
	if _, err := w.wsURL(); err != ErrInvalidURL {
		t.Errorf("expected ErrInvalidURL, got %v", err)
	}
}

func TestHandleMessagePlay(t *testing.T) {
	c, _ := NewClient("http://s.example", "jmsr-TEST", "Test")
	w := NewWebSocketClient(c)

	w.handleMessage([]byte(`{"MessageType":"Play","Data":{"ItemIds":["it1"],"StartPositionTicks":0}}`))

	select {
	case cmd := <-w.commands:
		if cmd.Kind != CommandPlay || len(cmd.ItemIDs) != 1 || cmd.ItemIDs[0] != "it1" {
			t.Errorf("unexpected command: %+v", cmd)
		}
	default:
		t.Fatal("expected a command to be emitted")
	}
}

func TestHandleMessagePlaystate(t *testing.T) {
	c, _ := NewClient("http://s.example", "jmsr-TEST", "Test")
	w := NewWebSocketClient(c)

	w.handleMessage([]byte(`{"MessageType":"Playstate","Data":{"Command":"Pause"}}`))

	select {
	case cmd := <-w.commands:
		if cmd.Kind != CommandPlaystate || cmd.PlaystateCommand != "Pause" {
			t.Errorf("unexpected command: %+v", cmd)
		}
	default:
		t.Fatal("expected a command to be emitted")
	}
}

func TestHandleMessageGeneralCommandIndexAsNumberOrString(t *testing.T) {
	// Arguments.Index may arrive as a JSON number or a JSON string,
	// depending on server version; both must decode identically.
	cases := []struct {
		name string
		data string
		want string
	}{
		{"number", `{"MessageType":"GeneralCommand","Data":{"Name":"SetSubtitleStreamIndex","Arguments":{"Index":2}}}`, "2"},
		{"string", `{"MessageType":"GeneralCommand","Data":{"Name":"SetSubtitleStreamIndex","Arguments":{"Index":"2"}}}`, "2"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := NewClient("http://s.example", "jmsr-TEST", "Test")
			w := NewWebSocketClient(c)
			w.handleMessage([]byte(tc.data))

			select {
			case cmd := <-w.commands:
				if cmd.Kind != CommandGeneralCommand || cmd.Arguments["Index"] != tc.want {
					t.Errorf("unexpected command: %+v", cmd)
				}
			default:
				t.Fatal("expected a command to be emitted")
			}
		})
	}
}

func TestHandleMessageKeepAliveIsNoop(t *testing.T) {
	c, _ := NewClient("http://s.example", "jmsr-TEST", "Test")
	w := NewWebSocketClient(c)

	w.handleMessage([]byte(`{"MessageType":"KeepAlive"}`))
	w.handleMessage([]byte(`{"MessageType":"ForceKeepAlive"}`))

	select {
	case cmd := <-w.commands:
		t.Fatalf("expected no command, got %+v", cmd)
	default:
	}
}

// TestConnectHandshake exercises S1's preamble against a real WS server:
// on Connect, the client must send SessionsStart immediately and then
// ReportCapabilities.
func TestConnectHandshake(t *testing.T) {
	var upgrader websocket.Upgrader
	received := make(chan map[string]any, 2)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer func() { _ = conn.Close() }()
		for i := 0; i < 2; i++ {
			var msg map[string]any
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			received <- msg
		}
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "jmsr-TEST", "Test")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	c.accessToken = "tok"

	wc := NewWebSocketClient(c)
	if err := wc.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer func() { _ = wc.Close() }()

	first := waitForMessage(t, received)
	second := waitForMessage(t, received)

	if first["MessageType"] != "SessionsStart" {
		t.Errorf("first message = %v, want SessionsStart", first["MessageType"])
	}
	if second["MessageType"] != "ReportCapabilities" {
		t.Errorf("second message = %v, want ReportCapabilities", second["MessageType"])
	}
}

func waitForMessage(t *testing.T, ch <-chan map[string]any) map[string]any {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for websocket message")
		return nil
	}
}
