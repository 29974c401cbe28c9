// Jellyfin MPV Session Runtime
// SPDX-License-Identifier: AGPL-3.0-or-later

package player

import (
	"context"
	"os/exec"
	"sync"
	"time"

	"github.com/hewel/jmsr/internal/ipc"
	"github.com/hewel/jmsr/internal/logging"
)

const mpvConnectAttempts = 10

// ManagerConfig configures how the manager locates and launches mpv.
type ManagerConfig struct {
	MpvPath       string
	ExtraArgs     []string
	InputConfPath string
}

// Manager owns the mpv child process across its full lifetime: spawning
// it on demand, reconnecting the IPC client after a respawn, and
// tearing both down on Stop. It implements the StartStopper lifecycle
// the supervisor tree expects.
type Manager struct {
	cfg ManagerConfig

	mu      sync.Mutex
	cmd     *exec.Cmd
	client  *Client
	running bool
}

// NewManager creates a player manager. mpv is not spawned until
// EnsureRunning is called.
func NewManager(cfg ManagerConfig) *Manager {
	return &Manager{cfg: cfg}
}

// Start implements the supervised lifecycle's startup hook. It performs
// no work itself: mpv is spawned lazily on the first Play command via
// EnsureRunning, matching mpv's lifetime being orthogonal to session
// lifetime.
func (m *Manager) Start(_ context.Context) error {
	return nil
}

// Stop quits mpv if running and releases all resources.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopLocked()
}

func (m *Manager) stopLocked() error {
	if !m.running {
		return nil
	}

	if m.client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = m.client.Quit(ctx)
		cancel()
		m.client = nil
	}

	if m.cmd != nil && m.cmd.Process != nil {
		_ = m.cmd.Process.Kill()
		_ = m.cmd.Wait()
	}
	m.cmd = nil

	ipc.CleanupSocket(ipc.SocketPath())
	m.running = false
	return nil
}

// EnsureRunning spawns mpv and establishes the IPC connection if it is
// not already up, returning the typed client either way.
func (m *Manager) EnsureRunning(ctx context.Context) (*Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running && m.client != nil {
		return m.client, nil
	}

	mpvPath, err := ipc.FindMpv(m.cfg.MpvPath)
	if err != nil {
		return nil, err
	}

	socketPath := ipc.SocketPath()
	cmd, err := ipc.Spawn(ipc.SpawnConfig{
		MpvPath:       mpvPath,
		SocketPath:    socketPath,
		InputConfPath: m.cfg.InputConfPath,
		ExtraArgs:     m.cfg.ExtraArgs,
	})
	if err != nil {
		return nil, err
	}

	// mpv needs a moment to create its IPC listener after the process
	// starts; Connect's own retry/backoff absorbs the rest of the wait.
	time.Sleep(500 * time.Millisecond)

	ipcClient, err := ipc.Connect(ctx, socketPath, mpvConnectAttempts)
	if err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, err
	}

	m.cmd = cmd
	m.client = New(ipcClient)
	m.running = true

	logging.Info().Str("mpv_path", mpvPath).Msg("mpv spawned and connected")
	return m.client, nil
}

// IsRunning reports whether mpv is currently spawned and connected.
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Client returns the current player client, or nil if mpv is not running.
func (m *Manager) Client() *Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.client
}

// HandleDisconnect is called by the session layer when the mpv event
// channel closes unexpectedly (the process died). It releases the
// manager's references so the next EnsureRunning respawns cleanly.
func (m *Manager) HandleDisconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	_ = m.stopLocked()
}
