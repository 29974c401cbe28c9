// Jellyfin MPV Session Runtime
// SPDX-License-Identifier: AGPL-3.0-or-later

package player

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hewel/jmsr/internal/ipc"
)

func TestNewManagerStartsUnspawned(t *testing.T) {
	m := NewManager(ManagerConfig{})

	if m.IsRunning() {
		t.Error("IsRunning() = true before EnsureRunning")
	}
	if m.Client() != nil {
		t.Error("Client() != nil before EnsureRunning")
	}
}

func TestStopOnUnspawnedManagerIsNoop(t *testing.T) {
	m := NewManager(ManagerConfig{})
	if err := m.Stop(); err != nil {
		t.Errorf("Stop() on unspawned manager = %v, want nil", err)
	}
}

func TestHandleDisconnectOnUnspawnedManagerIsNoop(t *testing.T) {
	m := NewManager(ManagerConfig{})
	m.HandleDisconnect()
	if m.IsRunning() {
		t.Error("IsRunning() = true after HandleDisconnect on unspawned manager")
	}
}

func TestEnsureRunningFailsFastWhenMpvNotFound(t *testing.T) {
	bogusPath := filepath.Join(t.TempDir(), "does-not-exist")
	if _, err := ipc.FindMpv(bogusPath); err == nil {
		t.Skip("mpv happens to be available in this environment via PATH or a well-known location")
	}

	m := NewManager(ManagerConfig{MpvPath: bogusPath})

	_, err := m.EnsureRunning(context.Background())
	if !errors.Is(err, ipc.ErrNotFound) {
		t.Errorf("EnsureRunning() = %v, want ErrNotFound", err)
	}
	if m.IsRunning() {
		t.Error("IsRunning() = true after a failed EnsureRunning")
	}
}

func TestStartIsANoop(t *testing.T) {
	m := NewManager(ManagerConfig{})
	if err := m.Start(context.Background()); err != nil {
		t.Errorf("Start() = %v, want nil", err)
	}
	if m.IsRunning() {
		t.Error("Start() should not spawn mpv")
	}
}
