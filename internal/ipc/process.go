// Jellyfin MPV Session Runtime
// SPDX-License-Identifier: AGPL-3.0-or-later

package ipc

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/hewel/jmsr/internal/logging"
)

// SocketPath returns the fixed IPC endpoint path for this platform. Only
// one mpv session is active at a time, so the path is not per-instance.
func SocketPath() string {
	if runtime.GOOS == "windows" {
		return `\\.\pipe\jmsr-mpv`
	}
	return filepath.Join(os.TempDir(), "jmsr-mpv.sock")
}

// InputConfPath returns the path of the generated mpv keybinding file
// inside the given config directory.
func InputConfPath(configDir string) string {
	return filepath.Join(configDir, "input.conf")
}

// wellKnownMpvPaths lists platform-specific locations checked after PATH.
func wellKnownMpvPaths() []string {
	switch runtime.GOOS {
	case "windows":
		return []string{
			`C:\Program Files\mpv\mpv.exe`,
			`C:\Program Files (x86)\mpv\mpv.exe`,
		}
	case "darwin":
		return []string{
			"/opt/homebrew/bin/mpv",
			"/usr/local/bin/mpv",
			"/Applications/mpv.app/Contents/MacOS/mpv",
		}
	default:
		return []string{
			"/usr/bin/mpv",
			"/usr/local/bin/mpv",
			"/snap/bin/mpv",
		}
	}
}

// FindMpv locates the mpv binary: an explicit configured path first, then
// PATH, then platform-specific well-known locations.
func FindMpv(configuredPath string) (string, error) {
	if configuredPath != "" {
		if info, err := os.Stat(configuredPath); err == nil && !info.IsDir() {
			return configuredPath, nil
		}
	}

	if path, err := exec.LookPath("mpv"); err == nil {
		return path, nil
	}

	for _, candidate := range wellKnownMpvPaths() {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	return "", ErrNotFound
}

// EnsureInputConf writes the keybinding file mpv loads via --input-conf,
// mapping the two configured keys to script-message tokens that the mpv
// event loop recognizes for series navigation.
func EnsureInputConf(path, keybindNext, keybindPrev string) error {
	if keybindNext == "" {
		keybindNext = "Shift+n"
	}
	if keybindPrev == "" {
		keybindPrev = "Shift+p"
	}

	content := fmt.Sprintf(
		"# Generated by jmsr. Do not edit directly; use the app's keybinding settings.\n%s script-message jmsr-next\n%s script-message jmsr-prev\n",
		keybindNext, keybindPrev,
	)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create input.conf directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write input.conf: %w", err)
	}
	return nil
}

// CleanupSocket removes a stale IPC socket file. A no-op on Windows,
// where named pipes have no filesystem entry to remove.
func CleanupSocket(path string) {
	if runtime.GOOS == "windows" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logging.Warn().Err(err).Str("path", path).Msg("failed to remove stale mpv ipc socket")
	}
}

// SpawnConfig configures how mpv is launched.
type SpawnConfig struct {
	MpvPath       string
	SocketPath    string
	InputConfPath string
	ExtraArgs     []string
}

// Spawn starts mpv detached from the controlling terminal, with its IPC
// server bound to SocketPath and the generated keybinding file loaded.
func Spawn(cfg SpawnConfig) (*exec.Cmd, error) {
	CleanupSocket(cfg.SocketPath)

	args := []string{
		"--input-ipc-server=" + cfg.SocketPath,
		"--idle",
		"--force-window",
		"--keep-open=no",
		"--no-terminal",
	}
	if cfg.InputConfPath != "" {
		args = append(args, "--input-conf="+cfg.InputConfPath)
	}
	args = append(args, cfg.ExtraArgs...)

	cmd := exec.Command(cfg.MpvPath, args...)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSpawnFailed, err)
	}
	return cmd, nil
}
