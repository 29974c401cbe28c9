// Jellyfin MPV Session Runtime
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config resolves the runtime bootstrap settings read once at
// process startup: log level/format, the app data directory, the mpv
// binary location, and the local metrics listen address. It is
// deliberately separate from the user-editable AppConfig in
// internal/models, which is persisted in the Badger-backed store and
// can change at any point during a run; this package only covers what
// has to be known before that store can even be opened.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the location of the optional YAML bootstrap file.
const ConfigPathEnvVar = "JMSR_CONFIG_PATH"

// DefaultConfigPaths lists where the bootstrap file is searched for,
// in priority order, when JMSR_CONFIG_PATH is not set.
var DefaultConfigPaths = []string{
	"jmsr.yaml",
	"jmsr.yml",
}

// RuntimeConfig holds the process-level settings resolved before any
// server connection or persisted preference is available.
type RuntimeConfig struct {
	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`
	LogCaller bool   `koanf:"log_caller"`

	// DataDir is the OS-standard app data directory holding the two
	// Badger-backed stores. Empty means "resolve via os.UserConfigDir".
	DataDir string `koanf:"data_dir"`

	MpvPath   string   `koanf:"mpv_path"`
	MpvArgs   []string `koanf:"mpv_args"`
	InputConf string   `koanf:"input_conf"`

	MetricsAddr string `koanf:"metrics_addr"`
}

func defaults() RuntimeConfig {
	return RuntimeConfig{
		LogLevel:    "info",
		LogFormat:   "json",
		LogCaller:   false,
		MetricsAddr: "127.0.0.1:9877",
	}
}

// Load resolves RuntimeConfig from, in increasing priority: built-in
// defaults, an optional YAML file (JMSR_CONFIG_PATH or one of
// DefaultConfigPaths), then JMSR_-prefixed environment variables.
func Load() (RuntimeConfig, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaults(), "koanf"), nil); err != nil {
		return RuntimeConfig{}, fmt.Errorf("config: load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return RuntimeConfig{}, fmt.Errorf("config: load file %s: %w", path, err)
		}
	}

	envProvider := env.Provider("JMSR_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "JMSR_"))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return RuntimeConfig{}, fmt.Errorf("config: load environment: %w", err)
	}

	var cfg RuntimeConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return RuntimeConfig{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if args := os.Getenv("JMSR_MPV_ARGS"); args != "" {
		cfg.MpvArgs = strings.Split(args, ",")
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// ResolveDataDir returns the directory the two Badger stores live in,
// creating it if necessary. An explicit DataDir wins; otherwise it is
// os.UserConfigDir()/jmsr.
func ResolveDataDir(cfg RuntimeConfig) (string, error) {
	dir := cfg.DataDir
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("config: resolve user config dir: %w", err)
		}
		dir = filepath.Join(base, "jmsr")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("config: create data dir %s: %w", dir, err)
	}
	return dir, nil
}
