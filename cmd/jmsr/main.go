// Jellyfin MPV Session Runtime
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package main is the entry point for the Jellyfin MPV Session Runtime
// session core: the headless process that owns the mpv child process,
// the Jellyfin Server Link, and the state machine mediating between
// them. The embedded UI this core serves is out of scope here; this
// binary exposes the facade's operations and notification stream for
// that UI to drive, and otherwise runs unattended until signaled.
//
// # Application Architecture
//
// The process initializes components in the following order:
//
//  1. Runtime bootstrap config: log level/format, data directory, mpv
//     location (env vars / optional jmsr.yaml, via Koanf v2)
//  2. Logging: zerolog, JSON in production, console in development
//  3. Persisted store: one Badger database holding the saved
//     session/app config and the per-series track preferences
//  4. Server Link: REST client (circuit-breaker guarded) and
//     WebSocket client, restoring a saved session if one exists
//  5. Player manager: mpv is not spawned yet, only wired
//  6. Session Manager: the C4 state machine tying 4 and 5 together
//  7. Supervisor tree: player/link/session layers, independent restart
//     policies
//  8. Metrics endpoint: Prometheus text exposition for local scraping
//
// # Signal Handling
//
// SIGINT and SIGTERM trigger graceful shutdown: the root context is
// canceled, the supervisor tree stops each layer within its shutdown
// timeout, and any live playback session is reported Stopped before
// the process exits with code 0.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hewel/jmsr/internal/config"
	"github.com/hewel/jmsr/internal/facade"
	"github.com/hewel/jmsr/internal/ipc"
	"github.com/hewel/jmsr/internal/jellyfin"
	"github.com/hewel/jmsr/internal/logging"
	"github.com/hewel/jmsr/internal/player"
	"github.com/hewel/jmsr/internal/session"
	"github.com/hewel/jmsr/internal/store"
	"github.com/hewel/jmsr/internal/supervisor"
	"github.com/hewel/jmsr/internal/supervisor/services"
)

const placeholderServerURL = "http://localhost"

func main() {
	rtCfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load runtime config")
	}

	logging.Init(logging.Config{
		Level:  rtCfg.LogLevel,
		Format: rtCfg.LogFormat,
		Caller: rtCfg.LogCaller,
	})
	logging.Info().Msg("starting jmsr session core")

	dataDir, err := config.ResolveDataDir(rtCfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to resolve data directory")
	}
	logging.Info().Str("data_dir", dataDir).Msg("resolved app data directory")

	db, err := store.Open(dataDir)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open preferences store")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("error closing store")
		}
	}()
	prefs := store.NewPreferencesStore(db)

	appCfg, err := prefs.LoadAppConfig()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load app config")
	}
	if rtCfg.MpvPath != "" {
		appCfg.MpvPath = rtCfg.MpvPath
	}
	if len(rtCfg.MpvArgs) > 0 {
		appCfg.MpvArgs = rtCfg.MpvArgs
	}

	saved, err := prefs.LoadSavedSession()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load saved session")
	}

	serverURL, deviceID, deviceName := placeholderServerURL, jellyfin.GenerateDeviceID(), appCfg.DeviceName
	if saved != nil {
		serverURL, deviceID = saved.ServerURL, saved.DeviceID
	}
	restClient, err := jellyfin.NewClient(serverURL, deviceID, deviceName)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to construct jellyfin client")
	}
	breakerClient := jellyfin.NewCircuitBreakerClient(restClient)
	wsClient := jellyfin.NewWebSocketClient(restClient)

	inputConfPath := rtCfg.InputConf
	if inputConfPath == "" {
		inputConfPath = ipc.InputConfPath(dataDir)
	}
	if err := ipc.EnsureInputConf(inputConfPath, appCfg.KeybindNext, appCfg.KeybindPrev); err != nil {
		logging.Warn().Err(err).Msg("failed to write mpv keybinding file")
	}

	playerMgr := player.NewManager(player.ManagerConfig{
		MpvPath:       appCfg.MpvPath,
		ExtraArgs:     appCfg.MpvArgs,
		InputConfPath: inputConfPath,
	})

	sessionCfg := session.DefaultConfig()
	if appCfg.ProgressInterval > 0 {
		sessionCfg.ProgressInterval = time.Duration(appCfg.ProgressInterval) * time.Second
	}
	sessionMgr := session.New(sessionCfg, playerMgr, breakerClient, wsClient, prefs)

	f := facade.New(playerMgr, sessionMgr, restClient, wsClient, prefs, inputConfPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if saved != nil {
		if err := f.RestoreSession(ctx, *saved); err != nil {
			logging.Warn().Err(err).Msg("failed to restore saved session, starting disconnected")
		} else {
			logging.Info().Str("server", restClient.ServerName()).Msg("restored saved session")
		}
	}

	slogLogger := logging.NewSlogLogger()
	tree, err := supervisor.NewSupervisorTree(slogLogger, supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to create supervisor tree")
	}
	tree.AddPlayerService(services.NewLifecycleService(playerMgr, "mpv-player"))
	tree.AddSessionService(services.NewLifecycleService(sessionMgr, "session-manager"))
	logging.Info().Msg("player and session layers added to supervisor tree")

	metricsServer := &http.Server{
		Addr:              rtCfg.MetricsAddr,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	tree.AddLinkService(services.NewHTTPServerService(metricsServer, 5*time.Second))
	logging.Info().Str("addr", rtCfg.MetricsAddr).Msg("metrics endpoint added to supervisor tree")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("supervisor shutdown error")
		}
	}

	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("service failed to stop")
		}
	}

	logging.Info().Msg("jmsr session core stopped gracefully")
}
