// Jellyfin MPV Session Runtime
// SPDX-License-Identifier: AGPL-3.0-or-later

package services

import (
	"context"
	"fmt"
)

// StartStopper matches the lifecycle exposed by the player and session
// managers: an explicit Start taking a context and a Stop that
// blocks until teardown is complete.
type StartStopper interface {
	Start(ctx context.Context) error
	Stop() error
}

// LifecycleService adapts a StartStopper to suture's Serve pattern.
//
// It is used to supervise the runtime's two Start/Stop components (mpv
// process + IPC, and the session state machine) under the same restart
// policy without either one needing to know about suture directly. The
// Jellyfin WebSocket link is not wrapped by it.
type LifecycleService struct {
	component StartStopper
	name      string
}

// NewLifecycleService creates a service wrapper around a StartStopper.
//
// Example usage:
//
//	player := player.NewManager(cfg)
//	svc := services.NewLifecycleService(player, "mpv-player")
//	tree.AddPlayerService(svc)
func NewLifecycleService(component StartStopper, name string) *LifecycleService {
	return &LifecycleService{
		component: component,
		name:      name,
	}
}

// Serve implements suture.Service.
//
// This method:
//  1. Starts the component (which spawns its internal goroutines)
//  2. Blocks until the context is canceled
//  3. Stops the component (which waits for its goroutines to complete)
//
// If Start() fails, the error is returned immediately, causing suture to
// restart the service according to its backoff policy.
func (s *LifecycleService) Serve(ctx context.Context) error {
	if err := s.component.Start(ctx); err != nil {
		return fmt.Errorf("%s: start failed: %w", s.name, err)
	}

	<-ctx.Done()

	if err := s.component.Stop(); err != nil {
		return fmt.Errorf("%s: stop failed: %w", s.name, err)
	}

	return ctx.Err()
}

// String implements fmt.Stringer for logging.
// Suture uses this to identify the service in log messages.
func (s *LifecycleService) String() string {
	return s.name
}
