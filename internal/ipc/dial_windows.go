// Jellyfin MPV Session Runtime
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build windows

package ipc

import (
	"net"
	"time"

	"github.com/Microsoft/go-winio"
)

// dial opens the platform IPC endpoint. On Windows this is a named pipe.
func dial(path string) (net.Conn, error) {
	timeout := 2 * time.Second
	return winio.DialPipe(path, &timeout)
}
