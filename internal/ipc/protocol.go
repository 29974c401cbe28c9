// Jellyfin MPV Session Runtime
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ipc owns the mpv child process and its JSON-line IPC channel:
// spawning, request/response multiplexing by request id, event
// demultiplexing, and teardown that never hangs on I/O.
package ipc

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

// Command is an outgoing mpv IPC request: {"command":[...],"request_id":N}.
type Command struct {
	Command   []any `json:"command"`
	RequestID int64 `json:"request_id"`
}

// Response is an incoming reply to a Command, correlated by RequestID.
type Response struct {
	Error     string          `json:"error"`
	Data      json.RawMessage `json:"data"`
	RequestID int64           `json:"request_id"`
}

// IsSuccess reports whether mpv reported this command as successful.
func (r *Response) IsSuccess() bool {
	return r.Error == "success"
}

// Event is an incoming asynchronous mpv notification; it carries no
// request_id, which is how the reader tells it apart from a Response.
type Event struct {
	Event  string          `json:"event"`
	ID     int64           `json:"id,omitempty"`
	Name   string          `json:"name,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
	Reason string          `json:"reason,omitempty"`
	Args   []string        `json:"args,omitempty"`
}

// wireLine is used only to distinguish a Response from an Event: mpv
// responses always carry request_id, events never do.
type wireLine struct {
	RequestID *int64 `json:"request_id"`
}

// PropertyKind tags which variant of PropertyValue is populated.
type PropertyKind int

const (
	PropertyNull PropertyKind = iota
	PropertyBool
	PropertyNumber
	PropertyString
	PropertyJSON
)

// PropertyValue is the untagged union mpv returns from get_property: a
// bool, a number, a string, arbitrary JSON, or null.
type PropertyValue struct {
	Kind   PropertyKind
	Bool   bool
	Number float64
	String string
	JSON   json.RawMessage
}

// ParsePropertyValue classifies a raw get_property data payload.
func ParsePropertyValue(raw json.RawMessage) (PropertyValue, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return PropertyValue{Kind: PropertyNull}, nil
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return PropertyValue{Kind: PropertyBool, Bool: b}, nil
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return PropertyValue{Kind: PropertyNumber, Number: n}, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return PropertyValue{Kind: PropertyString, String: s}, nil
	}
	return PropertyValue{Kind: PropertyJSON, JSON: raw}, nil
}

// Error kinds surfaced by the ipc package. Only CommandFailed is
// caller-recoverable; the others imply the mpv session is gone.
var (
	ErrNotFound         = errors.New("mpv executable not found")
	ErrSpawnFailed      = errors.New("failed to spawn mpv")
	ErrConnectionFailed = errors.New("failed to connect to mpv ipc endpoint")
	ErrTimeout          = errors.New("mpv command timed out")
	ErrDisconnected     = errors.New("mpv ipc connection is closed")
)

// CommandFailedError wraps an mpv-reported command failure (error != "success").
type CommandFailedError struct {
	Message string
}

func (e *CommandFailedError) Error() string {
	return fmt.Sprintf("mpv command failed: %s", e.Message)
}
