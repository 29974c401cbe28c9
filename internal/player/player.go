// Jellyfin MPV Session Runtime
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package player provides a typed façade over the raw mpv IPC commands in
// internal/ipc: loadfile, seek, property get/set, observe, and quit.
package player

import (
	"context"
	"fmt"

	"github.com/hewel/jmsr/internal/ipc"
)

// LoadFileOptions are applied atomically with the file load, avoiding a
// race where tracks are set before mpv has parsed the new file's
// tracklist.
type LoadFileOptions struct {
	StartSeconds     float64
	AudioTrackID     int // 0 means "not specified"
	SubtitleTrackID  int // 0 means "not specified"
	HasAudioTrack    bool
	HasSubtitleTrack bool
}

// Client wraps an ipc.Client with typed mpv operations.
type Client struct {
	ipc *ipc.Client
}

// New wraps an established ipc.Client.
func New(c *ipc.Client) *Client {
	return &Client{ipc: c}
}

// Events exposes the underlying mpv event stream.
func (c *Client) Events() <-chan ipc.Event {
	return c.ipc.Events()
}

// Close tears down the underlying IPC connection.
func (c *Client) Close() error {
	return c.ipc.Close()
}

func (c *Client) send(ctx context.Context, args ...any) (*ipc.Response, error) {
	resp, err := c.ipc.Send(ctx, args)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return resp, &ipc.CommandFailedError{Message: resp.Error}
	}
	return resp, nil
}

// LoadFile loads a URL for playback, replacing whatever is currently loaded.
func (c *Client) LoadFile(ctx context.Context, url string) error {
	_, err := c.send(ctx, "loadfile", url)
	return err
}

// LoadFileWithOptions loads a URL and atomically applies start position
// and track selection, so mpv never briefly plays the wrong track.
func (c *Client) LoadFileWithOptions(ctx context.Context, url string, opts LoadFileOptions) error {
	optionPairs := make([]string, 0, 3)
	if opts.StartSeconds > 0 {
		optionPairs = append(optionPairs, fmt.Sprintf("start=%g", opts.StartSeconds))
	}
	if opts.HasAudioTrack {
		optionPairs = append(optionPairs, fmt.Sprintf("aid=%d", opts.AudioTrackID))
	}
	if opts.HasSubtitleTrack {
		optionPairs = append(optionPairs, fmt.Sprintf("sid=%d", opts.SubtitleTrackID))
	}

	if len(optionPairs) == 0 {
		return c.LoadFile(ctx, url)
	}

	optString := optionPairs[0]
	for _, pair := range optionPairs[1:] {
		optString += "," + pair
	}

	_, err := c.send(ctx, "loadfile", url, "replace", optString)
	return err
}

// Seek performs an absolute seek to the given position in seconds.
func (c *Client) Seek(ctx context.Context, seconds float64) error {
	_, err := c.send(ctx, "seek", seconds, "absolute")
	return err
}

// SetPause pauses or resumes playback.
func (c *Client) SetPause(ctx context.Context, paused bool) error {
	_, err := c.send(ctx, "set_property", "pause", paused)
	return err
}

// SetVolume sets the playback volume, 0-100.
func (c *Client) SetVolume(ctx context.Context, volume int) error {
	_, err := c.send(ctx, "set_property", "volume", volume)
	return err
}

// trackArg renders a track id: -1 disables the track, which mpv expects
// as the string "no" rather than a numeric property value.
func trackArg(id int) any {
	if id < 0 {
		return "no"
	}
	return id
}

// SetAudioTrack switches the active audio track. id == -1 disables audio.
func (c *Client) SetAudioTrack(ctx context.Context, id int) error {
	_, err := c.send(ctx, "set_property", "aid", trackArg(id))
	return err
}

// SetSubtitleTrack switches the active subtitle track. id == -1 disables subtitles.
func (c *Client) SetSubtitleTrack(ctx context.Context, id int) error {
	_, err := c.send(ctx, "set_property", "sid", trackArg(id))
	return err
}

// SetMediaTitle overrides mpv's displayed title, used to show the
// formatted "Series - SnnEmm - Name" title instead of the raw URL.
func (c *Client) SetMediaTitle(ctx context.Context, title string) error {
	_, err := c.send(ctx, "set_property", "force-media-title", title)
	return err
}

// GetProperty fetches and classifies an mpv property value.
func (c *Client) GetProperty(ctx context.Context, name string) (ipc.PropertyValue, error) {
	resp, err := c.send(ctx, "get_property", name)
	if err != nil {
		return ipc.PropertyValue{}, err
	}
	return ipc.ParsePropertyValue(resp.Data)
}

// ObserveProperty subscribes to change notifications for a property,
// which the player then emits as "property-change" events.
func (c *Client) ObserveProperty(ctx context.Context, observerID int64, name string) error {
	_, err := c.send(ctx, "observe_property", observerID, name)
	return err
}

// Cycle cycles a boolean-ish property, used for mute and fullscreen.
func (c *Client) Cycle(ctx context.Context, name string) error {
	_, err := c.send(ctx, "cycle", name)
	return err
}

// Quit asks mpv to exit, then tears down the IPC connection.
func (c *Client) Quit(ctx context.Context) error {
	_, err := c.send(ctx, "quit")
	_ = c.Close()
	return err
}
