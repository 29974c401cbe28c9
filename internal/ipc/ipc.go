// Jellyfin MPV Session Runtime
// SPDX-License-Identifier: AGPL-3.0-or-later

package ipc

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"

	"github.com/hewel/jmsr/internal/logging"
	"github.com/hewel/jmsr/internal/metrics"
)

const (
	commandTimeout  = 5 * time.Second
	eventQueueDepth = 256
	writeQueueDepth = 64
)

// writeRequest is an item on the writer goroutine's queue: either a
// serialized command line, or a request to close the connection.
type writeRequest struct {
	line  []byte
	close bool
}

// Client owns one mpv IPC connection: request/response multiplexing by
// request id, event demultiplexing onto a bounded channel, and teardown
// that never leaves a caller blocked on a dead connection.
type Client struct {
	conn   net.Conn
	reader *bufio.Reader

	nextRequestID atomic.Int64
	closed        atomic.Bool

	pendingMu sync.Mutex
	pending   map[int64]chan *Response

	writeCh chan writeRequest
	events  chan Event

	wg sync.WaitGroup
}

// Connect dials the IPC endpoint with bounded retries, backing off
// 100*attempt ms between tries. Each attempt opens a fresh connection.
func Connect(ctx context.Context, path string, maxAttempts int) (*Client, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		conn, err := dial(path)
		if err == nil {
			c := &Client{
				conn:    conn,
				reader:  bufio.NewReader(conn),
				pending: make(map[int64]chan *Response),
				writeCh: make(chan writeRequest, writeQueueDepth),
				events:  make(chan Event, eventQueueDepth),
			}
			c.wg.Add(2)
			go c.readLoop()
			go c.writeLoop()
			return c, nil
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * 100 * time.Millisecond):
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, lastErr)
}

// Events returns the channel of asynchronous mpv notifications.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Send issues a command and waits for its correlated response, or
// ErrDisconnected/ErrTimeout if the connection dies or the reply is
// too slow. It never blocks forever: either the mpv round trip
// completes within commandTimeout, or Disconnected resolves it
// immediately once Close() has run.
func (c *Client) Send(ctx context.Context, args []any) (*Response, error) {
	if c.closed.Load() {
		return nil, ErrDisconnected
	}

	id := c.nextRequestID.Add(1)
	replyCh := make(chan *Response, 1)

	c.pendingMu.Lock()
	c.pending[id] = replyCh
	c.pendingMu.Unlock()

	// Re-check closed after insertion: Close() may have run its drain
	// between our check above and the insert, in which case this entry
	// would never be completed.
	if c.closed.Load() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return nil, ErrDisconnected
	}

	cmd := Command{Command: args, RequestID: id}
	line, err := json.Marshal(cmd)
	if err != nil {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return nil, fmt.Errorf("marshal mpv command: %w", err)
	}
	line = append(line, '\n')

	select {
	case c.writeCh <- writeRequest{line: line}:
	default:
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return nil, ErrDisconnected
	}

	timer := time.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case resp := <-replyCh:
		if resp == nil {
			return nil, ErrDisconnected
		}
		return resp, nil
	case <-timer.C:
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return nil, ErrTimeout
	case <-ctx.Done():
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return nil, ctx.Err()
	}
}

// Close tears down the connection: marks it closed, drains every
// outstanding pending request with ErrDisconnected so no caller is left
// waiting out a 5s timeout on a connection already known dead, signals
// the writer to stop, and waits for both goroutines to exit.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.drainPending()

	select {
	case c.writeCh <- writeRequest{close: true}:
	default:
	}

	_ = c.conn.Close()
	c.wg.Wait()

	close(c.events)
	return nil
}

func (c *Client) drainPending() {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	for id, ch := range c.pending {
		ch <- nil
		delete(c.pending, id)
	}
}

func (c *Client) readLoop() {
	defer c.wg.Done()
	defer c.markClosed()

	for {
		raw, err := c.reader.ReadBytes('\n')
		if err != nil {
			if len(raw) == 0 {
				return
			}
		}

		var probe wireLine
		if jsonErr := json.Unmarshal(raw, &probe); jsonErr != nil {
			logging.Warn().Err(jsonErr).Msg("mpv ipc: failed to parse line")
			if err != nil {
				return
			}
			continue
		}

		if probe.RequestID != nil {
			var resp Response
			if jsonErr := json.Unmarshal(raw, &resp); jsonErr != nil {
				logging.Warn().Err(jsonErr).Msg("mpv ipc: failed to parse response")
			} else {
				c.dispatchResponse(&resp)
			}
		} else {
			var ev Event
			if jsonErr := json.Unmarshal(raw, &ev); jsonErr != nil {
				logging.Warn().Err(jsonErr).Msg("mpv ipc: failed to parse event")
			} else {
				c.dispatchEvent(ev)
			}
		}

		if err != nil {
			return
		}
	}
}

func (c *Client) dispatchResponse(resp *Response) {
	c.pendingMu.Lock()
	ch, ok := c.pending[resp.RequestID]
	if ok {
		delete(c.pending, resp.RequestID)
	}
	c.pendingMu.Unlock()

	if ok {
		ch <- resp
	}
}

func (c *Client) dispatchEvent(ev Event) {
	select {
	case c.events <- ev:
	default:
		metrics.MpvEventsDropped.Inc()
		logging.Warn().Str("event", ev.Event).Msg("mpv ipc: event channel full, dropping event")
	}
}

func (c *Client) writeLoop() {
	defer c.wg.Done()

	for req := range c.writeCh {
		if req.close {
			return
		}
		if _, err := c.conn.Write(req.line); err != nil {
			logging.Warn().Err(err).Msg("mpv ipc: write failed")
			return
		}
	}
}

// markClosed is called by the reader loop on EOF or a read error: it
// ensures the connection is treated as dead even if the caller never
// explicitly called Close(). It also closes the socket and the events
// channel, so event consumers observe the player's death; the reader
// loop is the only sender on that channel, so closing it here is safe.
func (c *Client) markClosed() {
	if c.closed.CompareAndSwap(false, true) {
		c.drainPending()
		select {
		case c.writeCh <- writeRequest{close: true}:
		default:
		}
		_ = c.conn.Close()
		close(c.events)
	}
}
