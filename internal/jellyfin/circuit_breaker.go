// Jellyfin MPV Session Runtime
// SPDX-License-Identifier: AGPL-3.0-or-later

package jellyfin

import (
	"context"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/hewel/jmsr/internal/logging"
	"github.com/hewel/jmsr/internal/metrics"
	"github.com/hewel/jmsr/internal/models"
)

// restRateLimit caps outbound REST calls at a steady rate: the event
// loop can fire property-change-driven progress reports far faster
// than any server needs them, and Play/episode-lookup bursts during
// auto-advance should not look like abuse to the server's own limits.
const (
	restRateLimit = 10 // requests per second
	restBurst     = 20
)

// CircuitBreakerClient wraps Client's REST calls in a gobreaker circuit
// breaker and a client-side rate limiter, so a server outage fails
// fast and a local burst never looks like a hammering client.
type CircuitBreakerClient struct {
	client  *Client
	cb      *gobreaker.CircuitBreaker[any]
	limiter *rate.Limiter
}

// NewCircuitBreakerClient wraps an already-constructed REST client.
func NewCircuitBreakerClient(client *Client) *CircuitBreakerClient {
	settings := gobreaker.Settings{
		Name:        "jellyfin-api",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 10 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("jellyfin circuit breaker state change")
		},
	}

	return &CircuitBreakerClient{
		client:  client,
		cb:      gobreaker.NewCircuitBreaker[any](settings),
		limiter: rate.NewLimiter(rate.Limit(restRateLimit), restBurst),
	}
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func execute[T any](cb *CircuitBreakerClient, fn func() (T, error)) (T, error) {
	if err := cb.limiter.Wait(context.Background()); err != nil {
		var zero T
		return zero, err
	}

	result, err := cb.cb.Execute(func() (any, error) {
		return fn()
	})

	outcome := "success"
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			outcome = "rejected"
		} else {
			outcome = "failure"
		}
	}
	metrics.CircuitBreakerRequests.WithLabelValues("jellyfin-api", outcome).Inc()

	if err != nil {
		var zero T
		return zero, err
	}
	return result.(T), nil
}

// Authenticate is a breaker-guarded call to Client.Authenticate.
func (c *CircuitBreakerClient) Authenticate(ctx context.Context, username, password string) (*AuthResult, error) {
	return execute(c, func() (*AuthResult, error) {
		return c.client.Authenticate(ctx, username, password)
	})
}

// GetPlaybackInfo is a breaker-guarded call to Client.GetPlaybackInfo.
func (c *CircuitBreakerClient) GetPlaybackInfo(ctx context.Context, itemID string, audioIndex, subtitleIndex *int) (*PlaybackInfoResult, error) {
	return execute(c, func() (*PlaybackInfoResult, error) {
		return c.client.GetPlaybackInfo(ctx, itemID, audioIndex, subtitleIndex)
	})
}

// GetItem is a breaker-guarded call to Client.GetItem.
func (c *CircuitBreakerClient) GetItem(ctx context.Context, itemID string) (*models.MediaItem, error) {
	return execute(c, func() (*models.MediaItem, error) {
		return c.client.GetItem(ctx, itemID)
	})
}

// ReportPlaying is a breaker-guarded call to Client.ReportPlaying.
func (c *CircuitBreakerClient) ReportPlaying(ctx context.Context, report PlayingReport) error {
	_, err := execute(c, func() (any, error) {
		return nil, c.client.ReportPlaying(ctx, report)
	})
	return err
}

// ReportProgress is a breaker-guarded call to Client.ReportProgress.
//
// Progress reports are dropped, not queued, while the breaker is open:
// the session continues playing locally and will resync position on
// the next successful report rather than blocking playback on the
// network.
func (c *CircuitBreakerClient) ReportProgress(ctx context.Context, report PlayingReport) error {
	_, err := execute(c, func() (any, error) {
		return nil, c.client.ReportProgress(ctx, report)
	})
	return err
}

// ReportStopped is a breaker-guarded call to Client.ReportStopped.
func (c *CircuitBreakerClient) ReportStopped(ctx context.Context, report StoppedReport) error {
	_, err := execute(c, func() (any, error) {
		return nil, c.client.ReportStopped(ctx, report)
	})
	return err
}

// ReportCapabilities is a breaker-guarded call to Client.ReportCapabilities.
func (c *CircuitBreakerClient) ReportCapabilities(ctx context.Context, caps Capabilities) error {
	_, err := execute(c, func() (any, error) {
		return nil, c.client.ReportCapabilities(ctx, caps)
	})
	return err
}

// NextEpisode is a breaker-guarded call to Client.NextEpisode.
func (c *CircuitBreakerClient) NextEpisode(ctx context.Context, seriesID, currentItemID string) (*models.MediaItem, error) {
	return execute(c, func() (*models.MediaItem, error) {
		return c.client.NextEpisode(ctx, seriesID, currentItemID)
	})
}

// PreviousEpisode is a breaker-guarded call to Client.PreviousEpisode.
func (c *CircuitBreakerClient) PreviousEpisode(ctx context.Context, seriesID, currentItemID string) (*models.MediaItem, error) {
	return execute(c, func() (*models.MediaItem, error) {
		return c.client.PreviousEpisode(ctx, seriesID, currentItemID)
	})
}

// Unwrap exposes the underlying client for calls that do not need
// breaker protection, such as StreamURL which performs no I/O.
func (c *CircuitBreakerClient) Unwrap() *Client {
	return c.client
}
