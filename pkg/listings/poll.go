package listings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
)

const (
	defaultPollInitial = 2 * time.Second
	defaultPollCap     = 15 * time.Second
	defaultPollTimeout = 5 * time.Minute
)

// ErrPollTimeout is returned when a run does not reach a terminal status
// before the poll deadline.
var ErrPollTimeout = errors.New("listings: poll deadline exceeded")

// PollOption configures polling behavior.
type PollOption func(*pollConfig)

type pollConfig struct {
	initial time.Duration
	cap     time.Duration
	timeout time.Duration
}

func defaultPollConfig() pollConfig {
	return pollConfig{
		initial: defaultPollInitial,
		cap:     defaultPollCap,
		timeout: defaultPollTimeout,
	}
}

// WithPollInterval overrides the initial poll interval.
func WithPollInterval(d time.Duration) PollOption {
	return func(c *pollConfig) {
		c.initial = d
	}
}

// WithPollCap overrides the maximum poll interval.
func WithPollCap(d time.Duration) PollOption {
	return func(c *pollConfig) {
		c.cap = d
	}
}

// WithPollTimeout overrides the default deadline (applied only if the parent
// context has no deadline).
func WithPollTimeout(d time.Duration) PollOption {
	return func(c *pollConfig) {
		c.timeout = d
	}
}

// PollRun polls PollStatus until the run reaches a terminal status or the
// deadline expires. Uses exponential backoff: 2s -> 4s -> 8s -> 15s (capped).
// A run that is still queued or running when the deadline passes yields
// ErrPollTimeout; the loop never runs unbounded.
func PollRun(ctx context.Context, client Client, runID string, opts ...PollOption) (*RunStatus, error) {
	cfg := defaultPollConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.timeout)
		defer cancel()
	}

	interval := cfg.initial
	for {
		status, err := client.PollStatus(ctx, runID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, eris.Wrap(ErrPollTimeout, fmt.Sprintf("run %s", runID))
			}
			return nil, eris.Wrap(err, fmt.Sprintf("listings: poll run %s", runID))
		}

		switch status.Status {
		case StatusSucceeded:
			return status, nil
		case StatusFailed:
			return nil, eris.Errorf("listings: run %s failed", runID)
		case StatusQueued, StatusRunning:
		default:
			return nil, eris.Errorf("listings: run %s reported unknown status %q", runID, status.Status)
		}

		select {
		case <-ctx.Done():
			return nil, eris.Wrap(ErrPollTimeout, fmt.Sprintf("run %s", runID))
		case <-time.After(interval):
		}

		interval *= 2
		if interval > cfg.cap {
			interval = cfg.cap
		}
	}
}
