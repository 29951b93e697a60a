// Package scheduler drives one self-rescheduling poll loop per tracked
// listing. A one-shot timer is re-armed only after the previous poll's
// full pipeline finished, so polls for the same listing never overlap
// even when a poll outlasts its interval.
package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/SloeberX/auction-tracker/internal/logging"
)

// Options tune per-listing polling cadence.
type Options struct {
	// DefaultInterval applies when the lot's end time is unknown or still
	// far away.
	DefaultInterval time.Duration
	// FastInterval applies inside the closing window; bidding bursts near
	// close need the timing resolution.
	FastInterval time.Duration
	// FastWindow is the remaining-time threshold that switches to
	// FastInterval.
	FastWindow time.Duration
}

// WithDefaults fills unset options.
func (o Options) WithDefaults() Options {
	if o.DefaultInterval <= 0 {
		o.DefaultInterval = 37 * time.Second
	}
	if o.FastInterval <= 0 {
		o.FastInterval = 7 * time.Second
	}
	if o.FastWindow <= 0 {
		o.FastWindow = 30 * time.Minute
	}
	return o
}

// NextDelay picks the delay before the next poll of a lot ending at
// endsAt. A lot that already closed keeps the fast interval until it is
// removed.
func (o Options) NextDelay(endsAt *time.Time, now time.Time) time.Duration {
	if endsAt == nil {
		return o.DefaultInterval
	}
	if endsAt.Sub(now) <= o.FastWindow {
		return o.FastInterval
	}
	return o.DefaultInterval
}

// PollFunc runs one full poll pipeline (fetch, reconcile, notify) and
// returns the delay before the next poll. Failures must be contained
// inside the pipeline; success and failure both converge here.
type PollFunc func(ctx context.Context) time.Duration

// Loop is the cancellable repeating task for one listing.
type Loop struct {
	logger zerolog.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

// Start launches the loop. The first poll runs immediately.
func Start(ctx context.Context, id string, logger zerolog.Logger, poll PollFunc) *Loop {
	ctx, cancel := context.WithCancel(ctx)
	l := &Loop{
		logger: logging.Component(logger, "poll_loop").With().Str("listing", id).Logger(),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go l.run(ctx, poll)
	return l
}

// Stop cancels the pending timer. An in-flight poll completes; its
// publish step is suppressed by the registry presence check.
func (l *Loop) Stop() {
	l.cancel()
}

// Done is closed once the loop goroutine has exited.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) run(ctx context.Context, poll PollFunc) {
	defer close(l.done)

	for {
		if ctx.Err() != nil {
			return
		}

		delay := poll(ctx)
		l.logger.Debug().Dur("next_poll_in", delay).Msg("poll complete")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
