package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNextDelayUnknownEnd(t *testing.T) {
	opts := Options{}.WithDefaults()
	if d := opts.NextDelay(nil, time.Now()); d != opts.DefaultInterval {
		t.Fatalf("unknown end time must use the default interval, got %s", d)
	}
}

func TestNextDelayClosingWindow(t *testing.T) {
	opts := Options{}.WithDefaults()
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	far := now.Add(2 * time.Hour)
	if d := opts.NextDelay(&far, now); d != opts.DefaultInterval {
		t.Fatalf("lot far from closing must use the default interval, got %s", d)
	}

	soon := now.Add(29 * time.Minute)
	if d := opts.NextDelay(&soon, now); d != opts.FastInterval {
		t.Fatalf("lot inside the closing window must use the fast interval, got %s", d)
	}

	past := now.Add(-time.Minute)
	if d := opts.NextDelay(&past, now); d != opts.FastInterval {
		t.Fatalf("closed lot must stay on the fast interval, got %s", d)
	}
}

func TestNextDelayBoundary(t *testing.T) {
	opts := Options{}.WithDefaults()
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	edge := now.Add(opts.FastWindow)
	if d := opts.NextDelay(&edge, now); d != opts.FastInterval {
		t.Fatalf("remaining exactly at the window must poll fast, got %s", d)
	}
}

func TestLoopPollsAndReschedules(t *testing.T) {
	polled := make(chan struct{}, 8)
	loop := Start(context.Background(), "lot-1", zerolog.Nop(), func(ctx context.Context) time.Duration {
		polled <- struct{}{}
		return time.Millisecond
	})
	defer loop.Stop()

	for i := 0; i < 3; i++ {
		select {
		case <-polled:
		case <-time.After(2 * time.Second):
			t.Fatalf("poll %d never ran", i)
		}
	}
}

func TestLoopStops(t *testing.T) {
	loop := Start(context.Background(), "lot-1", zerolog.Nop(), func(ctx context.Context) time.Duration {
		return 10 * time.Millisecond
	})

	loop.Stop()
	select {
	case <-loop.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not exit after Stop")
	}
}

func TestLoopHonoursParentContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	loop := Start(ctx, "lot-1", zerolog.Nop(), func(ctx context.Context) time.Duration {
		return 10 * time.Millisecond
	})

	cancel()
	select {
	case <-loop.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not exit after parent cancellation")
	}
}
