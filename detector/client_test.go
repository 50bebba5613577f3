package detector

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Grace-Shao/aiatl2025/backend/testutil"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestClientStateMachine(t *testing.T) {
	srv := testutil.NewMockDetectorServer(t)
	c := NewClient(srv.URL)

	if got := c.State(); got != StateIdle {
		t.Fatalf("fresh client should be idle, got %v", got)
	}

	c.Connect(context.Background(), Params{Speed: 20, AudioWeight: 0.3, PlayWeight: 0.7, Threshold: 50, ContextSegments: 2})
	defer c.Disconnect()

	srv.Push(`{"status":"connected","message":"stream started"}`)
	waitFor(t, 3*time.Second, func() bool { return c.State() == StateConnected })

	srv.Push(`{"status":"completed","message":"done","total_moments_analyzed":42,"key_moments_detected":3}`)
	waitFor(t, 3*time.Second, func() bool { return c.State() == StateCompleted })

	stats := c.FinalStats()
	if stats.TotalAnalyzed != 42 || stats.TotalDetected != 3 {
		t.Errorf("final stats not captured: %+v", stats)
	}

	c.Disconnect()
	if got := c.State(); got != StateIdle {
		t.Errorf("disconnect should return to idle, got %v", got)
	}
}

func TestClientUnreachableEndpointDoesNotThrow(t *testing.T) {
	c := NewClient("http://127.0.0.1:1") // nothing listens here
	// Connect must not return an error; the failure lands in state.
	c.Connect(context.Background(), Params{})
	defer c.Disconnect()
	waitFor(t, 3*time.Second, func() bool { return c.State() == StateError })
	if c.Err() == "" {
		t.Error("expected an error message to be surfaced")
	}
}

func TestClientMalformedFrameContinues(t *testing.T) {
	srv := testutil.NewMockDetectorServer(t)
	c := NewClient(srv.URL)
	var candidates atomic.Int64
	c.OnFrame = func(f Frame) {
		if _, ok := f.(CandidateFrame); ok {
			candidates.Add(1)
		}
	}
	c.Connect(context.Background(), Params{})
	defer c.Disconnect()

	srv.Push(`{"status":"connected"}`)
	srv.Push(`{broken json!!`)
	srv.Push(`{"timestamp":"1:00","detected_at":2,"play_category":"Sack"}`)

	waitFor(t, 3*time.Second, func() bool { return candidates.Load() == 1 })
	if c.Err() == "" {
		t.Error("parse failure should be surfaced as an error state")
	}
}

func TestClientStreamErrorFrame(t *testing.T) {
	srv := testutil.NewMockDetectorServer(t)
	c := NewClient(srv.URL)
	c.Connect(context.Background(), Params{})
	defer c.Disconnect()

	srv.Push(`{"status":"error","message":"detector overloaded"}`)
	waitFor(t, 3*time.Second, func() bool { return c.State() == StateError })
	if got := c.Err(); got != "detector overloaded" {
		t.Errorf("expected detector message, got %q", got)
	}
}

func TestClientDisconnectIdempotent(t *testing.T) {
	c := NewClient("http://127.0.0.1:1")
	// Closing an already-closed (never-opened) connection is a no-op.
	c.Disconnect()
	c.Disconnect()
	if got := c.State(); got != StateIdle {
		t.Fatalf("expected idle, got %v", got)
	}
}

func TestClientReconnectClosesPrior(t *testing.T) {
	srv := testutil.NewMockDetectorServer(t)
	c := NewClient(srv.URL)
	var frames atomic.Int64
	c.OnFrame = func(Frame) { frames.Add(1) }

	c.Connect(context.Background(), Params{})
	srv.Push(`{"status":"connected"}`)
	waitFor(t, 3*time.Second, func() bool { return frames.Load() == 1 })

	// Second connect must close the first connection before opening.
	c.Connect(context.Background(), Params{})
	defer c.Disconnect()
	srv.Push(`{"status":"connected"}`)
	waitFor(t, 3*time.Second, func() bool { return frames.Load() == 2 })
	if got := c.State(); got != StateConnected {
		t.Errorf("expected connected after reconnect, got %v", got)
	}
}
