package schedlib

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestWatchConnectivity(t *testing.T) {
	var online atomic.Bool
	online.Store(true)
	probe := OnlineFunc(func() bool { return online.Load() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := WatchConnectivity(ctx, probe, 10*time.Millisecond)

	// First observation arrives unconditionally.
	select {
	case got := <-ch:
		if !got {
			t.Fatal("initial state should be online")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no initial observation")
	}

	// A state change is reported once.
	online.Store(false)
	select {
	case got := <-ch:
		if got {
			t.Fatal("expected offline transition")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("transition never reported")
	}

	// No change, no report.
	select {
	case got := <-ch:
		t.Fatalf("unexpected observation %v without a change", got)
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	// The channel closes on cancellation.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel never closed")
		}
	}
}

func TestDialProbeUnreachable(t *testing.T) {
	// A reserved TEST-NET address should never accept connections.
	p := NewDialProbe("192.0.2.1:9", 100*time.Millisecond)
	if p.Online() {
		t.Error("probe against TEST-NET reported online")
	}
}
