package backend

import (
	"testing"

	"github.com/kestrelwm/kestrel/internal/geom"
	"github.com/kestrelwm/kestrel/internal/outputlayout"
)

// TestNoopBackendAcceptsAnyConfiguration mirrors spec.md §8 scenario 6:
// the fallback output's back-end never rejects a mode and delivers no
// input of its own.
func TestNoopBackendAcceptsAnyConfiguration(t *testing.T) {
	b := NewNoopBackend()

	if !b.SetMode("noop", outputlayout.Mode{Width: 1, Height: 1}) {
		t.Fatal("NoopBackend must accept any mode")
	}
	if !b.SupportsCustomMode("noop") {
		t.Fatal("NoopBackend must support custom modes")
	}
	if modes := b.AvailableModes("noop"); modes != nil {
		t.Fatalf("expected no advertised modes, got %v", modes)
	}

	fb := b.FrameBackendFor("noop")
	fb.SubmitFrame([]geom.Rect{{X: 0, Y: 0, W: 1, H: 1}})
	fb.ScheduleFrame()

	select {
	case _, ok := <-b.Events():
		if ok {
			t.Fatal("NoopBackend must never deliver an input event")
		}
	default:
	}
}
