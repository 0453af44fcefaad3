package gesture

import "testing"

// TestThreeFingerSwipe mirrors spec.md §8 scenario 5: three fingers
// move left by more than MinSwipeDistance from the middle of the
// output (not near an edge), and should be recognized as a plain
// swipe rather than an edge-swipe.
func TestThreeFingerSwipe(t *testing.T) {
	r := NewRecognizer()
	const outW, outH = 1920, 1080
	r.Down(1, 960, 540, outW, outH)
	r.Down(2, 980, 540, outW, outH)
	r.Down(3, 1000, 540, outW, outH)

	r.Motion(1, 960-150, 540)
	r.Motion(2, 980-150, 540)
	r.Motion(3, 1000-150, 540)

	r.Up(1)
	r.Up(2)
	ev, ok := r.Up(3)
	if !ok {
		t.Fatal("expected a recognized gesture")
	}
	if ev.Type != TypeSwipe {
		t.Fatalf("type = %v, want TypeSwipe", ev.Type)
	}
	if ev.Direction != DirLeft {
		t.Fatalf("direction = %v, want DirLeft", ev.Direction)
	}
	if ev.Fingers != 3 {
		t.Fatalf("fingers = %d, want 3", ev.Fingers)
	}
}

func TestTwoFingersBelowMinimum(t *testing.T) {
	r := NewRecognizer()
	r.Down(1, 500, 500, 1920, 1080)
	r.Down(2, 520, 500, 1920, 1080)
	r.Motion(1, 300, 500)
	r.Motion(2, 320, 500)
	r.Up(1)
	_, ok := r.Up(2)
	if ok {
		t.Fatal("two fingers should never produce a gesture")
	}
}

func TestEdgeSwipe(t *testing.T) {
	r := NewRecognizer()
	const outW, outH = 1920, 1080
	// All three fingers start within EdgeSwipeThreshold of the top edge.
	r.Down(1, 900, 10, outW, outH)
	r.Down(2, 950, 10, outW, outH)
	r.Down(3, 1000, 10, outW, outH)

	r.Motion(1, 900, 200)
	r.Motion(2, 950, 200)
	r.Motion(3, 1000, 200)

	r.Up(1)
	r.Up(2)
	ev, ok := r.Up(3)
	if !ok {
		t.Fatal("expected a recognized gesture")
	}
	if ev.Type != TypeEdgeSwipe {
		t.Fatalf("type = %v, want TypeEdgeSwipe", ev.Type)
	}
	if ev.Direction != DirDown {
		t.Fatalf("direction = %v, want DirDown", ev.Direction)
	}
}

func TestPinchOut(t *testing.T) {
	r := NewRecognizer()
	const outW, outH = 1920, 1080
	r.Down(1, 900, 500, outW, outH)
	r.Down(2, 1000, 500, outW, outH)
	r.Down(3, 950, 600, outW, outH)

	// Spread fingers apart from their shared centroid.
	r.Motion(1, 800, 500)
	r.Motion(2, 1100, 500)
	r.Motion(3, 950, 800)

	r.Up(1)
	r.Up(2)
	ev, ok := r.Up(3)
	if !ok {
		t.Fatal("expected a recognized pinch")
	}
	if ev.Type != TypePinch {
		t.Fatalf("type = %v, want TypePinch", ev.Type)
	}
	if ev.Direction != DirOut {
		t.Fatalf("direction = %v, want DirOut", ev.Direction)
	}
}

func TestShortMotionBelowThresholdRecognizesNothing(t *testing.T) {
	r := NewRecognizer()
	const outW, outH = 1920, 1080
	r.Down(1, 900, 500, outW, outH)
	r.Down(2, 950, 500, outW, outH)
	r.Down(3, 1000, 500, outW, outH)

	r.Motion(1, 905, 500)
	r.Motion(2, 955, 500)
	r.Motion(3, 1005, 500)

	r.Up(1)
	r.Up(2)
	_, ok := r.Up(3)
	if ok {
		t.Fatal("a 5px motion should not cross any threshold")
	}
}

func TestCancelSuppressesEvent(t *testing.T) {
	r := NewRecognizer()
	const outW, outH = 1920, 1080
	r.Down(1, 960, 540, outW, outH)
	r.Down(2, 980, 540, outW, outH)
	r.Down(3, 1000, 540, outW, outH)
	r.Motion(1, 800, 540)
	r.Motion(2, 820, 540)
	r.Motion(3, 840, 540)
	r.Cancel()

	_, ok := r.Up(1)
	if ok {
		t.Fatal("a cancelled sequence must not emit an event on a stray Up")
	}
}
