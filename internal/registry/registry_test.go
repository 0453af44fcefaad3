package registry

import (
	"bytes"
	"testing"

	"github.com/kestrelwm/kestrel/internal/gesture"
	"github.com/kestrelwm/kestrel/internal/keycode"
	"github.com/kestrelwm/kestrel/internal/klog"
)

func testLog() klog.Logger { return klog.New(&bytes.Buffer{}, false) }

// TestDispatchKeyOrderAndSnapshot mirrors spec.md §8 scenario 1:
// bindings fire in registration order, and a binding added by a
// callback mid-dispatch does not also fire in the same dispatch.
func TestDispatchKeyOrderAndSnapshot(t *testing.T) {
	r := New(testLog(), nil)
	activator := keycode.Activator{Kind: keycode.KindKey, Mods: keycode.ModSuper, Code: 30}

	var order []string
	r.AddKeyBinding("eDP-1", activator, func(mods keycode.Modifier, key uint32) bool {
		order = append(order, "first")
		r.AddKeyBinding("eDP-1", activator, func(keycode.Modifier, uint32) bool {
			order = append(order, "late")
			return true
		})
		return false
	})
	r.AddKeyBinding("eDP-1", activator, func(mods keycode.Modifier, key uint32) bool {
		order = append(order, "second")
		return true
	})

	consumed := r.DispatchKey("eDP-1", keycode.ModSuper, 30)
	if !consumed {
		t.Fatal("expected a binding to consume the key")
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("unexpected dispatch order: %v", order)
	}

	order = nil
	r.DispatchKey("eDP-1", keycode.ModSuper, 30)
	if len(order) != 3 || order[2] != "late" {
		t.Fatalf("expected the late-registered binding to fire on the next dispatch, got %v", order)
	}
}

func TestDispatchKeyIgnoresOtherOutputsAndActivators(t *testing.T) {
	r := New(testLog(), nil)
	fired := false
	r.AddKeyBinding("eDP-1", keycode.Activator{Kind: keycode.KindKey, Mods: keycode.ModSuper, Code: 30}, func(keycode.Modifier, uint32) bool {
		fired = true
		return true
	})

	r.DispatchKey("HDMI-A-1", keycode.ModSuper, 30)
	if fired {
		t.Fatal("binding on a different output must not fire")
	}
	r.DispatchKey("eDP-1", keycode.ModCtrl, 30)
	if fired {
		t.Fatal("binding with a non-matching modifier must not fire")
	}
	r.DispatchKey("eDP-1", keycode.ModSuper, 30)
	if !fired {
		t.Fatal("expected the matching binding to fire")
	}
}

func TestRemoveByKeyCallback(t *testing.T) {
	r := New(testLog(), nil)
	activator := keycode.Activator{Kind: keycode.KindKey, Mods: keycode.ModSuper, Code: 30}
	calls := 0
	cb := func(keycode.Modifier, uint32) bool { calls++; return true }
	r.AddKeyBinding("eDP-1", activator, cb)
	r.AddKeyBinding("eDP-1", activator, cb)

	r.RemoveByKeyCallback(cb)
	r.DispatchKey("eDP-1", keycode.ModSuper, 30)
	if calls != 0 {
		t.Fatalf("expected both bindings sharing cb's identity to be removed, calls=%d", calls)
	}
}

func TestRemoveByOutput(t *testing.T) {
	r := New(testLog(), nil)
	activator := keycode.Activator{Kind: keycode.KindKey, Mods: keycode.ModSuper, Code: 30}
	fired := false
	r.AddKeyBinding("eDP-1", activator, func(keycode.Modifier, uint32) bool { fired = true; return true })
	r.AddButtonBinding("eDP-1", keycode.Activator{Kind: keycode.KindButton, Mods: 0, Code: 1}, func(keycode.Modifier, uint32, bool) bool { return true })

	r.RemoveByOutput("eDP-1")
	r.DispatchKey("eDP-1", keycode.ModSuper, 30)
	if fired {
		t.Fatal("expected every binding owned by the removed output to stop firing")
	}
	if len(r.byOutput["eDP-1"]) != 0 {
		t.Fatalf("expected the output index to be empty, got %v", r.byOutput["eDP-1"])
	}
}

func TestSetKeyActivatorHotReassign(t *testing.T) {
	r := New(testLog(), nil)
	id := r.AddKeyBinding("eDP-1", keycode.Activator{Kind: keycode.KindKey, Mods: keycode.ModSuper, Code: 30}, func(keycode.Modifier, uint32) bool { return true })

	if r.DispatchKey("eDP-1", keycode.ModCtrl, 31) {
		t.Fatal("binding must not fire against its new activator before the reassignment below")
	}
	r.SetKeyActivator(id, keycode.Activator{Kind: keycode.KindKey, Mods: keycode.ModCtrl, Code: 31})
	if !r.DispatchKey("eDP-1", keycode.ModCtrl, 31) {
		t.Fatal("expected the binding to fire against its newly assigned activator")
	}
	if r.DispatchKey("eDP-1", keycode.ModSuper, 30) {
		t.Fatal("binding must no longer fire against its old activator")
	}
}

func TestDispatchGestureByTypeAndMinFingers(t *testing.T) {
	r := New(testLog(), nil)
	var got gesture.Event
	r.AddGestureBinding("eDP-1", gesture.TypeSwipe, 3, func(ev gesture.Event) bool {
		got = ev
		return true
	})

	consumed := r.DispatchGesture("eDP-1", gesture.Event{Type: gesture.TypeSwipe, Fingers: 2})
	if consumed {
		t.Fatal("a 2-finger swipe must not satisfy a 3-finger-minimum binding")
	}
	consumed = r.DispatchGesture("eDP-1", gesture.Event{Type: gesture.TypeSwipe, Fingers: 4})
	if !consumed || got.Fingers != 4 {
		t.Fatalf("expected the binding to fire with fingers=4, got consumed=%v ev=%+v", consumed, got)
	}
}
