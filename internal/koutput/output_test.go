package koutput

import (
	"testing"

	"github.com/kestrelwm/kestrel/internal/geom"
	"github.com/kestrelwm/kestrel/internal/view"
)

// TestPluginCompat mirrors spec.md §8 scenario 4 literally.
func TestPluginCompat(t *testing.T) {
	o := New("HDMI-A-1")
	a := &Grab{Owner: "a", Caps: CapGrabInput | CapCustomRendering}
	b := &Grab{Owner: "b", Caps: CapCustomRendering}

	if !o.ActivatePlugin(a, FlagNone) {
		t.Fatal("activate(A) should succeed")
	}
	if o.ActivatePlugin(b, FlagNone) {
		t.Fatal("activate(B) should fail: capability mask overlaps with A")
	}
	o.DeactivatePlugin(a)
	if !o.ActivatePlugin(b, FlagNone) {
		t.Fatal("activate(B) should succeed once A is deactivated")
	}
}

func TestActivatePluginRestoresActiveSetOnRoundTrip(t *testing.T) {
	o := New("out")
	g := &Grab{Owner: "p", Caps: CapRecordScreen}
	o.ActivatePlugin(g, FlagNone)
	before := len(o.ActivePlugins())
	o.DeactivatePlugin(g)
	if len(o.ActivePlugins()) != before-1 {
		t.Fatalf("expected active set to shrink by one")
	}
	if o.IsPluginActive(g) {
		t.Fatal("plugin should not be active after deactivate")
	}
}

func TestInhibitPluginsCancelsActiveGrabsAndBlocksActivation(t *testing.T) {
	o := New("out")
	cancelled := false
	g := &Grab{Owner: "p", Caps: CapGrabInput, Cancel: func() { cancelled = true }}
	o.ActivatePlugin(g, FlagNone)

	o.InhibitPlugins()
	if !cancelled {
		t.Fatal("expected Cancel to fire when inhibition begins")
	}

	other := &Grab{Owner: "q", Caps: CapRecordScreen}
	if o.ActivatePlugin(other, FlagNone) {
		t.Fatal("activation must fail while inhibited")
	}
	if !o.ActivatePlugin(other, FlagIgnoreInhibit) {
		t.Fatal("FlagIgnoreInhibit must bypass inhibition")
	}
}

func TestFocusViewRefusesBelowFocusedLayer(t *testing.T) {
	o := New("out")
	o.FocusLayer(3)
	v := view.New(view.RoleToplevel)
	if err := o.FocusView(v, 1, FocusNone); err == nil {
		t.Fatal("expected focus to be refused for a layer below the focused layer")
	}
}

func TestFocusViewUnfocusPanelException(t *testing.T) {
	o := New("out")
	o.FocusLayer(3)
	panel := view.New(view.RoleShellView)
	panel.AppID = "$unfocus-launcher"
	if err := o.FocusView(panel, 3, FocusNone); err != nil {
		t.Fatalf("unexpected error focusing the panel itself: %v", err)
	}

	toplevel := view.New(view.RoleToplevel)
	if err := o.FocusView(toplevel, 1, FocusNone); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if panel.Activated {
		t.Fatal("expected the panel grab to be deactivated so it can yield input")
	}
	if o.ActiveView() != panel {
		t.Fatal("the focus request must be remembered, not applied to ActiveView immediately")
	}
	pending := o.TakePendingRefocus()
	if pending != toplevel {
		t.Fatal("expected the deferred focus request to be replayable")
	}
}

func TestAutoRedrawRefcounts(t *testing.T) {
	o := New("out")
	o.AutoRedraw(true)
	o.AutoRedraw(true)
	o.AutoRedraw(false)
	if o.autoRedrawCount != 1 {
		t.Fatalf("autoRedrawCount = %d, want 1", o.autoRedrawCount)
	}
	o.AutoRedraw(false)
	o.AutoRedraw(false) // decrementing past zero must not go negative
	if o.autoRedrawCount != 0 {
		t.Fatalf("autoRedrawCount = %d, want 0", o.autoRedrawCount)
	}
}

func TestGetEffectiveSizeSwapsOnRotation(t *testing.T) {
	o := New("out")
	o.Width, o.Height = 1920, 1080
	o.Transform = geom.Transform90
	size := o.GetEffectiveSize()
	if size.W != 1080 || size.H != 1920 {
		t.Fatalf("90-degree transform must swap dimensions, got %v", size)
	}
}
