package seat

import (
	"bytes"
	"testing"

	"github.com/kestrelwm/kestrel/internal/geom"
	"github.com/kestrelwm/kestrel/internal/keycode"
	"github.com/kestrelwm/kestrel/internal/klog"
	"github.com/kestrelwm/kestrel/internal/koutput"
	"github.com/kestrelwm/kestrel/internal/registry"
	"github.com/kestrelwm/kestrel/internal/scene"
	"github.com/kestrelwm/kestrel/internal/view"
	"github.com/kestrelwm/kestrel/internal/workspace"
)

type fakeSurfaceOutput struct{}

func (fakeSurfaceOutput) Damage(r geom.Rect) {}

// fakeLookup is a single-output OutputLookup whose geometry and
// workspace are set up by the test.
type fakeLookup struct {
	out *koutput.Output
	ws  *workspace.Manager
}

func (f *fakeLookup) OutputAt(p geom.Point) *koutput.Output {
	if f.out != nil && f.out.Geometry().Contains(p) {
		return f.out
	}
	return nil
}
func (f *fakeLookup) Focused() *koutput.Output { return f.out }
func (f *fakeLookup) WorkspaceOf(o *koutput.Output) *workspace.Manager {
	if o == f.out {
		return f.ws
	}
	return nil
}

func newTestSeat(t *testing.T) (*Seat, *fakeLookup, *registry.Registry) {
	t.Helper()
	out := koutput.New("eDP-1")
	out.Width, out.Height = 1920, 1080
	ws := workspace.New(1, 1, geom.Rect{X: 0, Y: 0, W: 1920, H: 1080})
	lookup := &fakeLookup{out: out, ws: ws}
	reg := registry.New(klog.New(&bytes.Buffer{}, false), nil)
	return New(klog.New(&bytes.Buffer{}, false), lookup, reg, ClientHooks{}), lookup, reg
}

func mappedView(t *testing.T, x, y, w, h int) *view.View {
	t.Helper()
	v := view.New(view.RoleToplevel)
	v.SX, v.SY = x, y
	v.SetOutput(fakeSurfaceOutput{})
	if err := v.Map("buf", w, h); err != nil {
		t.Fatalf("Map: %v", err)
	}
	return v
}

func TestUpdateCursorPositionSetsFocusAndFiresHooks(t *testing.T) {
	s, lookup, _ := newTestSeat(t)
	v := mappedView(t, 0, 0, 200, 200)
	lookup.ws.AddView(v, workspace.LayerWorkspace, 0, 0)

	var entered, left *scene.Surface
	var motionSX, motionSY int
	s.hooks.OnSurfaceEnter = func(surf *scene.Surface, sx, sy int) { entered = surf }
	s.hooks.OnSurfaceLeave = func(surf *scene.Surface) { left = surf }
	s.hooks.OnPointerMotion = func(surf *scene.Surface, sx, sy int) { motionSX, motionSY = sx, sy }

	s.UpdateCursorPosition(10, 20)
	if entered != v.Surface {
		t.Fatal("expected OnSurfaceEnter to fire for the view under the cursor")
	}
	if motionSX != 10 || motionSY != 20 {
		t.Fatalf("expected local coords (10,20), got (%d,%d)", motionSX, motionSY)
	}

	s.UpdateCursorPosition(900, 900)
	if left != v.Surface {
		t.Fatal("expected OnSurfaceLeave to fire once the cursor leaves the view")
	}
	if s.CursorFocus() != nil {
		t.Fatal("expected no cursor focus once outside every view")
	}
}

func TestHandleButtonBindingTakesPriorityOverClient(t *testing.T) {
	s, lookup, reg := newTestSeat(t)
	v := mappedView(t, 0, 0, 200, 200)
	lookup.ws.AddView(v, workspace.LayerWorkspace, 0, 0)
	s.UpdateCursorPosition(10, 10)

	clientFired := false
	s.hooks.OnPointerButton = func(surf *scene.Surface, button uint32, pressed bool) { clientFired = true }

	bindingFired := false
	reg.AddButtonBinding("eDP-1", keycode.Activator{Kind: keycode.KindButton, Mods: keycode.ModSuper, Code: keycode.BtnLeft}, func(keycode.Modifier, uint32, bool) bool {
		bindingFired = true
		return true
	})

	s.HandleModifier(keycode.ModSuper, true, nil)
	s.HandleButton(keycode.BtnLeft, true)

	if !bindingFired {
		t.Fatal("expected the button binding to fire")
	}
	if clientFired {
		t.Fatal("a consumed binding must not also forward to the client")
	}
}

func TestVTSwitchCombo(t *testing.T) {
	s, _, _ := newTestSeat(t)
	var gotVT int
	s.hooks.VTSwitch = func(vt int) { gotVT = vt }

	s.HandleModifier(keycode.ModCtrl, true, nil)
	s.HandleModifier(keycode.ModAlt, true, nil)
	consumed := s.HandleKey(0x3b+1, true, nil) // KEY_F2
	if !consumed {
		t.Fatal("expected the VT-switch combo to be consumed")
	}
	if gotVT != 2 {
		t.Fatalf("expected VT 2, got %d", gotVT)
	}
}

func TestGrabLifecycleRoutesInputAndRestoresCursorFocus(t *testing.T) {
	s, lookup, _ := newTestSeat(t)
	v := mappedView(t, 0, 0, 200, 200)
	lookup.ws.AddView(v, workspace.LayerWorkspace, 0, 0)
	s.UpdateCursorPosition(10, 10)
	if s.CursorFocus() == nil {
		t.Fatal("expected a cursor focus before grabbing")
	}

	var grabMotions int
	g := &koutput.Grab{
		Owner:           "test",
		OnPointerMotion: func(x, y float64) { grabMotions++ },
	}
	if !s.GrabInput(g, nil) {
		t.Fatal("expected GrabInput to succeed with no active grab")
	}
	if s.GrabInput(&koutput.Grab{Owner: "other"}, nil) {
		t.Fatal("expected a second GrabInput to fail while one is active")
	}

	s.UpdateCursorPosition(50, 50)
	if grabMotions != 1 {
		t.Fatalf("expected motion to route to the active grab, got %d calls", grabMotions)
	}

	s.UngrabInput()
	if s.InputGrabbed() {
		t.Fatal("expected InputGrabbed to be false after UngrabInput")
	}
	if s.CursorFocus() == nil {
		t.Fatal("expected cursor focus to be restored after ungrab")
	}
}

func TestSuspendResumeRegrabsRememberedGrab(t *testing.T) {
	s, _, _ := newTestSeat(t)
	cancelled := false
	g := &koutput.Grab{Owner: "test", Cancel: func() { cancelled = true }}
	s.GrabInput(g, nil)

	s.Suspend()
	if !cancelled {
		t.Fatal("expected Cancel to fire on suspend")
	}
	if s.InputGrabbed() {
		t.Fatal("expected the grab to be released while suspended")
	}
	if s.GrabInput(&koutput.Grab{Owner: "other"}, nil) {
		t.Fatal("expected a new grab to be refused while the seat is suspended")
	}

	s.Resume()
	if !s.InputGrabbed() || s.ActiveGrab() != g {
		t.Fatal("expected Resume to re-grab the remembered grab")
	}
	if s.Suspended() {
		t.Fatal("expected Suspended to be false after Resume")
	}
}
