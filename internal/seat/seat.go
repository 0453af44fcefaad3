// Package seat implements the input dispatch engine of spec.md §4.D:
// seat-wide modifier/pointer/touch state, the keyboard/pointer/touch
// event paths, the single-grab lifecycle, and the VT-switch and
// session-suspend special cases. Grounded on
// original_source/src/input-manager.hpp (method-for-method: the
// handle_* functions below mirror input_manager::handle_keyboard_key,
// update_cursor_position, handle_touch_down/motion/up, grab_input /
// ungrab_input almost 1:1).
package seat

import (
	"github.com/kestrelwm/kestrel/internal/geom"
	"github.com/kestrelwm/kestrel/internal/gesture"
	"github.com/kestrelwm/kestrel/internal/keycode"
	"github.com/kestrelwm/kestrel/internal/klog"
	"github.com/kestrelwm/kestrel/internal/koutput"
	"github.com/kestrelwm/kestrel/internal/registry"
	"github.com/kestrelwm/kestrel/internal/scene"
	"github.com/kestrelwm/kestrel/internal/view"
	"github.com/kestrelwm/kestrel/internal/workspace"
)

// OutputLookup is the narrow surface Seat needs from the output set:
// find the output under a global point, and the one currently
// focused. internal/outputlayout.Layout and internal/koutput.Output
// together satisfy this through a thin adapter kept in
// internal/kcore, so seat does not import outputlayout directly (it
// would otherwise create an import cycle through koutput).
type OutputLookup interface {
	// OutputAt returns the output whose Geometry() contains p, ties
	// broken by registration order (the first-registered wins), per
	// spec.md §8's boundary-case.
	OutputAt(p geom.Point) *koutput.Output
	// Focused returns the currently focused output.
	Focused() *koutput.Output
	// WorkspaceOf returns o's workspace manager, used for hit-testing.
	WorkspaceOf(o *koutput.Output) *workspace.Manager
}

// ClientHooks are the callbacks seat invokes to forward unconsumed
// events to the client holding focus — the wl_surface-level protocol
// plumbing itself is out of scope per spec.md §1, but the core still
// needs somewhere to call into it.
type ClientHooks struct {
	OnSurfaceEnter func(s *scene.Surface, sx, sy int)
	OnSurfaceLeave func(s *scene.Surface)
	OnPointerMotion func(s *scene.Surface, sx, sy int)
	OnPointerButton func(s *scene.Surface, button uint32, pressed bool)
	OnScroll        func(s *scene.Surface, dx, dy float64)
	OnKeyboardKey   func(s *scene.Surface, key uint32, pressed bool)
	OnKeyboardMods  func(s *scene.Surface, mods uint32)
	OnTouchDown     func(s *scene.Surface, id int32, sx, sy int)
	OnTouchMotion   func(s *scene.Surface, id int32, sx, sy int)
	OnTouchUp       func(s *scene.Surface, id int32)
	// VTSwitch is called for a Ctrl+Alt+F<n> combo; the back-end owns
	// the actual session switch.
	VTSwitch func(vt int)
}

// Seat is the single default seat spec.md's glossary names: the
// aggregate reference-counted modifier state, cursor/touch focus, and
// the grab that currently owns input, if any.
type Seat struct {
	log klog.Logger

	outputs  OutputLookup
	bindings *registry.Registry
	hooks    ClientHooks

	PointerCount, KeyboardCount, TouchCount int
	modsCount                               map[keycode.Modifier]int
	heldMods                                keycode.Modifier

	cursorX, cursorY float64
	cursorFocus      *scene.Surface
	cursorFocusSX    int
	cursorFocusSY    int

	touchFocus map[int32]*scene.Surface
	touchSX    map[int32]int
	touchSY    map[int32]int

	gestures *gesture.Recognizer

	activeGrab       *koutput.Grab
	activeGrabOutput *koutput.Output

	suspended            bool
	rememberedGrab       *koutput.Grab
	rememberedGrabOutput *koutput.Output

	// touchGestureFired is set once the gesture recognizer classifies a
	// gesture mid-sequence (via HandleTouchMotion) and cleared when the
	// sequence's last finger lifts, so HandleTouchUp doesn't re-dispatch
	// the same gesture a second time.
	touchGestureFired bool
}

// New returns a Seat with no grab active and zeroed modifier counts.
func New(log klog.Logger, outputs OutputLookup, bindings *registry.Registry, hooks ClientHooks) *Seat {
	return &Seat{
		log:        log.With("seat"),
		outputs:    outputs,
		bindings:   bindings,
		hooks:      hooks,
		modsCount:  make(map[keycode.Modifier]int),
		touchFocus: make(map[int32]*scene.Surface),
		touchSX:    make(map[int32]int),
		touchSY:    make(map[int32]int),
		gestures:   gesture.NewRecognizer(),
	}
}

// --- Keyboard path (spec.md §4.D) ---

// vtCombo reports whether mods+key is a Ctrl+Alt+F1..F10 VT-switch
// combo, and which VT it targets.
func vtCombo(mods keycode.Modifier, key uint32) (int, bool) {
	if mods != keycode.ModCtrl|keycode.ModAlt {
		return 0, false
	}
	const keyF1 = 0x3b // KEY_F1, linux/input-event-codes.h
	if key >= keyF1 && key < keyF1+10 {
		return int(key-keyF1) + 1, true
	}
	return 0, false
}

// HandleKey runs the five-step keyboard path. focusedSurface is the
// client surface currently holding keyboard focus, or nil.
func (s *Seat) HandleKey(key uint32, pressed bool, focusedSurface *scene.Surface) bool {
	out := s.outputs.Focused()

	if pressed {
		if vt, ok := vtCombo(s.heldMods, key); ok {
			if s.hooks.VTSwitch != nil {
				s.hooks.VTSwitch(vt)
			}
			return true
		}
	}

	if s.activeGrab != nil {
		if s.activeGrab.OnKeyboardKey != nil {
			s.activeGrab.OnKeyboardKey(key, pressed)
		}
		return true
	}

	if out != nil && pressed {
		if s.bindings.DispatchKey(out.Name, s.heldMods, key) {
			return true
		}
	}

	if focusedSurface != nil && s.hooks.OnKeyboardKey != nil {
		s.hooks.OnKeyboardKey(focusedSurface, key, pressed)
	}
	return false
}

// HandleModifier updates the modifier depression count for mod and,
// if a grab is active, forwards the combined mask and consumes the
// event.
func (s *Seat) HandleModifier(mod keycode.Modifier, pressed bool, focusedSurface *scene.Surface) bool {
	if pressed {
		s.modsCount[mod]++
		s.heldMods |= mod
	} else if s.modsCount[mod] > 0 {
		s.modsCount[mod]--
		if s.modsCount[mod] == 0 {
			s.heldMods &^= mod
		}
	}

	if s.activeGrab != nil {
		if s.activeGrab.OnKeyboardMod != nil {
			s.activeGrab.OnKeyboardMod(uint32(s.heldMods))
		}
		return true
	}
	if focusedSurface != nil && s.hooks.OnKeyboardMods != nil {
		s.hooks.OnKeyboardMods(focusedSurface, uint32(s.heldMods))
	}
	return false
}

// Mods returns the modifiers currently held across every keyboard.
func (s *Seat) Mods() keycode.Modifier { return s.heldMods }

// --- Pointer path ---

// UpdateCursorPosition implements spec.md §4.D's four-step pointer
// path, called after both relative and absolute motion have updated
// s.cursorX/Y.
func (s *Seat) UpdateCursorPosition(x, y float64) {
	s.cursorX, s.cursorY = x, y
	p := geom.Point{X: int(x), Y: int(y)}

	if s.activeGrab != nil {
		if s.activeGrab.OnPointerMotion != nil {
			s.activeGrab.OnPointerMotion(x, y)
		}
		return
	}

	out := s.outputs.OutputAt(p)
	if out == nil {
		out = s.outputs.Focused()
	}
	if out == nil {
		return
	}

	var newFocus *scene.Surface
	var sx, sy int
	ws := s.outputs.WorkspaceOf(out)
	if ws != nil {
		ws.ForEachViewReverse(func(layer workspace.Layer, v *view.View) {
			if newFocus != nil {
				return
			}
			if layer != workspace.LayerWorkspace {
				return
			}
			if surf, local, ok := v.HitTest(p); ok {
				newFocus, sx, sy = surf, local.X, local.Y
			}
		})
	}

	s.setCursorFocus(newFocus, sx, sy)
	if newFocus != nil && s.hooks.OnPointerMotion != nil {
		s.hooks.OnPointerMotion(newFocus, sx, sy)
	}
}

func (s *Seat) setCursorFocus(surf *scene.Surface, sx, sy int) {
	if surf == s.cursorFocus {
		s.cursorFocusSX, s.cursorFocusSY = sx, sy
		return
	}
	if s.cursorFocus != nil && s.hooks.OnSurfaceLeave != nil {
		s.hooks.OnSurfaceLeave(s.cursorFocus)
	}
	s.cursorFocus = surf
	s.cursorFocusSX, s.cursorFocusSY = sx, sy
	if surf != nil && s.hooks.OnSurfaceEnter != nil {
		s.hooks.OnSurfaceEnter(surf, sx, sy)
	}
}

// CursorFocus returns the surface currently under the cursor, or nil.
func (s *Seat) CursorFocus() *scene.Surface { return s.cursorFocus }

// HandleButton runs the button path: grab, then button bindings, then
// client forward.
func (s *Seat) HandleButton(button uint32, pressed bool) bool {
	if s.activeGrab != nil {
		if s.activeGrab.OnPointerButton != nil {
			s.activeGrab.OnPointerButton(button, pressed)
		}
		return true
	}
	out := s.outputs.Focused()
	if out != nil && s.bindings.DispatchButton(out.Name, s.heldMods, button, pressed) {
		return true
	}
	if s.cursorFocus != nil && s.hooks.OnPointerButton != nil {
		s.hooks.OnPointerButton(s.cursorFocus, button, pressed)
		return false
	}
	return false
}

// HandleScroll forwards a scroll event to the grab or the cursor
// focus; unlike motion/button it never updates hit-test state.
func (s *Seat) HandleScroll(dx, dy float64) bool {
	if s.activeGrab != nil {
		// Scroll has no dedicated grab callback slot in spec.md §3's
		// Grab type, so while a grab is active scroll is consumed
		// without reaching either the grab or the client.
		return true
	}
	if s.cursorFocus != nil && s.hooks.OnScroll != nil {
		s.hooks.OnScroll(s.cursorFocus, dx, dy)
	}
	return false
}

// --- Touch path ---

// HandleTouchDown registers a new finger and feeds the gesture
// recognizer.
func (s *Seat) HandleTouchDown(id int32, x, y float64) {
	out := s.outputs.Focused()
	w, h := 0, 0
	if out != nil {
		sz := out.GetEffectiveSize()
		w, h = sz.W, sz.H
	}
	s.gestures.Down(id, x, y, w, h)

	if s.activeGrab != nil {
		if s.activeGrab.OnTouchDown != nil {
			s.activeGrab.OnTouchDown(id, x, y)
		}
		return
	}

	if s.touchGestureFired {
		// A gesture already fired earlier in this sequence; spec.md
		// §4.D's scenario 5 wants no further client touch events until
		// every finger lifts.
		return
	}

	p := geom.Point{X: int(x), Y: int(y)}
	if out != nil {
		ws := s.outputs.WorkspaceOf(out)
		if ws != nil {
			var found *scene.Surface
			var sx, sy int
			ws.ForEachViewReverse(func(layer workspace.Layer, v *view.View) {
				if found != nil || layer != workspace.LayerWorkspace {
					return
				}
				if surf, local, ok := v.HitTest(p); ok {
					found, sx, sy = surf, local.X, local.Y
				}
			})
			if found != nil {
				s.touchFocus[id] = found
				s.touchSX[id], s.touchSY[id] = sx, sy
				if s.hooks.OnTouchDown != nil {
					s.hooks.OnTouchDown(found, id, sx, sy)
				}
			}
		}
	}
}

// HandleTouchMotion feeds the recognizer and, while below gesture
// threshold, forwards motion to whichever surface received the
// initial touch-down (or to the active grab). Recognition happens
// here, mid-sequence, rather than waiting for the last finger to
// lift: spec.md §4.D says "touch motion below the gesture threshold
// is forwarded to the client" and scenario 5 requires clients see no
// touch events "after the gesture fires until all fingers lift". The
// moment the recognizer classifies a gesture, every finger already
// forwarded to a client gets a synthetic touch-up and the gesture
// binding dispatches immediately.
func (s *Seat) HandleTouchMotion(id int32, x, y float64) {
	ev, fired := s.gestures.Motion(id, x, y)

	if s.activeGrab != nil {
		if s.activeGrab.OnTouchMotion != nil {
			s.activeGrab.OnTouchMotion(id, x, y)
		}
		return
	}

	if fired {
		s.touchGestureFired = true
		s.synthesizeTouchUpAll()
		out := s.outputs.Focused()
		if out != nil {
			s.bindings.DispatchGesture(out.Name, ev)
		}
		return
	}

	if s.touchGestureFired {
		return
	}

	if surf, ok := s.touchFocus[id]; ok && s.hooks.OnTouchMotion != nil {
		s.hooks.OnTouchMotion(surf, id, s.touchSX[id], s.touchSY[id])
	}
}

// HandleTouchUp removes the finger. If a gesture was recognized for
// this sequence (either just now, with no prior Motion call to catch
// it, or earlier via HandleTouchMotion) and not yet dispatched, every
// finger forwarded to a client receives a synthetic touch-up and the
// gesture binding dispatches, per spec.md §4.D. touchGestureFired is
// cleared once the sequence's last finger lifts so the next sequence
// starts clean.
func (s *Seat) HandleTouchUp(id int32) {
	ev, fired := s.gestures.Up(id)

	if s.activeGrab != nil {
		if s.activeGrab.OnTouchUp != nil {
			s.activeGrab.OnTouchUp(id)
		}
		delete(s.touchFocus, id)
		delete(s.touchSX, id)
		delete(s.touchSY, id)
		return
	}

	if fired {
		if !s.touchGestureFired {
			s.synthesizeTouchUpAll()
			out := s.outputs.Focused()
			if out != nil {
				s.bindings.DispatchGesture(out.Name, ev)
			}
		}
		s.touchGestureFired = false
		return
	}

	if surf, ok := s.touchFocus[id]; ok {
		if s.hooks.OnTouchUp != nil {
			s.hooks.OnTouchUp(surf, id)
		}
		delete(s.touchFocus, id)
		delete(s.touchSX, id)
		delete(s.touchSY, id)
	}
}

// synthesizeTouchUpAll sends a synthetic up to every client-forwarded
// touch point still tracked, used when a gesture fires mid-sequence.
func (s *Seat) synthesizeTouchUpAll() {
	for id, surf := range s.touchFocus {
		if s.hooks.OnTouchUp != nil {
			s.hooks.OnTouchUp(surf, id)
		}
		delete(s.touchFocus, id)
		delete(s.touchSX, id)
		delete(s.touchSY, id)
	}
}

// --- Grab lifecycle ---

// GrabInput claims exclusive input for g, per spec.md §4.D: fails if
// another grab is active or the seat is suspended. On success, every
// currently tracked touch point gets a synthetic up. Keyboard focus is
// not touched (the seat holds none; it is the caller's own focus
// bookkeeping), and cursorFocus is left alone, since motion routes
// through the grab once active anyway.
func (s *Seat) GrabInput(g *koutput.Grab, output *koutput.Output) bool {
	if s.activeGrab != nil || s.suspended {
		return false
	}
	s.synthesizeTouchUpAll()
	s.activeGrab = g
	s.activeGrabOutput = output
	return true
}

// UngrabInput releases the active grab and restores cursor focus for
// the current pointer position, per spec.md §8's round-trip property.
func (s *Seat) UngrabInput() {
	if s.activeGrab == nil {
		return
	}
	s.activeGrab = nil
	s.activeGrabOutput = nil
	s.UpdateCursorPosition(s.cursorX, s.cursorY)
}

// InputGrabbed reports whether a grab currently owns input.
func (s *Seat) InputGrabbed() bool { return s.activeGrab != nil }

// ActiveGrab returns the currently active grab, or nil.
func (s *Seat) ActiveGrab() *koutput.Grab { return s.activeGrab }

// Suspend toggles the seat into the suspended state a VT-switch away
// from the compositor's VT triggers: the active grab, if any, is
// remembered and ungrabbed (its Cancel hook fires exactly once, per
// spec.md §5).
func (s *Seat) Suspend() {
	if s.suspended {
		return
	}
	s.suspended = true
	if s.activeGrab != nil {
		if s.activeGrab.Cancel != nil {
			s.activeGrab.Cancel()
		}
		s.rememberedGrab = s.activeGrab
		s.rememberedGrabOutput = s.activeGrabOutput
		s.activeGrab = nil
		s.activeGrabOutput = nil
	}
}

// Resume re-grabs the remembered grab, if any, and clears suspension.
func (s *Seat) Resume() {
	if !s.suspended {
		return
	}
	s.suspended = false
	if s.rememberedGrab != nil {
		g := s.rememberedGrab
		out := s.rememberedGrabOutput
		s.rememberedGrab = nil
		s.rememberedGrabOutput = nil
		s.GrabInput(g, out)
	}
}

// Suspended reports whether the seat is currently suspended.
func (s *Seat) Suspended() bool { return s.suspended }
