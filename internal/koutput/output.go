// Package koutput implements Output, the logical-display type driving
// the render loop, plugin activation/inhibition and focus semantics
// from spec.md §4.B.
package koutput

import (
	"fmt"

	"github.com/kestrelwm/kestrel/internal/geom"
	"github.com/kestrelwm/kestrel/internal/view"
)

// Capability is the grab-interface ability bitmask, grounded on
// original_source/src/api/plugin.hpp's wayfire_grab_abilities.
type Capability uint32

const (
	CapChangeViewGeometry Capability = 1 << iota
	CapRecordScreen
	CapCustomRendering
	CapGrabInput
)

// ActivateFlags modifies activate_plugin's compatibility check,
// grounded on the lower_fs/flags parameter in output.hpp.
type ActivateFlags uint32

const (
	FlagNone ActivateFlags = 0
	// FlagIgnoreCompat lets an internal plugin bypass the capability
	// overlap check entirely.
	FlagIgnoreCompat ActivateFlags = 1 << iota
	// FlagIgnoreInhibit lets a plugin activate while the output is
	// inhibited (see Output.InhibitPlugins).
	FlagIgnoreInhibit
	// FlagAllowMultiple lets the same grab interface re-activate
	// itself, incrementing its own activation count instead of
	// failing the disjointness check against itself.
	FlagAllowMultiple
)

// FocusFlags modifies FocusView.
type FocusFlags uint32

const (
	FocusNone        FocusFlags = 0
	FocusRaise       FocusFlags = 1 << iota
	FocusClosePopups
)

// Grab is a plugin's activation handle: a capability mask plus the
// callback slots it receives events on while active, grounded on
// plugin.hpp's wayfire_grab_interface_t.
type Grab struct {
	Owner string
	Caps  Capability

	OnPointerButton func(button uint32, pressed bool)
	OnPointerMotion func(x, y float64)
	OnKeyboardKey   func(key uint32, pressed bool)
	OnKeyboardMod   func(mods uint32)
	OnTouchDown     func(id int32, x, y float64)
	OnTouchMotion   func(id int32, x, y float64)
	OnTouchUp       func(id int32)
	// Cancel is invoked exactly once when inhibition begins or a
	// session suspend occurs while this grab is active, per spec.md §5.
	Cancel func()
}

// Backend is the minimal back-end surface an Output needs: submitting
// damage and scheduling frames. Mode setting goes through
// outputlayout.Backend instead. A backend.FrameBackend, as returned by
// OutputBackend.FrameBackendFor, satisfies this.
type Backend interface {
	SubmitFrame(damage []geom.Rect)
	ScheduleFrame()
}

// EffectHook runs during a render pass with no scene-graph side
// effect of its own, grounded on plugin.hpp's effect_hook_t.
type EffectHook func()

// Renderer draws the view's surface tree; the default renderer walks
// workspace layers back-to-front. A plugin with CapCustomRendering
// may install its own via SetCustomRenderer.
type Renderer func(o *Output)

// Output is a logical display: back-end handle, mode/scale/transform,
// plugin activation state and render scheduling, per spec.md §3/§4.B.
type Output struct {
	Name string

	Width, Height, RefreshMHz int
	Scale                     float64
	Transform                 geom.Transform
	X, Y                      int // position in the global layout

	Backend Backend

	active       []*Grab
	activations  map[*Grab]int
	inhibited    bool
	customRender Renderer

	preEffects    []EffectHook
	overlayEffect []EffectHook

	autoRedrawCount int

	activeView    *view.View
	focusedLayer  int
	focusedOutput bool

	pendingDamage []geom.Rect

	// pendingPanelRefocus remembers a FocusView request that was
	// deferred because a "$unfocus" panel grab was active, per
	// spec.md §4.B.
	pendingPanelRefocus *view.View
}

// New returns an Output with scale 1, normal transform, and an empty
// active-plugin set.
func New(name string) *Output {
	return &Output{
		Name:        name,
		Scale:       1,
		activations: make(map[*Grab]int),
	}
}

// OutputScale implements the narrow interface internal/scene.Surface
// uses to read back the owning output's scale for damage expansion.
func (o *Output) OutputScale() float64 {
	if o.Scale <= 0 {
		return 1
	}
	return o.Scale
}

// GetEffectiveSize returns the output's size after its transform is
// applied, per spec.md §3's invariant that 90/270 rotations swap
// width and height.
func (o *Output) GetEffectiveSize() geom.Size {
	return o.Transform.Apply(geom.Size{W: o.Width, H: o.Height})
}

// Geometry returns the output's position-and-size in the global
// layout.
func (o *Output) Geometry() geom.Rect {
	s := o.GetEffectiveSize()
	return geom.Rect{X: o.X, Y: o.Y, W: s.W, H: s.H}
}

// Damage accumulates a region to be submitted at the next frame, and
// implements the scene.Output interface surfaces commit damage
// through.
func (o *Output) Damage(r geom.Rect) {
	o.pendingDamage = append(o.pendingDamage, r)
}

// AddPreEffect / AddOverlayEffect register render-loop hooks.
func (o *Output) AddPreEffect(h EffectHook)     { o.preEffects = append(o.preEffects, h) }
func (o *Output) AddOverlayEffect(h EffectHook) { o.overlayEffect = append(o.overlayEffect, h) }

// SetCustomRenderer installs a CapCustomRendering plugin's renderer,
// or clears it back to the default when r is nil.
func (o *Output) SetCustomRenderer(r Renderer) { o.customRender = r }

// RenderFrame runs one pass of the render loop described in spec.md
// §4.B: pre-effects, bind framebuffer (the caller's Backend is
// responsible for the actual bind), layers, overlay-effects, then
// submit damage and schedule the next frame if warranted. drawLayers
// is supplied by internal/workspace, which walks layers back-to-front
// and draws each view's surface tree — koutput does not import
// workspace directly, since workspace already depends on koutput for
// layer/output bookkeeping.
func (o *Output) RenderFrame(drawLayers Renderer) {
	for _, h := range o.preEffects {
		h()
	}

	if o.customRender != nil {
		o.customRender(o)
	} else if drawLayers != nil {
		drawLayers(o)
	}

	for _, h := range o.overlayEffect {
		h()
	}

	damage := o.pendingDamage
	o.pendingDamage = nil
	if o.Backend != nil {
		o.Backend.SubmitFrame(damage)
		if o.autoRedrawCount > 0 {
			o.Backend.ScheduleFrame()
		}
	}
}

// AutoRedraw adjusts the reference-counted continuous-redraw flag.
// Passing true increments, false decrements; redraw is scheduled
// continuously while the count is positive.
func (o *Output) AutoRedraw(enable bool) {
	if enable {
		o.autoRedrawCount++
	} else if o.autoRedrawCount > 0 {
		o.autoRedrawCount--
	}
}

// capsDisjoint reports whether g's capability mask shares no bits
// with any currently active grab.
func (o *Output) capsDisjoint(g *Grab) bool {
	for _, active := range o.active {
		if active == g {
			continue
		}
		if active.Caps&g.Caps != 0 {
			return false
		}
	}
	return true
}

// ActivatePlugin attempts to activate g under flags, per spec.md
// §4.B's compatibility rule.
func (o *Output) ActivatePlugin(g *Grab, flags ActivateFlags) bool {
	if o.inhibited && flags&FlagIgnoreInhibit == 0 {
		return false
	}
	_, alreadyActive := o.activations[g]
	if !alreadyActive && flags&FlagIgnoreCompat == 0 && !o.capsDisjoint(g) {
		return false
	}
	if alreadyActive && flags&FlagAllowMultiple == 0 {
		return false
	}
	if !alreadyActive {
		o.active = append(o.active, g)
	}
	o.activations[g]++
	return true
}

// DeactivatePlugin decrements g's activation count; when it reaches
// zero the grab is forcibly ungrabbed (removed from the active set
// and its Cancel hook, if any, is not invoked — Cancel is reserved
// for inhibition/suspend per spec.md §5, not a voluntary deactivate).
func (o *Output) DeactivatePlugin(g *Grab) bool {
	n, ok := o.activations[g]
	if !ok || n == 0 {
		return false
	}
	n--
	if n == 0 {
		delete(o.activations, g)
		for i, active := range o.active {
			if active == g {
				o.active = append(o.active[:i], o.active[i+1:]...)
				break
			}
		}
	} else {
		o.activations[g] = n
	}
	return true
}

// IsPluginActive reports whether g currently holds an activation.
func (o *Output) IsPluginActive(g *Grab) bool {
	return o.activations[g] > 0
}

// ActivePlugins returns the current active-plugin set, used by
// spec.md §8's pairwise-disjointness test.
func (o *Output) ActivePlugins() []*Grab {
	return append([]*Grab(nil), o.active...)
}

// InhibitPlugins freezes activation: every currently active grab's
// Cancel hook fires exactly once, then further ActivatePlugin calls
// fail unless FlagIgnoreInhibit is set.
func (o *Output) InhibitPlugins() {
	if o.inhibited {
		return
	}
	o.inhibited = true
	for _, g := range o.active {
		if g.Cancel != nil {
			g.Cancel()
		}
	}
}

// UninhibitPlugins clears the inhibited flag.
func (o *Output) UninhibitPlugins() { o.inhibited = false }

// FocusLayer sets the globally focused layer id, gating FocusView.
func (o *Output) FocusLayer(layer int) { o.focusedLayer = layer }

// FocusedLayer returns the layer set by FocusLayer.
func (o *Output) FocusedLayer() int { return o.focusedLayer }

// ActiveView returns the currently focused view, or nil.
func (o *Output) ActiveView() *view.View { return o.activeView }

// FocusView implements spec.md §4.B's focus rule: a request for a view
// in a layer below the focused layer is refused, unless the currently
// active view is an "$unfocus" panel grab — in which case the panel
// is deactivated and the request is remembered and replayed.
func (o *Output) FocusView(v *view.View, viewLayer int, flags FocusFlags) error {
	if viewLayer < o.focusedLayer {
		if o.activeView != nil && o.activeView.IsUnfocusPanel() {
			o.activeView.SetActivated(false)
			o.pendingPanelRefocus = v
			return nil
		}
		return fmt.Errorf("koutput: refusing focus for layer %d below focused layer %d", viewLayer, o.focusedLayer)
	}
	if o.activeView != nil {
		o.activeView.SetActivated(false)
	}
	o.activeView = v
	v.SetActivated(true)
	o.pendingPanelRefocus = nil
	return nil
}

// TakePendingRefocus returns and clears a view focus request that was
// deferred behind an "$unfocus" panel grab, so the seat can replay it
// once the panel finishes handling its own input.
func (o *Output) TakePendingRefocus() *view.View {
	v := o.pendingPanelRefocus
	o.pendingPanelRefocus = nil
	return v
}
