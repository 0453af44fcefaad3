// Package view implements View, the scene.Surface subtype that
// represents a client's top-level window: its role, its
// maximize/fullscreen/tile/minimize state, its chain of render
// transforms, and an off-screen buffer cache used by transforms that
// need a snapshot of the view's own rendering.
package view

import (
	"github.com/kestrelwm/kestrel/internal/geom"
	"github.com/kestrelwm/kestrel/internal/scene"
)

// Role classifies a view per spec.md §3, grounded on
// original_source/src/api/view.hpp's wf_view_role — extended here with
// DESKTOP_WIDGET, which the original models as a SHELL_VIEW with a
// layer-shell surface rather than its own role; kestrel keeps it as a
// role of its own.
type Role int

const (
	RoleToplevel Role = iota
	RoleUnmanaged
	RoleShellView
	RoleDesktopWidget
)

func (r Role) String() string {
	switch r {
	case RoleToplevel:
		return "toplevel"
	case RoleUnmanaged:
		return "unmanaged"
	case RoleShellView:
		return "shell-view"
	case RoleDesktopWidget:
		return "desktop-widget"
	default:
		return "unknown"
	}
}

// Edges is a bitmask of tiled edges, matching wlr's WLR_EDGE_* values
// referenced in view.hpp's set_tiled.
type Edges uint32

const (
	EdgeLeft Edges = 1 << iota
	EdgeRight
	EdgeTop
	EdgeBottom
)

// Transformer applies a named 2-D or 3-D transform over a view's
// surface-local coordinates. Plugins register and unregister these by
// name, grounded on view.hpp's transform_t/get_transformer.
type Transformer interface {
	Name() string
	// ToTransformed maps a point from the view's untransformed local
	// space into transformed space.
	ToTransformed(p geom.Point) geom.Point
	// ToLocal is ToTransformed's inverse, used by the round-trip
	// property in spec.md §8.
	ToLocal(p geom.Point) geom.Point
}

// OffscreenBuffer caches a rendered snapshot of a view so a transform
// (e.g. a fade or a cube face) does not have to re-render the view's
// surface tree every frame it is visible, grounded on view.hpp's
// offscreen_buffer_t / last_offscreen_buffer_age.
type OffscreenBuffer struct {
	Buffer    scene.Buffer
	Age       int64
	Damage    []geom.Rect
	validFlag bool
}

// Valid reports whether the cached buffer still matches the view's
// current content.
func (b *OffscreenBuffer) Valid() bool { return b.validFlag && b.Buffer != nil }

// Invalidate forces the next render to produce a fresh snapshot.
func (b *OffscreenBuffer) Invalidate() { b.validFlag = false }

// Store records a freshly rendered snapshot.
func (b *OffscreenBuffer) Store(buf scene.Buffer, age int64) {
	b.Buffer, b.Age, b.validFlag = buf, age, true
}

// ForeignToplevel is the subset of the wlr-foreign-toplevel-management
// protocol a View exposes: a handle external window-list clients (task
// bars, docks) can use to query and request state changes, grounded
// on the toplevel_handle_v1_* request listeners in view.hpp (full body
// not present in the retrieval pack; shape follows the header and
// spec.md §6's protocol list).
type ForeignToplevel struct {
	Title string
	AppID string

	OnMaximizeRequest func(state bool)
	OnActivateRequest func()
	OnMinimizeRequest func(state bool)
	OnCloseRequest    func()
}

// View is a top-level client window: a scene.Surface plus the window
// management state spec.md §3 names.
type View struct {
	*scene.Surface

	Role Role

	Maximized  bool
	Fullscreen bool
	Activated  bool
	Minimized  bool

	TiledEdges Edges

	// savedLayer remembers the workspace layer this view occupied
	// before being fullscreened, so unfullscreening restores it —
	// view.hpp's saved_layer.
	savedLayer int
	hasSavedLayer bool

	transforms []Transformer

	Offscreen OffscreenBuffer

	Foreign *ForeignToplevel

	// AppID gates the "$unfocus" panel-grab exception in
	// internal/koutput's focus_view.
	AppID string
}

// New wraps a freshly created scene.Surface as a toplevel View.
func New(role Role) *View {
	return &View{Surface: scene.NewSurface(), Role: role}
}

// PushTransformer appends a named transform to the view's transform
// chain (later pushes render on top of earlier ones, matching the
// render order view.hpp's transforms list implies).
func (v *View) PushTransformer(t Transformer) {
	v.transforms = append(v.transforms, t)
}

// PopTransformer removes the most recently pushed transformer with
// the given name (view.hpp only documents "first transform with the
// given name" for get_transformer/pop_transformer, so this removes
// the most specific — i.e. most recently added — match).
func (v *View) PopTransformer(name string) Transformer {
	for i := len(v.transforms) - 1; i >= 0; i-- {
		if v.transforms[i].Name() == name {
			t := v.transforms[i]
			v.transforms = append(v.transforms[:i], v.transforms[i+1:]...)
			return t
		}
	}
	return nil
}

// GetTransformer returns the transform chain entry with the given
// name, or nil.
func (v *View) GetTransformer(name string) Transformer {
	for _, t := range v.transforms {
		if t.Name() == name {
			return t
		}
	}
	return nil
}

// ToTransformed applies the full transform chain in push order.
func (v *View) ToTransformed(p geom.Point) geom.Point {
	for _, t := range v.transforms {
		p = t.ToTransformed(p)
	}
	return p
}

// ToLocal applies the inverse of the full transform chain in reverse
// order — the round-trip property from spec.md §8 requires
// ToLocal(ToTransformed(p)) == p.
func (v *View) ToLocal(p geom.Point) geom.Point {
	for i := len(v.transforms) - 1; i >= 0; i-- {
		p = v.transforms[i].ToLocal(p)
	}
	return p
}

// SetMaximized records the maximize request in Maximized. Per spec.md
// §3's invariant, core only requests the state here; View does not
// check the flag against the client's committed geometry.
func (v *View) SetMaximized(m bool) { v.Maximized = m }

// SetFullscreen applies a fullscreen request, saving/restoring the
// pre-fullscreen workspace layer.
func (v *View) SetFullscreen(fs bool, currentLayer int) {
	if fs && !v.Fullscreen {
		v.savedLayer = currentLayer
		v.hasSavedLayer = true
	}
	v.Fullscreen = fs
}

// SavedLayer returns the layer this view should return to after
// unfullscreening, and whether one was saved.
func (v *View) SavedLayer() (int, bool) { return v.savedLayer, v.hasSavedLayer }

// SetActivated sets keyboard-activation state, reported to xdg-shell
// and to any foreign-toplevel handle.
func (v *View) SetActivated(a bool) {
	v.Activated = a
	if v.Foreign != nil && v.Foreign.OnActivateRequest != nil && a {
		v.Foreign.OnActivateRequest()
	}
}

// SetMinimized toggles minimized state.
func (v *View) SetMinimized(m bool) { v.Minimized = m }

// SetTiled replaces the tiled-edges bitmask.
func (v *View) SetTiled(edges Edges) { v.TiledEdges = edges }

// IsUnfocusPanel reports whether this view is the kind of panel grab
// that internal/koutput's focus_view special-cases: an AppID
// beginning with "$unfocus", per spec.md §4.B.
func (v *View) IsUnfocusPanel() bool {
	return len(v.AppID) >= len("$unfocus") && v.AppID[:len("$unfocus")] == "$unfocus"
}

// Progress is the supplemented easing helper grounded on
// GetProgress(float start, float end, float current_step, float
// max_steps) in original_source/src/api/plugin.hpp. It is used by
// transform animations (fade, slide) driven by the render loop's
// frame counter rather than wall-clock time, matching the original's
// step-based signature.
func Progress(start, end, currentStep, maxSteps float64) float64 {
	if maxSteps <= 0 {
		return end
	}
	t := currentStep / maxSteps
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	return start + (end-start)*t
}
