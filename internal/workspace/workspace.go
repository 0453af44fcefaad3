// Package workspace implements the per-output workspace manager:
// a vwidth x vheight virtual grid of workspaces, N ordered layers of
// views, and the reserved-area workarea reflow described in spec.md
// §3/§8 scenario 3. Grounded on original_source/src/output.hpp's
// workspace_manager interface (get_workspace_grid_size,
// get_views_on_workspace, reserve_workarea/get_workarea) generalized
// from its fixed panel-reservation model to the general layer-shell
// "anchor + exclusive zone" model spec.md §6 names.
package workspace

import (
	"fmt"

	"github.com/kestrelwm/kestrel/internal/geom"
	"github.com/kestrelwm/kestrel/internal/view"
)

// Layer identifies one of the N ordered workspace layers, from back to
// front, matching spec.md §3's enumeration.
type Layer int

const (
	LayerBackground Layer = iota
	LayerBottom
	LayerWorkspace
	LayerTop
	LayerOverlay
	LayerLock
	LayerDesktopWidget
	numLayers
)

func (l Layer) String() string {
	switch l {
	case LayerBackground:
		return "background"
	case LayerBottom:
		return "bottom"
	case LayerWorkspace:
		return "workspace"
	case LayerTop:
		return "top"
	case LayerOverlay:
		return "overlay"
	case LayerLock:
		return "lock"
	case LayerDesktopWidget:
		return "desktop-widget"
	default:
		return "unknown"
	}
}

// Anchor is the edge a ReservedArea is anchored to, grounded on the
// layer-shell anchor edges spec.md §6 names.
type Anchor int

const (
	AnchorTop Anchor = iota
	AnchorBottom
	AnchorLeft
	AnchorRight
)

// ReservedArea is a panel-like view's claim on a strip of an output's
// workarea, per spec.md §3.
type ReservedArea struct {
	View   *view.View
	Anchor Anchor
	Size   int // exclusive zone / reserved_size in pixels
	order  int
}

type entry struct {
	v      *view.View
	vx, vy int // grid cell, meaningful only for LayerWorkspace
}

// Manager is one output's workspace manager: the virtual grid plus the
// N ordered layers.
type Manager struct {
	VWidth, VHeight      int
	CurrentVX, CurrentVY int

	layers [numLayers][]entry

	reserved     []ReservedArea
	reserveOrder int

	outputGeometry geom.Rect
}

// New returns a manager for a vwidth x vheight grid, starting at
// workspace (0, 0).
func New(vwidth, vheight int, outputGeometry geom.Rect) *Manager {
	if vwidth <= 0 {
		vwidth = 1
	}
	if vheight <= 0 {
		vheight = 1
	}
	return &Manager{VWidth: vwidth, VHeight: vheight, outputGeometry: outputGeometry}
}

// SetOutputGeometry updates the output-relative geometry Workarea and
// PanelGeometry compute against, called whenever the owning output's
// mode, scale or transform changes (internal/outputlayout's enable
// pass).
func (m *Manager) SetOutputGeometry(g geom.Rect) { m.outputGeometry = g }

// OutputGeometry returns the geometry last set by New or
// SetOutputGeometry.
func (m *Manager) OutputGeometry() geom.Rect { return m.outputGeometry }

// SetCurrentWorkspace moves the visible viewport, per spec.md §3's
// invariant that (current_vx, current_vy) stays within the grid.
func (m *Manager) SetCurrentWorkspace(vx, vy int) error {
	if vx < 0 || vx >= m.VWidth || vy < 0 || vy >= m.VHeight {
		return fmt.Errorf("workspace: (%d,%d) outside %dx%d grid", vx, vy, m.VWidth, m.VHeight)
	}
	m.CurrentVX, m.CurrentVY = vx, vy
	return nil
}

// AddView places v into layer, removing it from any layer it was
// previously in (a view is in at most one layer, per spec.md §3). vx,
// vy are only meaningful for LayerWorkspace.
func (m *Manager) AddView(v *view.View, layer Layer, vx, vy int) {
	m.RemoveView(v)
	m.layers[layer] = append(m.layers[layer], entry{v: v, vx: vx, vy: vy})
}

// RemoveView drops v from whichever layer holds it.
func (m *Manager) RemoveView(v *view.View) {
	for l := range m.layers {
		for i, e := range m.layers[l] {
			if e.v == v {
				m.layers[l] = append(m.layers[l][:i], m.layers[l][i+1:]...)
				return
			}
		}
	}
}

// LayerOf reports which layer currently holds v, and whether it was
// found.
func (m *Manager) LayerOf(v *view.View) (Layer, bool) {
	for l := range m.layers {
		for _, e := range m.layers[l] {
			if e.v == v {
				return Layer(l), true
			}
		}
	}
	return 0, false
}

// ViewsInLayer returns layer's views in render order (back-to-front).
func (m *Manager) ViewsInLayer(layer Layer) []*view.View {
	es := m.layers[layer]
	out := make([]*view.View, len(es))
	for i, e := range es {
		out[i] = e.v
	}
	return out
}

// ViewsOnWorkspace returns the LayerWorkspace views whose grid cell is
// (vx, vy), grounded on workspace_manager::get_views_on_workspace.
func (m *Manager) ViewsOnWorkspace(vx, vy int) []*view.View {
	var out []*view.View
	for _, e := range m.layers[LayerWorkspace] {
		if e.vx == vx && e.vy == vy {
			out = append(out, e.v)
		}
	}
	return out
}

// ForEachView walks every layer back-to-front (background first,
// desktop-widget last), matching the render loop's layer order in
// spec.md §4.B.
func (m *Manager) ForEachView(fn func(layer Layer, v *view.View)) {
	for l := Layer(0); l < numLayers; l++ {
		for _, e := range m.layers[l] {
			fn(l, e.v)
		}
	}
}

// ForEachViewReverse walks front-to-back, the focus-order traversal
// spec.md §3 names separately from render order.
func (m *Manager) ForEachViewReverse(fn func(layer Layer, v *view.View)) {
	for l := numLayers - 1; l >= 0; l-- {
		es := m.layers[l]
		for i := len(es) - 1; i >= 0; i-- {
			fn(Layer(l), es[i].v)
		}
	}
}

// ReserveWorkarea registers a panel-like view's claim on an edge
// stripe, in registration order. Returns the area's assigned order
// index, used to break ties when recomputing the workarea.
func (m *Manager) ReserveWorkarea(v *view.View, anchor Anchor, size int) int {
	ra := ReservedArea{View: v, Anchor: anchor, Size: size, order: m.reserveOrder}
	m.reserveOrder++
	m.reserved = append(m.reserved, ra)
	return ra.order
}

// UnreserveWorkarea removes a view's reserved-area claim, e.g. when
// the panel is unmapped.
func (m *Manager) UnreserveWorkarea(v *view.View) {
	for i, ra := range m.reserved {
		if ra.View == v {
			m.reserved = append(m.reserved[:i], m.reserved[i+1:]...)
			return
		}
	}
}

// Workarea computes the output geometry minus the union of reserved
// stripes, applied in registration order — spec.md §3's invariant
// "two conflicting anchors are resolved by registration order (first
// wins)" and §8 scenario 3's literal arithmetic.
func (m *Manager) Workarea() geom.Rect {
	area := m.outputGeometry
	areas := append([]ReservedArea(nil), m.reserved...)
	for i := 0; i < len(areas); i++ {
		for j := i + 1; j < len(areas); j++ {
			if areas[j].order < areas[i].order {
				areas[i], areas[j] = areas[j], areas[i]
			}
		}
	}
	for _, ra := range areas {
		switch ra.Anchor {
		case AnchorTop:
			area.Y += ra.Size
			area.H -= ra.Size
		case AnchorBottom:
			area.H -= ra.Size
		case AnchorLeft:
			area.X += ra.Size
			area.W -= ra.Size
		case AnchorRight:
			area.W -= ra.Size
		}
	}
	return area
}

// PanelGeometry returns the rectangle a reserved-area view should
// occupy, given its anchor and its desired thickness — spec.md §8
// scenario 3's panel placement. desiredSize is
// the panel's own thickness along its anchored axis (matching the
// example's exclusive-zone == desired-height/width case); the
// workarea as it stood immediately before this claim was added is used
// for the cross-axis span, so panels registered later span only the
// area still free.
func (m *Manager) PanelGeometry(order int, anchor Anchor, desiredSize int) geom.Rect {
	area := m.outputGeometry
	for _, ra := range m.reserved {
		if ra.order >= order {
			continue
		}
		switch ra.Anchor {
		case AnchorTop:
			area.Y += ra.Size
			area.H -= ra.Size
		case AnchorBottom:
			area.H -= ra.Size
		case AnchorLeft:
			area.X += ra.Size
			area.W -= ra.Size
		case AnchorRight:
			area.W -= ra.Size
		}
	}
	switch anchor {
	case AnchorTop:
		return geom.Rect{X: area.X, Y: area.Y, W: area.W, H: desiredSize}
	case AnchorBottom:
		return geom.Rect{X: area.X, Y: area.Y + area.H - desiredSize, W: area.W, H: desiredSize}
	case AnchorLeft:
		return geom.Rect{X: area.X, Y: area.Y, W: desiredSize, H: area.H}
	case AnchorRight:
		return geom.Rect{X: area.X + area.W - desiredSize, Y: area.Y, W: desiredSize, H: area.H}
	default:
		return area
	}
}
