// Package outputlayout implements the desired-configuration
// reconciliation engine described in spec.md §4.C, grounded on
// original_source/src/core/output-layout.cpp (the original's largest
// single file: pre-check/disable/enable/mirror/finish passes,
// transfer_views, output_state_t::operator==).
package outputlayout

import (
	"fmt"

	"github.com/kestrelwm/kestrel/internal/geom"
	"github.com/kestrelwm/kestrel/internal/koutput"
	"github.com/kestrelwm/kestrel/internal/view"
	"github.com/kestrelwm/kestrel/internal/workspace"
)

// Source is one output's image source, grounded on output-layout.cpp's
// OUTPUT_IMAGE_SOURCE_{NONE,SELF,MIRROR}.
type Source int

const (
	SourceNone Source = iota
	SourceSelf
	SourceMirror
)

// Mode is a candidate display mode, grounded on wlr_output_mode.
type Mode struct {
	Width, Height, RefreshMHz int
}

// DesiredState is one output's entry in a target configuration, per
// spec.md §4.C's "mapping from physical-output-handle to {source,
// mode, position, scale, transform, mirror_from_name}".
type DesiredState struct {
	Source       Source
	Mode         Mode
	Position     geom.Point
	Scale        float64
	Transform    geom.Transform
	MirrorFrom   string
}

// Equal implements output_state_t::operator==: under SourceNone only
// Source matters; under SourceMirror only Source and MirrorFrom
// matter; otherwise every field must match.
func (d DesiredState) Equal(o DesiredState) bool {
	if d.Source == SourceNone {
		return o.Source == SourceNone
	}
	if d.Source == SourceMirror {
		return o.Source == SourceMirror && d.MirrorFrom == o.MirrorFrom
	}
	return d.Source == o.Source &&
		d.Position == o.Position &&
		d.Mode == o.Mode &&
		d.Transform == o.Transform &&
		d.Scale == o.Scale
}

// MonitorMode is one mode a physical display advertises.
type MonitorMode struct {
	Width, Height, RefreshMHz int
}

// Backend is the back-end surface output-layout reconciles against:
// enumerate available modes per physical handle, push a mode, and
// read/write the framebuffer for mirroring. Grounded on the
// Backend/Monitor shape in
// other_examples/.../bnema-waymon__internal-display-wlr_output_management_backend.go.go,
// adapted from a client-side monitor *enumerator* to the server-side
// mode-*setting* surface a compositor needs.
type Backend interface {
	// AvailableModes returns the modes handle advertises.
	AvailableModes(handle string) []MonitorMode
	// SetMode pushes width/height/refresh to handle. Returns false if
	// the driver rejects it (spec.md §7's "configuration rejected").
	SetMode(handle string, m Mode) bool
	// SupportsCustomMode reports whether handle's back-end can accept
	// an arbitrary mode outside AvailableModes (true for non-DRM
	// back-ends, per spec.md §4.C's mode-matching fallback).
	SupportsCustomMode(handle string) bool
}

// ManagedOutput is a live output instance plus the state
// output-layout needs to reconcile it: its koutput.Output, its
// workspace's view-transfer hooks, and the desired state last applied
// to it.
type ManagedOutput struct {
	Handle string
	Output *koutput.Output
	State  DesiredState

	// Views lists the WM_LAYERS (workspace/top/bottom) views this
	// output currently holds, used by the disable pass's transfer
	// step. Non-WM views (background, overlay, lock) are simply
	// dropped per transfer_views' second loop.
	Views      []*view.View
	NonWMViews []*view.View

	// Workspace is this output's workspace manager instance, per
	// spec.md §3's Output data model ("a workspace manager instance").
	// Its geometry is kept in sync with Output's by the enable pass.
	Workspace *workspace.Manager
}

// Layout holds the set of outputs the reconciliation algorithm
// operates over.
type Layout struct {
	Backend Backend

	outputs map[string]*ManagedOutput
	order   []string // registration order, for tie-breaking

	noop *ManagedOutput

	shuttingDown bool

	onConfigurationChanged func()

	// vwidth/vheight is the workspace grid size newly added outputs'
	// Workspace managers are created with, set via SetWorkspaceGrid
	// (defaulting to workspace.New's own 1x1 fallback otherwise).
	vwidth, vheight int
}

// New returns an empty layout against the given back-end.
func New(backend Backend) *Layout {
	return &Layout{Backend: backend, outputs: make(map[string]*ManagedOutput)}
}

// SetWorkspaceGrid sets the vwidth x vheight every subsequently added
// output's Workspace manager is constructed with, per spec.md §6's
// [core] vwidth/vheight keys.
func (l *Layout) SetWorkspaceGrid(vwidth, vheight int) {
	l.vwidth, l.vheight = vwidth, vheight
}

// OnConfigurationChanged registers the callback fired at the end of a
// successful Apply, per spec.md §4.C step 5.
func (l *Layout) OnConfigurationChanged(fn func()) { l.onConfigurationChanged = fn }

// AddOutput registers a new physical output, present but not yet
// configured (SourceNone).
func (l *Layout) AddOutput(handle string) *ManagedOutput {
	mo := &ManagedOutput{
		Handle:    handle,
		Output:    koutput.New(handle),
		Workspace: workspace.New(l.vwidth, l.vheight, geom.Rect{}),
	}
	l.outputs[handle] = mo
	l.order = append(l.order, handle)
	return mo
}

// RemoveOutput drops handle entirely (physical unplug), transferring
// its views to the next enabled output (the no-op output, created here,
// when handle was the only enabled one) via the same disable-pass
// logic Apply uses, so a hotplug unplug and an explicit source=NONE
// request behave identically — spec.md §8 scenario 6.
func (l *Layout) RemoveOutput(handle string) {
	mo, ok := l.outputs[handle]
	if !ok {
		return
	}
	wasOnlyEnabled := mo.State.Source == SourceSelf && l.enabledCount() == 1
	if wasOnlyEnabled && !l.shuttingDown {
		l.ensureNoop()
	}
	l.disable(mo)
	delete(l.outputs, handle)
	for i, h := range l.order {
		if h == handle {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
}

// enabledCount returns the number of outputs currently with
// Source == SourceSelf.
func (l *Layout) enabledCount() int {
	n := 0
	for _, mo := range l.outputs {
		if mo.State.Source == SourceSelf {
			n++
		}
	}
	return n
}

// nextEnabledTarget picks the output views should transfer to when
// from is disabled: the first other enabled output in registration
// order, falling back to the no-op output (the refuge step 1
// guarantees exists) if no other managed output remains.
func (l *Layout) nextEnabledTarget(from string) *ManagedOutput {
	for _, h := range l.order {
		if h == from {
			continue
		}
		if mo, ok := l.outputs[h]; ok && mo.State.Source == SourceSelf {
			return mo
		}
	}
	return l.noop
}

// Apply runs the 5-step reconciliation algorithm from spec.md §4.C
// against target, a map from output handle to desired state. Every
// enabled entry is first checked with MatchMode; if one has no
// acceptable mode, Apply returns an error before changing anything. A
// back-end SetMode rejection during the enable pass also returns an
// error, but the disable pass and any outputs already enabled stay
// applied: nothing is rolled back.
func (l *Layout) Apply(target map[string]DesiredState) error {
	if err := l.precheckModes(target); err != nil {
		return err
	}

	// 1. Pre-check: ensure a refuge exists if target disables every
	// output while the compositor is not shutting down.
	targetHasEnabled := false
	for _, s := range target {
		if s.Source == SourceSelf {
			targetHasEnabled = true
			break
		}
	}
	if !targetHasEnabled && l.enabledCount() > 0 && !l.shuttingDown {
		l.ensureNoop()
	}

	// 2. Disable pass.
	for handle, s := range target {
		if s.Source == SourceNone || s.Source == SourceMirror {
			if mo, ok := l.outputs[handle]; ok && mo.State.Source == SourceSelf {
				l.disable(mo)
			}
		}
	}

	// 3. Enable pass.
	for handle, s := range target {
		if s.Source != SourceSelf {
			continue
		}
		mo, ok := l.outputs[handle]
		if !ok {
			return fmt.Errorf("outputlayout: unknown output %q in target configuration", handle)
		}
		if !l.Backend.SetMode(handle, s.Mode) {
			return fmt.Errorf("outputlayout: back-end rejected mode %+v for %q", s.Mode, handle)
		}
		mo.Output.X, mo.Output.Y = s.Position.X, s.Position.Y
		mo.Output.Width, mo.Output.Height = s.Mode.Width, s.Mode.Height
		mo.Output.RefreshMHz = s.Mode.RefreshMHz
		mo.Output.Scale = s.Scale
		mo.Output.Transform = s.Transform
		mo.State = s
		if mo.Workspace != nil {
			mo.Workspace.SetOutputGeometry(mo.Output.Geometry())
		}
	}

	// 4. Mirror pass.
	for handle, s := range target {
		if s.Source != SourceMirror {
			continue
		}
		mo, ok := l.outputs[handle]
		if !ok {
			continue
		}
		src, srcOK := l.outputs[s.MirrorFrom]
		if !srcOK || src.State.Source != SourceSelf {
			mo.State = DesiredState{Source: SourceNone}
			continue
		}
		mo.State = s
	}

	for handle, s := range target {
		if s.Source == SourceNone {
			if mo, ok := l.outputs[handle]; ok {
				mo.State = s
			}
		}
	}

	// 5. Finish.
	if l.enabledCount() > 0 {
		l.removeNoop()
	}
	if l.onConfigurationChanged != nil {
		l.onConfigurationChanged()
	}
	return nil
}

func (l *Layout) precheckModes(target map[string]DesiredState) error {
	for handle, s := range target {
		if s.Source != SourceSelf {
			continue
		}
		if _, ok := l.outputs[handle]; !ok {
			return fmt.Errorf("outputlayout: unknown output %q", handle)
		}
		if _, ok := MatchMode(l.Backend, handle, s.Mode); !ok {
			return fmt.Errorf("outputlayout: no acceptable mode for %q matching %+v", handle, s.Mode)
		}
	}
	return nil
}

// MatchMode implements spec.md §4.C's mode-matching rule: exact match
// first, then same resolution at the highest available refresh, then
// a back-end custom mode where supported.
func MatchMode(backend Backend, handle string, want Mode) (Mode, bool) {
	modes := backend.AvailableModes(handle)
	for _, m := range modes {
		if m.Width == want.Width && m.Height == want.Height && m.RefreshMHz == want.RefreshMHz {
			return Mode(m), true
		}
	}
	var best *MonitorMode
	for i := range modes {
		m := &modes[i]
		if m.Width == want.Width && m.Height == want.Height {
			if best == nil || m.RefreshMHz > best.RefreshMHz {
				best = m
			}
		}
	}
	if best != nil {
		return Mode(*best), true
	}
	if backend.SupportsCustomMode(handle) {
		return want, true
	}
	return Mode{}, false
}

// disable shuts down mo's scene graph, transfers its WM_LAYERS views
// to the next enabled target, and marks it SourceNone — the disable
// pass body plus RemoveOutput's unplug path, both grounded on
// transfer_views.
func (l *Layout) disable(mo *ManagedOutput) {
	target := l.nextEnabledTarget(mo.Handle)

	views := append([]*view.View(nil), mo.Views...)
	// transfer_views reverses before re-attaching so the original
	// front-to-back focus order is preserved on the destination.
	for i, j := 0, len(views)-1; i < j; i, j = i+1, j-1 {
		views[i], views[j] = views[j], views[i]
	}
	mo.Views = nil

	if target != nil {
		for _, v := range views {
			layer := workspace.LayerWorkspace
			vx, vy := 0, 0
			if mo.Workspace != nil {
				if l, ok := mo.Workspace.LayerOf(v); ok {
					layer = l
				}
				mo.Workspace.RemoveView(v)
			}
			v.SetOutput(target.Output)
			target.Views = append(target.Views, v)
			if target.Workspace != nil {
				target.Workspace.AddView(v, layer, vx, vy)
				clampToWorkarea(v, target.Workspace.Workarea())
			}
			// clampToWorkarea above only nudges position; fullscreen/
			// tiled/maximized state is not re-asserted against the new
			// output's size. The view's own client stays the confirming
			// authority per spec.md §3's invariant, matching
			// transfer_views' separation of view-move from geometry-clamp.
		}
	} else {
		for _, v := range views {
			if mo.Workspace != nil {
				mo.Workspace.RemoveView(v)
			}
			v.SetOutput(nil)
		}
	}

	for _, v := range mo.NonWMViews {
		if mo.Workspace != nil {
			mo.Workspace.RemoveView(v)
		}
		v.SetOutput(nil)
	}
	mo.NonWMViews = nil

	mo.State = DesiredState{Source: SourceNone}
}

// clampToWorkarea keeps v's top-left corner inside workarea after a
// view transfer, per spec.md §4.C's "clamp wm-geometry into N's
// workarea". The view's client remains the source of truth for its
// confirmed size (spec.md §3's fullscreen/maximized invariant); this
// only nudges position, never size.
func clampToWorkarea(v *view.View, workarea geom.Rect) {
	if workarea.Empty() {
		return
	}
	x, y := v.SX, v.SY
	if x < workarea.X {
		x = workarea.X
	}
	if y < workarea.Y {
		y = workarea.Y
	}
	if maxX := workarea.X + workarea.W - v.Width; v.Width > 0 && x > maxX {
		x = maxX
	}
	if maxY := workarea.Y + workarea.H - v.Height; v.Height > 0 && y > maxY {
		y = maxY
	}
	v.SX, v.SY = x, y
}

// ensureNoop instantiates the no-op fallback output if one is not
// already present, per spec.md §4.C step 1 / §8 scenario 6.
func (l *Layout) ensureNoop() *ManagedOutput {
	if l.noop != nil {
		return l.noop
	}
	mo := &ManagedOutput{
		Handle:    "noop-0",
		Output:    koutput.New("noop-0"),
		State:     DesiredState{Source: SourceSelf},
		Workspace: workspace.New(l.vwidth, l.vheight, geom.Rect{}),
	}
	l.noop = mo
	return mo
}

// removeNoop tears down the no-op output once a real output is
// enabled again. Removal is immediate, inside Apply; no debounce delay
// is applied, here or by internal/kcore's event loop.
func (l *Layout) removeNoop() {
	if l.noop == nil {
		return
	}
	for _, v := range l.noop.Views {
		if t := l.nextEnabledTarget(""); t != nil {
			layer := workspace.LayerWorkspace
			if l.noop.Workspace != nil {
				if lay, ok := l.noop.Workspace.LayerOf(v); ok {
					layer = lay
				}
				l.noop.Workspace.RemoveView(v)
			}
			v.SetOutput(t.Output)
			t.Views = append(t.Views, v)
			if t.Workspace != nil {
				t.Workspace.AddView(v, layer, 0, 0)
				clampToWorkarea(v, t.Workspace.Workarea())
			}
		}
	}
	l.noop = nil
}

// NoopOutput returns the current no-op output, or nil if none exists.
func (l *Layout) NoopOutput() *ManagedOutput { return l.noop }

// Outputs returns the managed outputs in registration order.
func (l *Layout) Outputs() []*ManagedOutput {
	out := make([]*ManagedOutput, 0, len(l.order))
	for _, h := range l.order {
		out = append(out, l.outputs[h])
	}
	return out
}

// CurrentConfiguration returns the currently applied state of every
// managed output, used by the idempotence test
// Apply(CurrentConfiguration()) == no-op from spec.md §8.
func (l *Layout) CurrentConfiguration() map[string]DesiredState {
	out := make(map[string]DesiredState, len(l.outputs))
	for h, mo := range l.outputs {
		out[h] = mo.State
	}
	return out
}
