// Package scene implements the compositor's surface tree: mapping,
// commit, damage accounting and front-to-back/back-to-front traversal
// over a surface and its subsurfaces and popups.
package scene

import (
	"fmt"
	"math"

	"github.com/kestrelwm/kestrel/internal/geom"
)

// Buffer is an opaque content handle — kestrel never interprets pixel
// data itself, matching spec.md §3's "content buffer (opaque handle)".
type Buffer interface{}

// Output is the minimal surface of internal/koutput.Output a surface
// needs: somewhere to submit damage. Defined here (rather than
// importing koutput) to keep scene a leaf package — koutput imports
// scene, not the other way around.
type Output interface {
	Damage(r geom.Rect)
}

// Surface is a drawable node in the scene graph, grounded on
// original_source/src/api/wayfire/surface.hpp's wayfire_surface_t and
// the commit protocol in src/view/surface.cpp.
type Surface struct {
	Buffer    Buffer
	Width     int
	Height    int
	Scale     float64
	Transform geom.Transform

	Parent   *Surface
	Children []*Surface

	Output Output

	Alpha float64 // in [0, 1]

	// SX, SY are this surface's position relative to Parent (or, for a
	// root surface, relative to its view's output-geometry origin).
	SX, SY int

	Mapped    bool
	keepCount int
	Destroyed bool

	// OutputX, OutputY cache the last commit's recomputed output
	// position (step 1 of the commit protocol), so a later commit can
	// tell whether it moved.
	OutputX, OutputY int
	positioned       bool

	// OpaqueShrink is the supplemented opaque-shrink-constraint
	// feature: a panel may claim its own edges are not input-opaque by
	// this many pixels, grounded on
	// wayfire_surface_t::set_opaque_shrink_constraint.
	OpaqueShrink int
}

// NewSurface returns an unmapped surface with Alpha fully opaque and a
// keep-count of one (the caller's own reference).
func NewSurface() *Surface {
	return &Surface{Alpha: 1, Scale: 1, keepCount: 1}
}

// Keep increments the destruction refcount, letting a plugin hold a
// reference across a close animation.
func (s *Surface) Keep() { s.keepCount++ }

// Release decrements the refcount. The surface is only actually
// destroyed once the count reaches zero and Destroyed is set.
func (s *Surface) Release() { s.keepCount-- }

// Alive reports whether the surface is still reachable from the scene
// graph, per spec.md §8's
// "keep_count == 0 ∧ destroyed ⇒ surface no longer reachable".
func (s *Surface) Alive() bool { return s.keepCount > 0 || !s.Destroyed }

// AddChild appends child to s's child list, making it the top-most
// child (later-added children are on top, per the traversal order
// rule). It rejects a cycle at link time, as spec.md §4.A requires.
func (s *Surface) AddChild(child *Surface) error {
	for p := s; p != nil; p = p.Parent {
		if p == child {
			return fmt.Errorf("scene: cannot add %p as a child of its own descendant", child)
		}
	}
	if child.Parent != nil {
		child.Parent.removeChild(child)
	}
	child.Parent = s
	child.setOutput(s.Output)
	s.Children = append(s.Children, child)
	return nil
}

// RemoveChild detaches child from its parent's child list. Per
// spec.md §4.A, a child that outlives its parent has Parent set to
// nil rather than being destroyed itself.
func (s *Surface) RemoveChild(child *Surface) {
	s.removeChild(child)
	child.Parent = nil
}

func (s *Surface) removeChild(child *Surface) {
	for i, c := range s.Children {
		if c == child {
			s.Children = append(s.Children[:i], s.Children[i+1:]...)
			return
		}
	}
}

// setOutput propagates an output assignment to a surface and,
// recursively, to all of its children — spec.md §3's "setting the
// parent's output recursively updates children".
func (s *Surface) setOutput(o Output) {
	s.Output = o
	for _, c := range s.Children {
		c.setOutput(o)
	}
}

// SetOutput is the public entry point used by view transfer (see
// internal/outputlayout) to move an entire surface tree to a new
// output.
func (s *Surface) SetOutput(o Output) { s.setOutput(o) }

// Map attaches buf as the surface's content and marks it mapped. Per
// the mapped invariant, Output must already be set.
func (s *Surface) Map(buf Buffer, w, h int) error {
	if s.Output == nil {
		return fmt.Errorf("scene: cannot map a surface with no output")
	}
	s.Buffer = buf
	s.Width, s.Height = w, h
	s.Mapped = true
	s.damageBounds()
	return nil
}

// Unmap clears the buffer but keeps the surface alive — destruction
// only happens via the keep-count/destroyed lifecycle.
func (s *Surface) Unmap() {
	s.damageBounds()
	s.Buffer = nil
	s.Mapped = false
}

// outputGeometry returns the surface's current output-relative
// bounding box, honoring its cached commit position when available.
func (s *Surface) outputGeometry() geom.Rect {
	x, y := s.OutputX, s.OutputY
	if !s.positioned {
		x, y = s.absolutePosition()
	}
	size := s.Transform.Apply(geom.Size{W: s.Width, H: s.Height})
	return geom.Rect{X: x, Y: y, W: size.W, H: size.H}
}

// GetOutputGeometry is the public accessor behind for_each_surface
// callers and the renderer.
func (s *Surface) GetOutputGeometry() geom.Rect { return s.outputGeometry() }

func (s *Surface) absolutePosition() (x, y int) {
	x, y = s.SX, s.SY
	for p := s.Parent; p != nil; p = p.Parent {
		x += p.SX
		y += p.SY
	}
	return x, y
}

func (s *Surface) damageBounds() {
	if s.Output == nil {
		return
	}
	s.Output.Damage(s.outputGeometry())
}

// Commit runs the three-step protocol from spec.md §4.A: recompute
// position, damage old+new bounds on a subsurface move, and submit the
// buffer-damage region (already expressed in output coordinates by the
// caller, via TranslateDamage) to the output's accumulator.
func (s *Surface) Commit(bufferDamage []geom.Rect) {
	before := s.outputGeometry()
	wasPositioned := s.positioned

	x, y := s.absolutePosition()
	moved := !wasPositioned || x != s.OutputX || y != s.OutputY
	s.OutputX, s.OutputY = x, y
	s.positioned = true

	isSubsurface := s.Parent != nil
	if isSubsurface && moved {
		s.damageRect(before)
		s.damageRect(s.outputGeometry())
	}

	for _, d := range bufferDamage {
		s.damageRect(s.TranslateDamage(d))
	}
}

func (s *Surface) damageRect(r geom.Rect) {
	if s.Output != nil {
		s.Output.Damage(r)
	}
}

// TranslateDamage converts a client-provided buffer-local damage rect
// into output coordinates: inverse surface-transform, buffer→surface
// scale, then surface→output scale, per spec.md §4.A step 3.
func (s *Surface) TranslateDamage(d geom.Rect) geom.Rect {
	local := inverseTransformRect(d, s.Transform, s.Width, s.Height)
	scaled := geom.Rect{
		X: int(math.Floor(float64(local.X) / s.scaleOrOne())),
		Y: int(math.Floor(float64(local.Y) / s.scaleOrOne())),
		W: int(math.Ceil(float64(local.W) / s.scaleOrOne())),
		H: int(math.Ceil(float64(local.H) / s.scaleOrOne())),
	}
	outputScale := s.outputScale()
	final := geom.Rect{
		X: int(math.Floor(float64(scaled.X) * outputScale)),
		Y: int(math.Floor(float64(scaled.Y) * outputScale)),
		W: int(math.Ceil(float64(scaled.W) * outputScale)),
		H: int(math.Ceil(float64(scaled.H) * outputScale)),
	}
	if pad := expansionPadding(outputScale, s.scaleOrOne()); pad > 0 {
		final = final.Translate(-pad, -pad)
		final.W += 2 * pad
		final.H += 2 * pad
	}
	return final.Translate(s.OutputX, s.OutputY)
}

func (s *Surface) scaleOrOne() float64 {
	if s.Scale <= 0 {
		return 1
	}
	return s.Scale
}

// outputScale reports the scale of the surface's owning output, or 1
// if unattached. koutput.Output implements an OutputScale accessor
// through this narrow interface to avoid an import cycle.
func (s *Surface) outputScale() float64 {
	type scaled interface{ OutputScale() float64 }
	if o, ok := s.Output.(scaled); ok {
		return o.OutputScale()
	}
	return 1
}

// expansionPadding implements spec.md §4.A's "the damage is expanded
// by ceil(output_scale) - surface_scale pixels to compensate for
// fractional boundaries", clamped to zero so equal scales never grow
// damage.
func expansionPadding(outputScale, surfaceScale float64) int {
	pad := math.Ceil(outputScale) - surfaceScale
	if pad <= 0 {
		return 0
	}
	return int(math.Ceil(pad))
}

func inverseTransformRect(r geom.Rect, t geom.Transform, w, h int) geom.Rect {
	if t == geom.TransformNormal {
		return r
	}
	size := t.Apply(geom.Size{W: w, H: h})
	switch t {
	case geom.Transform180:
		return geom.Rect{X: size.W - r.X - r.W, Y: size.H - r.Y - r.H, W: r.W, H: r.H}
	case geom.Transform90:
		return geom.Rect{X: r.Y, Y: size.H - r.X - r.W, W: r.H, H: r.W}
	case geom.Transform270:
		return geom.Rect{X: size.W - r.Y - r.H, Y: r.X, W: r.H, H: r.W}
	case geom.TransformFlipped:
		return geom.Rect{X: size.W - r.X - r.W, Y: r.Y, W: r.W, H: r.H}
	case geom.Transform90Flipped:
		rot := geom.Rect{X: r.Y, Y: size.H - r.X - r.W, W: r.H, H: r.W}
		return geom.Rect{X: w - rot.X - rot.W, Y: rot.Y, W: rot.W, H: rot.H}
	case geom.Transform180Flipped:
		rot := geom.Rect{X: size.W - r.X - r.W, Y: size.H - r.Y - r.H, W: r.W, H: r.H}
		return geom.Rect{X: w - rot.X - rot.W, Y: rot.Y, W: rot.W, H: rot.H}
	case geom.Transform270Flipped:
		rot := geom.Rect{X: size.W - r.Y - r.H, Y: r.X, W: r.H, H: r.W}
		return geom.Rect{X: w - rot.X - rot.W, Y: rot.Y, W: rot.W, H: rot.H}
	default:
		return r
	}
}

// Visitor is called once per surface during a For Each traversal.
type Visitor func(s *Surface)

// ForEachSurface visits s and its descendants in the order spec.md
// §4.A defines: top-most-first when reverse is false, bottom-most
// first when reverse is true. Children are above their parent, so a
// surface is visited after (top-most-first) or before
// (bottom-most-first) its own children, and children are walked in
// last-added-is-top order.
func (s *Surface) ForEachSurface(visit Visitor, reverse bool) {
	if !reverse {
		s.walkTopFirst(visit)
	} else {
		s.walkBottomFirst(visit)
	}
}

func (s *Surface) walkTopFirst(visit Visitor) {
	for i := len(s.Children) - 1; i >= 0; i-- {
		s.Children[i].walkTopFirst(visit)
	}
	visit(s)
}

func (s *Surface) walkBottomFirst(visit Visitor) {
	visit(s)
	for _, c := range s.Children {
		c.walkBottomFirst(visit)
	}
}
