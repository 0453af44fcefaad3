package scene

import "github.com/kestrelwm/kestrel/internal/geom"

// HitTest walks s's surface tree top-most-first (the same order
// ForEachSurface(reverse=false) defines) and returns the first mapped
// surface whose output geometry contains p, plus p translated into
// that surface's local coordinates — the (sx, sy) pair spec.md §4.D's
// pointer path requires when it assigns a new cursor focus.
func (s *Surface) HitTest(p geom.Point) (*Surface, geom.Point, bool) {
	var found *Surface
	var local geom.Point
	s.ForEachSurface(func(cand *Surface) {
		if found != nil || !cand.Mapped {
			return
		}
		geo := cand.GetOutputGeometry()
		if geo.Contains(p) {
			found = cand
			local = geom.Point{X: p.X - geo.X, Y: p.Y - geo.Y}
		}
	}, false)
	return found, local, found != nil
}
