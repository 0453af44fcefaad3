package geom

import "testing"

func TestRectUnion(t *testing.T) {
	a := Rect{0, 0, 10, 10}
	b := Rect{5, 5, 10, 10}
	got := a.Union(b)
	want := Rect{0, 0, 15, 15}
	if got != want {
		t.Fatalf("Union() = %v, want %v", got, want)
	}
}

func TestRectIntersectDisjoint(t *testing.T) {
	a := Rect{0, 0, 10, 10}
	b := Rect{20, 20, 5, 5}
	if got := a.Intersect(b); got != (Rect{}) {
		t.Fatalf("Intersect() = %v, want zero rect", got)
	}
}

func TestRectContainsBoundary(t *testing.T) {
	r := Rect{0, 0, 1920, 1080}
	if !r.Contains(Point{0, 0}) {
		t.Fatal("top-left corner should be contained")
	}
	if r.Contains(Point{1920, 0}) {
		t.Fatal("right edge is exclusive")
	}
}

func TestTransformApplySwap(t *testing.T) {
	s := Size{1920, 1080}
	if got := Transform90.Apply(s); got != (Size{1080, 1920}) {
		t.Fatalf("90 rotation got %v", got)
	}
	if got := TransformNormal.Apply(s); got != s {
		t.Fatalf("normal transform got %v", got)
	}
	if got := TransformFlipped.Apply(s); got != s {
		t.Fatalf("flip without rotation should not swap, got %v", got)
	}
}

func TestParseTransform(t *testing.T) {
	cases := map[string]Transform{
		"normal":     TransformNormal,
		"90":         Transform90,
		"90_flipped": Transform90Flipped,
	}
	for in, want := range cases {
		got, ok := ParseTransform(in)
		if !ok || got != want {
			t.Errorf("ParseTransform(%q) = %v, %v; want %v, true", in, got, ok, want)
		}
	}
	if _, ok := ParseTransform("bogus"); ok {
		t.Error("expected bogus transform to fail parsing")
	}
}
