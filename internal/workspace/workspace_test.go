package workspace

import (
	"testing"

	"github.com/kestrelwm/kestrel/internal/geom"
	"github.com/kestrelwm/kestrel/internal/view"
)

// TestExclusiveZoneReflow mirrors spec.md §8 scenario 3 literally.
func TestExclusiveZoneReflow(t *testing.T) {
	m := New(3, 3, geom.Rect{X: 0, Y: 0, W: 1920, H: 1080})

	panel1 := view.New(view.RoleShellView)
	order1 := m.ReserveWorkarea(panel1, AnchorTop, 30)
	got := m.PanelGeometry(order1, AnchorTop, 30)
	want := geom.Rect{X: 0, Y: 0, W: 1920, H: 30}
	if got != want {
		t.Fatalf("panel1 geometry = %v, want %v", got, want)
	}
	wa := m.Workarea()
	wantWA := geom.Rect{X: 0, Y: 30, W: 1920, H: 1050}
	if wa != wantWA {
		t.Fatalf("workarea after panel1 = %v, want %v", wa, wantWA)
	}

	panel2 := view.New(view.RoleShellView)
	order2 := m.ReserveWorkarea(panel2, AnchorLeft, 40)
	got2 := m.PanelGeometry(order2, AnchorLeft, 40)
	want2 := geom.Rect{X: 0, Y: 30, W: 40, H: 1050}
	if got2 != want2 {
		t.Fatalf("panel2 geometry = %v, want %v", got2, want2)
	}
	wa2 := m.Workarea()
	wantWA2 := geom.Rect{X: 40, Y: 30, W: 1880, H: 1050}
	if wa2 != wantWA2 {
		t.Fatalf("workarea after panel2 = %v, want %v", wa2, wantWA2)
	}
}

func TestSetCurrentWorkspaceBounds(t *testing.T) {
	m := New(3, 3, geom.Rect{W: 100, H: 100})
	if err := m.SetCurrentWorkspace(2, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.SetCurrentWorkspace(3, 0); err == nil {
		t.Fatal("expected an out-of-range workspace to be rejected")
	}
}

func TestViewAtMostOneLayer(t *testing.T) {
	m := New(3, 3, geom.Rect{W: 100, H: 100})
	v := view.New(view.RoleToplevel)
	m.AddView(v, LayerWorkspace, 0, 0)
	m.AddView(v, LayerTop, 0, 0)

	if l, ok := m.LayerOf(v); !ok || l != LayerTop {
		t.Fatalf("expected view to have moved to LayerTop, got %v ok=%v", l, ok)
	}
	if len(m.ViewsInLayer(LayerWorkspace)) != 0 {
		t.Fatal("view must be removed from its previous layer")
	}
}

func TestViewsOnWorkspaceFiltersByGridCell(t *testing.T) {
	m := New(3, 3, geom.Rect{W: 100, H: 100})
	a := view.New(view.RoleToplevel)
	b := view.New(view.RoleToplevel)
	m.AddView(a, LayerWorkspace, 0, 0)
	m.AddView(b, LayerWorkspace, 1, 0)

	got := m.ViewsOnWorkspace(0, 0)
	if len(got) != 1 || got[0] != a {
		t.Fatalf("expected only view a on (0,0), got %v", got)
	}
}

func TestForEachViewOrderIsBackToFront(t *testing.T) {
	m := New(3, 3, geom.Rect{W: 100, H: 100})
	bg := view.New(view.RoleShellView)
	widget := view.New(view.RoleDesktopWidget)
	m.AddView(widget, LayerDesktopWidget, 0, 0)
	m.AddView(bg, LayerBackground, 0, 0)

	var order []Layer
	m.ForEachView(func(l Layer, v *view.View) { order = append(order, l) })
	if len(order) != 2 || order[0] != LayerBackground || order[1] != LayerDesktopWidget {
		t.Fatalf("expected background before desktop-widget, got %v", order)
	}
}
