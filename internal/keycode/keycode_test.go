package keycode

import "testing"

func TestParseActivatorKey(t *testing.T) {
	a, err := ParseActivator("<super> KEY_T")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Mods != ModSuper {
		t.Fatalf("mods = %v, want %v", a.Mods, ModSuper)
	}
	if a.Kind != KindKey || a.Code != keyNames["KEY_T"] {
		t.Fatalf("got %+v", a)
	}
}

func TestParseActivatorMultiMod(t *testing.T) {
	a, err := ParseActivator("<ctrl> <alt> KEY_F1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := ModCtrl | ModAlt
	if a.Mods != want {
		t.Fatalf("mods = %v, want %v", a.Mods, want)
	}
	if a.Code != 59 {
		t.Fatalf("code = %d, want 59", a.Code)
	}
}

func TestParseActivatorButtonNames(t *testing.T) {
	for _, s := range []string{"<ctrl> BTN_LEFT", "<ctrl> left"} {
		a, err := ParseActivator(s)
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", s, err)
		}
		if a.Kind != KindButton || a.Code != BtnLeft {
			t.Fatalf("%q: got %+v", s, a)
		}
	}
}

func TestParseActivatorNoModifiers(t *testing.T) {
	a, err := ParseActivator("middle")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Mods != 0 || a.Kind != KindButton || a.Code != BtnMiddle {
		t.Fatalf("got %+v", a)
	}
}

func TestParseActivatorLiteralCode(t *testing.T) {
	a, err := ParseActivator("<shift> 30")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Kind != KindKey || a.Code != 30 {
		t.Fatalf("got %+v", a)
	}
}

func TestParseActivatorUnknownModifier(t *testing.T) {
	if _, err := ParseActivator("<nosuchmod> KEY_T"); err == nil {
		t.Fatal("expected error for unknown modifier")
	}
}

func TestParseActivatorUnknownKey(t *testing.T) {
	if _, err := ParseActivator("<super> KEY_NOSUCHKEY"); err == nil {
		t.Fatal("expected error for unknown key name")
	}
}

func TestParseActivatorEmpty(t *testing.T) {
	if _, err := ParseActivator("   "); err == nil {
		t.Fatal("expected error for empty activator")
	}
}

func TestModifierString(t *testing.T) {
	cases := []struct {
		m    Modifier
		want string
	}{
		{0, "none"},
		{ModCtrl, "ctrl"},
		{ModCtrl | ModAlt, "ctrl+alt"},
		{ModCtrl | ModAlt | ModSuper | ModShift, "ctrl+alt+super+shift"},
	}
	for _, c := range cases {
		if got := c.m.String(); got != c.want {
			t.Errorf("%v.String() = %q, want %q", c.m, got, c.want)
		}
	}
}
