package kcore

import (
	"strings"
	"testing"

	"github.com/kestrelwm/kestrel/internal/backend"
	"github.com/kestrelwm/kestrel/internal/config"
	"github.com/kestrelwm/kestrel/internal/keycode"
	"github.com/kestrelwm/kestrel/internal/outputlayout"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	conf, err := config.Load(strings.NewReader("[core]\nvwidth = 2\nvheight = 2\n"))
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	return conf
}

func TestNewAppliesOptions(t *testing.T) {
	ob := backend.NewNoopBackend()
	ctx, err := New(testConfig(t), ob, ob, WithDebug("seat"), WithDamageDebug(), WithDamageRerender())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer ctx.Shutdown()

	if !ctx.Settings.Debug || ctx.Settings.DebugCategory != "seat" {
		t.Fatalf("expected WithDebug(\"seat\") to set Debug/DebugCategory, got %+v", ctx.Settings)
	}
	if !ctx.Settings.DamageDebug {
		t.Fatal("expected WithDamageDebug to set DamageDebug")
	}
	if !ctx.Settings.DamageRerender {
		t.Fatal("expected WithDamageRerender to set DamageRerender")
	}
}

func TestNewRejectsNilConfig(t *testing.T) {
	ob := backend.NewNoopBackend()
	if _, err := New(nil, ob, ob); err == nil {
		t.Fatal("expected an error for a nil config")
	}
}

// TestFocusedOutputTracksEnabledOutput mirrors spec.md §3's invariant
// that exactly one output is focused, exercised through outputLookup
// indirectly: after enabling one output, a key binding registered on
// its name fires; after it is removed, the lookup falls back without
// panicking.
func TestFocusedOutputTracksEnabledOutput(t *testing.T) {
	ob := backend.NewNoopBackend()
	ctx, err := New(testConfig(t), ob, ob)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer ctx.Shutdown()

	ctx.Layout.AddOutput("eDP-1")
	if err := ctx.Layout.Apply(map[string]outputlayout.DesiredState{
		"eDP-1": {Source: outputlayout.SourceSelf, Mode: outputlayout.Mode{Width: 1920, Height: 1080}, Scale: 1},
	}); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	fired := false
	ctx.Registry.AddKeyBinding("eDP-1", keycode.Activator{Kind: keycode.KindKey, Mods: keycode.ModSuper, Code: 30}, func(keycode.Modifier, uint32) bool {
		fired = true
		return true
	})

	ctx.Seat.HandleModifier(keycode.ModSuper, true, nil)
	ctx.Seat.HandleKey(30, true, nil)
	if !fired {
		t.Fatal("expected the binding on the focused output to fire")
	}

	if err := ctx.Layout.Apply(map[string]outputlayout.DesiredState{
		"eDP-1": {Source: outputlayout.SourceNone},
	}); err != nil {
		t.Fatalf("Apply (disable): %v", err)
	}
	ctx.Seat.HandleKey(30, true, nil) // must not panic once eDP-1 is gone
}

func TestSetFocusedOutput(t *testing.T) {
	ob := backend.NewNoopBackend()
	ctx, err := New(testConfig(t), ob, ob)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer ctx.Shutdown()

	ctx.Layout.AddOutput("eDP-1")
	ctx.Layout.AddOutput("HDMI-A-1")
	if err := ctx.Layout.Apply(map[string]outputlayout.DesiredState{
		"eDP-1":     {Source: outputlayout.SourceSelf, Mode: outputlayout.Mode{Width: 1920, Height: 1080}, Scale: 1},
		"HDMI-A-1":  {Source: outputlayout.SourceSelf, Mode: outputlayout.Mode{Width: 1280, Height: 720}, Scale: 1},
	}); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	ctx.SetFocusedOutput("HDMI-A-1")

	var fired string
	ctx.Registry.AddKeyBinding("eDP-1", keycode.Activator{Kind: keycode.KindKey, Mods: 0, Code: 1}, func(keycode.Modifier, uint32) bool {
		fired = "eDP-1"
		return true
	})
	ctx.Registry.AddKeyBinding("HDMI-A-1", keycode.Activator{Kind: keycode.KindKey, Mods: 0, Code: 1}, func(keycode.Modifier, uint32) bool {
		fired = "HDMI-A-1"
		return true
	})

	ctx.Seat.HandleKey(1, true, nil)
	if fired != "HDMI-A-1" {
		t.Fatalf("expected the explicitly focused output's binding to fire, got %q", fired)
	}
}
