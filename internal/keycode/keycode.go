// Package keycode defines the modifier bitmask and activator grammar
// shared by config parsing, the binding registry and input dispatch —
// kept dependency-free so none of those three need to import another
// to share these types.
package keycode

import (
	"fmt"
	"strconv"
	"strings"
)

// Modifier is a bitmask of held modifier keys, grounded on
// original_source/src/api/plugin.hpp's MODIFIER_CTRL/ALT/SUPER/SHIFT.
type Modifier uint32

const (
	ModCtrl Modifier = 1 << iota
	ModAlt
	ModSuper
	ModShift
)

func (m Modifier) String() string {
	var parts []string
	if m&ModCtrl != 0 {
		parts = append(parts, "ctrl")
	}
	if m&ModAlt != 0 {
		parts = append(parts, "alt")
	}
	if m&ModSuper != 0 {
		parts = append(parts, "super")
	}
	if m&ModShift != 0 {
		parts = append(parts, "shift")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "+")
}

// Kind distinguishes a key activator from a button activator.
type Kind int

const (
	KindKey Kind = iota
	KindButton
)

// Activator is a resolved (modifiers, trigger) descriptor — spec.md's
// "Binding" minus the callback, and the thing a registry Activator
// indirection re-resolves at dispatch time when the user reassigns it.
type Activator struct {
	Mods Modifier
	Kind Kind
	// Code is a Linux input-event-code for KindKey (e.g. KEY_T) or a
	// button code for KindButton (e.g. BTN_LEFT).
	Code uint32
}

// Well-known button codes, matching linux/input-event-codes.h.
const (
	BtnLeft   uint32 = 0x110
	BtnRight  uint32 = 0x111
	BtnMiddle uint32 = 0x112
)

var namedButtons = map[string]uint32{
	"btn_left": BtnLeft, "left": BtnLeft,
	"btn_right": BtnRight, "right": BtnRight,
	"btn_middle": BtnMiddle, "middle": BtnMiddle,
}

// ParseActivator parses the grammar from spec.md §6:
//
//	<mod1> <mod2> ... KEY_X
//	<mod1> <mod2> ... (BTN_LEFT|BTN_RIGHT|BTN_MIDDLE|left|right|middle)
func ParseActivator(s string) (Activator, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return Activator{}, fmt.Errorf("keycode: empty activator")
	}
	var a Activator
	trigger := fields[len(fields)-1]
	for _, f := range fields[:len(fields)-1] {
		mod, ok := parseModifier(f)
		if !ok {
			return Activator{}, fmt.Errorf("keycode: unknown modifier %q in %q", f, s)
		}
		a.Mods |= mod
	}
	if code, ok := namedButtons[strings.ToLower(trigger)]; ok {
		a.Kind = KindButton
		a.Code = code
		return a, nil
	}
	code, err := parseKeyName(trigger)
	if err != nil {
		return Activator{}, fmt.Errorf("keycode: %w in %q", err, s)
	}
	a.Kind = KindKey
	a.Code = code
	return a, nil
}

func parseModifier(f string) (Modifier, bool) {
	switch strings.ToLower(strings.Trim(f, "<>")) {
	case "ctrl":
		return ModCtrl, true
	case "alt":
		return ModAlt, true
	case "super":
		return ModSuper, true
	case "shift":
		return ModShift, true
	default:
		return 0, false
	}
}

// parseKeyName accepts KEY_<NAME> (looked up in the keyNames table) or
// a literal numeric code, so configs can reference codes not yet named
// here without the parser rejecting them.
func parseKeyName(s string) (uint32, error) {
	if code, ok := keyNames[s]; ok {
		return code, nil
	}
	if strings.HasPrefix(s, "KEY_") {
		return 0, fmt.Errorf("unknown key name %q", s)
	}
	n, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("unrecognized activator trigger %q", s)
	}
	return uint32(n), nil
}
