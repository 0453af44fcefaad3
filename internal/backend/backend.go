// Package backend defines the narrow back-end surfaces the core
// reconciles against and drives frames/input through, plus a
// dependency-free NoopBackend for tests that need a back-end without a
// real display connection.
//
// A production back-end (internal/backend/wlbackend, a cgo
// wayland-client client-emulation-turned-compositor surface) or a
// development one (internal/backend/sdlbackend, a windowed-software
// back-end) implements OutputBackend and InputBackend; kestrel's core
// packages (internal/koutput, internal/outputlayout, internal/seat)
// only ever see these interfaces, never a concrete back-end type,
// matching the "no static lifetime for any resource that owns a file
// descriptor or GPU handle" design note.
package backend

import (
	"github.com/kestrelwm/kestrel/internal/geom"
	"github.com/kestrelwm/kestrel/internal/outputlayout"
)

// FrameBackend is the per-output surface internal/koutput.Output
// drives a render pass through.
type FrameBackend interface {
	SubmitFrame(damage []geom.Rect)
	ScheduleFrame()
}

// OutputBackend is the full back-end surface internal/outputlayout
// reconciles desired configuration against: mode enumeration/setting
// (outputlayout.Backend) plus, per output handle, a FrameBackend for
// koutput to bind.
type OutputBackend interface {
	outputlayout.Backend

	// FrameBackendFor returns the per-output frame/damage surface for
	// handle, created the first time an output is enabled.
	FrameBackendFor(handle string) FrameBackend
}

// InputEvent is the union of raw input events a back-end delivers to
// internal/seat, tagged by Kind. Back-ends translate their own event
// representation (wl_pointer/wl_keyboard/wl_touch listeners for
// wlbackend, SDL_Event for sdlbackend) into this shape so
// internal/seat stays back-end agnostic, per spec.md §9's "no
// back-references from the back-end into compositor objects".
type InputEvent struct {
	Kind InputEventKind

	// Pointer fields.
	PointerOutput      string
	PointerX, PointerY float64
	PointerDX, PointerDY float64
	Button             uint32
	Pressed            bool
	ScrollDX, ScrollDY float64

	// Keyboard fields.
	Key  uint32
	Mods uint32

	// Touch fields.
	TouchID   int32
	TouchX    float64
	TouchY    float64

	// VTSwitch is set on InputVTSwitch to the target VT (1-10).
	VTSwitch int
}

// InputEventKind discriminates InputEvent's payload.
type InputEventKind int

const (
	InputPointerMotion InputEventKind = iota
	InputPointerButton
	InputPointerScroll
	InputKeyboardKey
	InputKeyboardMods
	InputTouchDown
	InputTouchMotion
	InputTouchUp
	InputVTSwitch
)

// InputBackend is the back-end surface internal/seat pulls raw events
// from. Implementations push InputEvent values onto a channel (or
// invoke a callback — concrete back-ends choose one); the seat never
// blocks waiting on the back-end directly, matching spec.md §5's
// "every callback runs to completion" rule: the event loop (see
// internal/kcore) is what multiplexes this channel with everything
// else.
type InputBackend interface {
	// Events returns the channel new input arrives on. Closed when the
	// back-end shuts down.
	Events() <-chan InputEvent
}

// NoopBackend is a pure-Go OutputBackend/InputBackend that accepts any
// mode, never rejects a configuration, and delivers no input.
// internal/kcore's tests use it as both output and input back-end (no
// cgo / display connection required). internal/outputlayout's no-op
// fallback output does not go through it.
type NoopBackend struct {
	events chan InputEvent
}

// NewNoopBackend returns a ready-to-use NoopBackend.
func NewNoopBackend() *NoopBackend {
	return &NoopBackend{events: make(chan InputEvent)}
}

func (b *NoopBackend) AvailableModes(handle string) []outputlayout.MonitorMode { return nil }
func (b *NoopBackend) SetMode(handle string, m outputlayout.Mode) bool         { return true }
func (b *NoopBackend) SupportsCustomMode(handle string) bool                   { return true }

func (b *NoopBackend) FrameBackendFor(handle string) FrameBackend { return noopFrame{} }

func (b *NoopBackend) Events() <-chan InputEvent { return b.events }

type noopFrame struct{}

func (noopFrame) SubmitFrame(damage []geom.Rect) {}
func (noopFrame) ScheduleFrame()                 {}
