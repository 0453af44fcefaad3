// Package sdlbackend is a windowed, software back-end for kestrel: one
// SDL window per output, used for local development and for
// cmd/kestrel-demo's nested-compositor-in-a-window mode. Grounded on
// friedelschoen-ctxmenu's use of github.com/veandco/go-sdl2 (window
// creation, the sdl.WaitEventTimeout-driven pump, the *sdl.Renderer
// draw calls) adapted from a popup-menu window to a per-output
// compositor surface.
package sdlbackend

import (
	"fmt"

	"github.com/veandco/go-sdl2/sdl"

	"github.com/kestrelwm/kestrel/internal/backend"
	"github.com/kestrelwm/kestrel/internal/geom"
	"github.com/kestrelwm/kestrel/internal/outputlayout"
)

// Backend is an OutputBackend/InputBackend pair backed by one SDL
// window per output handle. Unlike a real DRM/wayland-client back-end
// it never rejects a mode and always reports itself able to take a
// custom size, since an SDL window can be resized to anything.
type Backend struct {
	damageDebug bool

	windows map[string]*window
	order   []string

	events chan backend.InputEvent
}

type window struct {
	handle string
	win    *sdl.Window
	render *sdl.Renderer
	w, h   int
}

// New initializes SDL's video subsystem and returns a ready Backend.
// Every submitted frame clears the window to a dark grey; damageDebug
// additionally outlines the frame's damage rectangles in red,
// mirroring the `-D|--damage-debug` CLI flag's effect on a real
// back-end's repaint.
func New(damageDebug bool) (*Backend, error) {
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return nil, fmt.Errorf("sdlbackend: sdl.Init: %w", err)
	}
	return &Backend{
		damageDebug: damageDebug,
		windows:     make(map[string]*window),
		events:      make(chan backend.InputEvent, 64),
	}, nil
}

// Close destroys every window and quits SDL. Call after Run returns.
func (b *Backend) Close() {
	for _, w := range b.windows {
		if w.render != nil {
			w.render.Destroy()
		}
		if w.win != nil {
			w.win.Destroy()
		}
	}
	sdl.Quit()
}

// AvailableModes reports the host display's native modes for handle's
// display index, falling back to a single 1920x1080@60 entry if SDL
// can't enumerate (e.g. headless Xvfb during tests).
func (b *Backend) AvailableModes(handle string) []outputlayout.MonitorMode {
	idx := b.displayIndex(handle)
	n, err := sdl.GetNumDisplayModes(idx)
	if err != nil || n <= 0 {
		return []outputlayout.MonitorMode{{Width: 1920, Height: 1080, RefreshMHz: 60000}}
	}
	modes := make([]outputlayout.MonitorMode, 0, n)
	for i := 0; i < n; i++ {
		m, err := sdl.GetDisplayMode(idx, i)
		if err != nil {
			continue
		}
		modes = append(modes, outputlayout.MonitorMode{
			Width:      int(m.W),
			Height:     int(m.H),
			RefreshMHz: int(m.RefreshRate) * 1000,
		})
	}
	return modes
}

// SetMode creates handle's window on first use, or resizes it
// thereafter. Always succeeds: SDL windows accept arbitrary sizes.
func (b *Backend) SetMode(handle string, m outputlayout.Mode) bool {
	w, ok := b.windows[handle]
	if !ok {
		win, err := sdl.CreateWindow(
			"kestrel: "+handle,
			sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED,
			int32(m.Width), int32(m.Height),
			sdl.WINDOW_SHOWN|sdl.WINDOW_RESIZABLE,
		)
		if err != nil {
			return false
		}
		render, err := sdl.CreateRenderer(win, -1, sdl.RENDERER_ACCELERATED)
		if err != nil {
			win.Destroy()
			return false
		}
		w = &window{handle: handle, win: win, render: render}
		b.windows[handle] = w
		b.order = append(b.order, handle)
	} else {
		w.win.SetSize(int32(m.Width), int32(m.Height))
	}
	w.w, w.h = m.Width, m.Height
	return true
}

// SupportsCustomMode is always true: a windowed back-end has no fixed
// mode list to be constrained by.
func (b *Backend) SupportsCustomMode(handle string) bool { return true }

func (b *Backend) displayIndex(handle string) int {
	for i, h := range b.order {
		if h == handle {
			return i % maxDisplays()
		}
	}
	return 0
}

func maxDisplays() int {
	n, err := sdl.GetNumVideoDisplays()
	if err != nil || n <= 0 {
		return 1
	}
	return n
}

// FrameBackendFor returns handle's per-output frame surface, created
// lazily if SetMode has not run for it yet (a 640x480 placeholder
// window, resized on the next SetMode call).
func (b *Backend) FrameBackendFor(handle string) backend.FrameBackend {
	if _, ok := b.windows[handle]; !ok {
		b.SetMode(handle, outputlayout.Mode{Width: 640, Height: 480})
	}
	return &frameSurface{b: b, handle: handle}
}

// Events returns the channel translated SDL input events are pushed
// onto by Run.
func (b *Backend) Events() <-chan backend.InputEvent { return b.events }

// frameSurface adapts one window to backend.FrameBackend.
type frameSurface struct {
	b      *Backend
	handle string
}

// submitFrame clears the window, outlines the damage rectangles when
// damageDebug is set, and presents.
// kestrel's scene graph does not hand SDL actual pixel content through
// this interface (spec.md's Non-goals put client-buffer decoding out
// of scope); this back-end exists to exercise and visualize the
// output-layout/damage pipeline, not to composite real client frames.
func (b *Backend) submitFrame(handle string, damage []geom.Rect) {
	w, ok := b.windows[handle]
	if !ok || w.render == nil {
		return
	}
	w.render.SetDrawColor(16, 16, 20, 255)
	w.render.Clear()
	if b.damageDebug {
		w.render.SetDrawColor(220, 40, 40, 255)
		for _, r := range damage {
			w.render.DrawRect(&sdl.Rect{X: int32(r.X), Y: int32(r.Y), W: int32(r.W), H: int32(r.H)})
		}
	}
	w.render.Present()
}

func (f *frameSurface) SubmitFrame(damage []geom.Rect) { f.b.submitFrame(f.handle, damage) }

// ScheduleFrame is a no-op kept only to satisfy backend.FrameBackend:
// Run drives a fixed poll loop rather than a frame-callback protocol,
// and a window is repainted only when SubmitFrame is called.
func (f *frameSurface) ScheduleFrame() {}

// Run pumps the SDL event queue until the last window closes or quit
// is requested, translating window/mouse/keyboard events into
// backend.InputEvent values. It must run on the goroutine that called
// New (SDL requires its event pump stay on the thread video was
// initialized on), so callers should runtime.LockOSThread their main
// goroutine before calling New, matching how cmd/kestrel-demo wires
// it up.
func (b *Backend) Run() error {
	defer close(b.events)
	for {
		if len(b.windows) == 0 {
			return nil
		}
		ev := sdl.WaitEventTimeout(250)
		if ev == nil {
			continue
		}
		switch e := ev.(type) {
		case *sdl.QuitEvent:
			return nil
		case *sdl.MouseMotionEvent:
			b.send(backend.InputEvent{
				Kind: backend.InputPointerMotion,
				PointerOutput: b.handleForWindow(e.WindowID),
				PointerX:      float64(e.X), PointerY: float64(e.Y),
				PointerDX: float64(e.XRel), PointerDY: float64(e.YRel),
			})
		case *sdl.MouseButtonEvent:
			b.send(backend.InputEvent{
				Kind:          backend.InputPointerButton,
				PointerOutput: b.handleForWindow(e.WindowID),
				Button:        uint32(e.Button),
				Pressed:       e.State == sdl.PRESSED,
			})
		case *sdl.MouseWheelEvent:
			b.send(backend.InputEvent{
				Kind:     backend.InputPointerScroll,
				ScrollDX: float64(e.X), ScrollDY: float64(e.Y),
			})
		case *sdl.KeyboardEvent:
			b.send(backend.InputEvent{
				Kind:    backend.InputKeyboardKey,
				Key:     uint32(e.Keysym.Scancode),
				Pressed: e.State == sdl.PRESSED,
				Mods:    uint32(e.Keysym.Mod),
			})
		case *sdl.WindowEvent:
			if e.Event == sdl.WINDOWEVENT_CLOSE {
				handle := b.handleForWindow(e.WindowID)
				if w, ok := b.windows[handle]; ok {
					w.render.Destroy()
					w.win.Destroy()
					delete(b.windows, handle)
				}
			}
		}
	}
}

func (b *Backend) send(ev backend.InputEvent) {
	select {
	case b.events <- ev:
	default:
	}
}

func (b *Backend) handleForWindow(id uint32) string {
	for handle, w := range b.windows {
		wid, err := w.win.GetID()
		if err == nil && wid == id {
			return handle
		}
	}
	return ""
}
