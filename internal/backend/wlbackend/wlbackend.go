// +build cgo

// Package wlbackend is kestrel's production back-end: it runs as a
// nested Wayland client against a host compositor, giving each
// kestrel output its own xdg_toplevel window on the host. No
// wayland-*server*-side cgo bindings exist anywhere in the retrieval
// pack this was built against — every wayland cgo example available
// (dominikh/go-libwayland, bnema/waymon) binds the *client* protocol —
// so rather than fabricate a libwayland-server binding from nothing,
// kestrel's compositor runs the way Weston/mutter's own nested mode
// does: as a wayland-client of whatever outer session launched it,
// compositing its own clients into buffers it then presents as
// ordinary wl_surface content on the host. Grounded on
// dominikh-go-libwayland/wayland.go for the wl_display/wl_registry/
// wl_compositor/wl_shm/xdg_wm_base call shapes and Display.proxies
// bookkeeping, and on
// other_examples/.../bnema-waymon__internal-display-wlr_output_management_backend.go.go
// for the cgo build tag and registry-listener idiom.
package wlbackend

/*
#cgo pkg-config: wayland-client
#include <stdlib.h>
#include <string.h>
#include <wayland-client.h>
#include "xdg-shell-client-protocol.h"

extern void kestrelRegistryGlobal(void *data, struct wl_registry *registry, uint32_t name, const char *iface, uint32_t version);
extern void kestrelRegistryGlobalRemove(void *data, struct wl_registry *registry, uint32_t name);
extern void kestrelXdgSurfaceConfigure(void *data, struct xdg_surface *surf, uint32_t serial);
extern void kestrelXdgToplevelConfigure(void *data, struct xdg_toplevel *top, int32_t w, int32_t h, struct wl_array *states);
extern void kestrelXdgToplevelClose(void *data, struct xdg_toplevel *top);
extern void kestrelXdgWmBasePing(void *data, struct xdg_wm_base *base, uint32_t serial);
extern void kestrelPointerMotion(void *data, struct wl_pointer *p, uint32_t t, wl_fixed_t x, wl_fixed_t y);
extern void kestrelPointerButton(void *data, struct wl_pointer *p, uint32_t serial, uint32_t t, uint32_t button, uint32_t state);
extern void kestrelPointerAxis(void *data, struct wl_pointer *p, uint32_t t, uint32_t axis, wl_fixed_t value);
extern void kestrelKeyboardKey(void *data, struct wl_keyboard *k, uint32_t serial, uint32_t t, uint32_t key, uint32_t state);
extern void kestrelKeyboardModifiers(void *data, struct wl_keyboard *k, uint32_t serial, uint32_t mods_depressed, uint32_t mods_latched, uint32_t mods_locked, uint32_t group);

static const struct wl_registry_listener kestrel_registry_listener = {
	.global = kestrelRegistryGlobal,
	.global_remove = kestrelRegistryGlobalRemove,
};

static const struct xdg_surface_listener kestrel_xdg_surface_listener = {
	.configure = kestrelXdgSurfaceConfigure,
};

static const struct xdg_toplevel_listener kestrel_xdg_toplevel_listener = {
	.configure = kestrelXdgToplevelConfigure,
	.close = kestrelXdgToplevelClose,
};

static const struct xdg_wm_base_listener kestrel_xdg_wm_base_listener = {
	.ping = kestrelXdgWmBasePing,
};

static const struct wl_pointer_listener kestrel_pointer_listener = {
	.motion = kestrelPointerMotion,
	.button = kestrelPointerButton,
	.axis = kestrelPointerAxis,
};

static const struct wl_keyboard_listener kestrel_keyboard_listener = {
	.key = kestrelKeyboardKey,
	.modifiers = kestrelKeyboardModifiers,
};

static void kestrel_registry_add_listener(struct wl_registry *r, void *data) {
	wl_registry_add_listener(r, &kestrel_registry_listener, data);
}
static void kestrel_xdg_surface_add_listener(struct xdg_surface *s, void *data) {
	xdg_surface_add_listener(s, &kestrel_xdg_surface_listener, data);
}
static void kestrel_xdg_toplevel_add_listener(struct xdg_toplevel *t, void *data) {
	xdg_toplevel_add_listener(t, &kestrel_xdg_toplevel_listener, data);
}
static void kestrel_xdg_wm_base_add_listener(struct xdg_wm_base *b, void *data) {
	xdg_wm_base_add_listener(b, &kestrel_xdg_wm_base_listener, data);
}
static void kestrel_pointer_add_listener(struct wl_pointer *p, void *data) {
	wl_pointer_add_listener(p, &kestrel_pointer_listener, data);
}
static void kestrel_keyboard_add_listener(struct wl_keyboard *k, void *data) {
	wl_keyboard_add_listener(k, &kestrel_keyboard_listener, data);
}
*/
import "C"

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/kestrelwm/kestrel/internal/backend"
	"github.com/kestrelwm/kestrel/internal/geom"
	"github.com/kestrelwm/kestrel/internal/outputlayout"
)

// handleRegistry is the global table mapping an opaque uintptr data
// pointer (the Go-side *Backend or *toplevel, pinned for the duration
// of the connection) back to its Go object, since cgo callbacks only
// receive a void* — the same indirection dominikh-go-libwayland's
// Display.proxies map provides for its dispatcher.
var handleRegistry sync.Map // uintptr -> any

func registerHandle(v any) unsafe.Pointer {
	// A small boxed int serves as the opaque key; its address is what
	// gets passed through cgo as void*.
	key := new(byte)
	handleRegistry.Store(uintptr(unsafe.Pointer(key)), v)
	return unsafe.Pointer(key)
}

func lookupHandle(p unsafe.Pointer) any {
	v, _ := handleRegistry.Load(uintptr(p))
	return v
}

// Backend connects to the host Wayland compositor as a single client
// and exposes one xdg_toplevel window per kestrel output, as a nested-
// compositor back-end. cmd/kestrel does not open it; it always uses
// sdlbackend.
type Backend struct {
	display   *C.struct_wl_display
	registry  *C.struct_wl_registry
	comp      *C.struct_wl_compositor
	shm       *C.struct_wl_shm
	wmBase    *C.struct_xdg_wm_base
	seat      *C.struct_wl_seat
	pointer   *C.struct_wl_pointer
	keyboard  *C.struct_wl_keyboard

	toplevels map[string]*toplevel

	events chan backend.InputEvent

	pointerFocus string
	pointerX, pointerY float64
}

type toplevel struct {
	handle   string
	wlSurf   *C.struct_wl_surface
	xdgSurf  *C.struct_xdg_surface
	xdgTop   *C.struct_xdg_toplevel
	w, h     int
	configured bool
}

// Connect opens the host Wayland socket (WAYLAND_DISPLAY, or the
// default "wayland-0") and binds the globals kestrel needs: a
// compositor, an shm pool allocator, the xdg-shell base, and the
// default seat.
func Connect() (*Backend, error) {
	dpy := C.wl_display_connect(nil)
	if dpy == nil {
		return nil, fmt.Errorf("wlbackend: wl_display_connect failed (no host compositor?)")
	}
	b := &Backend{
		display:   dpy,
		toplevels: make(map[string]*toplevel),
		events:    make(chan backend.InputEvent, 64),
	}
	b.registry = C.wl_display_get_registry(dpy)
	C.kestrel_registry_add_listener(b.registry, registerHandle(b))
	C.wl_display_roundtrip(dpy)
	C.wl_display_roundtrip(dpy) // second round-trip resolves bound globals' own events (xdg_wm_base ping setup)

	if b.comp == nil || b.shm == nil || b.wmBase == nil {
		b.Close()
		return nil, fmt.Errorf("wlbackend: host compositor is missing wl_compositor, wl_shm or xdg_wm_base")
	}
	return b, nil
}

// Close tears down every toplevel and disconnects from the host.
func (b *Backend) Close() {
	for _, t := range b.toplevels {
		if t.xdgTop != nil {
			C.xdg_toplevel_destroy(t.xdgTop)
		}
		if t.xdgSurf != nil {
			C.xdg_surface_destroy(t.xdgSurf)
		}
		if t.wlSurf != nil {
			C.wl_surface_destroy(t.wlSurf)
		}
	}
	if b.registry != nil {
		C.wl_registry_destroy(b.registry)
	}
	if b.display != nil {
		C.wl_display_disconnect(b.display)
	}
}

// AvailableModes has no fixed list to offer in nested mode: the host
// compositor's own window manager picks the toplevel's eventual size
// via the xdg_toplevel configure event, so kestrel reports no modes
// and relies on SupportsCustomMode instead.
func (b *Backend) AvailableModes(handle string) []outputlayout.MonitorMode { return nil }

// SetMode creates handle's toplevel on first use (requesting the
// given size, which the host may override via configure). For an
// existing toplevel it only records the requested size and sends
// nothing to the host: xdg-shell has no direct client-initiated resize.
func (b *Backend) SetMode(handle string, m outputlayout.Mode) bool {
	t, ok := b.toplevels[handle]
	if ok {
		t.w, t.h = m.Width, m.Height
		return true
	}
	surf := C.wl_compositor_create_surface(b.comp)
	if surf == nil {
		return false
	}
	xdgSurf := C.xdg_wm_base_get_xdg_surface(b.wmBase, surf)
	top := C.xdg_surface_get_toplevel(xdgSurf)

	t = &toplevel{handle: handle, wlSurf: surf, xdgSurf: xdgSurf, xdgTop: top, w: m.Width, h: m.Height}
	b.toplevels[handle] = t

	C.kestrel_xdg_surface_add_listener(xdgSurf, registerHandle(t))
	C.kestrel_xdg_toplevel_add_listener(top, registerHandle(t))

	title := C.CString("kestrel: " + handle)
	defer C.free(unsafe.Pointer(title))
	C.xdg_toplevel_set_title(top, title)

	C.wl_surface_commit(surf)
	C.wl_display_roundtrip(b.display)
	return true
}

// SupportsCustomMode is always true: xdg-shell toplevels accept
// whatever size kestrel requests, subject to the host's own configure
// response.
func (b *Backend) SupportsCustomMode(handle string) bool { return true }

// FrameBackendFor returns handle's frame surface, creating a
// default-sized toplevel first if none exists yet.
func (b *Backend) FrameBackendFor(handle string) backend.FrameBackend {
	if _, ok := b.toplevels[handle]; !ok {
		b.SetMode(handle, outputlayout.Mode{Width: 1280, Height: 720})
	}
	return &frameSurface{b: b, handle: handle}
}

// Events returns the channel host-seat input is translated onto.
func (b *Backend) Events() <-chan backend.InputEvent { return b.events }

// Dispatch pumps the host connection's event queue once. Nothing in
// kestrel calls it: internal/kcore's loop does not poll this
// connection.
func (b *Backend) Dispatch() {
	C.wl_display_dispatch(b.display)
}

// Fd returns the host connection's file descriptor, for an event loop
// to add to its epoll set; internal/kcore's loop does not use it.
func (b *Backend) Fd() int {
	return int(C.wl_display_get_fd(b.display))
}

type frameSurface struct {
	b      *Backend
	handle string
}

// SubmitFrame damages the toplevel's surface over the given regions
// and commits. As with sdlbackend, real client pixel content does not
// flow through this interface (spec.md's Non-goals put buffer
// decoding out of scope); no buffer is attached, the surface only
// receives wl_surface_damage for each region and a commit.
func (f *frameSurface) SubmitFrame(damage []geom.Rect) {
	t, ok := f.b.toplevels[f.handle]
	if !ok {
		return
	}
	for _, r := range damage {
		C.wl_surface_damage(t.wlSurf, C.int32_t(r.X), C.int32_t(r.Y), C.int32_t(r.W), C.int32_t(r.H))
	}
	C.wl_surface_commit(t.wlSurf)
}

// ScheduleFrame commits the toplevel's surface once the host has sent a
// configure. It requests no wl_callback frame event, so SubmitFrame is
// not paced to the host's repaint cycle.
func (f *frameSurface) ScheduleFrame() {
	t, ok := f.b.toplevels[f.handle]
	if !ok || !t.configured {
		return
	}
	C.wl_surface_commit(t.wlSurf)
}

//export kestrelRegistryGlobal
func kestrelRegistryGlobal(data unsafe.Pointer, registry *C.struct_wl_registry, name C.uint32_t, iface *C.char, version C.uint32_t) {
	b, ok := lookupHandle(data).(*Backend)
	if !ok {
		return
	}
	switch C.GoString(iface) {
	case "wl_compositor":
		b.comp = (*C.struct_wl_compositor)(C.wl_registry_bind(registry, name, &C.wl_compositor_interface, 4))
	case "wl_shm":
		b.shm = (*C.struct_wl_shm)(C.wl_registry_bind(registry, name, &C.wl_shm_interface, 1))
	case "xdg_wm_base":
		b.wmBase = (*C.struct_xdg_wm_base)(C.wl_registry_bind(registry, name, &C.xdg_wm_base_interface, 1))
		C.kestrel_xdg_wm_base_add_listener(b.wmBase, registerHandle(b))
	case "wl_seat":
		b.seat = (*C.struct_wl_seat)(C.wl_registry_bind(registry, name, &C.wl_seat_interface, 5))
		b.pointer = C.wl_seat_get_pointer(b.seat)
		C.kestrel_pointer_add_listener(b.pointer, registerHandle(b))
		b.keyboard = C.wl_seat_get_keyboard(b.seat)
		C.kestrel_keyboard_add_listener(b.keyboard, registerHandle(b))
	}
}

//export kestrelRegistryGlobalRemove
func kestrelRegistryGlobalRemove(data unsafe.Pointer, registry *C.struct_wl_registry, name C.uint32_t) {}

//export kestrelXdgWmBasePing
func kestrelXdgWmBasePing(data unsafe.Pointer, base *C.struct_xdg_wm_base, serial C.uint32_t) {
	C.xdg_wm_base_pong(base, serial)
}

//export kestrelXdgSurfaceConfigure
func kestrelXdgSurfaceConfigure(data unsafe.Pointer, surf *C.struct_xdg_surface, serial C.uint32_t) {
	t, ok := lookupHandle(data).(*toplevel)
	if !ok {
		return
	}
	C.xdg_surface_ack_configure(surf, serial)
	t.configured = true
}

//export kestrelXdgToplevelConfigure
func kestrelXdgToplevelConfigure(data unsafe.Pointer, top *C.struct_xdg_toplevel, w, h C.int32_t, states *C.struct_wl_array) {
	t, ok := lookupHandle(data).(*toplevel)
	if !ok {
		return
	}
	if w > 0 && h > 0 {
		t.w, t.h = int(w), int(h)
	}
}

//export kestrelXdgToplevelClose
func kestrelXdgToplevelClose(data unsafe.Pointer, top *C.struct_xdg_toplevel) {}

const (
	wlPointerButtonStatePressed  = 1
	wlKeyboardKeyStatePressed    = 1
)

//export kestrelPointerMotion
func kestrelPointerMotion(data unsafe.Pointer, p *C.struct_wl_pointer, t C.uint32_t, x, y C.wl_fixed_t) {
	b, ok := lookupHandle(data).(*Backend)
	if !ok {
		return
	}
	fx, fy := float64(x)/256.0, float64(y)/256.0
	b.pointerX, b.pointerY = fx, fy
	b.events <- backend.InputEvent{Kind: backend.InputPointerMotion, PointerOutput: b.pointerFocus, PointerX: fx, PointerY: fy}
}

//export kestrelPointerButton
func kestrelPointerButton(data unsafe.Pointer, p *C.struct_wl_pointer, serial, t, button, state C.uint32_t) {
	b, ok := lookupHandle(data).(*Backend)
	if !ok {
		return
	}
	b.events <- backend.InputEvent{
		Kind:    backend.InputPointerButton,
		Button:  uint32(button),
		Pressed: int(state) == wlPointerButtonStatePressed,
	}
}

//export kestrelPointerAxis
func kestrelPointerAxis(data unsafe.Pointer, p *C.struct_wl_pointer, t, axis C.uint32_t, value C.wl_fixed_t) {
	b, ok := lookupHandle(data).(*Backend)
	if !ok {
		return
	}
	delta := float64(value) / 256.0
	ev := backend.InputEvent{Kind: backend.InputPointerScroll}
	if axis == 0 {
		ev.ScrollDY = delta
	} else {
		ev.ScrollDX = delta
	}
	b.events <- ev
}

//export kestrelKeyboardKey
func kestrelKeyboardKey(data unsafe.Pointer, k *C.struct_wl_keyboard, serial, t, key, state C.uint32_t) {
	b, ok := lookupHandle(data).(*Backend)
	if !ok {
		return
	}
	b.events <- backend.InputEvent{
		Kind:    backend.InputKeyboardKey,
		Key:     uint32(key),
		Pressed: int(state) == wlKeyboardKeyStatePressed,
	}
}

//export kestrelKeyboardModifiers
func kestrelKeyboardModifiers(data unsafe.Pointer, k *C.struct_wl_keyboard, serial, depressed, latched, locked, group C.uint32_t) {
	b, ok := lookupHandle(data).(*Backend)
	if !ok {
		return
	}
	b.events <- backend.InputEvent{Kind: backend.InputKeyboardMods, Mods: uint32(depressed) | uint32(latched)}
}
