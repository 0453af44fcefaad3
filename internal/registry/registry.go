// Package registry implements the plugin loader and the binding
// tables input dispatch consumes, per spec.md §4.E: one Plugin
// instance cloned per output at output-added time, a monotonic
// binding id space with an (output -> [id]) index, and the
// activator-descriptor indirection that lets a binding's trigger be
// reassigned without the dispatch call sites changing.
package registry

import (
	"fmt"
	"plugin"
	"reflect"
	"sort"

	"github.com/kestrelwm/kestrel/internal/config"
	"github.com/kestrelwm/kestrel/internal/gesture"
	"github.com/kestrelwm/kestrel/internal/keycode"
	"github.com/kestrelwm/kestrel/internal/klog"
)

// Plugin is the interface every loaded module implements, grounded on
// original_source/src/api/plugin.hpp's wayfire_plugin_t: one Init per
// process, one per-output instance produced by NewInstance, Fini at
// either plugin-reload or compositor shutdown.
type Plugin interface {
	// Init is called exactly once, after the shared object is loaded,
	// with the parsed global configuration.
	Init(cfg *config.Config) error
	// NewInstance clones a fresh per-output instance of the plugin, run
	// at output-added time. The returned value's Fini is called when
	// that output is removed or the compositor shuts down.
	NewInstance() OutputPlugin
	// Fini runs once at shutdown, after every output instance's Fini.
	Fini()
}

// OutputPlugin is the per-output clone of a loaded Plugin.
type OutputPlugin interface {
	Fini()
}

// pluginEntryPointSymbol is the symbol every plugin .so exports, grounded on
// plugin-loader.cpp's newInstance()/getWayfireVersion() pair collapsed
// into one Go-idiomatic factory function.
const pluginEntryPointSymbol = "NewKestrelPlugin"

// ABIVersion gates plugin compatibility. A plugin .so must export a
// symbol "KestrelPluginABI" of type int equal to this value; mismatch
// is always fatal to the plugin, never to the compositor (spec.md
// §7.4, §4.E).
const ABIVersion = 1

type loadedPlugin struct {
	name   string
	plugin Plugin
	so     *plugin.Plugin
}

// Registry holds the loaded plugins and the binding tables. It is
// constructed once per compositor Context and passed explicitly to
// internal/seat, never held as a package-level
// global, per the "no static lifetime" design note.
type Registry struct {
	log klog.Logger

	paths []string // plugin search directories, in lookup order

	loaded map[string]*loadedPlugin

	nextID    int
	keyBind   map[int]*keyBinding
	btnBind   map[int]*buttonBinding
	touchBind map[int]*touchBinding
	gestBind  map[int]*gestureBinding
	byOutput  map[string][]int
}

// New returns an empty registry searching paths (in order) for plugin
// shared objects.
func New(log klog.Logger, paths []string) *Registry {
	return &Registry{
		log:       log.With("registry"),
		paths:     paths,
		loaded:    make(map[string]*loadedPlugin),
		keyBind:   make(map[int]*keyBinding),
		btnBind:   make(map[int]*buttonBinding),
		touchBind: make(map[int]*touchBinding),
		gestBind:  make(map[int]*gestureBinding),
		byOutput:  make(map[string][]int),
	}
}

// LoadAll loads every plugin named in names (the space-separated
// [core] plugins config key), skipping and logging any that fail to
// load — per spec.md §7.4, a plugin load failure never aborts the
// compositor.
func (r *Registry) LoadAll(names []string, cfg *config.Config) {
	for _, name := range names {
		if err := r.Load(name, cfg); err != nil {
			r.log.Error().Err(err).Str("plugin", name).Msg("failed to load plugin")
		}
	}
}

// Load resolves name to a .so on r.paths, opens it, checks its ABI
// version, and calls Init exactly once.
func (r *Registry) Load(name string, cfg *config.Config) error {
	if _, ok := r.loaded[name]; ok {
		return nil
	}
	path, ok := r.resolvePath(name)
	if !ok {
		return fmt.Errorf("registry: plugin %q not found on search path", name)
	}
	so, err := plugin.Open(path)
	if err != nil {
		return fmt.Errorf("registry: dlopen %q: %w", path, err)
	}
	abiSym, err := so.Lookup("KestrelPluginABI")
	if err != nil {
		return fmt.Errorf("registry: %q missing KestrelPluginABI: %w", name, err)
	}
	abi, ok := abiSym.(*int)
	if !ok || *abi != ABIVersion {
		return fmt.Errorf("registry: %q ABI mismatch (plugin built for a different kestrel version)", name)
	}
	entrySym, err := so.Lookup(pluginEntryPointSymbol)
	if err != nil {
		return fmt.Errorf("registry: %q missing %s: %w", name, pluginEntryPointSymbol, err)
	}
	factory, ok := entrySym.(func() Plugin)
	if !ok {
		return fmt.Errorf("registry: %q's %s has the wrong signature", name, pluginEntryPointSymbol)
	}
	p := factory()
	if err := p.Init(cfg); err != nil {
		return fmt.Errorf("registry: %q Init failed: %w", name, err)
	}
	// so is intentionally never dlclose()'d on the common path: Go's
	// plugin package documents that a *plugin.Plugin's code and data
	// stay mapped for the process lifetime once opened, which is
	// exactly the "tolerate library leakage across plugin reloads"
	// posture spec.md §9 calls for — kestrel keeps the handle alive
	// rather than pretend it can be unloaded.
	r.loaded[name] = &loadedPlugin{name: name, plugin: p, so: so}
	r.log.Info().Str("plugin", name).Str("path", path).Msg("loaded plugin")
	return nil
}

func (r *Registry) resolvePath(name string) (string, bool) {
	for _, dir := range r.paths {
		candidate := dir + "/" + name + ".so"
		if fileExists(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// InstantiateForOutput clones every loaded plugin once for the given
// output, returning the per-output instances for the caller to keep
// alive until the output is torn down. internal/outputlayout's
// AddOutput does not call it.
func (r *Registry) InstantiateForOutput(outputName string) map[string]OutputPlugin {
	out := make(map[string]OutputPlugin, len(r.loaded))
	for name, lp := range r.loaded {
		out[name] = lp.plugin.NewInstance()
	}
	return out
}

// Shutdown calls Fini on every loaded plugin (the per-output instances
// must already have had their own Fini called by the caller before
// this) and never calls dlclose, matching plugin-loader.cpp's ordering
// of "unloadable plugins first, then others" collapsed here since Go
// plugins never self-report unloadability.
func (r *Registry) Shutdown() {
	for _, lp := range r.loaded {
		lp.plugin.Fini()
	}
}

// --- Binding tables ---

// KeyCallback reports whether it consumed the event.
type KeyCallback func(mods keycode.Modifier, key uint32) bool

// ButtonCallback reports whether it consumed the event.
type ButtonCallback func(mods keycode.Modifier, button uint32, pressed bool) bool

// TouchCallback reports whether it consumed the event.
type TouchCallback func(id int32, x, y float64, phase TouchPhase) bool

// TouchPhase distinguishes down/motion/up for a TouchCallback.
type TouchPhase int

const (
	TouchDown TouchPhase = iota
	TouchMotion
	TouchUp
)

// GestureCallback reports whether it consumed the event.
type GestureCallback func(ev gesture.Event) bool

type keyBinding struct {
	id       int
	output   string
	order    int
	activator keycode.Activator
	cb       KeyCallback
}

type buttonBinding struct {
	id       int
	output   string
	order    int
	activator keycode.Activator
	cb       ButtonCallback
}

type touchBinding struct {
	id     int
	output string
	order  int
	mod    keycode.Modifier
	cb     TouchCallback
}

type gestureBinding struct {
	id      int
	output  string
	order   int
	gesture gesture.Type
	fingers int
	cb      GestureCallback
}

func (r *Registry) nextBindingID() int {
	r.nextID++
	return r.nextID
}

// AddKeyBinding registers cb under activator, owned by output. The id
// returned is stable for RemoveBinding; registration order governs
// dispatch order among bindings matching the same (mod, key).
func (r *Registry) AddKeyBinding(output string, activator keycode.Activator, cb KeyCallback) int {
	id := r.nextBindingID()
	r.keyBind[id] = &keyBinding{id: id, output: output, order: id, activator: activator, cb: cb}
	r.byOutput[output] = append(r.byOutput[output], id)
	return id
}

// AddButtonBinding registers cb under activator, owned by output.
func (r *Registry) AddButtonBinding(output string, activator keycode.Activator, cb ButtonCallback) int {
	id := r.nextBindingID()
	r.btnBind[id] = &buttonBinding{id: id, output: output, order: id, activator: activator, cb: cb}
	r.byOutput[output] = append(r.byOutput[output], id)
	return id
}

// AddTouchBinding registers a touch-mod binding, grounded on
// input-manager.hpp's add_touch(mod, touch_callback*, output).
func (r *Registry) AddTouchBinding(output string, mod keycode.Modifier, cb TouchCallback) int {
	id := r.nextBindingID()
	r.touchBind[id] = &touchBinding{id: id, output: output, order: id, mod: mod, cb: cb}
	r.byOutput[output] = append(r.byOutput[output], id)
	return id
}

// AddGestureBinding registers a gesture binding for a specific gesture
// type and minimum finger count, grounded on add_gesture.
func (r *Registry) AddGestureBinding(output string, g gesture.Type, fingers int, cb GestureCallback) int {
	id := r.nextBindingID()
	r.gestBind[id] = &gestureBinding{id: id, output: output, order: id, gesture: g, fingers: fingers, cb: cb}
	r.byOutput[output] = append(r.byOutput[output], id)
	return id
}

// RemoveBinding removes a binding by id, from whichever table holds
// it.
func (r *Registry) RemoveBinding(id int) {
	delete(r.keyBind, id)
	delete(r.btnBind, id)
	delete(r.touchBind, id)
	delete(r.gestBind, id)
	r.removeFromOutputIndex(id)
}

// RemoveByKeyCallback removes every key binding sharing cb's function
// pointer, grounded on input-manager.hpp's rem_key(key_callback*)
// overload. Go functions are not comparable, so identity is taken by
// reflect.Value.Pointer(), the idiomatic workaround.
func (r *Registry) RemoveByKeyCallback(cb KeyCallback) {
	target := reflect.ValueOf(cb).Pointer()
	for id, b := range r.keyBind {
		if reflect.ValueOf(b.cb).Pointer() == target {
			r.RemoveBinding(id)
		}
	}
}

// RemoveByButtonCallback is RemoveByKeyCallback for button bindings.
func (r *Registry) RemoveByButtonCallback(cb ButtonCallback) {
	target := reflect.ValueOf(cb).Pointer()
	for id, b := range r.btnBind {
		if reflect.ValueOf(b.cb).Pointer() == target {
			r.RemoveBinding(id)
		}
	}
}

// RemoveByOutput removes every binding owned by output, called at
// output teardown (free_output_bindings in input-manager.hpp).
func (r *Registry) RemoveByOutput(output string) {
	for _, id := range append([]int(nil), r.byOutput[output]...) {
		r.RemoveBinding(id)
	}
	delete(r.byOutput, output)
}

func (r *Registry) removeFromOutputIndex(id int) {
	for output, ids := range r.byOutput {
		for i, existing := range ids {
			if existing == id {
				r.byOutput[output] = append(ids[:i], ids[i+1:]...)
				return
			}
		}
	}
}

// DispatchKey invokes every key binding on output matching (mods,
// key), in registration order, returning whether any of them consumed
// the event. The set of candidate bindings is snapshotted up front,
// per spec.md §5's "registrations made mid-dispatch do not fire".
func (r *Registry) DispatchKey(output string, mods keycode.Modifier, key uint32) bool {
	var matches []*keyBinding
	for _, id := range r.byOutput[output] {
		if b, ok := r.keyBind[id]; ok && b.activator.Kind == keycode.KindKey && b.activator.Mods == mods && b.activator.Code == key {
			matches = append(matches, b)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].order < matches[j].order })
	consumed := false
	for _, b := range matches {
		if b.cb(mods, key) {
			consumed = true
		}
	}
	return consumed
}

// DispatchButton is DispatchKey for button bindings.
func (r *Registry) DispatchButton(output string, mods keycode.Modifier, button uint32, pressed bool) bool {
	var matches []*buttonBinding
	for _, id := range r.byOutput[output] {
		if b, ok := r.btnBind[id]; ok && b.activator.Kind == keycode.KindButton && b.activator.Mods == mods && b.activator.Code == button {
			matches = append(matches, b)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].order < matches[j].order })
	consumed := false
	for _, b := range matches {
		if b.cb(mods, button, pressed) {
			consumed = true
		}
	}
	return consumed
}

// DispatchTouch runs every touch binding on output whose mod matches
// the currently held modifiers.
func (r *Registry) DispatchTouch(output string, mods keycode.Modifier, id int32, x, y float64, phase TouchPhase) bool {
	var matches []*touchBinding
	for _, bid := range r.byOutput[output] {
		if b, ok := r.touchBind[bid]; ok && b.mod == mods {
			matches = append(matches, b)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].order < matches[j].order })
	consumed := false
	for _, b := range matches {
		if b.cb(id, x, y, phase) {
			consumed = true
		}
	}
	return consumed
}

// DispatchGesture runs every gesture binding on output matching ev's
// type and finger count.
func (r *Registry) DispatchGesture(output string, ev gesture.Event) bool {
	var matches []*gestureBinding
	for _, id := range r.byOutput[output] {
		if b, ok := r.gestBind[id]; ok && b.gesture == ev.Type && ev.Fingers >= b.fingers {
			matches = append(matches, b)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].order < matches[j].order })
	consumed := false
	for _, b := range matches {
		if b.cb(ev) {
			consumed = true
		}
	}
	return consumed
}

// SetKeyActivator hot-reassigns an existing key binding's trigger,
// implementing spec.md §4.E's "the registry resolves the activator
// descriptor to current (mod, key) ... at dispatch time, so that
// reconfiguration is hot".
func (r *Registry) SetKeyActivator(id int, a keycode.Activator) {
	if b, ok := r.keyBind[id]; ok {
		b.activator = a
	}
}

// SetButtonActivator is SetKeyActivator for button bindings.
func (r *Registry) SetButtonActivator(id int, a keycode.Activator) {
	if b, ok := r.btnBind[id]; ok {
		b.activator = a
	}
}
