// Package kcore assembles the compositor's context: the parsed
// config, the logger, the output layout, the plugin/binding registry
// and the seat, wired together the way the teacher (gioui.org/app)
// builds its Window — a functional-options constructor returning one
// value threaded explicitly through every subsystem, never a
// package-level singleton (spec.md §9, "Global state").
package kcore

import (
	"fmt"

	"github.com/kestrelwm/kestrel/internal/backend"
	"github.com/kestrelwm/kestrel/internal/config"
	"github.com/kestrelwm/kestrel/internal/geom"
	"github.com/kestrelwm/kestrel/internal/klog"
	"github.com/kestrelwm/kestrel/internal/koutput"
	"github.com/kestrelwm/kestrel/internal/outputlayout"
	"github.com/kestrelwm/kestrel/internal/registry"
	"github.com/kestrelwm/kestrel/internal/seat"
	"github.com/kestrelwm/kestrel/internal/workspace"
)

// Settings holds the values the CLI flags and environment in spec.md
// §6 feed into the context, applied through Option before New returns.
type Settings struct {
	Debug          bool
	DebugCategory  string
	DamageDebug    bool
	DamageRerender bool
	ConfigPath     string
	ConfigBackend  string
}

// Option mutates Settings during New, mirroring the teacher's
// `type Option func(unit.Metric, *Config)` pattern (app/window.go).
type Option func(*Settings)

// WithDebug turns on debug-level logging, optionally scoped to one
// category (the `-d|--debug [CATEGORY]` flag).
func WithDebug(category string) Option {
	return func(s *Settings) {
		s.Debug = true
		s.DebugCategory = category
	}
}

// WithDamageDebug enables the `-D` flag's damage visualisation.
func WithDamageDebug() Option { return func(s *Settings) { s.DamageDebug = true } }

// WithDamageRerender enables the `-R` flag's forced full-frame redraw.
func WithDamageRerender() Option { return func(s *Settings) { s.DamageRerender = true } }

// WithConfigPath overrides the default `~/.config/wayfire.ini` path
// (the `-c|--config` flag / WAYFIRE_CONFIG_FILE env var).
func WithConfigPath(path string) Option { return func(s *Settings) { s.ConfigPath = path } }

// WithConfigBackend names an alternate config-loading back-end (the
// `-B|--config-backend` flag); kestrel's own Raw/INI loader is always
// available as the default.
func WithConfigBackend(name string) Option { return func(s *Settings) { s.ConfigBackend = name } }

// Context is the single object every subsystem constructor receives
// explicitly, replacing the original's process-wide `core` singleton
// (spec.md §9).
type Context struct {
	Settings Settings
	Log      klog.Logger
	Conf     *config.Config

	Registry *registry.Registry
	Layout   *outputlayout.Layout
	Seat     *seat.Seat

	outBackend backend.OutputBackend
	inBackend  backend.InputBackend

	lookup *outputLookup
}

// New builds a Context against an already-parsed config and a
// concrete back-end pair (cmd/kestrel and cmd/kestrel-demo pass
// internal/backend/sdlbackend, tests pass internal/backend's
// NoopBackend).
func New(conf *config.Config, ob backend.OutputBackend, ib backend.InputBackend, opts ...Option) (*Context, error) {
	if conf == nil {
		return nil, fmt.Errorf("kcore: nil config")
	}
	var s Settings
	for _, o := range opts {
		o(&s)
	}

	log := klog.NewConsole(s.Debug)

	reg := registry.New(log, registry.PluginPaths(conf.Core.PluginPathPrefix))
	reg.LoadAll(conf.Core.Plugins, conf)

	layout := outputlayout.New(ob)
	layout.SetWorkspaceGrid(conf.Core.VWidth, conf.Core.VHeight)

	lookup := &outputLookup{layout: layout}

	ctx := &Context{
		Settings:   s,
		Log:        log,
		Conf:       conf,
		Registry:   reg,
		Layout:     layout,
		outBackend: ob,
		inBackend:  ib,
		lookup:     lookup,
	}

	hooks := seat.ClientHooks{
		VTSwitch: func(vt int) {
			ctx.Log.Info().Int("vt", vt).Msg("VT switch requested")
		},
	}
	ctx.Seat = seat.New(log, lookup, reg, hooks)

	layout.OnConfigurationChanged(func() {
		ctx.Log.Debug().Msg("output configuration changed")
		lookup.refreshFocused()
	})

	return ctx, nil
}

// Shutdown tears down every loaded plugin. It does not close the
// back-end; the caller (cmd/kestrel) owns that handle's lifetime.
func (c *Context) Shutdown() {
	c.Registry.Shutdown()
}

// outputLookup adapts outputlayout.Layout to seat.OutputLookup,
// tracking which output is focused (spec.md §3's invariant "exactly
// one output is the focused output, except during shutdown").
type outputLookup struct {
	layout  *outputlayout.Layout
	focused string
}

func (o *outputLookup) OutputAt(p geom.Point) *koutput.Output {
	for _, mo := range o.layout.Outputs() {
		if mo.State.Source != outputlayout.SourceSelf {
			continue
		}
		if mo.Output.Geometry().Contains(p) {
			return mo.Output
		}
	}
	return nil
}

func (o *outputLookup) Focused() *koutput.Output {
	for _, mo := range o.layout.Outputs() {
		if mo.Handle == o.focused && mo.State.Source == outputlayout.SourceSelf {
			return mo.Output
		}
	}
	// No explicit focus set yet (or the focused output just vanished):
	// fall back to the first enabled output in registration order, per
	// spec.md §3's invariant that exactly one output is focused.
	for _, mo := range o.layout.Outputs() {
		if mo.State.Source == outputlayout.SourceSelf {
			o.focused = mo.Handle
			return mo.Output
		}
	}
	if noop := o.layout.NoopOutput(); noop != nil {
		return noop.Output
	}
	return nil
}

func (o *outputLookup) WorkspaceOf(out *koutput.Output) *workspace.Manager {
	for _, mo := range o.layout.Outputs() {
		if mo.Output == out {
			return mo.Workspace
		}
	}
	if noop := o.layout.NoopOutput(); noop != nil && noop.Output == out {
		return noop.Workspace
	}
	return nil
}

// refreshFocused forgets the focused output once it no longer names an
// enabled output, so that Focused resolves a new one on its next call.
func (o *outputLookup) refreshFocused() {
	still := false
	for _, mo := range o.layout.Outputs() {
		if mo.Handle == o.focused && mo.State.Source == outputlayout.SourceSelf {
			still = true
		}
	}
	if !still {
		o.focused = ""
	}
}

// SetFocusedOutput lets the compositor (e.g. a plugin-driven
// output-switch binding) explicitly pick the focused output by
// handle.
func (c *Context) SetFocusedOutput(handle string) {
	c.lookup.focused = handle
}
