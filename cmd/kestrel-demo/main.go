// Command kestrel-demo runs kestrel nested inside a single window via
// internal/backend/sdlbackend, for trying out the compositor without a
// host Wayland session or a config file on disk — it builds a minimal
// in-memory config instead of reading one from $HOME.
package main

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/kestrelwm/kestrel/internal/backend/sdlbackend"
	"github.com/kestrelwm/kestrel/internal/config"
	"github.com/kestrelwm/kestrel/internal/kcore"
	"github.com/kestrelwm/kestrel/internal/outputlayout"
)

func init() {
	// sdlbackend.Run must stay on the thread sdlbackend.New initialized
	// SDL's video subsystem on; see sdlbackend's own doc comment.
	runtime.LockOSThread()
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "kestrel-demo:", err)
		os.Exit(1)
	}
}

func run() error {
	conf, err := config.Load(strings.NewReader("[core]\nvwidth = 3\nvheight = 3\n"))
	if err != nil {
		return fmt.Errorf("building demo config: %w", err)
	}

	b, err := sdlbackend.New(true)
	if err != nil {
		return fmt.Errorf("starting sdl backend: %w", err)
	}
	defer b.Close()

	ctx, err := kcore.New(conf, b, b, kcore.WithDebug("demo"), kcore.WithDamageDebug())
	if err != nil {
		return fmt.Errorf("building context: %w", err)
	}
	defer ctx.Shutdown()

	loop, err := kcore.NewLoop(ctx)
	if err != nil {
		return fmt.Errorf("building event loop: %w", err)
	}
	defer loop.Close()

	const handle = "demo-0"
	ctx.Layout.AddOutput(handle)
	if err := ctx.Layout.Apply(map[string]outputlayout.DesiredState{
		handle: {Source: outputlayout.SourceSelf, Mode: outputlayout.Mode{Width: 1280, Height: 720}, Scale: 1},
	}); err != nil {
		return fmt.Errorf("enabling demo output: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- loop.Run(b) }()

	if err := b.Run(); err != nil {
		return fmt.Errorf("sdl event pump: %w", err)
	}
	loop.Stop()
	return <-done
}
