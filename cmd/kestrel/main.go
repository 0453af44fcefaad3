// Command kestrel is the compositor's entry point: it parses the CLI
// flags spec.md §6 defines, loads the INI config, builds a
// kcore.Context against a concrete back-end, and runs the event loop
// until told to stop. Flag parsing and the fatal-signal handler follow
// gioui.org's own cmd tree conventions (stdlib flag, no CLI framework
// dependency) — see DESIGN.md.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/kestrelwm/kestrel/internal/backend"
	"github.com/kestrelwm/kestrel/internal/backend/sdlbackend"
	"github.com/kestrelwm/kestrel/internal/config"
	"github.com/kestrelwm/kestrel/internal/kcore"
)

// version is overridden at release-build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath     string
		configBackend  string
		debugCat       string
		debugFlag      bool
		damageDebug    bool
		damageReRender bool
		showVersion    bool
	)

	fs := flag.NewFlagSet("kestrel", flag.ContinueOnError)
	fs.StringVar(&configPath, "c", "", "path to the configuration file")
	fs.StringVar(&configPath, "config", "", "path to the configuration file")
	fs.StringVar(&configBackend, "B", "", "configuration back-end name")
	fs.StringVar(&configBackend, "config-backend", "", "configuration back-end name")
	fs.BoolVar(&debugFlag, "d", false, "enable debug logging")
	fs.StringVar(&debugCat, "debug", "", "enable debug logging, optionally scoped to CATEGORY")
	fs.BoolVar(&damageDebug, "D", false, "visualize damage regions instead of compositing")
	fs.BoolVar(&damageDebug, "damage-debug", false, "visualize damage regions instead of compositing")
	fs.BoolVar(&damageReRender, "R", false, "force a full-frame redraw every commit")
	fs.BoolVar(&damageReRender, "damage-rerender", false, "force a full-frame redraw every commit")
	fs.BoolVar(&showVersion, "v", false, "print the version and exit")
	fs.BoolVar(&showVersion, "version", false, "print the version and exit")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: kestrel [-c PATH] [-B NAME] [-d [CATEGORY]] [-D] [-R] [-v] [-h]\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 1
	}
	if showVersion {
		fmt.Println("kestrel " + version)
		return 0
	}
	if debugCat != "" {
		debugFlag = true
	}

	installCrashHandler()

	if configPath == "" {
		if env := os.Getenv("WAYFIRE_CONFIG_FILE"); env != "" {
			configPath = env
		} else if home, err := os.UserHomeDir(); err == nil {
			configPath = home + "/.config/wayfire.ini"
		}
	}

	f, err := os.Open(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kestrel: opening config %q: %v\n", configPath, err)
		return 1
	}
	conf, err := config.Load(f)
	f.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "kestrel: parsing config %q: %v\n", configPath, err)
		return 1
	}

	ob, ib, closeBackend, err := openBackend(damageDebug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kestrel: %v\n", err)
		return 1
	}
	defer closeBackend()

	opts := []kcore.Option{}
	if debugFlag {
		opts = append(opts, kcore.WithDebug(debugCat))
	}
	if damageDebug {
		opts = append(opts, kcore.WithDamageDebug())
	}
	if damageReRender {
		opts = append(opts, kcore.WithDamageRerender())
	}
	if configPath != "" {
		opts = append(opts, kcore.WithConfigPath(configPath))
	}
	if configBackend != "" {
		opts = append(opts, kcore.WithConfigBackend(configBackend))
	}

	ctx, err := kcore.New(conf, ob, ib, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kestrel: %v\n", err)
		return 1
	}
	defer ctx.Shutdown()

	loop, err := kcore.NewLoop(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kestrel: %v\n", err)
		return 1
	}
	defer loop.Close()

	stopSig := make(chan os.Signal, 1)
	signal.Notify(stopSig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stopSig
		loop.Stop()
	}()

	if err := loop.Run(ib); err != nil {
		fmt.Fprintf(os.Stderr, "kestrel: event loop: %v\n", err)
		return 1
	}
	return 0
}

// openBackend always opens sdlbackend. cmd/kestrel does not import
// wlbackend, and no flag or startup probe selects it (see the back-end
// decision in DESIGN.md).
func openBackend(damageDebug bool) (backend.OutputBackend, backend.InputBackend, func(), error) {
	b, err := sdlbackend.New(damageDebug)
	if err != nil {
		return nil, nil, func() {}, fmt.Errorf("opening display back-end: %w", err)
	}
	go b.Run()
	return b, b, b.Close, nil
}

// installCrashHandler prints a stack trace and exits on the fatal
// signals spec.md §6 names, matching the signal set a release build's
// best-effort-recovery policy still wants a trace for (spec.md §5's
// "internal invariant broken" policy table).
func installCrashHandler() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGSEGV, syscall.SIGFPE, syscall.SIGABRT)
	go func() {
		sig := <-c
		fmt.Fprintf(os.Stderr, "kestrel: fatal signal %v\n%s\n", sig, debug.Stack())
		os.Exit(1)
	}()
}
