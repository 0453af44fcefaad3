package kcore

import (
	"strings"
	"testing"
	"time"

	"github.com/kestrelwm/kestrel/internal/backend"
	"github.com/kestrelwm/kestrel/internal/config"
)

// chanBackend is a minimal InputBackend whose Events channel the test
// drives directly, since NoopBackend never delivers input.
type chanBackend struct {
	*backend.NoopBackend
	ch chan backend.InputEvent
}

func newChanBackend() *chanBackend {
	return &chanBackend{NoopBackend: backend.NewNoopBackend(), ch: make(chan backend.InputEvent, 4)}
}

func (c *chanBackend) Events() <-chan backend.InputEvent { return c.ch }

func TestLoopDispatchesForwardedInput(t *testing.T) {
	conf, err := config.Load(strings.NewReader("[core]\n"))
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	ob := backend.NewNoopBackend()
	ctx, err := New(conf, ob, ob)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer ctx.Shutdown()

	loop, err := NewLoop(ctx)
	if err != nil {
		t.Fatalf("NewLoop: %v", err)
	}
	defer loop.Close()

	ib := newChanBackend()
	done := make(chan error, 1)
	go func() { done <- loop.Run(ib) }()

	ib.ch <- backend.InputEvent{Kind: backend.InputPointerMotion, PointerX: 10, PointerY: 20}

	idleRan := make(chan struct{})
	loop.Idle(func() { close(idleRan) })

	select {
	case <-idleRan:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the idle callback to run")
	}

	loop.Stop()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned an error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Run to return after Stop")
	}
}

func TestLoopRunWithNilInputBackend(t *testing.T) {
	conf, err := config.Load(strings.NewReader("[core]\n"))
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	ob := backend.NewNoopBackend()
	ctx, err := New(conf, ob, ob)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer ctx.Shutdown()

	loop, err := NewLoop(ctx)
	if err != nil {
		t.Fatalf("NewLoop: %v", err)
	}
	defer loop.Close()

	done := make(chan error, 1)
	go func() { done <- loop.Run(nil) }()

	loop.Idle(func() {})
	loop.Stop()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned an error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Run to return")
	}
}
