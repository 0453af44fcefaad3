// Loop is kestrel's single-threaded cooperative event loop, grounded
// on gioui.org/app/internal/window's os_wayland.go: one epoll instance
// multiplexes the back-end's input channel, idle callbacks queued from
// other goroutines, and a once-a-second maintenance tick, waking epoll
// through an eventfd the way os_wayland.go wakes its poll loop through
// a self-pipe. The tick has no work attached: the no-op output's
// teardown is not debounced here.
package kcore

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/kestrelwm/kestrel/internal/backend"
	"github.com/kestrelwm/kestrel/internal/keycode"
)

// noopDebounce is a 500ms delay for tearing down the no-op fallback
// output once a real output returns (spec.md §4.C step 5). No code
// path applies it: outputlayout's removeNoop runs immediately inside
// Apply, and onTick does not read this value.
const noopDebounce = 500 * time.Millisecond

// Loop owns the epoll fd and the two synthetic fds (wake, tick) it
// polls. No back-end file descriptor is added to the epoll set.
type Loop struct {
	ctx *Context

	epfd   int
	wakeFd int // eventfd, written by Idle, Stop and forwardInput from any goroutine
	tickFd int // timerfd, fires once a second for debounced maintenance

	mu      sync.Mutex
	idle    []func()
	pending []backend.InputEvent
	stop    bool
	stopC   chan struct{}
}

// NewLoop builds the loop's epoll instance and registers its two
// synthetic fds. Callers must call Close when Run returns.
func NewLoop(ctx *Context) (*Loop, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("kcore: epoll_create1: %w", err)
	}
	wakeFd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		unix.Close(epfd)
		return nil, fmt.Errorf("kcore: eventfd: %w", err)
	}
	tickFd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_CLOEXEC|unix.TFD_NONBLOCK)
	if err != nil {
		unix.Close(epfd)
		unix.Close(wakeFd)
		return nil, fmt.Errorf("kcore: timerfd_create: %w", err)
	}
	spec := &unix.ItimerSpec{
		Interval: unix.NsecToTimespec(int64(time.Second)),
		Value:    unix.NsecToTimespec(int64(time.Second)),
	}
	if err := unix.TimerfdSettime(tickFd, 0, spec, nil); err != nil {
		unix.Close(epfd)
		unix.Close(wakeFd)
		unix.Close(tickFd)
		return nil, fmt.Errorf("kcore: timerfd_settime: %w", err)
	}

	l := &Loop{ctx: ctx, epfd: epfd, wakeFd: wakeFd, tickFd: tickFd, stopC: make(chan struct{})}
	for _, fd := range []int{wakeFd, tickFd} {
		ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
		if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
			l.Close()
			return nil, fmt.Errorf("kcore: epoll_ctl add fd %d: %w", fd, err)
		}
	}
	return l, nil
}

// Close releases the loop's fds. Safe to call more than once.
func (l *Loop) Close() {
	unix.Close(l.epfd)
	unix.Close(l.wakeFd)
	unix.Close(l.tickFd)
}

// Idle queues fn to run on the loop's own goroutine at the next
// iteration, and wakes the loop if it is currently blocked in
// epoll_wait — the same role os_wayland.go's pipe-write plays for
// window.Invalidate from an arbitrary goroutine.
func (l *Loop) Idle(fn func()) {
	l.mu.Lock()
	l.idle = append(l.idle, fn)
	l.mu.Unlock()
	l.wake()
}

func (l *Loop) wake() {
	var buf [8]byte
	buf[7] = 1
	unix.Write(l.wakeFd, buf[:])
}

// Stop asks Run to return after its current iteration.
func (l *Loop) Stop() {
	l.mu.Lock()
	l.stop = true
	l.mu.Unlock()
	l.wake()
	close(l.stopC)
}

// Run multiplexes the input back-end's channel (bridged onto the
// wake fd by a forwarding goroutine, since Go's runtime scheduler
// rather than epoll is what actually blocks a channel receive),
// drains queued idle callbacks, and ticks once a second for
// maintenance, until Stop is called or epoll_wait fails. A closed
// input channel only ends the forwarding goroutine; Run keeps going.
// Callers run it on its own goroutine or as the process's main
// goroutine (cmd/kestrel does the latter).
func (l *Loop) Run(ib backend.InputBackend) error {
	go l.forwardInput(ib)

	events := make([]unix.EpollEvent, 8)
	for {
		select {
		case <-l.stopC:
			return nil
		default:
		}

		n, err := unix.EpollWait(l.epfd, events, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("kcore: epoll_wait: %w", err)
		}

		for i := 0; i < n; i++ {
			switch int(events[i].Fd) {
			case l.wakeFd:
				var buf [8]byte
				unix.Read(l.wakeFd, buf[:])
				l.runIdle()
			case l.tickFd:
				var buf [8]byte
				unix.Read(l.tickFd, buf[:])
				l.onTick()
			}
		}

		l.mu.Lock()
		stopped := l.stop
		l.mu.Unlock()
		if stopped {
			return nil
		}
	}
}

func (l *Loop) runIdle() {
	l.mu.Lock()
	pending := l.idle
	l.idle = nil
	l.mu.Unlock()
	for _, fn := range pending {
		fn()
	}
	l.dispatchPendingInput()
}

// onTick runs on every once-a-second tick and does no work: the
// reconciliation algorithm removes the no-op output synchronously on
// Apply, and the loop offers no way to register periodic work.
func (l *Loop) onTick() {
	_ = noopDebounce
}

// --- input bridging ---

func (l *Loop) forwardInput(ib backend.InputBackend) {
	if ib == nil {
		return
	}
	for ev := range ib.Events() {
		l.mu.Lock()
		l.pending = append(l.pending, ev)
		l.mu.Unlock()
		l.wake()
	}
}

func (l *Loop) dispatchPendingInput() {
	l.mu.Lock()
	batch := l.pending
	l.pending = nil
	l.mu.Unlock()
	for _, ev := range batch {
		l.dispatchOne(ev)
	}
}

func (l *Loop) dispatchOne(ev backend.InputEvent) {
	s := l.ctx.Seat
	switch ev.Kind {
	case backend.InputPointerMotion:
		s.UpdateCursorPosition(ev.PointerX, ev.PointerY)
	case backend.InputPointerButton:
		s.HandleButton(ev.Button, ev.Pressed)
	case backend.InputPointerScroll:
		s.HandleScroll(ev.ScrollDX, ev.ScrollDY)
	case backend.InputKeyboardKey:
		s.HandleKey(ev.Key, ev.Pressed, s.CursorFocus())
	case backend.InputKeyboardMods:
		l.dispatchMods(ev.Mods)
	case backend.InputTouchDown:
		s.HandleTouchDown(ev.TouchID, ev.TouchX, ev.TouchY)
	case backend.InputTouchMotion:
		s.HandleTouchMotion(ev.TouchID, ev.TouchX, ev.TouchY)
	case backend.InputTouchUp:
		s.HandleTouchUp(ev.TouchID)
	case backend.InputVTSwitch:
		// handled by the hooks.VTSwitch callback wired in kcore.New;
		// the back-end delivers this directly as a convenience event
		// rather than going through the modifier/key combo path.
	}
}

// dispatchMods translates a raw xkb modifier mask delivered by the
// back-end into the individual HandleModifier transitions the seat
// expects, diffing against the seat's currently-held mask.
func (l *Loop) dispatchMods(raw uint32) {
	s := l.ctx.Seat
	// xkb's default modifier indices: Shift=0, Control=2, Mod1 (Alt)=3,
	// Mod4 (Super)=6. keycode.Modifier uses its own bit values.
	var want keycode.Modifier
	for bit, m := range map[uint32]keycode.Modifier{
		1 << 0: keycode.ModShift, 1 << 2: keycode.ModCtrl,
		1 << 3: keycode.ModAlt, 1 << 6: keycode.ModSuper,
	} {
		if raw&bit != 0 {
			want |= m
		}
	}
	held := s.Mods()
	for _, m := range []keycode.Modifier{keycode.ModShift, keycode.ModCtrl, keycode.ModAlt, keycode.ModSuper} {
		if want&m != held&m {
			s.HandleModifier(m, want&m != 0, s.CursorFocus())
		}
	}
}
