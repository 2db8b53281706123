package reactor

import (
	"context"
	"fmt"
	"time"

	"github.com/eapache/queue"
	"github.com/joeycumines/go-iocore/sockops"
	"github.com/joeycumines/logiface"
)

// Handler receives readiness notifications. For timer expiry, h is
// sockops.InvalidHandle and which is zero.
type Handler[C any] interface {
	HandleEvent(h sockops.Handle, which Flags, ctx C)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc[C any] func(h sockops.Handle, which Flags, ctx C)

// HandleEvent calls f(h, which, ctx).
func (f HandlerFunc[C]) HandleEvent(h sockops.Handle, which Flags, ctx C) { f(h, which, ctx) }

// EventID identifies a registered event. The zero value is never valid.
type EventID struct {
	index uint32
	gen   uint32
}

// String returns a human-readable representation of the id.
func (id EventID) String() string { return fmt.Sprintf("event(%d:%d)", id.index, id.gen) }

// TimerID identifies the timer of a reactor. The zero value is never valid.
type TimerID struct {
	gen uint32
}

// Stats are counters, accumulated across every call to Run.
type Stats struct {
	// Iterations is the number of completed waits.
	Iterations uint64
	// Dispatches is the number of readiness handler invocations.
	Dispatches uint64
	// TimerFires is the number of timer handler invocations.
	TimerFires uint64
}

type event[C any] struct {
	handler  Handler[C]
	ctx      C
	handle   sockops.Handle
	binding  uint64
	gen      uint32
	interest Flags
	live     bool
}

type timer[C any] struct {
	deadline time.Time
	handler  Handler[C]
	ctx      C
	gen      uint32
	live     bool
	armed    bool
}

// Reactor is a single-threaded I/O event loop, parameterized by the type of
// the per-event context passed to handlers. See the package documentation.
type Reactor[C any] struct {
	backend  Backend
	logger   *logiface.Logger[logiface.Event]
	now      func() time.Time
	events   []event[C]
	free     *queue.Queue // indices of destroyed events, reused FIFO
	bound    map[sockops.Handle]uint32
	waiting  map[sockops.Handle]EventID
	interest []Interest
	ready    []Interest
	timer    timer[C]
	stats    Stats
	bindings uint64
	running  bool
	stopping bool
	closed   bool
}

// New constructs a Reactor. Unless WithBackend is provided, the backend is
// resolved using NewBackend.
func New[C any](opts ...Option) (*Reactor[C], error) {
	cfg, err := resolveReactorOptions(opts)
	if err != nil {
		return nil, err
	}

	backend := cfg.backend
	if backend == nil {
		if backend, err = NewBackend(cfg.backendName); err != nil {
			return nil, err
		}
	}

	return &Reactor[C]{
		backend: backend,
		logger:  cfg.logger,
		now:     cfg.now,
		events:  make([]event[C], 0, cfg.initialEvents),
		free:    queue.New(),
		bound:   make(map[sockops.Handle]uint32, cfg.initialEvents),
		waiting: make(map[sockops.Handle]EventID, cfg.initialEvents),
	}, nil
}

// CreateEvent allocates an inert event, with no handle and zero interest.
// Slots of destroyed events are reused in the order they were destroyed.
func (r *Reactor[C]) CreateEvent() (EventID, error) {
	if r.closed {
		return EventID{}, ErrClosed
	}
	var index uint32
	if r.free.Length() != 0 {
		index = r.free.Remove().(uint32)
	} else {
		index = uint32(len(r.events))
		r.events = append(r.events, event[C]{})
	}
	ev := &r.events[index]
	ev.gen = nextGen(ev.gen)
	ev.live = true
	ev.handle = sockops.InvalidHandle
	return EventID{index: index, gen: ev.gen}, nil
}

// UpdateEvent binds the event to a handle, interest, context, and handler,
// replacing any prior binding. A handle may be bound to at most one event.
// Each call is a new binding, so a handle that was closed and reopened under
// the same number is registered with the backend again.
// Zero interest excludes the event from waits. Flags other than FlagRead and
// FlagWrite are ignored.
func (r *Reactor[C]) UpdateEvent(id EventID, h sockops.Handle, interest Flags, ctx C, handler Handler[C]) error {
	ev, err := r.lookup(id)
	if err != nil {
		return err
	}
	if !h.Valid() {
		return ErrInvalidHandle
	}
	if index, ok := r.bound[h]; ok && index != id.index {
		return ErrHandleInUse
	}
	r.unbind(ev)
	r.bound[h] = id.index
	r.bindings++
	ev.binding = r.bindings
	ev.handle = h
	ev.interest = interest & flagsMask
	ev.ctx = ctx
	ev.handler = handler
	return nil
}

// DeleteEvent clears the binding of the event, leaving it allocated, and
// inert. It may be re-bound using UpdateEvent.
func (r *Reactor[C]) DeleteEvent(id EventID) error {
	ev, err := r.lookup(id)
	if err != nil {
		return err
	}
	r.clear(ev)
	return nil
}

// DestroyEvent frees the event. The id, and any copies of it, become stale.
func (r *Reactor[C]) DestroyEvent(id EventID) error {
	ev, err := r.lookup(id)
	if err != nil {
		return err
	}
	r.clear(ev)
	ev.live = false
	ev.gen = nextGen(ev.gen)
	r.free.Add(id.index)
	return nil
}

// CreateTimer allocates the reactor's timer, disarmed. Only one timer may
// exist at a time.
func (r *Reactor[C]) CreateTimer() (TimerID, error) {
	if r.closed {
		return TimerID{}, ErrClosed
	}
	if r.timer.live {
		return TimerID{}, ErrTimerExists
	}
	r.timer.gen = nextGen(r.timer.gen)
	r.timer.live = true
	return TimerID{gen: r.timer.gen}, nil
}

// UpdateTimer arms the timer to fire once, delay after now, replacing any
// prior arm. A negative delay is treated as zero.
func (r *Reactor[C]) UpdateTimer(id TimerID, delay time.Duration, ctx C, handler Handler[C]) error {
	if err := r.lookupTimer(id); err != nil {
		return err
	}
	r.timer.deadline = r.now().Add(max(delay, 0))
	r.timer.ctx = ctx
	r.timer.handler = handler
	r.timer.armed = true
	return nil
}

// DeleteTimer disarms the timer.
func (r *Reactor[C]) DeleteTimer(id TimerID) error {
	if err := r.lookupTimer(id); err != nil {
		return err
	}
	r.disarm()
	return nil
}

// DestroyTimer disarms and frees the timer. The id becomes stale, and a new
// timer may be created.
func (r *Reactor[C]) DestroyTimer(id TimerID) error {
	if err := r.lookupTimer(id); err != nil {
		return err
	}
	r.disarm()
	r.timer.live = false
	return nil
}

// Run runs the loop until Stop is called, no event carries interest, ctx is
// cancelled, or the backend fails. Handlers are invoked on the calling
// goroutine. A backend failure terminates the loop immediately, without
// invoking further handlers.
func (r *Reactor[C]) Run(ctx context.Context) error {
	if r.closed {
		return ErrClosed
	}
	if r.running {
		return ErrReentrantRun
	}
	r.running = true
	r.stopping = false
	defer func() {
		r.running = false
		r.stopping = false
	}()

	r.logger.Debug().Log(`reactor run starting`)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		r.rebuild()
		if len(r.interest) == 0 {
			r.logger.Debug().
				Uint64(`iterations`, r.stats.Iterations).
				Log(`reactor run finished: no interest`)
			return nil
		}

		var err error
		r.ready, err = r.backend.Wait(r.interest, r.timeout(), r.ready[:0])
		if err != nil {
			r.logger.Err().
				Err(err).
				Int(`interest`, len(r.interest)).
				Log(`reactor wait failed`)
			return fmt.Errorf("reactor: wait: %w", err)
		}
		r.stats.Iterations++

		r.dispatch()
		r.expire()

		if r.closed {
			return ErrClosed
		}
		if r.stopping {
			r.logger.Debug().
				Uint64(`iterations`, r.stats.Iterations).
				Log(`reactor run stopped`)
			return nil
		}
	}
}

// Stop causes Run to return at the end of the current iteration. It has no
// effect if the reactor is not running.
func (r *Reactor[C]) Stop() {
	if r.running {
		r.stopping = true
	}
}

// Close releases the backend. Any running loop returns ErrClosed at the end
// of the current iteration, and all further use fails with ErrClosed.
func (r *Reactor[C]) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.backend.Close()
}

// Stats returns the accumulated counters.
func (r *Reactor[C]) Stats() Stats { return r.stats }

// Running reports whether Run is in progress.
func (r *Reactor[C]) Running() bool { return r.running }

func (r *Reactor[C]) lookup(id EventID) (*event[C], error) {
	if r.closed {
		return nil, ErrClosed
	}
	if id.gen == 0 || int(id.index) >= len(r.events) {
		return nil, ErrStaleEvent
	}
	ev := &r.events[id.index]
	if !ev.live || ev.gen != id.gen {
		return nil, ErrStaleEvent
	}
	return ev, nil
}

func (r *Reactor[C]) lookupTimer(id TimerID) error {
	if r.closed {
		return ErrClosed
	}
	if id.gen == 0 || !r.timer.live || r.timer.gen != id.gen {
		return ErrStaleTimer
	}
	return nil
}

func (r *Reactor[C]) unbind(ev *event[C]) {
	if ev.handle.Valid() {
		delete(r.bound, ev.handle)
		ev.handle = sockops.InvalidHandle
	}
}

func (r *Reactor[C]) clear(ev *event[C]) {
	var zero C
	r.unbind(ev)
	ev.interest = 0
	ev.ctx = zero
	ev.handler = nil
}

func (r *Reactor[C]) disarm() {
	var zero C
	r.timer.armed = false
	r.timer.ctx = zero
	r.timer.handler = nil
}

// rebuild collects the interest of every live event, recording the id of
// each waiting handle, for re-validation at dispatch.
func (r *Reactor[C]) rebuild() {
	r.interest = r.interest[:0]
	clear(r.waiting)
	for i := range r.events {
		ev := &r.events[i]
		if !ev.live || ev.interest == 0 {
			continue
		}
		r.interest = append(r.interest, Interest{Handle: ev.handle, Flags: ev.interest, Binding: ev.binding})
		r.waiting[ev.handle] = EventID{index: uint32(i), gen: ev.gen}
	}
}

// timeout returns the remaining delay of the armed timer, or -1 if there is
// none.
func (r *Reactor[C]) timeout() time.Duration {
	if !r.timer.armed {
		return -1
	}
	return max(r.timer.deadline.Sub(r.now()), 0)
}

func (r *Reactor[C]) dispatch() {
	for _, rd := range r.ready {
		id, ok := r.waiting[rd.Handle]
		if !ok {
			continue
		}
		// handlers may have deleted, destroyed, or re-bound the event
		ev, err := r.lookup(id)
		if err != nil || ev.handle != rd.Handle {
			continue
		}
		which := rd.Flags & ev.interest
		if which == 0 || ev.handler == nil {
			continue
		}
		r.stats.Dispatches++
		r.invoke(ev.handler, rd.Handle, which, ev.ctx)
	}
}

// expire fires the timer if it is armed and has expired. The timer is
// disarmed before the handler is invoked, and may be re-armed by it.
func (r *Reactor[C]) expire() {
	if r.closed || !r.timer.armed || r.now().Before(r.timer.deadline) {
		return
	}
	handler, ctx := r.timer.handler, r.timer.ctx
	r.disarm()
	if handler == nil {
		return
	}
	r.stats.TimerFires++
	r.logger.Trace().Log(`reactor timer fired`)
	r.invoke(handler, sockops.InvalidHandle, 0, ctx)
}

func (r *Reactor[C]) invoke(handler Handler[C], h sockops.Handle, which Flags, ctx C) {
	defer func() {
		if v := recover(); v != nil {
			r.logger.Err().
				Int(`handle`, int(h)).
				Stringer(`flags`, which).
				Interface(`panic`, v).
				Log(`reactor handler panicked`)
		}
	}()
	handler.HandleEvent(h, which, ctx)
}

// nextGen increments a generation, skipping zero.
func nextGen(gen uint32) uint32 {
	gen++
	if gen == 0 {
		gen = 1
	}
	return gen
}
