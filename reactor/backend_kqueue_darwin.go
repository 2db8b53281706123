//go:build darwin

package reactor

import (
	"time"

	"github.com/joeycumines/go-iocore/sockops"
	"golang.org/x/sys/unix"
)

// kqueueBackend implements Backend using kqueue(2). Kernel registrations are
// reconciled against the interest of each wait, one filter per flag.
type kqueueBackend struct {
	kq         int
	registered map[sockops.Handle]Interest
	next       map[sockops.Handle]Interest
	changes    []unix.Kevent_t
	events     []unix.Kevent_t
	index      map[sockops.Handle]int
}

func newKqueueBackend() (Backend, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	unix.CloseOnExec(kq)
	return &kqueueBackend{
		kq:         kq,
		registered: make(map[sockops.Handle]Interest),
		next:       make(map[sockops.Handle]Interest),
		index:      make(map[sockops.Handle]int),
	}, nil
}

func (b *kqueueBackend) Wait(interest []Interest, timeout time.Duration, ready []Interest) ([]Interest, error) {
	if err := b.reconcile(interest); err != nil {
		return ready, err
	}

	var ts *unix.Timespec
	if timeout >= 0 {
		v := unix.NsecToTimespec(int64(timeout))
		ts = &v
	}

	size := 2 * max(len(interest), 1)
	if cap(b.events) < size {
		b.events = make([]unix.Kevent_t, size)
	}
	events := b.events[:size]

	n, err := unix.Kevent(b.kq, nil, events, ts)
	if err != nil {
		if err == unix.EINTR {
			return ready, nil
		}
		return ready, err
	}

	// read and write filters report separately, merge them per handle
	clear(b.index)
	for i := 0; i < n; i++ {
		h := sockops.Handle(events[i].Ident)
		flags := keventToFlags(&events[i]) & b.registered[h].Flags
		if flags == 0 {
			continue
		}
		if j, ok := b.index[h]; ok {
			ready[j].Flags |= flags
			continue
		}
		b.index[h] = len(ready)
		ready = append(ready, Interest{Handle: h, Flags: flags})
	}
	return ready, nil
}

// reconcile adds and deletes filters to match interest. Deletes are applied
// individually, ignoring errors, as the kernel drops the filters of closed
// handles. Every filter of a new binding is added again, as the handle may
// have been closed and reopened under the same number.
func (b *kqueueBackend) reconcile(interest []Interest) error {
	clear(b.next)
	b.changes = b.changes[:0]

	for _, in := range interest {
		old := b.registered[in.Handle]
		add := in.Flags &^ old.Flags
		if old.Binding != in.Binding {
			add = in.Flags
		}
		b.remove(in.Handle, old.Flags&^in.Flags)
		b.changes = appendKevents(b.changes, in.Handle, add, unix.EV_ADD|unix.EV_ENABLE)
		b.next[in.Handle] = in
	}
	for h, old := range b.registered {
		if _, ok := b.next[h]; !ok {
			b.remove(h, old.Flags)
		}
	}

	b.registered, b.next = b.next, b.registered

	if len(b.changes) == 0 {
		return nil
	}
	if _, err := unix.Kevent(b.kq, b.changes, nil, nil); err != nil {
		// the kernel state is unknown, start over on the next wait
		for h, in := range b.registered {
			b.remove(h, in.Flags)
		}
		clear(b.registered)
		return err
	}
	return nil
}

func (b *kqueueBackend) remove(h sockops.Handle, flags Flags) {
	if flags == 0 {
		return
	}
	_, _ = unix.Kevent(b.kq, appendKevents(nil, h, flags, unix.EV_DELETE), nil, nil)
}

func (b *kqueueBackend) Close() error {
	if b.kq < 0 {
		return nil
	}
	err := unix.Close(b.kq)
	b.kq = -1
	return err
}

// appendKevents appends one kevent per flag.
func appendKevents(kevents []unix.Kevent_t, h sockops.Handle, flags Flags, action uint16) []unix.Kevent_t {
	if flags&FlagRead != 0 {
		kevents = append(kevents, unix.Kevent_t{
			Ident:  uint64(h),
			Filter: unix.EVFILT_READ,
			Flags:  action,
		})
	}
	if flags&FlagWrite != 0 {
		kevents = append(kevents, unix.Kevent_t{
			Ident:  uint64(h),
			Filter: unix.EVFILT_WRITE,
			Flags:  action,
		})
	}
	return kevents
}

// keventToFlags converts a kqueue event to Flags. EOF and error conditions
// are reported through the filter that observed them.
func keventToFlags(kev *unix.Kevent_t) Flags {
	switch kev.Filter {
	case unix.EVFILT_READ:
		return FlagRead
	case unix.EVFILT_WRITE:
		return FlagWrite
	default:
		return 0
	}
}
