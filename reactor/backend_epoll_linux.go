//go:build linux

package reactor

import (
	"time"

	"github.com/joeycumines/go-iocore/sockops"
	"golang.org/x/sys/unix"
)

// epollBackend implements Backend using epoll(7). Kernel registrations are
// reconciled against the interest of each wait, so only changed handles cost
// a syscall.
type epollBackend struct {
	epfd       int
	registered map[sockops.Handle]Interest
	next       map[sockops.Handle]Interest
	events     []unix.EpollEvent
}

func newEpollBackend() (Backend, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &epollBackend{
		epfd:       epfd,
		registered: make(map[sockops.Handle]Interest),
		next:       make(map[sockops.Handle]Interest),
	}, nil
}

func (b *epollBackend) Wait(interest []Interest, timeout time.Duration, ready []Interest) ([]Interest, error) {
	if err := b.reconcile(interest); err != nil {
		return ready, err
	}

	size := max(len(interest), 1)
	if cap(b.events) < size {
		b.events = make([]unix.EpollEvent, size)
	}
	events := b.events[:size]

	n, err := unix.EpollWait(b.epfd, events, timeoutMillis(timeout))
	if err != nil {
		if err == unix.EINTR {
			return ready, nil
		}
		return ready, err
	}

	for i := 0; i < n; i++ {
		h := sockops.Handle(events[i].Fd)
		if flags := epollToFlags(events[i].Events) & b.registered[h].Flags; flags != 0 {
			ready = append(ready, Interest{Handle: h, Flags: flags})
		}
	}
	return ready, nil
}

// reconcile adds, modifies, and deletes kernel registrations to match
// interest. A new binding of a registered handle is always modified, as the
// descriptor may have been closed, dropping the kernel registration, and
// reopened under the same number. Registrations are tracked even on failure,
// so a later wait starts from the actual kernel state.
func (b *epollBackend) reconcile(interest []Interest) (err error) {
	clear(b.next)
	defer func() {
		b.registered, b.next = b.next, b.registered
	}()

	for _, in := range interest {
		old, ok := b.registered[in.Handle]
		switch {
		case !ok:
			err = b.ctl(unix.EPOLL_CTL_ADD, in)
		case old != in:
			err = b.ctl(unix.EPOLL_CTL_MOD, in)
		}
		if err != nil {
			return err
		}
		b.next[in.Handle] = in
	}

	for h := range b.registered {
		if _, ok := b.next[h]; !ok {
			// may already be gone, if the handle was closed
			_ = unix.EpollCtl(b.epfd, unix.EPOLL_CTL_DEL, int(h), nil)
		}
	}
	return nil
}

func (b *epollBackend) ctl(op int, in Interest) error {
	ev := &unix.EpollEvent{
		Events: flagsToEpoll(in.Flags),
		Fd:     int32(in.Handle),
	}
	err := unix.EpollCtl(b.epfd, op, int(in.Handle), ev)
	switch {
	case err == unix.ENOENT && op == unix.EPOLL_CTL_MOD:
		// closed and reopened under the same number
		err = unix.EpollCtl(b.epfd, unix.EPOLL_CTL_ADD, int(in.Handle), ev)
	case err == unix.EEXIST && op == unix.EPOLL_CTL_ADD:
		err = unix.EpollCtl(b.epfd, unix.EPOLL_CTL_MOD, int(in.Handle), ev)
	}
	return err
}

func (b *epollBackend) Close() error {
	if b.epfd < 0 {
		return nil
	}
	err := unix.Close(b.epfd)
	b.epfd = -1
	return err
}

// flagsToEpoll converts Flags to epoll event flags.
func flagsToEpoll(flags Flags) uint32 {
	var events uint32
	if flags&FlagRead != 0 {
		events |= unix.EPOLLIN | unix.EPOLLPRI | unix.EPOLLRDHUP
	}
	if flags&FlagWrite != 0 {
		events |= unix.EPOLLOUT
	}
	return events
}

// epollToFlags converts epoll event flags to Flags.
func epollToFlags(events uint32) Flags {
	var flags Flags
	if events&(unix.EPOLLIN|unix.EPOLLPRI|unix.EPOLLRDHUP) != 0 {
		flags |= FlagRead
	}
	if events&unix.EPOLLOUT != 0 {
		flags |= FlagWrite
	}
	if events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
		flags |= FlagRead | FlagWrite
	}
	return flags
}
