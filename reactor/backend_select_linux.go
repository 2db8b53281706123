//go:build linux

package reactor

import (
	"fmt"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// fdSetSize is FD_SETSIZE, the number of bits in an fd_set.
const fdSetSize = int(unsafe.Sizeof(unix.FdSet{})) * 8

// selectBackend implements Backend using select(2). Handles must be below
// FD_SETSIZE. Exceptional conditions (out-of-band data) on handles with read
// interest are reported as readable.
type selectBackend struct {
	readfds   unix.FdSet
	writefds  unix.FdSet
	exceptfds unix.FdSet
}

func newSelectBackend() (Backend, error) { return &selectBackend{}, nil }

func (b *selectBackend) Wait(interest []Interest, timeout time.Duration, ready []Interest) ([]Interest, error) {
	b.readfds.Zero()
	b.writefds.Zero()
	b.exceptfds.Zero()

	nfd := 0
	for _, in := range interest {
		fd := int(in.Handle)
		if fd < 0 || fd >= fdSetSize {
			return ready, fmt.Errorf("reactor: handle %d exceeds FD_SETSIZE: %w", fd, unix.EINVAL)
		}
		if in.Flags&FlagRead != 0 {
			b.readfds.Set(fd)
			b.exceptfds.Set(fd)
		}
		if in.Flags&FlagWrite != 0 {
			b.writefds.Set(fd)
		}
		nfd = max(nfd, fd+1)
	}

	var tv *unix.Timeval
	if timeout >= 0 {
		// round up to the next microsecond
		v := unix.NsecToTimeval(int64((timeout + time.Microsecond - 1) / time.Microsecond * time.Microsecond))
		tv = &v
	}

	n, err := unix.Select(nfd, &b.readfds, &b.writefds, &b.exceptfds, tv)
	if err != nil {
		if err == unix.EINTR {
			return ready, nil
		}
		return ready, err
	}
	if n == 0 {
		return ready, nil
	}

	for _, in := range interest {
		fd := int(in.Handle)
		var flags Flags
		if b.readfds.IsSet(fd) || b.exceptfds.IsSet(fd) {
			flags |= FlagRead
		}
		if b.writefds.IsSet(fd) {
			flags |= FlagWrite
		}
		if flags &= in.Flags; flags != 0 {
			ready = append(ready, Interest{Handle: in.Handle, Flags: flags})
		}
	}
	return ready, nil
}

func (b *selectBackend) Close() error { return nil }
