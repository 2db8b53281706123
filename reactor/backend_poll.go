//go:build linux || darwin

package reactor

import (
	"time"

	"golang.org/x/sys/unix"
)

// pollBackend implements Backend using poll(2). The descriptor list is
// rebuilt on every wait.
type pollBackend struct {
	fds []unix.PollFd
}

func newPollBackend() (Backend, error) { return &pollBackend{}, nil }

func (b *pollBackend) Wait(interest []Interest, timeout time.Duration, ready []Interest) ([]Interest, error) {
	b.fds = b.fds[:0]
	for _, in := range interest {
		b.fds = append(b.fds, unix.PollFd{
			Fd:     int32(in.Handle),
			Events: flagsToPoll(in.Flags),
		})
	}

	n, err := unix.Poll(b.fds, timeoutMillis(timeout))
	if err != nil {
		if err == unix.EINTR {
			return ready, nil
		}
		return ready, err
	}

	for i := 0; n > 0 && i < len(b.fds); i++ {
		revents := b.fds[i].Revents
		if revents == 0 {
			continue
		}
		n--
		if revents&unix.POLLNVAL != 0 {
			return ready, unix.EBADF
		}
		if flags := pollToFlags(revents) & interest[i].Flags; flags != 0 {
			ready = append(ready, Interest{Handle: interest[i].Handle, Flags: flags})
		}
	}
	return ready, nil
}

func (b *pollBackend) Close() error {
	b.fds = nil
	return nil
}

// flagsToPoll converts Flags to poll event flags.
func flagsToPoll(flags Flags) int16 {
	var events int16
	if flags&FlagRead != 0 {
		events |= unix.POLLIN | unix.POLLPRI
	}
	if flags&FlagWrite != 0 {
		events |= unix.POLLOUT
	}
	return events
}

// pollToFlags converts poll event flags to Flags. Error and hangup
// conditions are reported as both readable and writable, so whichever
// operation is pending observes them.
func pollToFlags(revents int16) Flags {
	var flags Flags
	if revents&(unix.POLLIN|unix.POLLPRI) != 0 {
		flags |= FlagRead
	}
	if revents&unix.POLLOUT != 0 {
		flags |= FlagWrite
	}
	if revents&(unix.POLLERR|unix.POLLHUP) != 0 {
		flags |= FlagRead | FlagWrite
	}
	return flags
}
