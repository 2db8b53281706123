package reactor

import (
	"fmt"
	"math"
	"time"

	"github.com/joeycumines/go-iocore/sockops"
)

// Backend names, for use with NewBackend.
const (
	BackendPoll   = "poll"
	BackendSelect = "select"
	BackendEpoll  = "epoll"
	BackendKqueue = "kqueue"
)

// Interest pairs a handle with a set of flags. It describes both what a wait
// is interested in, and what a wait reported as ready.
type Interest struct {
	Handle sockops.Handle
	Flags  Flags
	// Binding changes each time the handle is bound to an event, and is zero
	// in ready entries. A descriptor number may be closed and reused between
	// waits, so backends that keep kernel registrations must register again
	// whenever Binding changes, even if Handle and Flags have not.
	Binding uint64
}

// Backend is a readiness multiplexing primitive.
//
// Wait blocks until at least one entry of interest is ready, the timeout
// elapses, or the wait is interrupted by a signal. A negative timeout blocks
// indefinitely. Ready entries are appended to ready, which is returned. An
// interrupted wait is not an error, and reports nothing. Each handle appears
// at most once in interest, and reported flags must be a subset of the
// requested flags.
//
// Backends are not safe for concurrent use.
type Backend interface {
	Wait(interest []Interest, timeout time.Duration, ready []Interest) ([]Interest, error)
	Close() error
}

// NewBackend constructs the named backend. An empty name selects the
// platform default, BackendPoll. Names not supported on this platform fail
// with ErrUnknownBackend.
func NewBackend(name string) (Backend, error) {
	if name == `` {
		name = BackendPoll
	}
	factory, ok := backends[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}
	return factory()
}

// Backends lists the backend names supported on this platform.
func Backends() []string {
	names := make([]string, 0, len(backends))
	for _, name := range [...]string{BackendPoll, BackendSelect, BackendEpoll, BackendKqueue} {
		if _, ok := backends[name]; ok {
			names = append(names, name)
		}
	}
	return names
}

// timeoutMillis converts a timeout to milliseconds, rounding up, so the wait
// never returns before it has elapsed.
func timeoutMillis(d time.Duration) int {
	switch {
	case d < 0:
		return -1
	case d == 0:
		return 0
	case d >= math.MaxInt32*time.Millisecond:
		return math.MaxInt32
	}
	return int((d + time.Millisecond - 1) / time.Millisecond)
}
