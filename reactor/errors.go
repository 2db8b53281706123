package reactor

import (
	"errors"
)

// Standard errors.
var (
	// ErrTimerExists is returned by CreateTimer when the reactor already has
	// a live timer.
	ErrTimerExists = errors.New("reactor: timer already exists")

	// ErrStaleEvent is returned when an EventID does not refer to a live event.
	ErrStaleEvent = errors.New("reactor: stale event id")

	// ErrStaleTimer is returned when a TimerID does not refer to the live timer.
	ErrStaleTimer = errors.New("reactor: stale timer id")

	// ErrHandleInUse is returned when binding a handle that is already bound
	// to another live event.
	ErrHandleInUse = errors.New("reactor: handle bound to another event")

	// ErrInvalidHandle is returned when binding an invalid handle.
	ErrInvalidHandle = errors.New("reactor: invalid handle")

	// ErrReentrantRun is returned when Run is called while already running.
	ErrReentrantRun = errors.New("reactor: cannot call Run() from within the reactor")

	// ErrClosed is returned when using a reactor after Close.
	ErrClosed = errors.New("reactor: reactor closed")

	// ErrUnknownBackend is returned by NewBackend for a name that is not
	// supported on this platform.
	ErrUnknownBackend = errors.New("reactor: unknown backend")
)
