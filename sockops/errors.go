package sockops

import (
	"errors"
	"fmt"
	"syscall"
)

// Code is the fixed set of socket error conditions surfaced by this package.
// Code implements error, so it may be used as an errors.Is target.
type Code int

const (
	// CodeUnmapped indicates a platform error outside the fixed set. The
	// original errno is available from the [Error].
	CodeUnmapped Code = iota
	// CodeReset indicates the connection was reset, or the peer has gone.
	CodeReset
	// CodeWouldBlock indicates the operation would block.
	CodeWouldBlock
	// CodeInvalid indicates an invalid argument.
	CodeInvalid
	// CodeInProgress indicates a non-blocking connect has started.
	CodeInProgress
	// CodeAlready indicates a connect is already in progress.
	CodeAlready
	// CodeIsConnected indicates the socket is already connected.
	CodeIsConnected
	// CodeNotConnected indicates the socket is not connected.
	CodeNotConnected
	// CodeRefused indicates the connection was refused.
	CodeRefused
)

// String returns a human-readable representation of the code.
func (c Code) String() string {
	switch c {
	case CodeUnmapped:
		return "unmapped"
	case CodeReset:
		return "connection reset"
	case CodeWouldBlock:
		return "would block"
	case CodeInvalid:
		return "invalid argument"
	case CodeInProgress:
		return "in progress"
	case CodeAlready:
		return "already in progress"
	case CodeIsConnected:
		return "is connected"
	case CodeNotConnected:
		return "not connected"
	case CodeRefused:
		return "connection refused"
	default:
		return fmt.Sprintf("Code(%d)", int(c))
	}
}

// Error implements the error interface.
func (c Code) Error() string { return "sockops: " + c.String() }

// Error is the error returned by every failing [Ops] method.
type Error struct {
	// Op is the operation that failed, e.g. "connect" or "recv".
	Op string
	// Code is the mapped error condition.
	Code Code
	// Errno is the original platform error.
	Errno syscall.Errno
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("sockops: %s: %s: %v", e.Op, e.Code, e.Errno)
}

// Unwrap exposes both the Code and the Errno to [errors.Is] and [errors.As].
func (e *Error) Unwrap() []error {
	return []error{e.Code, e.Errno}
}

// CodeOf returns the Code carried by err, or CodeUnmapped if err carries none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	return CodeUnmapped
}
