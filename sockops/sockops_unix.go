//go:build linux || darwin

package sockops

import (
	"io"
	"syscall"

	"golang.org/x/sys/unix"
)

// mapErrno maps platform errors onto the fixed Code set. EWOULDBLOCK is an
// alias of EAGAIN on all supported platforms.
func mapErrno(errno syscall.Errno) Code {
	switch errno {
	case unix.EAGAIN:
		return CodeWouldBlock
	case unix.ECONNRESET, unix.EPIPE:
		return CodeReset
	case unix.EINVAL:
		return CodeInvalid
	case unix.EINPROGRESS:
		return CodeInProgress
	case unix.EALREADY:
		return CodeAlready
	case unix.EISCONN:
		return CodeIsConnected
	case unix.ENOTCONN:
		return CodeNotConnected
	case unix.ECONNREFUSED:
		return CodeRefused
	default:
		return CodeUnmapped
	}
}

// Socket creates a non-blocking, close-on-exec socket.
func (x *Ops) Socket(domain, typ, proto int) (Handle, error) {
	fd, err := unix.Socket(domain, typ, proto)
	if err != nil {
		return InvalidHandle, x.wrap(`socket`, err)
	}
	if err := x.prepare(fd); err != nil {
		_ = unix.Close(fd)
		return InvalidHandle, err
	}
	return Handle(fd), nil
}

// Socketpair creates a pair of connected, non-blocking, close-on-exec
// sockets.
func (x *Ops) Socketpair(domain, typ, proto int) ([2]Handle, error) {
	fds, err := unix.Socketpair(domain, typ, proto)
	if err != nil {
		return [2]Handle{InvalidHandle, InvalidHandle}, x.wrap(`socketpair`, err)
	}
	for _, fd := range fds {
		if err := x.prepare(fd); err != nil {
			_ = unix.Close(fds[0])
			_ = unix.Close(fds[1])
			return [2]Handle{InvalidHandle, InvalidHandle}, err
		}
	}
	return [2]Handle{Handle(fds[0]), Handle(fds[1])}, nil
}

func (x *Ops) prepare(fd int) error {
	if err := unix.SetNonblock(fd, true); err != nil {
		return x.wrap(`socket`, err)
	}
	unix.CloseOnExec(fd)
	return nil
}

// Connect starts a non-blocking connect. CodeInProgress indicates the
// connect has started; use SocketError once the handle is writable to learn
// the outcome.
func (x *Ops) Connect(h Handle, sa unix.Sockaddr) error {
	if err := unix.Connect(int(h), sa); err != nil {
		return x.wrap(`connect`, err)
	}
	return nil
}

// SocketError reads and clears the pending error of the socket, e.g. the
// outcome of a non-blocking connect.
func (x *Ops) SocketError(h Handle) error {
	v, err := unix.GetsockoptInt(int(h), unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return x.wrap(`getsockopt`, err)
	}
	if v != 0 {
		return x.wrap(`connect`, syscall.Errno(v))
	}
	return nil
}

// Send writes b to the socket.
func (x *Ops) Send(h Handle, b []byte, flags int) (int, error) {
	n, err := unix.SendmsgN(int(h), b, nil, nil, flags)
	if err != nil {
		return 0, x.wrap(`send`, err)
	}
	return n, nil
}

// Recv reads into b. It returns io.EOF on orderly shutdown by the peer, or if
// the connection was reset.
func (x *Ops) Recv(h Handle, b []byte, flags int) (int, error) {
	n, _, err := unix.Recvfrom(int(h), b, flags)
	return x.recvResult(`recv`, n, len(b), err)
}

// Sendv writes the segments of iov, in order, in a single call.
func (x *Ops) Sendv(h Handle, iov [2][]byte) (int, error) {
	bufs := segments(&iov)
	if bufs == nil {
		return 0, nil
	}
	n, err := unix.SendmsgBuffers(int(h), bufs, nil, nil, 0)
	if err != nil {
		return 0, x.wrap(`sendv`, err)
	}
	return n, nil
}

// Recvv reads into the segments of iov, in order, in a single call. Like
// Recv, it returns io.EOF on orderly shutdown or reset.
func (x *Ops) Recvv(h Handle, iov [2][]byte) (int, error) {
	bufs := segments(&iov)
	if bufs == nil {
		return 0, nil
	}
	n, _, _, _, err := unix.RecvmsgBuffers(int(h), bufs, nil, 0)
	return x.recvResult(`recvv`, n, len(iov[0])+len(iov[1]), err)
}

// Close closes the socket.
func (x *Ops) Close(h Handle) error {
	if err := unix.Close(int(h)); err != nil {
		return x.wrap(`close`, err)
	}
	return nil
}

func (x *Ops) recvResult(op string, n, size int, err error) (int, error) {
	if err != nil {
		if err == unix.ECONNRESET {
			return 0, io.EOF
		}
		return 0, x.wrap(op, err)
	}
	if n == 0 && size != 0 {
		return 0, io.EOF
	}
	return n, nil
}

// segments omits empty segments, returning nil if there are none.
func segments(iov *[2][]byte) [][]byte {
	switch {
	case len(iov[0]) != 0 && len(iov[1]) != 0:
		return iov[:]
	case len(iov[0]) != 0:
		return iov[:1]
	case len(iov[1]) != 0:
		return iov[1:]
	default:
		return nil
	}
}
