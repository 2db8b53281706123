//go:build linux || darwin

package sockops

import (
	"bytes"
	"errors"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func newTestLogger(buf *bytes.Buffer) *logiface.Logger[logiface.Event] {
	return stumpy.L.New(stumpy.L.WithStumpy(
		stumpy.WithWriter(buf),
		stumpy.WithTimeField(``),
	)).Logger()
}

func newPair(t *testing.T, ops *Ops) [2]Handle {
	t.Helper()
	pair, err := ops.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = ops.Close(pair[0])
		_ = ops.Close(pair[1])
	})
	return pair
}

// waitWritable blocks until h is writable, or the timeout elapses.
func waitWritable(t *testing.T, h Handle, timeout time.Duration) {
	t.Helper()
	fds := []unix.PollFd{{Fd: int32(h), Events: unix.POLLOUT}}
	for {
		n, err := unix.Poll(fds, int(timeout/time.Millisecond))
		if err == unix.EINTR {
			continue
		}
		require.NoError(t, err)
		require.Equal(t, 1, n, "timed out waiting for writability")
		return
	}
}

func TestMapErrno(t *testing.T) {
	for errno, want := range map[unix.Errno]Code{
		unix.EAGAIN:       CodeWouldBlock,
		unix.ECONNRESET:   CodeReset,
		unix.EPIPE:        CodeReset,
		unix.EINVAL:       CodeInvalid,
		unix.EINPROGRESS:  CodeInProgress,
		unix.EALREADY:     CodeAlready,
		unix.EISCONN:      CodeIsConnected,
		unix.ENOTCONN:     CodeNotConnected,
		unix.ECONNREFUSED: CodeRefused,
		unix.EBADF:        CodeUnmapped,
		unix.ENOTSOCK:     CodeUnmapped,
	} {
		assert.Equal(t, want, mapErrno(errno), errno.Error())
	}
}

func TestOps_SendRecv(t *testing.T) {
	ops, err := New()
	require.NoError(t, err)
	pair := newPair(t, ops)

	n, err := ops.Send(pair[0], []byte("hello"), 0)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	buf := make([]byte, 16)
	n, err = ops.Recv(pair[1], buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))
}

func TestOps_Recv_wouldBlock(t *testing.T) {
	ops, err := New()
	require.NoError(t, err)
	pair := newPair(t, ops)

	n, err := ops.Recv(pair[0], make([]byte, 8), 0)
	assert.Zero(t, n)
	assert.ErrorIs(t, err, CodeWouldBlock)
	assert.ErrorIs(t, err, unix.EAGAIN)

	n, err = ops.Recvv(pair[0], [2][]byte{make([]byte, 4), make([]byte, 4)})
	assert.Zero(t, n)
	assert.ErrorIs(t, err, CodeWouldBlock)
}

func TestOps_Recv_eof(t *testing.T) {
	ops, err := New()
	require.NoError(t, err)
	pair, err := ops.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	defer ops.Close(pair[1])

	_, err = ops.Send(pair[0], []byte("x"), 0)
	require.NoError(t, err)
	require.NoError(t, ops.Close(pair[0]))

	buf := make([]byte, 8)
	n, err := ops.Recv(pair[1], buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = ops.Recv(pair[1], buf, 0)
	assert.Zero(t, n)
	assert.Equal(t, io.EOF, err)

	n, err = ops.Recvv(pair[1], [2][]byte{buf[:4], buf[4:]})
	assert.Zero(t, n)
	assert.Equal(t, io.EOF, err)
}

func TestOps_Recv_emptyBuffer(t *testing.T) {
	ops, err := New()
	require.NoError(t, err)
	pair := newPair(t, ops)

	n, err := ops.Recvv(pair[0], [2][]byte{})
	assert.Zero(t, n)
	assert.NoError(t, err)
}

func TestOps_SendvRecvv(t *testing.T) {
	ops, err := New()
	require.NoError(t, err)
	pair := newPair(t, ops)

	n, err := ops.Sendv(pair[0], [2][]byte{[]byte("abc"), []byte("defg")})
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	// second segment omitted when empty
	n, err = ops.Sendv(pair[0], [2][]byte{[]byte("h"), nil})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// only the second segment
	n, err = ops.Sendv(pair[0], [2][]byte{nil, []byte("ij")})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	a, b := make([]byte, 4), make([]byte, 16)
	n, err = ops.Recvv(pair[1], [2][]byte{a, b})
	require.NoError(t, err)
	require.Equal(t, 10, n)
	assert.Equal(t, "abcd", string(a))
	assert.Equal(t, "efghij", string(b[:n-len(a)]))
}

func TestOps_Send_reset(t *testing.T) {
	ops, err := New()
	require.NoError(t, err)
	pair, err := ops.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	defer ops.Close(pair[0])
	require.NoError(t, ops.Close(pair[1]))

	_, err = ops.Send(pair[0], []byte("x"), 0)
	assert.ErrorIs(t, err, CodeReset)
}

func TestOps_Connect(t *testing.T) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	ops, err := New()
	require.NoError(t, err)
	h, err := ops.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	defer ops.Close(h)

	flags, err := unix.FcntlInt(uintptr(h), unix.F_GETFL, 0)
	require.NoError(t, err)
	assert.NotZero(t, flags&unix.O_NONBLOCK)

	sa := &unix.SockaddrInet4{Port: port, Addr: [4]byte{127, 0, 0, 1}}
	err = ops.Connect(h, sa)
	if err != nil {
		require.ErrorIs(t, err, CodeInProgress)
		waitWritable(t, h, 5*time.Second)
		require.NoError(t, ops.SocketError(h))
	}

	// linux reports the completed connect once, on the first repeat
	if err := ops.Connect(h, sa); err != nil {
		assert.ErrorIs(t, err, CodeIsConnected)
	}
	assert.ErrorIs(t, ops.Connect(h, sa), CodeIsConnected)

	conn, err := ln.Accept()
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte("ping"))
	require.NoError(t, err)

	buf := make([]byte, 4)
	deadline := time.Now().Add(5 * time.Second)
	var got []byte
	for len(got) < 4 && time.Now().Before(deadline) {
		n, err := ops.Recv(h, buf, 0)
		if errors.Is(err, CodeWouldBlock) {
			time.Sleep(time.Millisecond)
			continue
		}
		require.NoError(t, err)
		got = append(got, buf[:n]...)
	}
	assert.Equal(t, "ping", string(got))
}

func TestOps_Connect_refused(t *testing.T) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	ops, err := New()
	require.NoError(t, err)
	h, err := ops.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	defer ops.Close(h)

	err = ops.Connect(h, &unix.SockaddrInet4{Port: port, Addr: [4]byte{127, 0, 0, 1}})
	if errors.Is(err, CodeInProgress) {
		waitWritable(t, h, 5*time.Second)
		err = ops.SocketError(h)
	}
	assert.ErrorIs(t, err, CodeRefused)
	assert.ErrorIs(t, err, unix.ECONNREFUSED)
}

func TestOps_Socket_invalid(t *testing.T) {
	ops, err := New()
	require.NoError(t, err)
	h, err := ops.Socket(-1, unix.SOCK_STREAM, 0)
	assert.Equal(t, InvalidHandle, h)
	assert.Error(t, err)
	var e *Error
	if assert.ErrorAs(t, err, &e) {
		assert.Equal(t, `socket`, e.Op)
	}
}

func TestOps_unmappedLogged(t *testing.T) {
	var buf bytes.Buffer
	ops, err := New(
		WithLogger(newTestLogger(&buf)),
		WithUnmappedRates(map[time.Duration]int{time.Hour: 1}),
	)
	require.NoError(t, err)

	for range 3 {
		_, err = ops.Recv(InvalidHandle, make([]byte, 1), 0)
		assert.ErrorIs(t, err, CodeUnmapped)
		assert.ErrorIs(t, err, unix.EBADF)
	}
	assert.Equal(t, 1, strings.Count(buf.String(), `"msg":"unmapped socket error"`), buf.String())
	assert.Contains(t, buf.String(), `"lvl":"warning"`)
	assert.Contains(t, buf.String(), `"op":"recv"`)

	// same errno, still suppressed
	_, err = ops.Recv(Handle(0x7fffffff), make([]byte, 1), 0)
	assert.ErrorIs(t, err, unix.EBADF)
	assert.ErrorIs(t, ops.Close(InvalidHandle), CodeUnmapped)
	assert.Equal(t, 1, strings.Count(buf.String(), `"msg":"unmapped socket error"`))
}

func TestOps_zeroValue(t *testing.T) {
	var ops Ops
	pair := newPair(t, &ops)
	_, err := ops.Recv(pair[0], make([]byte, 1), 0)
	assert.ErrorIs(t, err, CodeWouldBlock)
	assert.ErrorIs(t, ops.Close(InvalidHandle), unix.EBADF)
}

func TestNew_invalidRates(t *testing.T) {
	_, err := New(WithUnmappedRates(map[time.Duration]int{time.Second: 0}))
	assert.Error(t, err)

	ops, err := New(nil, WithUnmappedRates(nil))
	require.NoError(t, err)
	assert.Nil(t, ops.limiter)
}
