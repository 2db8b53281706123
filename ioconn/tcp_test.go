//go:build linux || darwin

package ioconn

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"testing"

	"github.com/joeycumines/go-iocore/reactor"
	"github.com/joeycumines/go-iocore/sockops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
)

// TestConn_tcpEcho drives a non-blocking TCP client through the reactor,
// including the in-progress connect, against a blocking net.Listener echo
// server.
func TestConn_tcpEcho(t *testing.T) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	var g errgroup.Group
	g.Go(func() error {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		defer conn.Close()
		// hide ReaderFrom, copying through a plain buffer
		_, err = io.Copy(struct{ io.Writer }{conn}, struct{ io.Reader }{conn})
		return err
	})

	r := newReactor(t)
	ops, err := sockops.New()
	require.NoError(t, err)

	h, err := ops.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	sa := &unix.SockaddrInet4{Port: ln.Addr().(*net.TCPAddr).Port, Addr: [4]byte{127, 0, 0, 1}}

	payload := bytes.Repeat([]byte("0123456789abcdef"), 1<<14)
	var received bytes.Buffer
	var client *Conn

	start := func() error {
		var err error
		client, err = New(r, ops, h,
			WithBufferSize(64),
			WithDataHandler(func(c *Conn) {
				_, err := io.Copy(&received, c.In())
				require.NoError(t, err)
				if received.Len() == len(payload) {
					require.NoError(t, c.Close())
				}
			}),
		)
		if err != nil {
			return err
		}
		_, err = client.Write(payload)
		return err
	}

	switch err := ops.Connect(h, sa); {
	case err == nil:
		require.NoError(t, start())
	case errors.Is(err, sockops.CodeInProgress):
		// writable once the connect completes
		id, err := r.CreateEvent()
		require.NoError(t, err)
		require.NoError(t, r.UpdateEvent(id, h, reactor.FlagWrite, nil, reactor.HandlerFunc[*Conn](func(h sockops.Handle, which reactor.Flags, _ *Conn) {
			require.NoError(t, ops.SocketError(h))
			require.NoError(t, r.DestroyEvent(id))
			require.NoError(t, start())
		})))
	default:
		require.NoError(t, err)
	}

	require.NoError(t, r.Run(context.Background()))
	require.NotNil(t, client)
	assert.True(t, client.Closed())
	assert.True(t, bytes.Equal(payload, received.Bytes()), "echoed payload differs")
	require.NoError(t, g.Wait())
}
