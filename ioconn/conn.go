// Package ioconn binds a non-blocking socket to a reactor event, and to a
// pair of ring buffers staging its input and output.
//
// Receives are vectored straight into the free space of the input buffer,
// and sends straight from the buffered bytes of the output buffer, so no
// intermediate copies are made. The reactor interest of a Conn follows its
// state: always readable, and writable only while output is pending.
//
// Like the reactor, a Conn is not safe for concurrent use.
package ioconn

import (
	"errors"

	"github.com/joeycumines/go-iocore/reactor"
	"github.com/joeycumines/go-iocore/ringbuffer"
	"github.com/joeycumines/go-iocore/sockops"
	"github.com/joeycumines/logiface"
)

// ErrClosed is returned when using a closed Conn.
var ErrClosed = errors.New("ioconn: connection closed")

// Conn is a connection registered with a reactor. The reactor's context type
// is *Conn, so one reactor may drive many connections.
type Conn struct {
	reactor *reactor.Reactor[*Conn]
	ops     *sockops.Ops
	logger  *logiface.Logger[logiface.Event]
	onData  func(c *Conn)
	onClose func(c *Conn, err error)
	in      *ringbuffer.Buffer
	out     *ringbuffer.Buffer
	id      reactor.EventID
	handle  sockops.Handle
	chunk   int
	armed   reactor.Flags
	bound   bool
	closed  bool
}

// New registers h with r, returning the Conn. On success the Conn takes
// ownership of h, closing it on Close. On error h is left open, and remains
// the caller's.
func New(r *reactor.Reactor[*Conn], ops *sockops.Ops, h sockops.Handle, opts ...Option) (*Conn, error) {
	cfg, err := resolveConnOptions(opts)
	if err != nil {
		return nil, err
	}

	in, err := ringbuffer.New(cfg.bufferSize)
	if err != nil {
		return nil, err
	}
	out, err := ringbuffer.New(cfg.bufferSize)
	if err != nil {
		return nil, err
	}

	id, err := r.CreateEvent()
	if err != nil {
		return nil, err
	}

	c := &Conn{
		reactor: r,
		ops:     ops,
		logger:  cfg.logger,
		onData:  cfg.onData,
		onClose: cfg.onClose,
		in:      in,
		out:     out,
		id:      id,
		handle:  h,
		chunk:   cfg.readChunk,
	}
	if err := c.rearm(); err != nil {
		_ = r.DestroyEvent(id)
		return nil, err
	}
	return c, nil
}

// Handle returns the socket handle.
func (c *Conn) Handle() sockops.Handle { return c.handle }

// In returns the input buffer. Consume from it to acknowledge received bytes.
func (c *Conn) In() *ringbuffer.Buffer { return c.in }

// Out returns the output buffer. Bytes written to it directly are sent once
// the reactor reports the socket writable, provided Rearm is called.
func (c *Conn) Out() *ringbuffer.Buffer { return c.out }

// Closed reports whether the connection has been closed.
func (c *Conn) Closed() bool { return c.closed }

// Interest returns the reactor interest matching the state of the
// connection.
func (c *Conn) Interest() reactor.Flags {
	if c.closed {
		return 0
	}
	if c.out.Len() != 0 {
		return reactor.FlagRead | reactor.FlagWrite
	}
	return reactor.FlagRead
}

// Write appends p to the output buffer, growing it as necessary, and
// updates the reactor interest. It does not send.
func (c *Conn) Write(p []byte) (int, error) {
	if c.closed {
		return 0, ErrClosed
	}
	if err := c.out.EnsureCapacity(len(p)); err != nil {
		return 0, err
	}
	n, err := c.out.Write(p)
	if err != nil {
		return n, err
	}
	return n, c.rearm()
}

// Rearm updates the reactor interest, see Interest. It is only necessary
// after writing to Out directly.
func (c *Conn) Rearm() error {
	if c.closed {
		return ErrClosed
	}
	return c.rearm()
}

// Fill receives into the input buffer, returning the number of bytes
// received. The buffer grows by at most enough for one read chunk per call,
// and Fill stops once it is full, or the socket would block. Bytes left
// unread keep the socket readable, for the next iteration. It returns io.EOF
// once the peer has shut down, or reset, the connection.
func (c *Conn) Fill() (int, error) {
	if c.closed {
		return 0, ErrClosed
	}
	if err := c.in.EnsureCapacity(c.chunk); err != nil {
		return 0, err
	}
	var total int
	for c.in.Free() != 0 {
		iov := c.in.IOV(ringbuffer.DirWrite)
		n, err := c.ops.Recvv(c.handle, iov)
		if n > 0 {
			if err := c.in.Produced(n); err != nil {
				return total, err
			}
			total += n
		}
		switch {
		case errors.Is(err, sockops.CodeWouldBlock):
			return total, nil
		case err != nil:
			return total, err
		case n < iov.Len():
			// drained
			return total, nil
		}
	}
	return total, nil
}

// Flush sends from the output buffer until it is empty, or the socket would
// block, returning the number of bytes sent.
func (c *Conn) Flush() (int, error) {
	if c.closed {
		return 0, ErrClosed
	}
	var total int
	for c.out.Len() != 0 {
		n, err := c.ops.Sendv(c.handle, c.out.IOV(ringbuffer.DirRead))
		if n > 0 {
			if err := c.out.Consumed(n); err != nil {
				return total, err
			}
			total += n
		}
		if errors.Is(err, sockops.CodeWouldBlock) {
			break
		}
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Close destroys the reactor event and closes the socket. Buffered bytes are
// discarded.
func (c *Conn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	err := c.reactor.DestroyEvent(c.id)
	if closeErr := c.ops.Close(c.handle); err == nil {
		err = closeErr
	}
	return err
}

// HandleEvent implements reactor.Handler, flushing pending output, then
// filling the input buffer.
func (c *Conn) HandleEvent(_ sockops.Handle, which reactor.Flags, _ *Conn) {
	if c.closed {
		return
	}

	if which&reactor.FlagWrite != 0 {
		if _, err := c.Flush(); err != nil {
			c.fail(err)
			return
		}
	}

	if which&reactor.FlagRead != 0 {
		n, err := c.Fill()
		if n > 0 && c.onData != nil {
			c.onData(c)
			if c.closed {
				return
			}
		}
		if err != nil {
			c.fail(err)
			return
		}
	}

	if err := c.rearm(); err != nil {
		c.fail(err)
	}
}

// rearm binds the event only when the interest changed, as every binding
// costs the backend a registration.
func (c *Conn) rearm() error {
	interest := c.Interest()
	if c.bound && interest == c.armed {
		return nil
	}
	if err := c.reactor.UpdateEvent(c.id, c.handle, interest, c, c); err != nil {
		return err
	}
	c.armed, c.bound = interest, true
	return nil
}

func (c *Conn) fail(err error) {
	c.logger.Debug().
		Int(`handle`, int(c.handle)).
		Err(err).
		Int(`pending_in`, c.in.Len()).
		Int(`pending_out`, c.out.Len()).
		Log(`connection closing`)
	if closeErr := c.Close(); closeErr != nil {
		c.logger.Warning().
			Int(`handle`, int(c.handle)).
			Err(closeErr).
			Log(`connection close failed`)
	}
	if c.onClose != nil {
		c.onClose(c, err)
	}
}
