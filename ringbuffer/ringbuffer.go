package ringbuffer

import (
	"errors"
	"fmt"
	"io"
)

// MaxCapacity is the largest backing array a Buffer will allocate.
const MaxCapacity = 1 << 30

// initialGrowth is the capacity EnsureCapacity starts doubling from, when the
// buffer has no backing array.
const initialGrowth = 128

var (
	// ErrAllocation is returned when a backing array cannot be allocated. The
	// buffer is left unmodified.
	ErrAllocation = errors.New("ringbuffer: allocation failed")

	// ErrShortMove is returned by Produced and Consumed when asked to move a
	// cursor further than the free space or buffered length allows. The
	// buffer is left unmodified.
	ErrShortMove = errors.New("ringbuffer: cursor move exceeds available bytes")
)

// Direction selects which side of the buffer an operation describes.
type Direction int

const (
	// DirRead describes buffered bytes, in the order they will be read.
	DirRead Direction = iota
	// DirWrite describes free space, in the order it will be written.
	DirWrite
)

// String returns a human-readable representation of the direction.
func (d Direction) String() string {
	switch d {
	case DirRead:
		return "read"
	case DirWrite:
		return "write"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// Buffer is a growable circular byte buffer.
//
// The zero value is an empty buffer with no capacity, which will allocate on
// the first call to EnsureCapacity.
type Buffer struct {
	buf    []byte
	length int
	read   int
	write  int
}

// New allocates a Buffer with the given capacity.
func New(capacity int) (*Buffer, error) {
	buf, err := allocate(capacity)
	if err != nil {
		return nil, err
	}
	return &Buffer{buf: buf}, nil
}

// allocate converts runtime allocation panics (e.g. len out of range) into
// ErrAllocation.
func allocate(n int) (b []byte, err error) {
	if n < 0 || n > MaxCapacity {
		return nil, fmt.Errorf("%w: invalid capacity %d", ErrAllocation, n)
	}
	defer func() {
		if r := recover(); r != nil {
			b, err = nil, fmt.Errorf("%w: %v", ErrAllocation, r)
		}
	}()
	return make([]byte, n), nil
}

// Len returns the number of buffered bytes.
func (x *Buffer) Len() int { return x.length }

// Cap returns the size of the backing array.
func (x *Buffer) Cap() int { return len(x.buf) }

// Free returns the number of bytes that may be written without growth.
func (x *Buffer) Free() int { return len(x.buf) - x.length }

// Reset discards all buffered bytes, returning the cursors to the origin.
// The capacity is retained.
func (x *Buffer) Reset() {
	x.length = 0
	x.read = 0
	x.write = 0
}

// EnsureCapacity guarantees at least n bytes of free space. If the buffer is
// too small, the capacity is doubled (starting at 128 for an unallocated
// buffer) until it suffices, and the buffered bytes are moved to the start of
// the new backing array. On error the buffer is unchanged.
func (x *Buffer) EnsureCapacity(n int) error {
	if n <= x.Free() {
		return nil
	}

	size := len(x.buf) << 1
	if size == 0 {
		size = initialGrowth
	}
	for size-x.length < n {
		if size >= MaxCapacity {
			return fmt.Errorf("%w: %d bytes requested with %d buffered", ErrAllocation, n, x.length)
		}
		size <<= 1
	}

	buf, err := allocate(size)
	if err != nil {
		return err
	}

	iov := x.IOV(DirRead)
	copy(buf[copy(buf, iov[0]):], iov[1])

	x.buf = buf
	x.read = 0
	x.write = x.length
	return nil
}

// Write copies p into the free space, in at most two segments split at the
// wrap boundary. If p does not fit, as many bytes as possible are written and
// io.ErrShortWrite is returned. Use EnsureCapacity beforehand to avoid that.
func (x *Buffer) Write(p []byte) (int, error) {
	iov := x.IOV(DirWrite)
	n := copy(iov[0], p)
	n += copy(iov[1], p[n:])
	x.advanceWrite(n)
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

// Produced commits n bytes of free space as buffered, without copying. It is
// used after filling the DirWrite IOVec directly, e.g. via a vectored recv.
func (x *Buffer) Produced(n int) error {
	if n < 0 || n > x.Free() {
		return ErrShortMove
	}
	x.advanceWrite(n)
	return nil
}

// Read consumes up to len(p) buffered bytes into p. It returns io.EOF if the
// buffer is empty and len(p) is non-zero.
func (x *Buffer) Read(p []byte) (int, error) {
	if x.length == 0 {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}
	n := x.copyOut(p)
	x.advanceRead(n)
	return n, nil
}

// Peek behaves like Read, but leaves the buffer unmodified.
func (x *Buffer) Peek(p []byte) (int, error) {
	if x.length == 0 {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}
	return x.copyOut(p), nil
}

// Consumed discards n buffered bytes.
func (x *Buffer) Consumed(n int) error {
	if n < 0 || n > x.length {
		return ErrShortMove
	}
	x.advanceRead(n)
	return nil
}

// IOV returns the next buffered bytes (DirRead) or the next free space
// (DirWrite) as up to two slices of the backing array. The second slice is
// empty unless the range crosses the wrap boundary. An invalid direction
// yields an empty IOVec.
func (x *Buffer) IOV(dir Direction) (iov IOVec) {
	var start, n int
	switch dir {
	case DirRead:
		start, n = x.read, x.length
	case DirWrite:
		start, n = x.write, len(x.buf)-x.length
	default:
		return
	}
	end := min(len(x.buf), start+n)
	iov[0] = x.buf[start:end:end]
	rest := n - (end - start)
	iov[1] = x.buf[0:rest:rest]
	return
}

// IsContiguous reports whether n bytes are available in the given direction,
// within a single run of the backing array.
func (x *Buffer) IsContiguous(dir Direction, n int) bool {
	return n >= 0 && n <= len(x.IOV(dir)[0])
}

func (x *Buffer) copyOut(p []byte) int {
	iov := x.IOV(DirRead)
	n := copy(p, iov[0])
	return n + copy(p[n:], iov[1])
}

func (x *Buffer) advanceWrite(n int) {
	if n == 0 {
		return
	}
	x.write = (x.write + n) % len(x.buf)
	x.length += n
}

func (x *Buffer) advanceRead(n int) {
	if n == 0 {
		return
	}
	x.length -= n
	if x.length == 0 {
		x.read = 0
		x.write = 0
		return
	}
	x.read = (x.read + n) % len(x.buf)
}
