// Package ringbuffer implements a growable circular byte buffer, used to stage
// bytes between socket I/O and protocol parsing.
//
// A [Buffer] owns a single backing slice, with a read index and a write index
// that wrap at the end of the slice. Content is never reordered: growth via
// [Buffer.EnsureCapacity] copies the buffered bytes to the start of a larger
// slice, and an empty buffer always returns both indices to zero.
//
// # Zero-copy I/O
//
// [Buffer.IOV] exposes the next readable bytes, or the next free space, as an
// [IOVec] of at most two slices aliasing the backing array. This allows
// vectored socket calls to fill or drain the buffer directly:
//
//	iov := in.IOV(ringbuffer.DirWrite)
//	n, err := ops.Recvv(h, iov)
//	if n > 0 {
//	    _ = in.Produced(n)
//	}
//
// The slices returned by IOV are only valid until the next call that grows,
// resets, or otherwise mutates the buffer.
//
// # Concurrency
//
// A Buffer has no internal synchronization. Confine each instance to a single
// goroutine, typically the reactor goroutine owning the connection.
package ringbuffer
