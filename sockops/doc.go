// Package sockops is a thin, non-blocking facade over OS socket primitives.
//
// Every socket created by [Ops.Socket] is non-blocking and close-on-exec.
// Failures are reported as [*Error] values carrying one of a small, fixed set
// of [Code] values, which callers match with [errors.Is]:
//
//	n, err := ops.Recv(h, buf, 0)
//	switch {
//	case err == io.EOF:
//	    // orderly shutdown, or reset by the peer
//	case errors.Is(err, sockops.CodeWouldBlock):
//	    // wait for readiness
//	case err != nil:
//	    return err
//	}
//
// Platform codes outside the fixed set surface as [CodeUnmapped], with the
// original errno still reachable via errors.Is and errors.As. Nothing in this
// package retries, or terminates the process.
//
// The facade is implemented for linux and darwin.
package sockops
