// Package reactor implements a single-threaded, readiness-based I/O event
// loop over non-blocking sockets, with a single optional timer.
//
// A [Reactor] owns a set of registered events, each binding a socket handle
// and a set of interest [Flags] to a [Handler]. Each iteration of
// [Reactor.Run] rebuilds the interest list from every event with non-zero
// interest, performs one multiplexed wait through the configured [Backend],
// then invokes handlers for the realized readiness (the reported readiness
// intersected with the interest current at dispatch time). When the timer is
// armed and has expired, its handler is invoked with [sockops.InvalidHandle]
// and zero flags. Run returns once no event carries interest.
//
// Events and the timer are addressed by generational IDs. Destroying an event
// or timer invalidates its ID, and later use reports [ErrStaleEvent] or
// [ErrStaleTimer].
//
// # Concurrency
//
// A Reactor is not safe for concurrent use. All methods, including [Reactor.Stop],
// must be called from the goroutine calling Run, typically from within
// handlers. Context cancellation is observed at iteration boundaries only.
//
// # Backends
//
// The multiplexing primitive is pluggable. [NewBackend] resolves one of
// [BackendPoll] (the default), [BackendSelect], [BackendEpoll] or
// [BackendKqueue], subject to platform support.
package reactor
