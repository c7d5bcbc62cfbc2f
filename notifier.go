package dmring

import "context"

// Notifier is the capability set each concurrency flavor implements to
// signal and wait for ring state changes. A Notifier's own state is a
// single pending bit: Signal is wait-free and never loses a wakeup even if
// no one is currently waiting, and Wait tolerates spurious wakeups by
// design — callers always re-check ring state under the ring's lock after
// a wakeup, never trusting Wait's return alone.
//
// The ring is parameterized over this interface rather than a concrete
// type so third parties can plug in their own signalling (e.g. an eventfd-
// or epoll-integrated notifier) through NewGeneric.
type Notifier interface {
	// Signal wakes one waiter if present; otherwise it records a pending
	// wake so the next Wait call returns immediately. Must never block.
	Signal()

	// Wait blocks or cooperatively suspends until Signal is called or ctx
	// is done. Implementations that never suspend (e.g. the nonblocking
	// flavor's notifier) may leave Wait unused by their callers entirely.
	Wait(ctx context.Context) error
}
