package dmring

import (
	"context"
	"fmt"
)

// AsyncProducer is the cooperative-suspension producer half of the Async
// flavor. Slice suspends on ctx and the producer's notifier when the ring
// is full; canceling ctx cleanly deregisters the suspension without
// consuming anything.
type AsyncProducer[T any] struct {
	core   *ringCore
	notify *chanNotifier
	buf    *DoubleMappedBuffer
	handle *bufHandle

	lastN  uint64
	closed bool
}

// AsyncReader is the cooperative-suspension reader half of the Async
// flavor.
type AsyncReader[T any] struct {
	core   *ringCore
	notify *chanNotifier
	buf    *DoubleMappedBuffer
	handle *bufHandle
	id     ReaderID

	lastN   uint64
	dropped bool
}

// NewAsync constructs an Async-flavored ring over buf: the same operations
// as Sync, but Slice suspends cooperatively via ctx instead of blocking a
// thread, and a canceled suspension never resumes and never consumes an
// item (spec §4.4).
func NewAsync[T any](buf *DoubleMappedBuffer, opts ...RingOption) (*AsyncProducer[T], error) {
	if buf == nil {
		return nil, fmt.Errorf("%w: nil buffer", ErrAllocationFailed)
	}
	o := buildRingOptions(opts)
	producerNotify := newChanNotifier()
	core := newRingCore(buf, producerNotify, o.log)
	return &AsyncProducer[T]{
		core:   core,
		notify: producerNotify,
		buf:    buf,
		handle: newBufHandle(buf, o.log),
	}, nil
}

// Slice returns the producer's current writable window, suspending on ctx
// if the ring is full. Free space is re-probed under the ring lock on every
// pass, and the producer's notifier keeps a pending wake, so a consume or
// reader drop that lands between the probe and Wait is never missed: Wait
// returns at once and the next probe observes the freed space.
func (p *AsyncProducer[T]) Slice(ctx context.Context) ([]T, error) {
	for {
		start, n := p.core.spaceForProducer()
		if n > 0 {
			p.lastN = n
			return itemView[T](p.buf, start, n), nil
		}
		if err := p.notify.Wait(ctx); err != nil {
			return nil, err
		}
	}
}

// Produce commits the first k items of the last slice returned by Slice.
func (p *AsyncProducer[T]) Produce(k int) error {
	return p.core.commitProduce(uint64(k))
}

// AddReader registers a new reader at the producer's current write offset.
func (p *AsyncProducer[T]) AddReader() *AsyncReader[T] {
	notify := newChanNotifier()
	id := p.core.registerReader(notify)
	p.handle.acquire()
	return &AsyncReader[T]{
		core:   p.core,
		notify: notify,
		buf:    p.buf,
		handle: p.handle,
		id:     id,
	}
}

// Close marks the ring closed and wakes every suspended reader so it can
// observe end-of-stream.
func (p *AsyncProducer[T]) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	p.core.close()
	p.handle.release()
	return nil
}

// Slice returns the reader's current readable window, suspending on ctx if
// nothing is available, or returning ErrClosed once the producer has
// closed and no items remain.
func (r *AsyncReader[T]) Slice(ctx context.Context) ([]T, error) {
	for {
		start, n, closed, err := r.core.spaceForReader(r.id)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			r.lastN = n
			return itemView[T](r.buf, start, n), nil
		}
		if closed {
			return nil, ErrClosed
		}
		if err := r.notify.Wait(ctx); err != nil {
			return nil, err
		}
	}
}

// Consume commits the first k items of the last slice returned by Slice.
func (r *AsyncReader[T]) Consume(k int) error {
	return r.core.commitConsume(r.id, uint64(k))
}

// Drop detaches the reader, possibly unblocking a suspended producer.
func (r *AsyncReader[T]) Drop() error {
	if r.dropped {
		return nil
	}
	r.dropped = true
	err := r.core.dropReader(r.id)
	r.handle.release()
	return err
}
