package dmring

import (
	"context"
	"fmt"
)

// GenericProducer is the Ring exposed parameterized over any Notifier
// implementing the capability set in notifier.go, for third parties that
// want to plug in custom signalling (e.g. an eventfd- or
// epoll-integrated notifier) without forking the package. Sync, Async and
// Nonblocking are concrete instantiations of the same underlying ringCore;
// this is the uniform entry point spec §4.6 calls "the generic layer".
type GenericProducer[T any] struct {
	core   *ringCore
	notify Notifier
	buf    *DoubleMappedBuffer
	handle *bufHandle

	lastN  uint64
	closed bool
}

// GenericReader is the reader half of a generic ring.
type GenericReader[T any] struct {
	core   *ringCore
	notify Notifier
	buf    *DoubleMappedBuffer
	handle *bufHandle
	id     ReaderID

	lastN   uint64
	dropped bool
}

// NewGeneric constructs a ring over buf using the caller-supplied producer
// Notifier. Each reader supplies its own Notifier via AddReader, which need
// not be the same concrete type as the producer's or as any other reader's.
func NewGeneric[T any](buf *DoubleMappedBuffer, producerNotify Notifier, opts ...RingOption) (*GenericProducer[T], error) {
	if buf == nil {
		return nil, fmt.Errorf("%w: nil buffer", ErrAllocationFailed)
	}
	if producerNotify == nil {
		return nil, fmt.Errorf("%w: nil producer notifier", ErrAllocationFailed)
	}
	o := buildRingOptions(opts)
	core := newRingCore(buf, producerNotify, o.log)
	return &GenericProducer[T]{
		core:   core,
		notify: producerNotify,
		buf:    buf,
		handle: newBufHandle(buf, o.log),
	}, nil
}

// Slice returns the producer's current writable window, waiting on ctx and
// the producer notifier if the ring is full.
func (p *GenericProducer[T]) Slice(ctx context.Context) ([]T, error) {
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
func (p *GenericProducer[T]) Produce(k int) error {
	return p.core.commitProduce(uint64(k))
}

// AddReader registers a new reader, signalled through notify, at the
// producer's current write offset.
func (p *GenericProducer[T]) AddReader(notify Notifier) (*GenericReader[T], error) {
	if notify == nil {
		return nil, fmt.Errorf("%w: nil reader notifier", ErrAllocationFailed)
	}
	id := p.core.registerReader(notify)
	p.handle.acquire()
	return &GenericReader[T]{
		core:   p.core,
		notify: notify,
		buf:    p.buf,
		handle: p.handle,
		id:     id,
	}, nil
}

// Close marks the ring closed.
func (p *GenericProducer[T]) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	p.core.close()
	p.handle.release()
	return nil
}

// Slice returns the reader's current readable window, waiting on ctx and
// the reader's notifier if nothing is available.
func (r *GenericReader[T]) Slice(ctx context.Context) ([]T, error) {
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
func (r *GenericReader[T]) Consume(k int) error {
	return r.core.commitConsume(r.id, uint64(k))
}

// Drop detaches the reader.
func (r *GenericReader[T]) Drop() error {
	if r.dropped {
		return nil
	}
	r.dropped = true
	err := r.core.dropReader(r.id)
	r.handle.release()
	return err
}
