package dmring

import (
	"context"
	"fmt"
)

// SyncProducer is the blocking producer half of the Sync flavor: Slice
// waits on a condition variable when the ring is full and re-probes on
// wakeup, tolerating spurious wakeups by construction (the wait loop always
// re-checks free space).
type SyncProducer[T any] struct {
	core   *ringCore
	notify *condNotifier
	buf    *DoubleMappedBuffer
	handle *bufHandle

	lastN  uint64
	closed bool
}

// SyncReader is the blocking reader half of the Sync flavor.
type SyncReader[T any] struct {
	core   *ringCore
	notify *condNotifier
	buf    *DoubleMappedBuffer
	handle *bufHandle
	id     ReaderID

	lastN   uint64
	dropped bool
}

// NewSync constructs a Sync-flavored ring over buf: a blocking
// producer/reader pair built on a mutex + condition variable per notifier.
func NewSync[T any](buf *DoubleMappedBuffer, opts ...RingOption) (*SyncProducer[T], error) {
	if buf == nil {
		return nil, fmt.Errorf("%w: nil buffer", ErrAllocationFailed)
	}
	o := buildRingOptions(opts)
	producerNotify := newCondNotifier()
	core := newRingCore(buf, producerNotify, o.log)
	return &SyncProducer[T]{
		core:   core,
		notify: producerNotify,
		buf:    buf,
		handle: newBufHandle(buf, o.log),
	}, nil
}

// Slice returns the producer's current writable window. If the ring is
// full it blocks on the producer's notifier and re-probes on wakeup.
func (p *SyncProducer[T]) Slice() ([]T, error) {
	for {
		start, n := p.core.spaceForProducer()
		if n > 0 {
			p.lastN = n
			return itemView[T](p.buf, start, n), nil
		}
		p.notify.Wait(context.Background())
	}
}

// Produce commits the first k items of the last slice returned by Slice.
func (p *SyncProducer[T]) Produce(k int) error {
	return p.core.commitProduce(uint64(k))
}

// AddReader registers a new reader at the producer's current write offset;
// a reader added after items have been produced sees only subsequent
// items.
func (p *SyncProducer[T]) AddReader() *SyncReader[T] {
	notify := newCondNotifier()
	id := p.core.registerReader(notify)
	p.handle.acquire()
	return &SyncReader[T]{
		core:   p.core,
		notify: notify,
		buf:    p.buf,
		handle: p.handle,
		id:     id,
	}
}

// Close marks the ring closed: readers drain remaining items and then
// observe ErrClosed. Dropping the producer's last handle releases the
// DoubleMappedBuffer once every reader has also dropped.
func (p *SyncProducer[T]) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	p.core.close()
	p.handle.release()
	return nil
}

// Slice returns the reader's current readable window. If nothing is
// available it blocks on the reader's notifier and re-probes on wakeup,
// unless the ring has been closed, in which case it returns ErrClosed.
func (r *SyncReader[T]) Slice() ([]T, error) {
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
		r.notify.Wait(context.Background())
	}
}

// Consume commits the first k items of the last slice returned by Slice.
func (r *SyncReader[T]) Consume(k int) error {
	return r.core.commitConsume(r.id, uint64(k))
}

// Drop detaches the reader. This may unblock the producer if it was
// waiting on this reader's lag.
func (r *SyncReader[T]) Drop() error {
	if r.dropped {
		return nil
	}
	r.dropped = true
	err := r.core.dropReader(r.id)
	r.handle.release()
	return err
}
