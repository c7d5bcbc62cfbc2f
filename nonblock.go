package dmring

import "fmt"

// SliceStatus is the three-way result of a Nonblocking Slice call.
type SliceStatus int

const (
	// Ready indicates the returned view is valid and non-empty.
	Ready SliceStatus = iota
	// WouldBlock indicates no data/space is available right now; the
	// caller is responsible for retry timing.
	WouldBlock
	// Closed indicates the reader reached end-of-stream with no further
	// data. Only ever returned to readers.
	Closed
)

// Err converts a status into the sentinel error describing it, for callers
// that prefer propagating an error over switching on SliceStatus directly.
// Ready converts to nil.
func (s SliceStatus) Err() error {
	switch s {
	case WouldBlock:
		return ErrWouldBlock
	case Closed:
		return ErrClosed
	default:
		return nil
	}
}

// NonblockProducer is the Nonblocking flavor's producer: Slice never
// waits, returning WouldBlock instead.
type NonblockProducer[T any] struct {
	core   *ringCore
	buf    *DoubleMappedBuffer
	handle *bufHandle

	lastN  uint64
	closed bool
}

// NonblockReader is the Nonblocking flavor's reader.
type NonblockReader[T any] struct {
	core   *ringCore
	buf    *DoubleMappedBuffer
	handle *bufHandle
	id     ReaderID

	lastN   uint64
	dropped bool
}

// NewNonblocking constructs a Nonblocking-flavored ring over buf.
func NewNonblocking[T any](buf *DoubleMappedBuffer, opts ...RingOption) (*NonblockProducer[T], error) {
	if buf == nil {
		return nil, fmt.Errorf("%w: nil buffer", ErrAllocationFailed)
	}
	o := buildRingOptions(opts)
	core := newRingCore(buf, noopNotifier{}, o.log)
	return &NonblockProducer[T]{
		core:   core,
		buf:    buf,
		handle: newBufHandle(buf, o.log),
	}, nil
}

// Slice returns (Ready, view) if there is writable space, or (WouldBlock,
// nil) otherwise. It never waits.
func (p *NonblockProducer[T]) Slice() (SliceStatus, []T) {
	start, n := p.core.spaceForProducer()
	if n == 0 {
		return WouldBlock, nil
	}
	p.lastN = n
	return Ready, itemView[T](p.buf, start, n)
}

// Produce commits the first k items of the last slice returned by Slice.
func (p *NonblockProducer[T]) Produce(k int) error {
	return p.core.commitProduce(uint64(k))
}

// AddReader registers a new reader at the producer's current write offset.
func (p *NonblockProducer[T]) AddReader() *NonblockReader[T] {
	id := p.core.registerReader(noopNotifier{})
	p.handle.acquire()
	return &NonblockReader[T]{
		core:   p.core,
		buf:    p.buf,
		handle: p.handle,
		id:     id,
	}
}

// Close marks the ring closed.
func (p *NonblockProducer[T]) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	p.core.close()
	p.handle.release()
	return nil
}

// Slice returns (Ready, view, nil), (WouldBlock, nil, nil), or (Closed,
// nil, nil). It never waits. A non-nil error (e.g. errUnknownReader for a
// dropped reader) is a programmer error; it comes back as (WouldBlock, nil,
// err), so it is told apart from a routine empty ring by err, not by the
// status.
func (r *NonblockReader[T]) Slice() (SliceStatus, []T, error) {
	start, n, closed, err := r.core.spaceForReader(r.id)
	if err != nil {
		return WouldBlock, nil, err
	}
	if n > 0 {
		r.lastN = n
		return Ready, itemView[T](r.buf, start, n), nil
	}
	if closed {
		return Closed, nil, nil
	}
	return WouldBlock, nil, nil
}

// Consume commits the first k items of the last slice returned by Slice.
func (r *NonblockReader[T]) Consume(k int) error {
	return r.core.commitConsume(r.id, uint64(k))
}

// Drop detaches the reader.
func (r *NonblockReader[T]) Drop() error {
	if r.dropped {
		return nil
	}
	r.dropped = true
	err := r.core.dropReader(r.id)
	r.handle.release()
	return err
}
