// Package dmring provides a double-mapped circular buffer: a
// single-producer / multi-consumer ring whose backing storage is mapped
// twice, contiguously, into the process's virtual address space so that any
// window of the ring — even one that wraps the physical end — appears as a
// single contiguous slice of items.
//
// # Thread Safety
//
// The ring supports exactly one producer and any number of concurrent
// readers. Readers may be registered and dropped while the ring is in use.
// Three concurrency flavors are provided: Sync (blocking, mutex + condition
// variable), Async (cooperative suspension via context.Context), and
// Nonblocking (returns a WouldBlock sentinel instead of waiting). A Generic
// entry point lets callers plug in their own notifier.
//
// # Basic usage
//
//	buf, _ := dmring.NewDoubleMappedBuffer(4096, unsafe.Sizeof(uint32(0)))
//	p, _ := dmring.NewSync[uint32](buf)
//	r := p.AddReader()
//
//	go func() {
//	    view, _ := p.Slice()
//	    n := copy(view, []uint32{1, 2, 3, 4})
//	    p.Produce(n)
//	}()
//
//	view, err := r.Slice()
//	r.Consume(len(view))
package dmring
