package dmring

import (
	"sync"

	"go.uber.org/zap"
)

// ReaderID stably identifies a registered reader across its lifetime. It
// packs a slot index and a generation counter so a dropped-then-reused slot
// can never be confused with a stale id held by a caller that forgot to
// drop it.
type ReaderID uint64

func readerID(index, generation uint32) ReaderID {
	return ReaderID(uint64(generation)<<32 | uint64(index))
}

func (r ReaderID) index() uint32      { return uint32(r) }
func (r ReaderID) generation() uint32 { return uint32(r >> 32) }

// readerSlot holds one reader's bookkeeping. Slots are reused (by index)
// after a drop; the generation counter is bumped on every reuse so stale
// ReaderIDs are rejected rather than silently aliasing a new reader.
type readerSlot struct {
	live       bool
	generation uint32
	offset     uint64
	notify     Notifier
}

// ringCore is the shared, item-type-agnostic ring state: producer offset,
// capacity, reader table and the "done" flag. All mutation happens under
// mu. Offsets are unbounded monotonic counters; modular reduction happens
// only when computing a virtual address (DoubleMappedBuffer.itemPtr), which
// is what lets the producer occupy all Capacity() items at once instead of
// Capacity()-1.
type ringCore struct {
	mu sync.Mutex

	buf      *DoubleMappedBuffer
	capacity uint64

	write uint64
	done  bool

	producerNotify Notifier
	readers        []readerSlot
	freeSlots      []uint32

	log *zap.SugaredLogger
}

func newRingCore(buf *DoubleMappedBuffer, producerNotify Notifier, log *zap.SugaredLogger) *ringCore {
	return &ringCore{
		buf:            buf,
		capacity:       buf.Capacity(),
		producerNotify: producerNotify,
		log:            log,
	}
}

// registerReader inserts a new reader at the producer's current write
// offset (so a late join sees only subsequent items) and returns its
// stable id.
func (c *ringCore) registerReader(n Notifier) ReaderID {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.freeSlots) > 0 {
		idx := c.freeSlots[len(c.freeSlots)-1]
		c.freeSlots = c.freeSlots[:len(c.freeSlots)-1]
		slot := &c.readers[idx]
		slot.live = true
		slot.offset = c.write
		slot.notify = n
		return readerID(idx, slot.generation)
	}

	idx := uint32(len(c.readers))
	c.readers = append(c.readers, readerSlot{
		live:       true,
		generation: 0,
		offset:     c.write,
		notify:     n,
	})
	return readerID(idx, 0)
}

// dropReader removes a reader's entry and wakes the producer, which will
// observe more free space on its next probe.
func (c *ringCore) dropReader(id ReaderID) error {
	c.mu.Lock()
	slot, err := c.slotFor(id)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	slot.live = false
	slot.notify = nil
	slot.generation++
	c.freeSlots = append(c.freeSlots, id.index())
	c.mu.Unlock()

	c.producerNotify.Signal()
	return nil
}

// slotFor returns the live slot for id, or errUnknownReader. Callers must
// hold c.mu.
func (c *ringCore) slotFor(id ReaderID) (*readerSlot, error) {
	idx := id.index()
	if int(idx) >= len(c.readers) {
		return nil, errUnknownReader
	}
	slot := &c.readers[idx]
	if !slot.live || slot.generation != id.generation() {
		return nil, errUnknownReader
	}
	return slot, nil
}

// slowestLag returns W - min_i(R_i) across live readers, i.e. the number of
// items the producer cannot yet reuse. Callers must hold c.mu.
func (c *ringCore) slowestLag() uint64 {
	var lag uint64
	for i := range c.readers {
		slot := &c.readers[i]
		if !slot.live {
			continue
		}
		if l := c.write - slot.offset; l > lag {
			lag = l
		}
	}
	return lag
}

// spaceForProducer returns the producer's current writable window: the
// item offset to write at and the number of items free. It may return 0.
func (c *ringCore) spaceForProducer() (start uint64, n uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.write, c.capacity - c.slowestLag()
}

// spaceForReader returns reader id's current readable window: the item
// offset to read from, the number of unconsumed items, and whether the
// stream is terminally closed for this reader (done and nothing left).
func (c *ringCore) spaceForReader(id ReaderID) (start uint64, n uint64, closed bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	slot, err := c.slotFor(id)
	if err != nil {
		return 0, 0, false, err
	}
	avail := c.write - slot.offset
	if avail == 0 && c.done {
		return slot.offset, 0, true, nil
	}
	return slot.offset, avail, false, nil
}

// commitProduce advances the producer's write offset by k and wakes every
// reader that now has at least one unread item. k must not exceed the
// space last returned by spaceForProducer; violating that is a programmer
// error, rejected deterministically rather than silently corrupting state.
func (c *ringCore) commitProduce(k uint64) error {
	c.mu.Lock()
	free := c.capacity - c.slowestLag()
	if k > free {
		c.mu.Unlock()
		return errInvalidCommit
	}
	if k == 0 {
		c.mu.Unlock()
		return nil
	}
	c.write += k
	newWrite := c.write

	var toWake []Notifier
	for i := range c.readers {
		slot := &c.readers[i]
		if slot.live && slot.offset < newWrite {
			toWake = append(toWake, slot.notify)
		}
	}
	c.mu.Unlock()

	for _, n := range toWake {
		n.Signal()
	}
	return nil
}

// commitConsume advances reader id's read offset by k and wakes the
// producer. k must not exceed the space last returned by spaceForReader.
func (c *ringCore) commitConsume(id ReaderID, k uint64) error {
	c.mu.Lock()
	slot, err := c.slotFor(id)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	avail := c.write - slot.offset
	if k > avail {
		c.mu.Unlock()
		return errInvalidCommit
	}
	if k == 0 {
		c.mu.Unlock()
		return nil
	}
	slot.offset += k
	c.mu.Unlock()

	c.producerNotify.Signal()
	return nil
}

// close sets the done flag and wakes every reader so they can observe
// end-of-stream once their remaining items are drained.
func (c *ringCore) close() {
	c.mu.Lock()
	c.done = true
	var toWake []Notifier
	for i := range c.readers {
		if c.readers[i].live {
			toWake = append(toWake, c.readers[i].notify)
		}
	}
	c.mu.Unlock()

	for _, n := range toWake {
		n.Signal()
	}
}

// isDone reports whether close has been called. The flavors do not call it;
// they decide between suspending and returning Closed from the closed flag
// of spaceForReader.
func (c *ringCore) isDone() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

func (c *ringCore) logDestroyError(op string, err error) {
	if err == nil || c.log == nil {
		return
	}
	c.log.Warnw("dmring: platform failure during teardown", "op", op, "error", err)
}
