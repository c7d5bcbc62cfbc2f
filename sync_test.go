//go:build unix

package dmring

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestBuffer(t *testing.T) *DoubleMappedBuffer {
	t.Helper()
	buf, err := NewDoubleMappedBuffer(uint64(os.Getpagesize()), 4)
	require.NoError(t, err)
	t.Cleanup(func() { buf.Close() })
	return buf
}

// TestSync_BasicWriteRead covers scenario S1: producer writes a handful of
// items, commits, and a single reader sees them contiguously and consumes
// them.
func TestSync_BasicWriteRead(t *testing.T) {
	buf := newTestBuffer(t)
	p, err := NewSync[uint32](buf)
	require.NoError(t, err)
	r := p.AddReader()

	view, err := p.Slice()
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(view), 4)
	copy(view, []uint32{1, 2, 3, 4})
	require.NoError(t, p.Produce(4))

	rv, err := r.Slice()
	require.NoError(t, err)
	require.Equal(t, []uint32{1, 2, 3, 4}, rv[:4])
	require.NoError(t, r.Consume(4))
}

// TestSync_PartialConsumeThenProduce covers scenario S2: the producer writes
// 2 items, the reader consumes 1, the producer writes 1 more, and the
// reader's next window covers both the tail of the first write and the new
// item contiguously.
func TestSync_PartialConsumeThenProduce(t *testing.T) {
	buf := newTestBuffer(t)
	p, err := NewSync[uint32](buf)
	require.NoError(t, err)
	r := p.AddReader()

	view, err := p.Slice()
	require.NoError(t, err)
	copy(view, []uint32{10, 20})
	require.NoError(t, p.Produce(2))

	rv, err := r.Slice()
	require.NoError(t, err)
	require.Equal(t, []uint32{10, 20}, rv[:2])
	require.NoError(t, r.Consume(1))

	view2, err := p.Slice()
	require.NoError(t, err)
	copy(view2, []uint32{30})
	require.NoError(t, p.Produce(1))

	rv2, err := r.Slice()
	require.NoError(t, err)
	require.Equal(t, []uint32{20, 30}, rv2[:2])
	require.NoError(t, r.Consume(2))
}

// TestSync_AliasingAcrossWrap covers scenario S3: write three quarters of
// capacity, drain it, then write the same amount again so the new window
// crosses the physical boundary — the caller should still see one
// contiguous slice.
func TestSync_AliasingAcrossWrap(t *testing.T) {
	buf := newTestBuffer(t)
	p, err := NewSync[uint32](buf)
	require.NoError(t, err)
	r := p.AddReader()

	capacity := buf.Capacity()
	chunk := capacity * 3 / 4

	view, err := p.Slice()
	require.NoError(t, err)
	for i := uint64(0); i < chunk; i++ {
		view[i] = uint32(i)
	}
	require.NoError(t, p.Produce(int(chunk)))

	rv, err := r.Slice()
	require.NoError(t, err)
	require.NoError(t, r.Consume(int(chunk)))
	_ = rv

	view2, err := p.Slice()
	require.NoError(t, err)
	require.GreaterOrEqual(t, uint64(len(view2)), chunk)
	for i := uint64(0); i < chunk; i++ {
		view2[i] = uint32(1000 + i)
	}
	require.NoError(t, p.Produce(int(chunk)))

	rv2, err := r.Slice()
	require.NoError(t, err)
	require.Equal(t, int(chunk), len(rv2))
	for i := uint64(0); i < chunk; i++ {
		require.Equal(t, uint32(1000+i), rv2[i])
	}
}

// TestSync_MultiReaderBackpressure covers scenario S4: a slow reader holds
// back the producer once the ring fills, and dropping the slow reader
// unblocks it.
func TestSync_MultiReaderBackpressure(t *testing.T) {
	buf := newTestBuffer(t)
	p, err := NewSync[uint32](buf)
	require.NoError(t, err)
	fast := p.AddReader()
	slow := p.AddReader()

	capacity := buf.Capacity()

	view, err := p.Slice()
	require.NoError(t, err)
	require.NoError(t, p.Produce(int(capacity)))

	fv, err := fast.Slice()
	require.NoError(t, err)
	require.Equal(t, int(capacity), len(fv))
	require.NoError(t, fast.Consume(int(capacity)))
	_ = view

	producerDone := make(chan struct{})
	go func() {
		defer close(producerDone)
		_, err := p.Slice()
		require.NoError(t, err)
	}()

	select {
	case <-producerDone:
		t.Fatal("producer should still be blocked behind the slow reader")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, slow.Drop())

	select {
	case <-producerDone:
	case <-time.After(time.Second):
		t.Fatal("dropping the slow reader should have unblocked the producer")
	}
}

// TestSync_CloseDrainsThenClosed covers scenario S5: after the producer is
// dropped, the reader drains remaining items and then observes Closed
// exactly once.
func TestSync_CloseDrainsThenClosed(t *testing.T) {
	buf := newTestBuffer(t)
	p, err := NewSync[uint32](buf)
	require.NoError(t, err)
	r := p.AddReader()

	view, err := p.Slice()
	require.NoError(t, err)
	copy(view, []uint32{7, 8, 9})
	require.NoError(t, p.Produce(3))
	require.NoError(t, p.Close())

	rv, err := r.Slice()
	require.NoError(t, err)
	require.Equal(t, []uint32{7, 8, 9}, rv[:3])
	require.NoError(t, r.Consume(3))

	_, err = r.Slice()
	require.ErrorIs(t, err, ErrClosed)
}

// TestSync_IdempotentZeroCommit covers scenario/property 7: committing 0
// items is a no-op that requires no wakeups.
func TestSync_IdempotentZeroCommit(t *testing.T) {
	buf := newTestBuffer(t)
	p, err := NewSync[uint32](buf)
	require.NoError(t, err)
	r := p.AddReader()

	require.NoError(t, p.Produce(0))
	require.NoError(t, r.Consume(0))
}

// TestSync_LateJoinSeesOnlySubsequentItems covers scenario 5 from the
// invariants list: a reader registered after items were produced and
// consumed sees only what comes after it joined.
func TestSync_LateJoinSeesOnlySubsequentItems(t *testing.T) {
	buf := newTestBuffer(t)
	p, err := NewSync[uint32](buf)
	require.NoError(t, err)
	early := p.AddReader()

	view, err := p.Slice()
	require.NoError(t, err)
	copy(view, []uint32{1, 2})
	require.NoError(t, p.Produce(2))

	ev, err := early.Slice()
	require.NoError(t, err)
	require.NoError(t, early.Consume(len(ev)))

	late := p.AddReader()

	view2, err := p.Slice()
	require.NoError(t, err)
	copy(view2, []uint32{3, 4})
	require.NoError(t, p.Produce(2))

	lv, err := late.Slice()
	require.NoError(t, err)
	require.Equal(t, []uint32{3, 4}, lv[:2])
}

// TestSync_ConcurrentProducerConsumer exercises the blocking flavor under
// real goroutine concurrency, confirming no loss and no tear (property 2).
func TestSync_ConcurrentProducerConsumer(t *testing.T) {
	buf := newTestBuffer(t)
	p, err := NewSync[uint32](buf)
	require.NoError(t, err)
	r := p.AddReader()

	const total = 5000
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		var next uint32
		for next < total {
			view, err := p.Slice()
			require.NoError(t, err)
			n := len(view)
			if uint32(n) > total-next {
				n = int(total - next)
			}
			for i := 0; i < n; i++ {
				view[i] = next + uint32(i)
			}
			require.NoError(t, p.Produce(n))
			next += uint32(n)
		}
		require.NoError(t, p.Close())
	}()

	go func() {
		defer wg.Done()
		var want uint32
		for want < total {
			view, err := r.Slice()
			if err == ErrClosed {
				break
			}
			require.NoError(t, err)
			for _, v := range view {
				require.Equal(t, want, v)
				want++
			}
			require.NoError(t, r.Consume(len(view)))
		}
		require.Equal(t, uint32(total), want)
	}()

	wg.Wait()
}
