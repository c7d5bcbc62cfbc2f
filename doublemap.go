package dmring

import (
	"fmt"
	"sync/atomic"
	"unsafe"
)

// DoubleMappedBuffer is a contiguous 2N-byte virtual region where
// [0, N) and [N, 2N) alias the same N physical bytes. It is the
// platform-portable allocator the ring is built on top of.
type DoubleMappedBuffer struct {
	base uintptr // B
	n    uintptr // half-length, physical bytes
	item uintptr // item size S

	closeFn func() error
	closed  atomic.Bool
}

// dmOptions holds construction options for DoubleMappedBuffer. The zero
// value uses the real platform allocation granularity.
type dmOptions struct {
	granularity uintptr
}

// Option configures DoubleMappedBuffer construction.
type Option func(*dmOptions)

// WithGranularityOverride forces the allocation granularity used to round
// the half-length, instead of querying the OS. Intended for tests that want
// to exercise the lcm-rounding logic deterministically without depending on
// the host's real page size.
func WithGranularityOverride(n uintptr) Option {
	return func(o *dmOptions) { o.granularity = n }
}

// NewDoubleMappedBuffer returns a buffer whose half-length N is the smallest
// multiple of lcm(granularity, itemSize) that is >= minBytes. It fails with
// ErrAllocationFailed if any platform call fails; all intermediate OS
// resources are released before returning an error.
func NewDoubleMappedBuffer(minBytes uint64, itemSize uintptr, opts ...Option) (*DoubleMappedBuffer, error) {
	if itemSize == 0 {
		return nil, fmt.Errorf("%w: item size must be > 0", ErrAllocationFailed)
	}

	o := dmOptions{granularity: platformGranularity()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.granularity == 0 {
		return nil, fmt.Errorf("%w: granularity must be > 0", ErrAllocationFailed)
	}

	step := lcm(o.granularity, itemSize)
	n := roundUp(uintptr(minBytes), step)
	if n == 0 {
		n = step
	}

	base, closeFn, err := platformNewMapping(n)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAllocationFailed, err)
	}

	return &DoubleMappedBuffer{base: base, n: n, item: itemSize, closeFn: closeFn}, nil
}

// Addr returns the base virtual address B of the mapping.
func (d *DoubleMappedBuffer) Addr() uintptr { return d.base }

// Len returns the physical half-length N in bytes.
func (d *DoubleMappedBuffer) Len() uintptr { return d.n }

// Capacity returns the number of whole items that fit in the half-length.
func (d *DoubleMappedBuffer) Capacity() uint64 { return uint64(d.n / d.item) }

// Bytes returns the full 2N-byte aliased window as a byte slice, for tests
// and callers that want to verify the aliasing property directly. The two
// halves are the same physical memory: writes through either are visible
// through the other.
func (d *DoubleMappedBuffer) Bytes() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(d.base)), int(2*d.n))
}

// Close releases both mappings and the underlying backing object exactly
// once. Calling Close more than once is a no-op.
func (d *DoubleMappedBuffer) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}
	return d.closeFn()
}

// itemPtr returns a pointer to item index i (0-based, unbounded, modulo
// reduction happens here) within the aliased 2N window. Any contiguous run
// of up to Capacity() items starting at any item offset is addressable
// without wrapping, because the second half aliases the start of the first.
func (d *DoubleMappedBuffer) itemPtr(i uint64) unsafe.Pointer {
	cap := d.Capacity()
	off := (i % cap) * uint64(d.item)
	return unsafe.Pointer(d.base + uintptr(off))
}

func gcd(a, b uintptr) uintptr {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func lcm(a, b uintptr) uintptr {
	if a == 0 || b == 0 {
		return 0
	}
	return a / gcd(a, b) * b
}

// roundUp returns the smallest multiple of step that is >= n (and > 0).
func roundUp(n, step uintptr) uintptr {
	if step == 0 {
		return 0
	}
	if n == 0 {
		return step
	}
	if rem := n % step; rem != 0 {
		n += step - rem
	}
	return n
}
