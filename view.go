package dmring

import "unsafe"

// itemView synthesizes a []T pointing directly into the double-mapped
// region starting at item offset start, length n. Because the region is
// double-mapped, this is always a single contiguous slice — even when the
// window would, on an ordinary ring buffer, wrap the physical end — the
// second mapped half aliases the start of the first and covers the wrap
// transparently.
func itemView[T any](buf *DoubleMappedBuffer, start, n uint64) []T {
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*T)(buf.itemPtr(start)), int(n))
}
