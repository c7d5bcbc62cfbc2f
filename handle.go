package dmring

import (
	"sync/atomic"

	"go.uber.org/zap"
)

// bufHandle reference-counts a DoubleMappedBuffer across the producer and
// every reader that shares it, so the mapping survives while any handle —
// producer or reader — still exists, and is released exactly once when the
// last one drops (spec §9, "producer-reader cyclic reference").
type bufHandle struct {
	buf  *DoubleMappedBuffer
	refs atomic.Int64
	log  *zap.SugaredLogger
}

func newBufHandle(buf *DoubleMappedBuffer, log *zap.SugaredLogger) *bufHandle {
	h := &bufHandle{buf: buf, log: log}
	h.refs.Store(1)
	return h
}

func (h *bufHandle) acquire() { h.refs.Add(1) }

func (h *bufHandle) release() {
	if h.refs.Add(-1) != 0 {
		return
	}
	if err := h.buf.Close(); err != nil && h.log != nil {
		h.log.Warnw("dmring: failed to release double mapping", "error", err)
	}
}
