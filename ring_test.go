//go:build unix

package dmring

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRing_InvalidCommitRejected(t *testing.T) {
	buf := newTestBuffer(t)
	p, err := NewSync[uint32](buf)
	require.NoError(t, err)
	r := p.AddReader()

	view, err := p.Slice()
	require.NoError(t, err)
	require.Error(t, p.Produce(len(view)+1))

	copy(view, []uint32{1})
	require.NoError(t, p.Produce(1))
	require.Error(t, r.Consume(2))
}

func TestRing_UnknownReaderRejected(t *testing.T) {
	buf := newTestBuffer(t)
	p, err := NewSync[uint32](buf)
	require.NoError(t, err)
	r := p.AddReader()
	require.NoError(t, r.Drop())

	_, err = r.Slice()
	require.ErrorIs(t, err, errUnknownReader)
	require.ErrorIs(t, r.Consume(1), errUnknownReader)
}

// TestRing_ReaderSlotReuseDoesNotAliasDroppedID confirms the generation
// counter rejects a stale ReaderID even after its slot index is recycled by
// a new reader (spec §9, dynamic reader membership).
func TestRing_ReaderSlotReuseDoesNotAliasDroppedID(t *testing.T) {
	buf := newTestBuffer(t)
	p, err := NewSync[uint32](buf)
	require.NoError(t, err)

	first := p.AddReader()
	staleID := first.id
	require.NoError(t, first.Drop())

	second := p.AddReader()
	require.Equal(t, staleID.index(), second.id.index(), "expected the freed slot to be reused")
	require.NotEqual(t, staleID.generation(), second.id.generation())

	_, _, _, err = p.core.spaceForReader(staleID)
	require.ErrorIs(t, err, errUnknownReader)

	_, _, _, err = p.core.spaceForReader(second.id)
	require.NoError(t, err)
}
